package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseIncident() *Incident {
	return &Incident{
		IncidentID:       "20251123-0001",
		CompanyID:        "techflow",
		Commitment:       "0xabc1230001",
		ProofStatus:      ProofNeedProof,
		BlockchainStatus: ChainNone,
	}
}

func TestCheckInvariants_ReachableStates(t *testing.T) {
	need := baseIncident()

	generating := baseIncident()
	generating.ProofStatus = ProofGenerating

	pending := baseIncident()
	pending.ProofStatus = ProofVerified
	pending.BlockchainStatus = ChainPending
	pending.ProofHash = StringPtr("0xabcd")
	pending.PublicInputs = []string{"0x01", "0x02"}
	pending.TransactionHash = StringPtr("0x01")

	confirmed := pending.Clone()
	confirmed.BlockchainStatus = ChainConfirmed

	failed := pending.Clone()
	failed.BlockchainStatus = ChainFailed

	rejected := baseIncident()
	rejected.ProofStatus = ProofNotVerified
	rejected.ProofHash = StringPtr("0xabcd")
	rejected.PublicInputs = []string{"0x01"}

	for _, inc := range []*Incident{need, generating, pending, confirmed, failed, rejected} {
		assert.NoError(t, inc.CheckInvariants(), inc.State().String())
	}
}

func TestCheckInvariants_Violations(t *testing.T) {
	cases := map[string]func(i *Incident){
		"proof hash while generating": func(i *Incident) {
			i.ProofStatus = ProofGenerating
			i.ProofHash = StringPtr("0xabcd")
			i.PublicInputs = []string{"0x01"}
		},
		"tx hash without chain status": func(i *Incident) {
			i.TransactionHash = StringPtr("0x01")
		},
		"confirmed without proof": func(i *Incident) {
			i.BlockchainStatus = ChainConfirmed
			i.TransactionHash = StringPtr("0x01")
		},
		"verified never submitted": func(i *Incident) {
			i.ProofStatus = ProofVerified
			i.ProofHash = StringPtr("0xabcd")
			i.PublicInputs = []string{"0x01"}
		},
		"verified without proof hash": func(i *Incident) {
			i.ProofStatus = ProofVerified
			i.BlockchainStatus = ChainFailed
			i.TransactionHash = StringPtr("0x01")
		},
		"empty public inputs": func(i *Incident) {
			i.ProofStatus = ProofNotVerified
			i.ProofHash = StringPtr("0xabcd")
			i.PublicInputs = []string{}
		},
		"inputs without hash": func(i *Incident) {
			i.PublicInputs = []string{"0x01"}
		},
		"unknown status": func(i *Incident) {
			i.ProofStatus = "done"
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			inc := baseIncident()
			mutate(inc)
			err := inc.CheckInvariants()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvariantViolation)
		})
	}
}

func TestClone_IsDeep(t *testing.T) {
	inc := baseIncident()
	inc.ProofStatus = ProofNotVerified
	inc.ProofHash = StringPtr("0xabcd")
	inc.PublicInputs = []string{"0x01"}

	c := inc.Clone()
	*c.ProofHash = "0xffff"
	c.PublicInputs[0] = "0x02"

	assert.Equal(t, "0xabcd", *inc.ProofHash)
	assert.Equal(t, "0x01", inc.PublicInputs[0])
}

func TestStatusFilter_Matches(t *testing.T) {
	inc := baseIncident()
	proof := ProofNeedProof
	chain := ChainPending

	assert.True(t, StatusFilter{}.Matches(inc))
	assert.True(t, StatusFilter{ProofStatus: &proof}.Matches(inc))
	assert.False(t, StatusFilter{BlockchainStatus: &chain}.Matches(inc))
}
