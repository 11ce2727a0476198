package zk

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCommitment = "0xabc1230001"

// sumCircuit: Commitment = Secret + Inputs[0] + Inputs[1]. Публичная часть совпадает с BindingCircuit.
type sumCircuit struct {
	Commitment frontend.Variable   `gnark:",public"`
	Inputs     []frontend.Variable `gnark:",public"`
	Secret     frontend.Variable
}

func (c *sumCircuit) Define(api frontend.API) error {
	sum := api.Add(c.Secret, c.Inputs[0], c.Inputs[1])
	api.AssertIsEqual(sum, c.Commitment)
	return nil
}

type mapBlobs map[string][]byte

func (m mapBlobs) Blob(_ context.Context, proofHash string) ([]byte, error) {
	blob, ok := m[proofHash]
	if !ok {
		return nil, models.ErrNotFound
	}
	return blob, nil
}

type failingBlobs struct{}

func (failingBlobs) Blob(context.Context, string) ([]byte, error) {
	return nil, errors.New("redis: connection refused")
}

type fixture struct {
	vk        groth16.VerifyingKey
	proofHash string
	blob      []byte
}

// newFixture компилирует схему, генерирует ключи и доказательство для testCommitment и входов 0x01, 0x02
func newFixture(t *testing.T) fixture {
	t.Helper()
	silenceGnark()

	ccs, err := frontend.Compile(curve.ScalarField(), r1cs.NewBuilder, &sumCircuit{Inputs: make([]frontend.Variable, 2)})
	require.NoError(t, err)
	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	commitment := new(big.Int).SetBytes(hexutil.MustDecode(testCommitment))
	assignment := sumCircuit{
		Commitment: commitment,
		Inputs:     []frontend.Variable{1, 2},
		Secret:     new(big.Int).Sub(commitment, big.NewInt(3)),
	}
	full, err := frontend.NewWitness(&assignment, curve.ScalarField())
	require.NoError(t, err)

	proof, err := groth16.Prove(ccs, pk, full)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = proof.WriteTo(&buf)
	require.NoError(t, err)

	return fixture{
		vk:        vk,
		proofHash: hexutil.Encode(crypto.Keccak256(buf.Bytes())),
		blob:      buf.Bytes(),
	}
}

func newTestVerifier(vk groth16.VerifyingKey, blobs BlobSource) *Groth16Verifier {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return NewGroth16Verifier(vk, blobs, logger)
}

func TestGroth16Verifier(t *testing.T) {
	fx := newFixture(t)
	blobs := mapBlobs{fx.proofHash: fx.blob}
	verifier := newTestVerifier(fx.vk, blobs)
	ctx := context.Background()

	tests := []struct {
		name       string
		commitment string
		proofHash  string
		inputs     []string
		want       bool
	}{
		{name: "bound", commitment: testCommitment, proofHash: fx.proofHash, inputs: []string{"0x01", "0x02"}, want: true},
		{name: "other commitment", commitment: "0xabc1230002", proofHash: fx.proofHash, inputs: []string{"0x01", "0x02"}, want: false},
		{name: "other inputs", commitment: testCommitment, proofHash: fx.proofHash, inputs: []string{"0x02", "0x01"}, want: false},
		{name: "wrong input count", commitment: testCommitment, proofHash: fx.proofHash, inputs: []string{"0x01"}, want: false},
		{name: "unknown blob", commitment: testCommitment, proofHash: "0xabcd", inputs: []string{"0x01", "0x02"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := verifier.Verify(ctx, tt.commitment, tt.proofHash, tt.inputs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestGroth16Verifier_BlobHashMismatch(t *testing.T) {
	fx := newFixture(t)
	// Блоб подменен: хэш не совпадает с proof_hash
	tampered := append([]byte(nil), fx.blob...)
	tampered[len(tampered)-1] ^= 0xff
	verifier := newTestVerifier(fx.vk, mapBlobs{fx.proofHash: tampered})

	ok, err := verifier.Verify(context.Background(), testCommitment, fx.proofHash, []string{"0x01", "0x02"})

	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroth16Verifier_BlobStoreUnavailable(t *testing.T) {
	fx := newFixture(t)
	verifier := newTestVerifier(fx.vk, failingBlobs{})

	_, err := verifier.Verify(context.Background(), testCommitment, fx.proofHash, []string{"0x01", "0x02"})

	assert.Error(t, err)
}

func TestLoadVerifyingKey(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "verifying.key")
	f, err := os.Create(path)
	require.NoError(t, err)
	_, err = fx.vk.WriteTo(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	vk, err := LoadVerifyingKey(path)
	require.NoError(t, err)

	verifier := newTestVerifier(vk, mapBlobs{fx.proofHash: fx.blob})
	ok, err := verifier.Verify(context.Background(), testCommitment, fx.proofHash, []string{"0x01", "0x02"})
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = LoadVerifyingKey(filepath.Join(t.TempDir(), "missing.key"))
	assert.Error(t, err)
}
