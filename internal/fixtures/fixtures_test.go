package fixtures

import (
	"bytes"
	"context"
	"testing"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	logger := logrus.New()
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)
	return logger, buf
}

func TestNormalize(t *testing.T) {
	t.Run("verified row gets well-formed hashes", func(t *testing.T) {
		incident, err := Normalize(Incidents[2])
		require.NoError(t, err)

		assert.Equal(t, models.ProofVerified, incident.ProofStatus)
		assert.Equal(t, models.ChainConfirmed, incident.BlockchainStatus)
		require.NotNil(t, incident.TransactionHash)
		require.NotNil(t, incident.ProofHash)
		assert.Len(t, *incident.TransactionHash, 66)
		assert.Len(t, *incident.ProofHash, 66)
		assert.Equal(t, []string{"0x01", "0x02"}, incident.PublicInputs)
	})

	t.Run("hashes are deterministic", func(t *testing.T) {
		a, err := Normalize(Incidents[2])
		require.NoError(t, err)
		b, err := Normalize(Incidents[2])
		require.NoError(t, err)
		assert.Equal(t, *a.TransactionHash, *b.TransactionHash)
	})

	t.Run("not verified row loses its submission", func(t *testing.T) {
		incident, err := Normalize(Incidents[3])
		require.NoError(t, err)

		assert.Equal(t, models.ProofNotVerified, incident.ProofStatus)
		assert.Equal(t, models.ChainNone, incident.BlockchainStatus)
		assert.Nil(t, incident.TransactionHash)
		assert.NotNil(t, incident.ProofHash)
	})

	t.Run("generating row with pending chain is rejected", func(t *testing.T) {
		_, err := Normalize(Incidents[1])
		assert.ErrorIs(t, err, models.ErrInvariantViolation)
	})

	t.Run("malformed commitment is rejected", func(t *testing.T) {
		_, err := Normalize(IncidentRow{CompanyID: "techflow", Commitment: "abc", ProofStatus: models.ProofNeedProof, BlockchainStatus: models.ChainNone})
		assert.ErrorIs(t, err, models.ErrInvalidArgument)
	})
}

func TestSeed(t *testing.T) {
	// Подготовка
	store := repository.NewMemoryStore()
	logger, logs := newTestLogger()
	ctx := context.Background()

	// Действие
	res, err := Seed(ctx, store, logger)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, Result{Companies: 5, Incidents: 9, Rejected: 1}, res)
	assert.Contains(t, logs.String(), "Fixture incident rejected")

	techflow, err := store.ListByCompany(ctx, "techflow", models.StatusFilter{})
	require.NoError(t, err)
	assert.Len(t, techflow, 3)
	for _, incident := range techflow {
		assert.NoError(t, incident.CheckInvariants())
	}

	first, err := store.GetByID(ctx, "20251123-0001")
	require.NoError(t, err)
	assert.Equal(t, "0xabc1230001", first.Commitment)

	_, err = store.GetByID(ctx, "20251123-0009")
	assert.NoError(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	// Подготовка
	store := repository.NewMemoryStore()
	logger, _ := newTestLogger()
	ctx := context.Background()
	_, err := Seed(ctx, store, logger)
	require.NoError(t, err)

	// Действие
	res, err := Seed(ctx, store, logger)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	// rideshare не имеет инцидентов, поэтому повторная загрузка ничего не добавляет
	_, err = store.GetByID(ctx, "20251123-0010")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
