package repository

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIncident(id string) *models.Incident {
	return &models.Incident{
		IncidentID:       id,
		CompanyID:        "techflow",
		DetectedAt:       time.Date(2025, 11, 23, 10, 0, 0, 0, time.UTC),
		Commitment:       "0xabc1230001",
		ProofStatus:      models.ProofNeedProof,
		BlockchainStatus: models.ChainNone,
	}
}

func TestMemoryStore_CompareAndSwap(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newIncident("20251123-0001")))

	current, err := store.GetByID(ctx, "20251123-0001")
	require.NoError(t, err)
	assert.Equal(t, int64(1), current.Version)

	next := current.Clone()
	next.ProofStatus = models.ProofGenerating
	require.NoError(t, store.CompareAndSwap(ctx, current.Version, next))
	assert.Equal(t, int64(2), next.Version)

	// Повтор с устаревшей версией
	stale := current.Clone()
	stale.ProofStatus = models.ProofNotVerified
	err = store.CompareAndSwap(ctx, current.Version, stale)
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	stored, err := store.GetByID(ctx, "20251123-0001")
	require.NoError(t, err)
	assert.Equal(t, models.ProofGenerating, stored.ProofStatus)
}

func TestMemoryStore_CompareAndSwap_NotFound(t *testing.T) {
	store := NewMemoryStore()

	err := store.CompareAndSwap(context.Background(), 1, newIncident("missing"))

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_CompareAndSwap_KeepsCommitment(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newIncident("20251123-0001")))

	next, _ := store.GetByID(ctx, "20251123-0001")
	next.Commitment = "0xffff"
	require.NoError(t, store.CompareAndSwap(ctx, next.Version, next))

	stored, _ := store.GetByID(ctx, "20251123-0001")
	assert.Equal(t, "0xabc1230001", stored.Commitment)
}

func TestMemoryStore_ConcurrentSwapsHaveOneWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newIncident("20251123-0001")))
	base, _ := store.GetByID(ctx, "20251123-0001")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := base.Clone()
			next.ProofStatus = models.ProofGenerating
			if err := store.CompareAndSwap(ctx, base.Version, next); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_NextIncidentID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2025, 11, 23, 18, 30, 0, 0, time.UTC)

	first, err := store.NextIncidentID(ctx, day)
	require.NoError(t, err)
	second, err := store.NextIncidentID(ctx, day.Add(time.Hour))
	require.NoError(t, err)
	other, err := store.NextIncidentID(ctx, day.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, "20251123-0001", first)
	assert.Equal(t, "20251123-0002", second)
	assert.Equal(t, "20251124-0001", other)
}

func TestMemoryStore_ListByCompanyAndCounts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newIncident("20251123-0002")))
	require.NoError(t, store.Create(ctx, newIncident("20251123-0001")))
	other := newIncident("20251123-0003")
	other.CompanyID = "cloudsync"
	require.NoError(t, store.Create(ctx, other))

	incidents, err := store.ListByCompany(ctx, "techflow", models.StatusFilter{})
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, "20251123-0001", incidents[0].IncidentID)

	generating := models.ProofGenerating
	filtered, err := store.ListByCompany(ctx, "techflow", models.StatusFilter{ProofStatus: &generating})
	require.NoError(t, err)
	assert.Empty(t, filtered)

	counts, err := store.CountByStatus(ctx, "techflow")
	require.NoError(t, err)
	assert.Equal(t, []models.StatusCount{{ProofStatus: models.ProofNeedProof, BlockchainStatus: models.ChainNone, Count: 2}}, counts)
}

func TestMemoryStore_Companies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateCompany(ctx, &models.Company{ID: "techflow", Name: "TechFlow Analytics"}))
	assert.ErrorIs(t, store.CreateCompany(ctx, &models.Company{ID: "techflow"}), models.ErrAlreadyExists)

	require.NoError(t, store.SetWallet(ctx, "techflow", "0x00000000000000000000000000000000000000aa"))
	company, err := store.GetCompany(ctx, "techflow")
	require.NoError(t, err)
	require.NotNil(t, company.WalletAddress)

	assert.ErrorIs(t, store.SetWallet(ctx, "missing", "0x00"), models.ErrNotFound)
}

func TestMemoryStore_RejectsInvariantViolations(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	broken := newIncident("20251123-0002")
	broken.ProofStatus = models.ProofVerified
	broken.BlockchainStatus = models.ChainFailed
	broken.TransactionHash = models.StringPtr("0x" + strings.Repeat("1", 64))
	err := store.Create(ctx, broken)
	assert.ErrorIs(t, err, models.ErrInvariantViolation)

	require.NoError(t, store.Create(ctx, newIncident("20251123-0001")))
	current, err := store.GetByID(ctx, "20251123-0001")
	require.NoError(t, err)

	next := current.Clone()
	next.ProofStatus = models.ProofVerified
	next.BlockchainStatus = models.ChainFailed
	next.TransactionHash = models.StringPtr("0x" + strings.Repeat("1", 64))
	err = store.CompareAndSwap(ctx, current.Version, next)
	assert.ErrorIs(t, err, models.ErrInvariantViolation)

	stored, err := store.GetByID(ctx, "20251123-0001")
	require.NoError(t, err)
	assert.Equal(t, models.ProofNeedProof, stored.ProofStatus)
	assert.Equal(t, int64(1), stored.Version)
}
