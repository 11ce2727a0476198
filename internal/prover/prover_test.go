package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/retry"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})
	return logger
}

func TestRedisDispatcher_Dispatch(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	job := models.ProofJob{
		JobID:       "job-1",
		IncidentID:  "20251123-0001",
		Commitment:  "0xabc1230001",
		RequestedAt: time.Date(2025, 11, 23, 10, 0, 0, 0, time.UTC),
	}

	require.NoError(t, NewRedisDispatcher(client).Dispatch(ctx, job))

	raw, err := client.RPop(ctx, jobsQueueKey).Result()
	require.NoError(t, err)
	var got models.ProofJob
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, job, got)
}

func TestRedisDispatcher_UnavailableIsTransient(t *testing.T) {
	mr, client := newTestRedis(t)
	mr.Close()

	err := NewRedisDispatcher(client).Dispatch(context.Background(), models.ProofJob{JobID: "job-1"})

	assert.True(t, models.IsTransient(err))
}

func TestRedisBlobStore(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisBlobStore(client)
	ctx := context.Background()

	_, err := store.Blob(ctx, "0xabcd")
	assert.ErrorIs(t, err, models.ErrNotFound)

	require.NoError(t, store.Put(ctx, "0xabcd", []byte{1, 2, 3}))
	blob, err := store.Blob(ctx, "0xabcd")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, blob)
}

type recordingHandler struct {
	mu     sync.Mutex
	events []models.Event
	err    error
}

func (h *recordingHandler) handle(_ context.Context, ev models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func TestResultWorker_ProcessStoresBlobAndApplies(t *testing.T) {
	// Подготовка
	_, client := newTestRedis(t)
	blobs := NewRedisBlobStore(client)
	handler := &recordingHandler{}
	worker := NewResultWorker(client, blobs, handler.handle, 3, retry.Backoff{Base: time.Millisecond}, newTestLogger())
	ctx := context.Background()

	// Действие
	err := worker.Process(ctx, models.ProofResult{
		JobID:        "job-1",
		IncidentID:   "20251123-0001",
		ProofHash:    "0xabcd",
		PublicInputs: []string{"0x01", "0x02"},
		Proof:        "0x010203",
	})

	// Проверки
	require.NoError(t, err)
	require.Len(t, handler.events, 1)
	assert.Equal(t, models.EventProofReady, handler.events[0].Kind)
	assert.Equal(t, []string{"0x01", "0x02"}, handler.events[0].PublicInputs)

	blob, err := blobs.Blob(ctx, "0xabcd")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, blob)
}

func TestResultWorker_ProcessFailureResult(t *testing.T) {
	_, client := newTestRedis(t)
	handler := &recordingHandler{}
	worker := NewResultWorker(client, NewRedisBlobStore(client), handler.handle, 3, retry.Backoff{Base: time.Millisecond}, newTestLogger())

	err := worker.Process(context.Background(), models.ProofResult{JobID: "job-1", IncidentID: "20251123-0001", Error: "prover crashed"})

	require.NoError(t, err)
	require.Len(t, handler.events, 1)
	assert.Equal(t, models.EventProofGenerationFailed, handler.events[0].Kind)
	assert.Equal(t, "prover crashed", handler.events[0].Reason)
}

func TestResultWorker_ProcessRejectsIncompleteResult(t *testing.T) {
	_, client := newTestRedis(t)
	handler := &recordingHandler{}
	worker := NewResultWorker(client, NewRedisBlobStore(client), handler.handle, 3, retry.Backoff{Base: time.Millisecond}, newTestLogger())

	err := worker.Process(context.Background(), models.ProofResult{IncidentID: "20251123-0001"})
	assert.Error(t, err)

	err = worker.Process(context.Background(), models.ProofResult{JobID: "job-1", IncidentID: "20251123-0001", ProofHash: "0xabcd", Proof: "zz"})
	assert.Error(t, err)

	assert.Zero(t, handler.count())
}

func TestResultWorker_StartConsumesQueue(t *testing.T) {
	_, client := newTestRedis(t)
	handler := &recordingHandler{}
	worker := NewResultWorker(client, NewRedisBlobStore(client), handler.handle, 3, retry.Backoff{Base: time.Millisecond}, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload, err := json.Marshal(models.ProofResult{JobID: "job-1", IncidentID: "20251123-0001", Error: "boom"})
	require.NoError(t, err)
	require.NoError(t, client.LPush(ctx, resultsQueueKey, payload).Err())

	worker.Start(ctx)

	assert.Eventually(t, func() bool { return handler.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestResultWorker_DeadLettersAfterRetries(t *testing.T) {
	_, client := newTestRedis(t)
	handler := &recordingHandler{err: errors.New("store unavailable")}
	worker := NewResultWorker(client, NewRedisBlobStore(client), handler.handle, 2, retry.Backoff{Base: time.Millisecond, Max: time.Millisecond}, newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload, err := json.Marshal(models.ProofResult{JobID: "job-1", IncidentID: "20251123-0001", Error: "boom"})
	require.NoError(t, err)
	require.NoError(t, client.LPush(ctx, resultsQueueKey, payload).Err())

	worker.Start(ctx)

	assert.Eventually(t, func() bool {
		n, err := client.LLen(ctx, deadQueueKey).Result()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, handler.count())
}

func TestMemoryDispatcher(t *testing.T) {
	d := NewMemoryDispatcher()
	ctx := context.Background()

	_, ok := d.Last()
	assert.False(t, ok)

	require.NoError(t, d.Dispatch(ctx, models.ProofJob{JobID: "a"}))
	d.FailWith(errors.New("down"))
	assert.Error(t, d.Dispatch(ctx, models.ProofJob{JobID: "b"}))
	d.FailWith(nil)
	require.NoError(t, d.Dispatch(ctx, models.ProofJob{JobID: "c"}))

	last, ok := d.Last()
	require.True(t, ok)
	assert.Equal(t, "c", last.JobID)
	assert.Len(t, d.Jobs(), 2)
}
