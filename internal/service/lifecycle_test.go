package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/metrics"
	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/prover"
	"github.com/Dankishon/prtc-mvp-back/internal/queue"
	"github.com/Dankishon/prtc-mvp-back/internal/repository"
	"github.com/Dankishon/prtc-mvp-back/internal/retry"
	"github.com/Dankishon/prtc-mvp-back/internal/service/mocks"
	"github.com/Dankishon/prtc-mvp-back/internal/tracker"
	"github.com/Dankishon/prtc-mvp-back/internal/validation"
	validation_mocks "github.com/Dankishon/prtc-mvp-back/internal/validation/mocks"
	"github.com/Dankishon/prtc-mvp-back/internal/webhook"
	webhook_mocks "github.com/Dankishon/prtc-mvp-back/internal/webhook/mocks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testCompany    = "techflow"
	testCommitment = "0xabc1230001"
	testProofHash  = "0xabcd"
	testTx         = "0x1111111111111111111111111111111111111111111111111111111111111111"
	testTx2        = "0x2222222222222222222222222222222222222222222222222222222222222222"
)

var (
	testInputs   = []string{"0x01", "0x02"}
	testDetected = time.Date(2025, 11, 23, 9, 30, 0, 0, time.UTC)
)

// flakyStore - хранилище в памяти, которое может вернуть конфликт версий заданное число раз
type flakyStore struct {
	*repository.MemoryStore
	conflicts int
}

func (s *flakyStore) CompareAndSwap(ctx context.Context, expectedVersion int64, next *models.Incident) error {
	if s.conflicts > 0 {
		s.conflicts--
		return models.ErrVersionConflict
	}
	return s.MemoryStore.CompareAndSwap(ctx, expectedVersion, next)
}

type testEnv struct {
	svc        *incidentService
	store      *flakyStore
	scheduler  *queue.MemoryScheduler
	dispatcher *prover.MemoryDispatcher
	verifier   *validation_mocks.MockBindingVerifier
	chain      *mocks.MockChainSubmitter
	publisher  *webhook_mocks.MockWebhookPublisher
}

// newTestIncidentService собирает сервис на хранилище в памяти, чтобы compare-and-swap был настоящим
func newTestIncidentService(t *testing.T) *testEnv {
	ctrl := gomock.NewController(t)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	env := &testEnv{
		store:      &flakyStore{MemoryStore: repository.NewMemoryStore()},
		scheduler:  queue.NewMemoryScheduler(),
		dispatcher: prover.NewMemoryDispatcher(),
		verifier:   validation_mocks.NewMockBindingVerifier(ctrl),
		chain:      mocks.NewMockChainSubmitter(ctrl),
		publisher:  webhook_mocks.NewMockWebhookPublisher(ctrl),
	}
	env.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	svc := NewIncidentService(Deps{
		Incidents:  env.store,
		Companies:  env.store,
		Validator:  validation.NewValidator(env.verifier),
		Dispatcher: env.dispatcher,
		Chain:      env.chain,
		Scheduler:  env.scheduler,
		Publisher:  env.publisher,
		Metrics:    metrics.NewLifecycle(prometheus.NewRegistry()),
	}, LifecycleConfig{
		ProofMaxAttempts:  3,
		SubmitMaxAttempts: 3,
		DeferMaxAttempts:  5,
		CASMaxRetries:     3,
		Backoff:           retry.Backoff{Base: time.Second, Max: time.Minute},
	}, logger)
	env.svc = svc.(*incidentService)
	return env
}

// seedIncident создает компанию и инцидент 20251123-0001 в (need_proof, none)
func seedIncident(t *testing.T, env *testEnv) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, env.svc.CreateCompany(ctx, &models.Company{ID: testCompany, Name: "TechFlow"}))
	incident, err := env.svc.CreateIncident(ctx, testCompany, testCommitment, testDetected)
	require.NoError(t, err)
	return incident.IncidentID
}

// startGeneration переводит инцидент в (generating, none) и возвращает id задания
func startGeneration(t *testing.T, env *testEnv, id string) string {
	t.Helper()
	_, outcome, err := env.svc.RequestProof(context.Background(), id, false)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeApplied, outcome)
	job, ok := env.dispatcher.Last()
	require.True(t, ok)
	return job.JobID
}

func expectAccepted(env *testEnv) {
	env.verifier.EXPECT().
		Verify(gomock.Any(), testCommitment, testProofHash, testInputs).
		Return(true, nil)
}

func expectSubmit(env *testEnv, id string, attempt int, tx string) {
	env.chain.EXPECT().
		Submit(gomock.Any(), tracker.SubmitRequest{IncidentID: id, ProofHash: testProofHash, PublicInputs: testInputs, Attempt: attempt}).
		Return(tx, nil)
	env.chain.EXPECT().Track(id, tx)
}

// assertState проверяет пару статусов и инварианты сохраненного снимка
func assertState(t *testing.T, env *testEnv, id string, want models.State) *models.Incident {
	t.Helper()
	incident, err := env.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, incident.State())
	assert.NoError(t, incident.CheckInvariants())
	return incident
}

func proofReady(id, jobID string) models.Event {
	return models.Event{
		Kind:         models.EventProofReady,
		IncidentID:   id,
		JobID:        jobID,
		ProofHash:    testProofHash,
		PublicInputs: testInputs,
	}
}

func chainEvent(kind models.EventKind, id, tx string) models.Event {
	return models.Event{Kind: kind, IncidentID: id, TransactionHash: tx}
}

// moveToPending доводит инцидент до (verified, pending) с транзакцией testTx
func moveToPending(t *testing.T, env *testEnv, id string) {
	t.Helper()
	jobID := startGeneration(t, env, id)
	expectAccepted(env)
	expectSubmit(env, id, 0, testTx)
	outcome, err := env.svc.HandleEvent(context.Background(), proofReady(id, jobID))
	require.NoError(t, err)
	require.Equal(t, models.OutcomeApplied, outcome)
}

func TestLifecycle_HappyPath(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	require.Equal(t, "20251123-0001", id)
	assertState(t, env, id, stateNeedProof)

	// Действие
	jobID := startGeneration(t, env, id)
	generating := assertState(t, env, id, stateGenerating)

	// Проверки
	require.NotNil(t, generating.ProofJobID)
	assert.Equal(t, jobID, *generating.ProofJobID)
	assert.Equal(t, 1, generating.ProofAttempts)

	// Ожидания
	expectAccepted(env)
	expectSubmit(env, id, 0, testTx)

	// Действие
	outcome, err := env.svc.HandleEvent(ctx, proofReady(id, jobID))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	pending := assertState(t, env, id, statePending)
	assert.Equal(t, testTx, *pending.TransactionHash)
	assert.Equal(t, testProofHash, *pending.ProofHash)
	assert.Equal(t, testInputs, pending.PublicInputs)
	assert.Equal(t, 1, pending.SubmissionAttempts)
	assert.Nil(t, pending.LastError)

	// Действие
	outcome, err = env.svc.HandleEvent(ctx, chainEvent(models.EventChainConfirmed, id, testTx))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	confirmed := assertState(t, env, id, stateConfirmed)
	assert.Equal(t, testTx, *confirmed.TransactionHash)
}

func TestLifecycle_ChainConfirmedIsIdempotent(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	moveToPending(t, env, id)
	_, err := env.svc.HandleEvent(ctx, chainEvent(models.EventChainConfirmed, id, testTx))
	require.NoError(t, err)
	before := assertState(t, env, id, stateConfirmed)

	// Действие
	outcome, err := env.svc.HandleEvent(ctx, chainEvent(models.EventChainConfirmed, id, testTx))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoOp, outcome)
	after := assertState(t, env, id, stateConfirmed)
	assert.Equal(t, before.Version, after.Version)
}

func TestLifecycle_ProofMismatchIsRejected(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	jobID := startGeneration(t, env, id)

	// Ожидания
	env.verifier.EXPECT().
		Verify(gomock.Any(), testCommitment, testProofHash, testInputs).
		Return(false, nil)

	// Действие
	outcome, err := env.svc.HandleEvent(ctx, proofReady(id, jobID))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	rejected := assertState(t, env, id, stateNotVerified)
	assert.Nil(t, rejected.TransactionHash)
	assert.Equal(t, testProofHash, *rejected.ProofHash)
	require.NotNil(t, rejected.LastError)
	assert.Contains(t, *rejected.LastError, "not bound to commitment")
}

func TestLifecycle_MalformedArtifactIsNotStored(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	id := seedIncident(t, env)
	jobID := startGeneration(t, env, id)
	ev := proofReady(id, jobID)
	ev.ProofHash = "abcd"

	// Действие
	outcome, err := env.svc.HandleEvent(context.Background(), ev)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	rejected := assertState(t, env, id, stateNotVerified)
	assert.Nil(t, rejected.ProofHash)
	assert.Nil(t, rejected.PublicInputs)
}

func TestLifecycle_ChainEventBeforeProofIsDeferred(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	jobID := startGeneration(t, env, id)

	// Действие
	outcome, err := env.svc.HandleEvent(ctx, chainEvent(models.EventChainConfirmed, id, testTx))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeferred, outcome)
	assertState(t, env, id, stateGenerating)
	pending := env.scheduler.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Scheduled)
	assert.Equal(t, 1, pending[0].Attempt)

	// Ожидания
	expectAccepted(env)
	expectSubmit(env, id, 0, testTx)

	// Действие
	_, err = env.svc.HandleEvent(ctx, proofReady(id, jobID))
	require.NoError(t, err)
	env.scheduler.Drain(ctx, env.svc.Apply, 3)

	// Проверки
	assertState(t, env, id, stateConfirmed)
	assert.Empty(t, env.scheduler.Pending())
}

func TestLifecycle_DeferredEventExpires(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	id := seedIncident(t, env)
	startGeneration(t, env, id)
	ev := chainEvent(models.EventChainConfirmed, id, testTx)
	ev.Scheduled = true
	ev.Attempt = env.svc.cfg.DeferMaxAttempts

	// Действие
	outcome, err := env.svc.HandleEvent(context.Background(), ev)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeIgnored, outcome)
	assert.Empty(t, env.scheduler.Pending())
}

func TestLifecycle_ResultBeforeDispatchCommitIsDeferred(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	id := seedIncident(t, env)

	// Действие
	outcome, err := env.svc.HandleEvent(context.Background(), proofReady(id, "job-from-the-future"))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeferred, outcome)
	assertState(t, env, id, stateNeedProof)
	assert.Len(t, env.scheduler.Pending(), 1)
}

func TestLifecycle_OperatorSupersedesRunningJob(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	oldJob := startGeneration(t, env, id)

	// Действие
	_, outcome, err := env.svc.RequestProof(ctx, id, false)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoOp, outcome)
	assert.Len(t, env.dispatcher.Jobs(), 1)

	// Действие
	incident, outcome, err := env.svc.RequestProof(ctx, id, true)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	newJob, _ := env.dispatcher.Last()
	assert.NotEqual(t, oldJob, newJob.JobID)
	assert.Equal(t, newJob.JobID, *incident.ProofJobID)

	// Действие
	outcome, err = env.svc.HandleEvent(ctx, proofReady(id, oldJob))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeIgnored, outcome)
	assertState(t, env, id, stateGenerating)
}

func TestLifecycle_ReRequestAfterRejection(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	jobID := startGeneration(t, env, id)
	env.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
	_, err := env.svc.HandleEvent(ctx, proofReady(id, jobID))
	require.NoError(t, err)

	// Действие
	_, _, err = env.svc.RequestProof(ctx, id, false)

	// Проверки
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assertState(t, env, id, stateNotVerified)

	// Действие
	incident, outcome, err := env.svc.RequestProof(ctx, id, true)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	assert.Equal(t, stateGenerating, incident.State())
	assert.Nil(t, incident.ProofHash)
	assert.Nil(t, incident.PublicInputs)
	assert.Nil(t, incident.LastError)
	assert.NoError(t, incident.CheckInvariants())
}

func TestLifecycle_InvalidCommands(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)

	// Действие
	_, _, err := env.svc.Resubmit(ctx, id)

	// Проверки
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	// Подготовка
	moveToPending(t, env, id)

	// Действие
	_, _, err = env.svc.RequestProof(ctx, id, true)

	// Проверки
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assertState(t, env, id, statePending)

	// Действие
	_, outcome, err := env.svc.Resubmit(ctx, id)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoOp, outcome)
}

func TestLifecycle_UnknownIncident(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)

	// Действие
	_, err := env.svc.HandleEvent(context.Background(), proofReady("20251123-9999", "job"))

	// Проверки
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLifecycle_PermanentSubmissionErrorIsRecorded(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	id := seedIncident(t, env)
	jobID := startGeneration(t, env, id)

	// Ожидания
	expectAccepted(env)
	env.chain.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		Return("", &models.SubmissionError{Permanent: true, Err: errors.New("insufficient funds for gas")})

	// Действие
	outcome, err := env.svc.HandleEvent(context.Background(), proofReady(id, jobID))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, outcome)
	incident := assertState(t, env, id, stateGenerating)
	assert.Nil(t, incident.TransactionHash)
	require.NotNil(t, incident.LastError)
	assert.Contains(t, *incident.LastError, "insufficient funds")
	assert.Empty(t, env.scheduler.Pending())
}

func TestLifecycle_TransientSubmissionErrorIsRetried(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	jobID := startGeneration(t, env, id)

	// Ожидания
	env.verifier.EXPECT().Verify(gomock.Any(), testCommitment, testProofHash, testInputs).Return(true, nil).Times(2)
	gomock.InOrder(
		env.chain.EXPECT().
			Submit(gomock.Any(), gomock.Any()).
			Return("", &models.SubmissionError{Err: errors.New("connection refused")}),
		env.chain.EXPECT().
			Submit(gomock.Any(), tracker.SubmitRequest{IncidentID: id, ProofHash: testProofHash, PublicInputs: testInputs}).
			Return(testTx, nil),
	)
	env.chain.EXPECT().Track(id, testTx)

	// Действие
	outcome, err := env.svc.HandleEvent(ctx, proofReady(id, jobID))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeferred, outcome)
	assertState(t, env, id, stateGenerating)

	// Действие
	env.scheduler.Drain(ctx, env.svc.Apply, 2)

	// Проверки
	incident := assertState(t, env, id, statePending)
	assert.Equal(t, testTx, *incident.TransactionHash)
}

func TestLifecycle_TransientErrorsExhausted(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	id := seedIncident(t, env)
	env.dispatcher.FailWith(errors.New("prover queue down"))
	ev := models.Event{
		Kind:       models.EventRequestProof,
		IncidentID: id,
		Scheduled:  true,
		Attempt:    env.svc.cfg.SubmitMaxAttempts,
	}

	// Действие
	outcome, err := env.svc.HandleEvent(context.Background(), ev)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRejected, outcome)
	incident := assertState(t, env, id, stateNeedProof)
	require.NotNil(t, incident.LastError)
	assert.Contains(t, *incident.LastError, "prover queue down")
}

func TestLifecycle_DispatchFailureIsDeferred(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	env.dispatcher.FailWith(errors.New("prover queue down"))

	// Действие
	_, outcome, err := env.svc.RequestProof(ctx, id, false)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeferred, outcome)
	assertState(t, env, id, stateNeedProof)

	// Действие
	env.dispatcher.FailWith(nil)
	env.scheduler.Drain(ctx, env.svc.Apply, 1)

	// Проверки
	assertState(t, env, id, stateGenerating)
	assert.Len(t, env.dispatcher.Jobs(), 1)
}

func TestLifecycle_ProofGenerationRetriesAreBounded(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	env.svc.cfg.ProofMaxAttempts = 2
	ctx := context.Background()
	id := seedIncident(t, env)
	firstJob := startGeneration(t, env, id)

	// Действие
	outcome, err := env.svc.HandleEvent(ctx, models.Event{
		Kind:       models.EventProofGenerationFailed,
		IncidentID: id,
		JobID:      firstJob,
		Reason:     "prover crashed",
	})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	failed := assertState(t, env, id, stateNeedProof)
	assert.Equal(t, "prover crashed", *failed.LastError)
	require.Len(t, env.scheduler.Pending(), 1)

	// Действие
	env.scheduler.Drain(ctx, env.svc.Apply, 1)

	// Проверки
	retrying := assertState(t, env, id, stateGenerating)
	assert.Equal(t, 2, retrying.ProofAttempts)
	secondJob, _ := env.dispatcher.Last()
	assert.NotEqual(t, firstJob, secondJob.JobID)

	// Действие
	_, err = env.svc.HandleEvent(ctx, models.Event{
		Kind:       models.EventProofGenerationFailed,
		IncidentID: id,
		JobID:      secondJob.JobID,
		Reason:     "prover crashed again",
	})

	// Проверки
	require.NoError(t, err)
	assertState(t, env, id, stateNeedProof)
	assert.Empty(t, env.scheduler.Pending())

	// Действие
	outcome, err = env.svc.HandleEvent(ctx, models.Event{
		Kind:       models.EventProofGenerationFailed,
		IncidentID: id,
		JobID:      secondJob.JobID,
	})

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoOp, outcome)
}

func TestLifecycle_ManualRequestResetsProofBudget(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	env.svc.cfg.ProofMaxAttempts = 2
	ctx := context.Background()
	id := seedIncident(t, env)
	job := startGeneration(t, env, id)
	failJob := func(jobID string) {
		t.Helper()
		_, err := env.svc.HandleEvent(ctx, models.Event{Kind: models.EventProofGenerationFailed, IncidentID: id, JobID: jobID})
		require.NoError(t, err)
	}
	failJob(job)
	env.scheduler.Drain(ctx, env.svc.Apply, 1)
	retried, _ := env.dispatcher.Last()
	failJob(retried.JobID)
	exhausted := assertState(t, env, id, stateNeedProof)
	require.Equal(t, 2, exhausted.ProofAttempts)
	require.Empty(t, env.scheduler.Pending())

	// Действие
	env.dispatcher.FailWith(errors.New("prover queue down"))
	_, outcome, err := env.svc.RequestProof(ctx, id, false)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeDeferred, outcome)
	env.dispatcher.FailWith(nil)
	env.scheduler.Drain(ctx, env.svc.Apply, 1)

	// Проверки
	fresh := assertState(t, env, id, stateGenerating)
	assert.Equal(t, 1, fresh.ProofAttempts)

	// Действие
	manual, _ := env.dispatcher.Last()
	failJob(manual.JobID)

	// Проверки
	assert.Len(t, env.scheduler.Pending(), 1)
}

func TestLifecycle_ChainFailureAndResubmit(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	moveToPending(t, env, id)

	// Действие
	outcome, err := env.svc.HandleEvent(ctx, chainEvent(models.EventChainFailed, id, testTx))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	failed := assertState(t, env, id, stateFailed)
	assert.Equal(t, chainFailedReason, *failed.LastError)

	// Ожидания
	expectSubmit(env, id, 1, testTx2)

	// Действие
	incident, outcome, err := env.svc.Resubmit(ctx, id)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	assert.Equal(t, statePending, incident.State())
	assert.Equal(t, testTx2, *incident.TransactionHash)
	assert.Equal(t, 2, incident.SubmissionAttempts)
	assert.Nil(t, incident.LastError)

	// Действие
	outcome, err = env.svc.HandleEvent(ctx, chainEvent(models.EventChainFailed, id, testTx))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeIgnored, outcome)
	assertState(t, env, id, statePending)
}

func TestLifecycle_ResubmitPermanentErrorSurfaces(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	moveToPending(t, env, id)
	_, err := env.svc.HandleEvent(ctx, chainEvent(models.EventChainFailed, id, testTx))
	require.NoError(t, err)

	// Ожидания
	env.chain.EXPECT().
		Submit(gomock.Any(), gomock.Any()).
		Return("", &models.SubmissionError{Permanent: true, Err: errors.New("execution reverted")})

	// Действие
	_, outcome, err := env.svc.Resubmit(ctx, id)

	// Проверки
	require.Error(t, err)
	assert.True(t, models.IsPermanentSubmission(err))
	assert.Equal(t, models.OutcomeRejected, outcome)
	incident := assertState(t, env, id, stateFailed)
	assert.Contains(t, *incident.LastError, "execution reverted")
}

func TestLifecycle_ResubmitWithoutProofIsRejected(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	stored, err := env.store.GetByID(ctx, id)
	require.NoError(t, err)

	// Снимок из хранилища без CHECK-ограничений: verified без proof_hash
	corrupt := stored.Clone()
	corrupt.ProofStatus = models.ProofVerified
	corrupt.BlockchainStatus = models.ChainFailed
	corrupt.TransactionHash = models.StringPtr(testTx)
	repo := mocks.NewMockIncidentRepository(gomock.NewController(t))
	env.svc.incidents = repo

	// Ожидания
	repo.EXPECT().GetByID(gomock.Any(), id).Return(corrupt, nil)

	// Действие
	var outcome models.Outcome
	require.NotPanics(t, func() {
		_, outcome, err = env.svc.Resubmit(ctx, id)
	})

	// Проверки
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, corrupt.CheckInvariants(), models.ErrInvariantViolation)
}

func TestLifecycle_VersionConflictIsReDecided(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	id := seedIncident(t, env)
	env.store.conflicts = 1

	// Действие
	incident, outcome, err := env.svc.RequestProof(context.Background(), id, false)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeApplied, outcome)
	jobs := env.dispatcher.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, jobs[1].JobID, *incident.ProofJobID)
}

func TestLifecycle_VersionConflictsExhausted(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	env.store.conflicts = env.svc.cfg.CASMaxRetries

	ev := models.Event{Kind: models.EventRequestProof, IncidentID: id}

	// Действие
	_, err := env.svc.HandleEvent(ctx, ev)

	// Проверки
	assert.ErrorIs(t, err, models.ErrVersionConflict)

	// Действие
	env.store.conflicts = env.svc.cfg.CASMaxRetries
	err = env.svc.Apply(ctx, ev)

	// Проверки
	require.NoError(t, err)
	require.Len(t, env.scheduler.Pending(), 1)
	env.scheduler.Drain(ctx, env.svc.Apply, 1)
	assertState(t, env, id, stateGenerating)
}

func TestHandleChainObservation(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	moveToPending(t, env, id)

	// Действие
	err := env.svc.HandleChainObservation(ctx, models.ChainObservation{IncidentID: id, TransactionHash: testTx, Status: models.ChainPending})

	// Проверки
	require.NoError(t, err)
	assertState(t, env, id, statePending)

	// Действие
	err = env.svc.HandleChainObservation(ctx, models.ChainObservation{IncidentID: id, TransactionHash: testTx, Status: models.ChainConfirmed})

	// Проверки
	require.NoError(t, err)
	assertState(t, env, id, stateConfirmed)
}

func TestLifecycle_PublishesTransitions(t *testing.T) {
	// Подготовка
	env := newTestIncidentService(t)
	ctx := context.Background()
	id := seedIncident(t, env)
	moveToPending(t, env, id)

	publisher := webhook_mocks.NewMockWebhookPublisher(gomock.NewController(t))
	env.svc.publisher = publisher
	var published webhook.TransitionEvent

	// Ожидания
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev webhook.TransitionEvent) error {
			published = ev
			return errors.New("redis down")
		})

	// Действие
	_, err := env.svc.HandleEvent(ctx, chainEvent(models.EventChainConfirmed, id, testTx))

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, id, published.IncidentID)
	assert.Equal(t, models.EventChainConfirmed, published.Event)
	assert.Equal(t, statePending.String(), published.From)
	assert.Equal(t, stateConfirmed.String(), published.To)
	assertState(t, env, id, stateConfirmed)
}

// Случайные перестановки событий не должны нарушать инварианты
func TestLifecycle_InvariantsHoldUnderReordering(t *testing.T) {
	orders := [][]string{
		{"ready", "confirm", "confirm"},
		{"confirm", "ready", "fail"},
		{"fail", "confirm", "ready"},
		{"confirm", "fail", "ready", "confirm"},
	}

	for _, order := range orders {
		t.Run(strings.Join(order, "-"), func(t *testing.T) {
			// Подготовка
			env := newTestIncidentService(t)
			ctx := context.Background()
			id := seedIncident(t, env)
			jobID := startGeneration(t, env, id)
			env.verifier.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()
			env.chain.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(testTx, nil).AnyTimes()
			env.chain.EXPECT().Track(id, testTx).AnyTimes()

			events := map[string]models.Event{
				"ready":   proofReady(id, jobID),
				"confirm": chainEvent(models.EventChainConfirmed, id, testTx),
				"fail":    chainEvent(models.EventChainFailed, id, testTx),
			}

			// Действие
			for _, name := range order {
				require.NoError(t, env.svc.Apply(ctx, events[name]))
				incident, err := env.store.GetByID(ctx, id)
				require.NoError(t, err)
				require.NoError(t, incident.CheckInvariants())
			}
			env.scheduler.Drain(ctx, env.svc.Apply, env.svc.cfg.DeferMaxAttempts+1)

			// Проверки
			incident, err := env.store.GetByID(ctx, id)
			require.NoError(t, err)
			assert.NoError(t, incident.CheckInvariants())
			assert.Equal(t, models.ProofVerified, incident.ProofStatus)
			assert.Contains(t, []models.BlockchainStatus{models.ChainConfirmed, models.ChainFailed}, incident.BlockchainStatus)
		})
	}
}
