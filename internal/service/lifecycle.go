package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/metrics"
	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/retry"
	"github.com/Dankishon/prtc-mvp-back/internal/tracker"
	"github.com/Dankishon/prtc-mvp-back/internal/validation"
	"github.com/Dankishon/prtc-mvp-back/internal/webhook"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=lifecycle.go -destination=mocks/mock_lifecycle.go -package=mocks

// IncidentRepository определяет контракт хранилища инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id string) (*models.Incident, error)
	CompareAndSwap(ctx context.Context, expectedVersion int64, next *models.Incident) error
	ListByCompany(ctx context.Context, companyID string, filter models.StatusFilter) ([]*models.Incident, error)
	CountByStatus(ctx context.Context, companyID string) ([]models.StatusCount, error)
	NextIncidentID(ctx context.Context, detectedAt time.Time) (string, error)
}

// CompanyRepository определяет контракт хранилища компаний
type CompanyRepository interface {
	CreateCompany(ctx context.Context, company *models.Company) error
	GetCompany(ctx context.Context, id string) (*models.Company, error)
	ListCompanies(ctx context.Context) ([]*models.Company, error)
	SetWallet(ctx context.Context, id, address string) error
}

// IncidentCache - кэш отчетных чтений
type IncidentCache interface {
	GetIncidentFromCache(ctx context.Context, id string) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id string) error
}

// ArtifactValidator проверяет артефакт доказательства против commitment
type ArtifactValidator interface {
	ValidateArtifact(ctx context.Context, commitment, proofHash string, publicInputs []string) (validation.Verdict, error)
}

// ProofDispatcher передает задание внешнему сервису генерации
type ProofDispatcher interface {
	Dispatch(ctx context.Context, job models.ProofJob) error
}

// ChainSubmitter отправляет транзакции проверки и запускает наблюдение за ними
type ChainSubmitter interface {
	Submit(ctx context.Context, req tracker.SubmitRequest) (string, error)
	Track(incidentID, txHash string)
}

// EventScheduler откладывает событие для повторной доставки
type EventScheduler interface {
	Schedule(ctx context.Context, ev models.Event, delay time.Duration) error
}

// LifecycleConfig - лимиты повторов машины состояний
type LifecycleConfig struct {
	// Автоматические повторы генерации после ProofGenerationFailed
	ProofMaxAttempts int
	// Повторы после временных ошибок внешних сервисов
	SubmitMaxAttempts int
	// Повторы событий, пришедших раньше своего предусловия
	DeferMaxAttempts int
	CASMaxRetries    int
	Backoff          retry.Backoff
}

// Deps - зависимости сервиса. Cache и Publisher необязательны.
type Deps struct {
	Incidents  IncidentRepository
	Companies  CompanyRepository
	Cache      IncidentCache
	Validator  ArtifactValidator
	Dispatcher ProofDispatcher
	Chain      ChainSubmitter
	Scheduler  EventScheduler
	Publisher  webhook.WebhookPublisher
	Metrics    *metrics.Lifecycle
}

const chainFailedReason = "verification transaction failed on chain"

// HandleEvent применяет событие к инциденту: читает снимок, решает по таблице переходов,
// выполняет идемпотентные побочные эффекты и фиксирует результат через compare-and-swap.
// При конфликте версий решение принимается заново по свежему снимку.
func (s *incidentService) HandleEvent(ctx context.Context, ev models.Event) (models.Outcome, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "lifecycle",
		"method":      "HandleEvent",
		"incident_id": ev.IncidentID,
		"event":       ev.Kind,
		"attempt":     ev.Attempt,
	})

	outcome, err := s.handle(ctx, ev, log)
	s.metrics.Outcome(ev.Kind, outcome)
	return outcome, err
}

func (s *incidentService) handle(ctx context.Context, ev models.Event, log *logrus.Entry) (models.Outcome, error) {
	for try := 1; ; try++ {
		current, err := s.incidents.GetByID(ctx, ev.IncidentID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				log.Warn("Event for unknown incident")
				return models.OutcomeRejected, fmt.Errorf("service: could not handle %s: %w", ev.Kind, err)
			}
			return models.OutcomeRejected, &models.TransientError{Op: "read incident", Err: err}
		}

		d := decide(current, ev)
		outcome, err := s.execute(ctx, current, ev, d, log.WithField("state", current.State().String()))
		if errors.Is(err, models.ErrVersionConflict) {
			s.metrics.VersionConflict()
			if try < s.cfg.CASMaxRetries {
				log.WithField("try", try).Debug("Version conflict, re-reading incident")
				continue
			}
			log.Warn("Version conflict retries exhausted")
		}
		return outcome, err
	}
}

func (s *incidentService) execute(ctx context.Context, current *models.Incident, ev models.Event, d decision, log *logrus.Entry) (models.Outcome, error) {
	switch d.action {
	case actNoOp:
		log.WithField("reason", d.reason).Debug("Event already reflected, no-op")
		return models.OutcomeNoOp, nil
	case actIgnore:
		log.WithField("reason", d.reason).Info("Stale event ignored")
		return models.OutcomeIgnored, nil
	case actReject:
		if ev.Scheduled {
			log.WithField("reason", d.reason).Info("Scheduled event no longer applicable")
			return models.OutcomeIgnored, nil
		}
		return models.OutcomeRejected, fmt.Errorf("service: %s in state %s: %s: %w", ev.Kind, current.State(), d.reason, models.ErrInvalidTransition)
	case actDefer:
		return s.deferEvent(ctx, ev, d.reason, log)
	case actDispatch:
		return s.dispatchProof(ctx, current, ev, log)
	case actValidate:
		return s.applyProofReady(ctx, current, ev, log)
	case actProofFailed:
		return s.applyProofFailed(ctx, current, ev, log)
	case actConfirm, actFail:
		return s.applyChainStatus(ctx, current, ev, d.action, log)
	case actResubmit:
		return s.resubmit(ctx, current, ev, log)
	}
	return models.OutcomeRejected, fmt.Errorf("service: unhandled action %d", d.action)
}

// dispatchProof: (need_proof | not_verified | generating, none) -> (generating, none) с новым заданием
func (s *incidentService) dispatchProof(ctx context.Context, current *models.Incident, ev models.Event, log *logrus.Entry) (models.Outcome, error) {
	jobID := uuid.NewString()
	job := models.ProofJob{
		JobID:       jobID,
		IncidentID:  current.IncidentID,
		Commitment:  current.Commitment,
		RequestedAt: s.now().UTC(),
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		log.WithError(err).Warn("Failed to dispatch proof job")
		return s.retryLater(ctx, current, ev, fmt.Errorf("proving service unavailable: %w", err), log)
	}

	next := current.Clone()
	next.ProofStatus = models.ProofGenerating
	next.BlockchainStatus = models.ChainNone
	next.ProofJobID = models.StringPtr(jobID)
	next.ProofHash = nil
	next.PublicInputs = nil
	next.LastError = nil
	if ev.ProofRetry && !ev.Operator {
		next.ProofAttempts++
	} else {
		next.ProofAttempts = 1
	}

	if err := s.commit(ctx, current, next, ev, log); err != nil {
		return models.OutcomeRejected, err
	}
	log.WithField("job_id", jobID).Info("Proof job dispatched")
	return models.OutcomeApplied, nil
}

// applyProofReady: (generating, none) -> (verified, pending) или (not_verified, none)
func (s *incidentService) applyProofReady(ctx context.Context, current *models.Incident, ev models.Event, log *logrus.Entry) (models.Outcome, error) {
	verdict, err := s.validator.ValidateArtifact(ctx, current.Commitment, ev.ProofHash, ev.PublicInputs)
	if err != nil {
		log.WithError(err).Warn("Artifact validation unavailable")
		return s.retryLater(ctx, current, ev, err, log)
	}
	s.metrics.Validation(string(verdict.Result))

	if !verdict.Accepted() {
		next := current.Clone()
		next.ProofStatus = models.ProofNotVerified
		next.BlockchainStatus = models.ChainNone
		next.LastError = models.StringPtr((&models.ValidationError{Reason: verdict.Reason}).Error())
		if storableArtifact(ev) {
			next.ProofHash = models.StringPtr(ev.ProofHash)
			next.PublicInputs = append([]string(nil), ev.PublicInputs...)
		}
		if err := s.commit(ctx, current, next, ev, log); err != nil {
			return models.OutcomeRejected, err
		}
		log.WithFields(logrus.Fields{"result": verdict.Result, "reason": verdict.Reason}).Info("Proof artifact rejected")
		return models.OutcomeApplied, nil
	}

	txHash, err := s.chain.Submit(ctx, tracker.SubmitRequest{
		IncidentID:   current.IncidentID,
		ProofHash:    ev.ProofHash,
		PublicInputs: ev.PublicInputs,
		Attempt:      current.SubmissionAttempts,
	})
	if err != nil {
		return s.submissionFailed(ctx, current, ev, err, log)
	}
	s.metrics.Submission("ok")

	next := current.Clone()
	next.ProofStatus = models.ProofVerified
	next.BlockchainStatus = models.ChainPending
	next.ProofHash = models.StringPtr(ev.ProofHash)
	next.PublicInputs = append([]string(nil), ev.PublicInputs...)
	next.TransactionHash = models.StringPtr(txHash)
	next.SubmissionAttempts++
	next.LastError = nil

	if err := s.commit(ctx, current, next, ev, log); err != nil {
		return models.OutcomeRejected, err
	}
	s.chain.Track(next.IncidentID, txHash)
	return models.OutcomeApplied, nil
}

// applyProofFailed: (generating, none) -> (need_proof, none) и ограниченный автоматический повтор
func (s *incidentService) applyProofFailed(ctx context.Context, current *models.Incident, ev models.Event, log *logrus.Entry) (models.Outcome, error) {
	reason := ev.Reason
	if reason == "" {
		reason = "proof generation failed"
	}

	next := current.Clone()
	next.ProofStatus = models.ProofNeedProof
	next.BlockchainStatus = models.ChainNone
	next.LastError = models.StringPtr(reason)

	if err := s.commit(ctx, current, next, ev, log); err != nil {
		return models.OutcomeRejected, err
	}

	if next.ProofAttempts >= s.cfg.ProofMaxAttempts {
		log.WithField("proof_attempts", next.ProofAttempts).Warn("Proof generation retries exhausted, waiting for a new request")
		return models.OutcomeApplied, nil
	}
	retryEv := models.Event{
		Kind:       models.EventRequestProof,
		IncidentID: next.IncidentID,
		Scheduled:  true,
		ProofRetry: true,
	}
	delay := s.cfg.Backoff.Delay(next.ProofAttempts)
	if err := s.scheduler.Schedule(ctx, retryEv, delay); err != nil {
		// Инцидент остается в need_proof и может быть запрошен заново
		log.WithError(err).Error("Failed to schedule proof generation retry")
		return models.OutcomeApplied, nil
	}
	log.WithField("delay", delay).Info("Proof generation retry scheduled")
	return models.OutcomeApplied, nil
}

// applyChainStatus: (verified, pending) -> (verified, confirmed | failed)
func (s *incidentService) applyChainStatus(ctx context.Context, current *models.Incident, ev models.Event, a action, log *logrus.Entry) (models.Outcome, error) {
	next := current.Clone()
	if a == actConfirm {
		next.BlockchainStatus = models.ChainConfirmed
	} else {
		next.BlockchainStatus = models.ChainFailed
		next.LastError = models.StringPtr(chainFailedReason)
	}
	if err := s.commit(ctx, current, next, ev, log); err != nil {
		return models.OutcomeRejected, err
	}
	return models.OutcomeApplied, nil
}

// resubmit: (verified, failed) -> (verified, pending) с новой транзакцией
func (s *incidentService) resubmit(ctx context.Context, current *models.Incident, ev models.Event, log *logrus.Entry) (models.Outcome, error) {
	txHash, err := s.chain.Submit(ctx, tracker.SubmitRequest{
		IncidentID:   current.IncidentID,
		ProofHash:    *current.ProofHash,
		PublicInputs: current.PublicInputs,
		Attempt:      current.SubmissionAttempts,
	})
	if err != nil {
		return s.submissionFailed(ctx, current, ev, err, log)
	}
	s.metrics.Submission("ok")

	next := current.Clone()
	next.BlockchainStatus = models.ChainPending
	next.TransactionHash = models.StringPtr(txHash)
	next.SubmissionAttempts++
	next.LastError = nil

	if err := s.commit(ctx, current, next, ev, log); err != nil {
		return models.OutcomeRejected, err
	}
	s.chain.Track(next.IncidentID, txHash)
	return models.OutcomeApplied, nil
}

// submissionFailed: постоянная ошибка фиксируется в last_error и ждет оператора,
// временная повторяется с задержкой
func (s *incidentService) submissionFailed(ctx context.Context, current *models.Incident, ev models.Event, err error, log *logrus.Entry) (models.Outcome, error) {
	if !models.IsPermanentSubmission(err) {
		s.metrics.Submission("transient")
		log.WithError(err).Warn("Transient submission error")
		return s.retryLater(ctx, current, ev, err, log)
	}

	s.metrics.Submission("permanent")
	log.WithError(err).Error("Permanent submission error, operator action required")
	if cerr := s.recordError(ctx, current, ev, err.Error(), log); cerr != nil {
		return models.OutcomeRejected, cerr
	}
	if isCommand(ev) {
		return models.OutcomeRejected, fmt.Errorf("service: could not submit verification transaction: %w", err)
	}
	return models.OutcomeRejected, nil
}

// retryLater откладывает событие после временной ошибки. Когда повторы исчерпаны,
// причина записывается в last_error.
func (s *incidentService) retryLater(ctx context.Context, current *models.Incident, ev models.Event, cause error, log *logrus.Entry) (models.Outcome, error) {
	if ev.Attempt < s.cfg.SubmitMaxAttempts {
		return s.schedule(ctx, ev, log)
	}
	log.WithError(cause).Error("Retries exhausted after transient errors")
	if err := s.recordError(ctx, current, ev, cause.Error(), log); err != nil {
		return models.OutcomeRejected, err
	}
	return models.OutcomeRejected, nil
}

// deferEvent откладывает событие, пришедшее раньше своего предусловия
func (s *incidentService) deferEvent(ctx context.Context, ev models.Event, reason string, log *logrus.Entry) (models.Outcome, error) {
	if ev.Attempt >= s.cfg.DeferMaxAttempts {
		log.WithField("reason", reason).Warn("Deferred event expired, dropping")
		return models.OutcomeIgnored, nil
	}
	log.WithField("reason", reason).Info("Event arrived out of order")
	return s.schedule(ctx, ev, log)
}

func (s *incidentService) schedule(ctx context.Context, ev models.Event, log *logrus.Entry) (models.Outcome, error) {
	next := ev
	next.Scheduled = true
	next.Attempt++
	delay := s.cfg.Backoff.Delay(next.Attempt)
	if err := s.scheduler.Schedule(ctx, next, delay); err != nil {
		return models.OutcomeRejected, &models.TransientError{Op: "schedule event", Err: err}
	}
	log.WithField("delay", delay).Debug("Event scheduled for redelivery")
	return models.OutcomeDeferred, nil
}

// recordError сохраняет причину сбоя, не меняя состояния
func (s *incidentService) recordError(ctx context.Context, current *models.Incident, ev models.Event, msg string, log *logrus.Entry) error {
	if current.LastError != nil && *current.LastError == msg {
		return nil
	}
	next := current.Clone()
	next.LastError = models.StringPtr(msg)
	return s.commit(ctx, current, next, ev, log)
}

// commit проверяет инварианты и фиксирует новый снимок. ErrVersionConflict возвращается
// как есть, чтобы вызывающий перечитал инцидент.
func (s *incidentService) commit(ctx context.Context, current, next *models.Incident, ev models.Event, log *logrus.Entry) error {
	if err := next.CheckInvariants(); err != nil {
		log.WithError(err).Error("Refusing to commit state that violates invariants")
		return fmt.Errorf("service: could not commit %s: %w", ev.Kind, err)
	}

	if err := s.incidents.CompareAndSwap(ctx, current.Version, next); err != nil {
		if errors.Is(err, models.ErrVersionConflict) {
			return err
		}
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("service: could not commit %s: %w", ev.Kind, err)
		}
		return &models.TransientError{Op: "commit transition", Err: err}
	}

	from := current.State()
	to := next.State()
	if from != to {
		s.metrics.Transition(from, to, ev.Kind)
	}
	s.invalidate(ctx, next.IncidentID, log)
	s.notify(ctx, from, next, ev.Kind, log)

	log.WithFields(logrus.Fields{
		"from":    from.String(),
		"to":      to.String(),
		"version": next.Version,
	}).Info("Incident transition committed")
	return nil
}

func (s *incidentService) invalidate(ctx context.Context, id string, log *logrus.Entry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}
}

func (s *incidentService) notify(ctx context.Context, from models.State, next *models.Incident, kind models.EventKind, log *logrus.Entry) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, webhook.NewTransitionEvent(from, next, kind)); err != nil {
		log.WithError(err).Warn("Failed to publish transition webhook")
	}
}

// Apply - точка входа для воркеров. Временные ошибки не выходят за границу воркера:
// событие откладывается на повтор.
func (s *incidentService) Apply(ctx context.Context, ev models.Event) error {
	_, err := s.HandleEvent(ctx, ev)
	if err == nil {
		return nil
	}
	if !models.IsTransient(err) && !errors.Is(err, models.ErrVersionConflict) {
		return err
	}
	if ev.Attempt >= s.cfg.DeferMaxAttempts {
		return err
	}

	log := s.logger.WithFields(logrus.Fields{
		"service":     "lifecycle",
		"method":      "Apply",
		"incident_id": ev.IncidentID,
		"event":       ev.Kind,
	})
	if _, serr := s.schedule(ctx, ev, log); serr != nil {
		return errors.Join(err, serr)
	}
	log.WithError(err).Warn("Event failed with a transient error, scheduled for retry")
	return nil
}

// HandleChainObservation применяет терминальное наблюдение трекера
func (s *incidentService) HandleChainObservation(ctx context.Context, obs models.ChainObservation) error {
	if !obs.Terminal() {
		return nil
	}
	return s.Apply(ctx, obs.Event())
}

func isCommand(ev models.Event) bool {
	return !ev.Scheduled && (ev.Kind == models.EventRequestProof || ev.Kind == models.EventResubmit)
}

// storableArtifact: отклоненный артефакт сохраняется, только если его можно сохранить
// без нарушения инвариантов
func storableArtifact(ev models.Event) bool {
	if !validation.WellFormedHex(ev.ProofHash) || len(ev.PublicInputs) == 0 {
		return false
	}
	for _, in := range ev.PublicInputs {
		if !validation.WellFormedHex(in) {
			return false
		}
	}
	return true
}
