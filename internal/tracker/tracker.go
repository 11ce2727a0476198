// Package tracker отправляет транзакции проверки доказательств в сеть и сводит
// поток наблюдений за ними к терминальному сигналу confirmed или failed.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/validation"
	"github.com/sirupsen/logrus"
)

//go:generate mockgen -source=tracker.go -destination=mocks/mock_tracker.go -package=mocks

// ChainClient - внешний клиент блокчейна. Финальность определяется клиентом,
// трекер получает только итоговый статус.
type ChainClient interface {
	SubmitVerificationTx(ctx context.Context, proofHash string, publicInputs []string) (string, error)
	TransactionStatus(ctx context.Context, txHash string) (models.BlockchainStatus, error)
}

// Subscriber - необязательная push-подписка на статус транзакции
type Subscriber interface {
	WatchTransaction(ctx context.Context, txHash string) (<-chan models.BlockchainStatus, error)
}

// ObservationHandler применяет терминальное наблюдение к машине состояний
type ObservationHandler func(ctx context.Context, obs models.ChainObservation) error

// SubmitRequest - данные для отправки транзакции проверки
type SubmitRequest struct {
	IncidentID   string
	ProofHash    string
	PublicInputs []string
	// Attempt различает повторные отправки после (verified, failed)
	Attempt int
}

func (r SubmitRequest) ledgerKey() string {
	return fmt.Sprintf("%s:%s:%d", r.IncidentID, r.ProofHash, r.Attempt)
}

var errSubmissionInFlight = errors.New("submission for this proof is already in flight")

type Tracker struct {
	client       ChainClient
	ledger       Ledger
	deduper      Deduper
	pollInterval time.Duration
	// watchMaxAge ограничивает фоновое наблюдение Track; ноль снимает ограничение
	watchMaxAge  time.Duration
	logger       *logrus.Logger

	mu           sync.Mutex
	runCtx       context.Context
	observations chan models.ChainObservation
}

func NewTracker(client ChainClient, ledger Ledger, deduper Deduper, pollInterval, watchMaxAge time.Duration, logger *logrus.Logger) *Tracker {
	return &Tracker{
		client:       client,
		ledger:       ledger,
		deduper:      deduper,
		pollInterval: pollInterval,
		watchMaxAge:  watchMaxAge,
		logger:       logger,
		observations: make(chan models.ChainObservation, 64),
	}
}

// Submit отправляет транзакцию проверки. Повторный вызов с тем же запросом возвращает
// ранее полученный хэш, не отправляя вторую транзакцию.
func (t *Tracker) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	log := t.logger.WithFields(logrus.Fields{
		"component":   "tracker",
		"method":      "Submit",
		"incident_id": req.IncidentID,
		"attempt":     req.Attempt,
	})

	if !validation.WellFormedHex(req.ProofHash) || len(req.PublicInputs) == 0 {
		return "", &models.SubmissionError{Permanent: true, Err: errors.New("malformed verification payload")}
	}

	key := req.ledgerKey()
	txHash, reserved, err := t.ledger.Reserve(ctx, key)
	if err != nil {
		return "", &models.SubmissionError{Err: err}
	}
	if !reserved {
		if txHash != "" {
			log.WithField("transaction_hash", txHash).Info("Submission already recorded, reusing transaction")
			return txHash, nil
		}
		return "", &models.SubmissionError{Err: errSubmissionInFlight}
	}

	txHash, err = t.client.SubmitVerificationTx(ctx, req.ProofHash, req.PublicInputs)
	if err != nil {
		if releaseErr := t.ledger.Release(ctx, key); releaseErr != nil {
			log.WithError(releaseErr).Warn("Failed to release submission reservation")
		}
		var se *models.SubmissionError
		if errors.As(err, &se) {
			return "", se
		}
		return "", &models.SubmissionError{Err: err}
	}
	if !validation.ValidateTransaction(txHash) {
		if releaseErr := t.ledger.Release(ctx, key); releaseErr != nil {
			log.WithError(releaseErr).Warn("Failed to release submission reservation")
		}
		log.WithField("transaction_hash", txHash).Error("Chain client returned malformed transaction hash")
		return "", &models.SubmissionError{Permanent: true, Err: fmt.Errorf("chain client returned malformed transaction hash %q", txHash)}
	}

	if err := t.ledger.Commit(ctx, key, txHash); err != nil {
		// Транзакция уже в сети, ее хэш важнее записи в журнале
		log.WithError(err).Warn("Failed to record submission")
	}
	log.WithField("transaction_hash", txHash).Info("Verification transaction submitted")
	return txHash, nil
}

// Observe возвращает ленивый поток наблюдений за транзакцией. Поток можно перезапустить
// повторным вызовом. Если клиент поддерживает подписку, используется она, иначе опрос.
// Канал закрывается после терминального наблюдения или отмены контекста.
func (t *Tracker) Observe(ctx context.Context, txHash string) <-chan models.ChainObservation {
	out := make(chan models.ChainObservation, 1)
	go func() {
		defer close(out)
		if sub, ok := t.client.(Subscriber); ok {
			if t.watch(ctx, sub, txHash, out) {
				return
			}
		}
		t.poll(ctx, txHash, out)
	}()
	return out
}

// watch возвращает true, если получено терминальное наблюдение или контекст отменен
func (t *Tracker) watch(ctx context.Context, sub Subscriber, txHash string, out chan<- models.ChainObservation) bool {
	log := t.logger.WithField("transaction_hash", txHash)

	statuses, err := sub.WatchTransaction(ctx, txHash)
	if err != nil {
		log.WithError(err).Debug("Subscription unavailable, falling back to polling")
		return false
	}
	for status := range statuses {
		obs := models.ChainObservation{TransactionHash: txHash, Status: status, ObservedAt: time.Now()}
		if !emit(ctx, out, obs) {
			return true
		}
		if obs.Terminal() {
			return true
		}
	}
	if ctx.Err() != nil {
		return true
	}
	log.Debug("Subscription closed before finality, falling back to polling")
	return false
}

func (t *Tracker) poll(ctx context.Context, txHash string, out chan<- models.ChainObservation) {
	log := t.logger.WithField("transaction_hash", txHash)
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	var last models.BlockchainStatus
	for {
		status, err := t.client.TransactionStatus(ctx, txHash)
		if err != nil {
			log.WithError(err).Warn("Failed to poll transaction status")
		} else if status != last {
			last = status
			obs := models.ChainObservation{TransactionHash: txHash, Status: status, ObservedAt: time.Now()}
			if !emit(ctx, out, obs) || obs.Terminal() {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func emit(ctx context.Context, out chan<- models.ChainObservation, obs models.ChainObservation) bool {
	select {
	case out <- obs:
		return true
	case <-ctx.Done():
		return false
	}
}

// Track запускает фоновое наблюдение за транзакцией инцидента. Терминальное наблюдение
// передается в цикл Run. Если цикл еще не запущен или наблюдение длится дольше
// watchMaxAge, транзакцию подберет Sweeper.
func (t *Tracker) Track(incidentID, txHash string) {
	t.mu.Lock()
	ctx := t.runCtx
	t.mu.Unlock()

	log := t.logger.WithFields(logrus.Fields{
		"component":        "tracker",
		"incident_id":      incidentID,
		"transaction_hash": txHash,
	})
	if ctx == nil {
		log.Debug("Tracker is not running, leaving transaction to sweeper")
		return
	}

	watchCtx, cancel := ctx, context.CancelFunc(func() {})
	if t.watchMaxAge > 0 {
		watchCtx, cancel = context.WithTimeout(ctx, t.watchMaxAge)
	}

	go func() {
		defer cancel()
		for obs := range t.Observe(watchCtx, txHash) {
			if !obs.Terminal() {
				continue
			}
			obs.IncidentID = incidentID
			select {
			case t.observations <- obs:
			case <-ctx.Done():
			}
			return
		}
		if ctx.Err() == nil && errors.Is(watchCtx.Err(), context.DeadlineExceeded) {
			log.WithField("watch_max_age", t.watchMaxAge).Info("Watch window expired, leaving transaction to sweeper")
		}
	}()
}

// Run доставляет терминальные наблюдения из фоновых наблюдателей обработчику
func (t *Tracker) Run(ctx context.Context, handler ObservationHandler) {
	t.mu.Lock()
	t.runCtx = ctx
	t.mu.Unlock()

	t.logger.Info("Starting confirmation tracker...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				t.logger.Info("Stopping confirmation tracker.")
				return
			case obs := <-t.observations:
				if err := t.Deliver(ctx, obs, handler); err != nil {
					t.logger.WithError(err).WithField("transaction_hash", obs.TransactionHash).Warn("Failed to deliver chain observation")
				}
			}
		}
	}()
}

// Deliver передает терминальное наблюдение обработчику не более одного раза на пару
// (хэш транзакции, статус). Если обработчик вернул ошибку, отметка снимается, и
// наблюдение может быть доставлено снова.
func (t *Tracker) Deliver(ctx context.Context, obs models.ChainObservation, handler ObservationHandler) error {
	if !obs.Terminal() {
		return nil
	}
	log := t.logger.WithFields(logrus.Fields{
		"component":        "tracker",
		"incident_id":      obs.IncidentID,
		"transaction_hash": obs.TransactionHash,
		"status":           obs.Status,
	})

	first, err := t.deduper.MarkDelivered(ctx, obs.TransactionHash, obs.Status)
	if err != nil {
		return &models.TransientError{Op: "dedupe chain observation", Err: err}
	}
	if !first {
		log.Debug("Duplicate terminal observation dropped")
		return nil
	}

	if err := handler(ctx, obs); err != nil {
		if releaseErr := t.deduper.Release(ctx, obs.TransactionHash, obs.Status); releaseErr != nil {
			log.WithError(releaseErr).Error("Failed to release delivery mark")
		}
		return fmt.Errorf("tracker: could not apply chain observation: %w", err)
	}
	log.Info("Terminal chain observation delivered")
	return nil
}

// Redeliver снимает отметку о доставке старше grace и доставляет наблюдение заново.
// Используется, когда хранилище показывает, что терминальный сигнал так и не был применен.
// Отметка моложе grace означает, что доставка еще может завершиться, и наблюдение
// пропускается; в этом случае возвращается false.
func (t *Tracker) Redeliver(ctx context.Context, obs models.ChainObservation, handler ObservationHandler, grace time.Duration) (bool, error) {
	if !obs.Terminal() {
		return false, nil
	}
	markedAt, marked, err := t.deduper.MarkedAt(ctx, obs.TransactionHash, obs.Status)
	if err != nil {
		return false, &models.TransientError{Op: "read delivery mark", Err: err}
	}
	if marked {
		if age := time.Since(markedAt); age < grace {
			t.logger.WithFields(logrus.Fields{
				"component":        "tracker",
				"incident_id":      obs.IncidentID,
				"transaction_hash": obs.TransactionHash,
				"mark_age":         age,
			}).Debug("Delivery mark is recent, skipping redelivery")
			return false, nil
		}
		if err := t.deduper.Release(ctx, obs.TransactionHash, obs.Status); err != nil {
			return false, &models.TransientError{Op: "release delivery mark", Err: err}
		}
	}
	if err := t.Deliver(ctx, obs, handler); err != nil {
		return false, err
	}
	return true, nil
}

// Status однократно опрашивает статус транзакции
func (t *Tracker) Status(ctx context.Context, txHash string) (models.BlockchainStatus, error) {
	return t.client.TransactionStatus(ctx, txHash)
}
