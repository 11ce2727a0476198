package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const (
	sweeperLockKey   = "lock:chain-sweeper"
	sweeperBatchSize = 500
)

// PendingLister выдает инциденты, ожидающие подтверждения в сети
type PendingLister interface {
	ListByState(ctx context.Context, state models.State, limit int) ([]*models.Incident, error)
}

// Locker - распределенная блокировка, чтобы опрос вел один экземпляр сервиса
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration, opt *redislock.Options) (*redislock.Lock, error)
}

// Sweeper периодически переопрашивает все транзакции в состоянии (verified, pending).
// Восстанавливает наблюдение после рестарта и потерянных событий.
type Sweeper struct {
	tracker  *Tracker
	lister   PendingLister
	locker   Locker
	handler  ObservationHandler
	interval time.Duration
	// grace - возраст отметки о доставке, после которого сигнал доставляется повторно
	grace    time.Duration
	logger   *logrus.Logger
}

func NewSweeper(tracker *Tracker, lister PendingLister, locker Locker, handler ObservationHandler, interval, grace time.Duration, logger *logrus.Logger) *Sweeper {
	return &Sweeper{
		tracker:  tracker,
		lister:   lister,
		locker:   locker,
		handler:  handler,
		interval: interval,
		grace:    grace,
		logger:   logger,
	}
}

// Start запускает горутину периодического опроса
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting chain sweeper...")
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Stopping chain sweeper.")
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Sweep выполняет один проход по ожидающим транзакциям
func (s *Sweeper) Sweep(ctx context.Context) {
	log := s.logger.WithField("component", "sweeper")

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, sweeperLockKey, s.interval, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			log.Debug("Sweeper lock held by another instance, skipping")
			return
		}
		if err != nil {
			log.WithError(err).Warn("Failed to obtain sweeper lock, skipping")
			return
		}
		defer func() {
			if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				log.WithError(err).Warn("Failed to release sweeper lock")
			}
		}()
	}

	pending := models.State{Proof: models.ProofVerified, Chain: models.ChainPending}
	incidents, err := s.lister.ListByState(ctx, pending, sweeperBatchSize)
	if err != nil {
		log.WithError(err).Error("Failed to list pending incidents")
		return
	}

	delivered := 0
	for _, incident := range incidents {
		if incident.TransactionHash == nil {
			continue
		}
		txHash := *incident.TransactionHash
		status, err := s.tracker.Status(ctx, txHash)
		if err != nil {
			log.WithError(err).WithField("transaction_hash", txHash).Warn("Failed to poll transaction")
			continue
		}
		obs := models.ChainObservation{
			IncidentID:      incident.IncidentID,
			TransactionHash: txHash,
			Status:          status,
			ObservedAt:      time.Now(),
		}
		if !obs.Terminal() {
			continue
		}
		// Инцидент все еще pending в хранилище, значит сигнал не применен,
		// даже если отметка о доставке осталась от упавшего процесса
		ok, err := s.tracker.Redeliver(ctx, obs, s.handler, s.grace)
		if err != nil {
			log.WithError(err).WithField("incident_id", incident.IncidentID).Warn("Failed to deliver swept observation")
			continue
		}
		if ok {
			delivered++
		}
	}
	log.WithFields(logrus.Fields{"pending": len(incidents), "delivered": delivered}).Debug("Sweep completed")
}
