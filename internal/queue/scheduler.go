// Package queue хранит отложенные события машины состояний: повторы после временных
// ошибок и события, пришедшие раньше, чем их предусловие стало выполнимым.
package queue

import (
	"context"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/sirupsen/logrus"
)

const popBatchSize = 100

// Handler применяет доставленное событие
type Handler func(ctx context.Context, ev models.Event) error

// Source выдает события, срок которых наступил. Каждое событие выдается одному потребителю.
type Source interface {
	PopDue(ctx context.Context, now time.Time, limit int) ([]models.Event, error)
}

// Worker периодически забирает наступившие события и передает их обработчику
type Worker struct {
	source   Source
	handler  Handler
	interval time.Duration
	logger   *logrus.Logger
}

func NewWorker(source Source, handler Handler, interval time.Duration, logger *logrus.Logger) *Worker {
	return &Worker{
		source:   source,
		handler:  handler,
		interval: interval,
		logger:   logger,
	}
}

// Start запускает горутину опроса очереди
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Starting deferred event worker...")
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping deferred event worker.")
				return
			case <-ticker.C:
				w.Tick(ctx, time.Now())
			}
		}
	}()
}

// Tick обрабатывает все события, срок которых наступил к моменту now
func (w *Worker) Tick(ctx context.Context, now time.Time) {
	for {
		events, err := w.source.PopDue(ctx, now, popBatchSize)
		if err != nil {
			w.logger.WithError(err).Error("Failed to pop deferred events")
			return
		}
		for _, ev := range events {
			log := w.logger.WithFields(logrus.Fields{
				"event":       ev.Kind,
				"incident_id": ev.IncidentID,
				"attempt":     ev.Attempt,
			})
			if err := w.handler(ctx, ev); err != nil {
				log.WithError(err).Warn("Deferred event handling failed")
				continue
			}
			log.Debug("Deferred event handled")
		}
		if len(events) < popBatchSize {
			return
		}
	}
}
