package prover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/Dankishon/prtc-mvp-back/internal/retry"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// EventHandler применяет событие к машине состояний
type EventHandler func(ctx context.Context, ev models.Event) error

// BlobWriter сохраняет сериализованное доказательство
type BlobWriter interface {
	Put(ctx context.Context, proofHash string, blob []byte) error
}

// ResultWorker читает результаты сервиса генерации из очереди Redis и передает их
// машине состояний. Доставка at-least-once: повторы безопасны, машина идемпотентна.
type ResultWorker struct {
	redisClient *redis.Client
	blobs       BlobWriter
	handler     EventHandler
	maxRetries  int
	backoff     retry.Backoff
	logger      *logrus.Logger
}

func NewResultWorker(redisClient *redis.Client, blobs BlobWriter, handler EventHandler, maxRetries int, backoff retry.Backoff, logger *logrus.Logger) *ResultWorker {
	return &ResultWorker{
		redisClient: redisClient,
		blobs:       blobs,
		handler:     handler,
		maxRetries:  maxRetries,
		backoff:     backoff,
		logger:      logger,
	}
}

// Start запускает горутину обработки очереди результатов
func (w *ResultWorker) Start(ctx context.Context) {
	w.logger.Info("Starting proof result worker...")
	go func() {
		for {
			select {
			case <-ctx.Done():
				w.logger.Info("Stopping proof result worker.")
				return
			default:
				result, err := w.redisClient.BRPop(ctx, 0, resultsQueueKey).Result()
				if err != nil {
					if errors.Is(err, context.Canceled) {
						continue
					}
					w.logger.WithError(err).Error("Failed to pop proof result from Redis")
					time.Sleep(w.backoff.Base)
					continue
				}

				payload := result[1]
				var res models.ProofResult
				if err := json.Unmarshal([]byte(payload), &res); err != nil {
					w.logger.WithError(err).Error("Failed to unmarshal proof result from Redis")
					continue
				}

				if err := w.processWithRetry(ctx, res); err != nil {
					w.deadLetter(ctx, res, payload, err)
				}
			}
		}
	}()
}

// Process сохраняет доказательство, если оно передано, и применяет результат.
// Используется и очередью, и входящим вебхуком.
func (w *ResultWorker) Process(ctx context.Context, res models.ProofResult) error {
	if res.IncidentID == "" || res.JobID == "" {
		return fmt.Errorf("proof result without incident_id or job_id")
	}
	if res.Error == "" && res.Proof != "" {
		blob, err := hexutil.Decode(res.Proof)
		if err != nil {
			return fmt.Errorf("proof is not valid hex: %w", err)
		}
		if err := w.blobs.Put(ctx, res.ProofHash, blob); err != nil {
			return &models.TransientError{Op: "store proof blob", Err: err}
		}
	}
	return w.handler(ctx, res.Event())
}

func (w *ResultWorker) processWithRetry(ctx context.Context, res models.ProofResult) error {
	log := w.logger.WithFields(logrus.Fields{
		"component":   "prover",
		"incident_id": res.IncidentID,
		"job_id":      res.JobID,
	})

	var err error
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		err = w.Process(ctx, res)
		if err == nil {
			log.Debug("Proof result applied")
			return nil
		}
		delay := w.backoff.Delay(attempt)
		log.WithError(err).Warnf("Failed to apply proof result. Retrying in %v. Retries left: %d", delay, w.maxRetries-attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

// deadLetter откладывает результат, который не удалось применить, для разбора оператором
func (w *ResultWorker) deadLetter(ctx context.Context, res models.ProofResult, payload string, cause error) {
	log := w.logger.WithFields(logrus.Fields{"incident_id": res.IncidentID, "job_id": res.JobID})
	if err := w.redisClient.LPush(ctx, deadQueueKey, payload).Err(); err != nil {
		log.WithError(err).Error("Failed to move proof result to dead letter queue")
		return
	}
	log.WithError(cause).Errorf("Proof result moved to dead letter queue after %d retries.", w.maxRetries)
}
