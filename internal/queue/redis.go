package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const deferredEventsKey = "deferred_events"

type envelope struct {
	ID    string       `json:"id"`
	Event models.Event `json:"event"`
}

// RedisScheduler хранит отложенные события в sorted set, score - момент доставки в миллисекундах
type RedisScheduler struct {
	redisClient *redis.Client
	key         string
	logger      *logrus.Logger
}

func NewRedisScheduler(client *redis.Client, logger *logrus.Logger) *RedisScheduler {
	return &RedisScheduler{
		redisClient: client,
		key:         deferredEventsKey,
		logger:      logger,
	}
}

// Schedule откладывает событие на delay
func (s *RedisScheduler) Schedule(ctx context.Context, ev models.Event, delay time.Duration) error {
	payload, err := json.Marshal(envelope{ID: uuid.NewString(), Event: ev})
	if err != nil {
		return fmt.Errorf("failed to marshal deferred event: %w", err)
	}
	due := time.Now().Add(delay).UnixMilli()
	if err := s.redisClient.ZAdd(ctx, s.key, redis.Z{Score: float64(due), Member: payload}).Err(); err != nil {
		return fmt.Errorf("failed to schedule deferred event: %w", err)
	}
	return nil
}

// PopDue забирает наступившие события. ZREM гарантирует, что событие получит один потребитель.
func (s *RedisScheduler) PopDue(ctx context.Context, now time.Time, limit int) ([]models.Event, error) {
	members, err := s.redisClient.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read deferred events: %w", err)
	}

	events := make([]models.Event, 0, len(members))
	for _, member := range members {
		removed, err := s.redisClient.ZRem(ctx, s.key, member).Result()
		if err != nil {
			return events, fmt.Errorf("failed to claim deferred event: %w", err)
		}
		if removed == 0 {
			// Событие забрал другой экземпляр
			continue
		}
		var env envelope
		if err := json.Unmarshal([]byte(member), &env); err != nil {
			// Событие уже снято с очереди, сохраняем его содержимое в логе
			s.logger.WithError(err).WithFields(logrus.Fields{
				"component": "scheduler",
				"member":    member,
			}).Error("Dropping undecodable deferred event")
			continue
		}
		events = append(events, env.Event)
	}
	return events, nil
}

// Len возвращает количество отложенных событий
func (s *RedisScheduler) Len(ctx context.Context) (int64, error) {
	return s.redisClient.ZCard(ctx, s.key).Result()
}
