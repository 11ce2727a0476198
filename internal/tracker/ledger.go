package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	submissionKeyPrefix = "chain:submission:"
	deliveredKeyPrefix  = "chain:delivered:"
	// Резерв отправки истекает, если процесс упал между резервом и фиксацией хэша
	reservationTTL = 10 * time.Minute
	deliveredTTL   = 7 * 24 * time.Hour
)

// Ledger делает отправку идемпотентной: один ключ - одна транзакция
type Ledger interface {
	// Reserve резервирует ключ. Если ключ уже зафиксирован, возвращает хэш транзакции.
	Reserve(ctx context.Context, key string) (txHash string, reserved bool, err error)
	Commit(ctx context.Context, key, txHash string) error
	Release(ctx context.Context, key string) error
}

// Deduper гарантирует доставку терминального наблюдения не более одного раза
// на пару (хэш транзакции, статус)
type Deduper interface {
	MarkDelivered(ctx context.Context, txHash string, status models.BlockchainStatus) (bool, error)
	// MarkedAt возвращает время отметки о доставке; ok равен false, если отметки нет
	MarkedAt(ctx context.Context, txHash string, status models.BlockchainStatus) (at time.Time, ok bool, err error)
	Release(ctx context.Context, txHash string, status models.BlockchainStatus) error
}

// RedisLedger хранит резервы и хэши отправленных транзакций в Redis
type RedisLedger struct {
	redisClient *redis.Client
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{redisClient: client}
}

func (l *RedisLedger) Reserve(ctx context.Context, key string) (string, bool, error) {
	ok, err := l.redisClient.SetNX(ctx, submissionKeyPrefix+key, "", reservationTTL).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to reserve submission: %w", err)
	}
	if ok {
		return "", true, nil
	}
	txHash, err := l.redisClient.Get(ctx, submissionKeyPrefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read submission: %w", err)
	}
	return txHash, false, nil
}

func (l *RedisLedger) Commit(ctx context.Context, key, txHash string) error {
	if err := l.redisClient.Set(ctx, submissionKeyPrefix+key, txHash, 0).Err(); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	return nil
}

func (l *RedisLedger) Release(ctx context.Context, key string) error {
	if err := l.redisClient.Del(ctx, submissionKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release submission: %w", err)
	}
	return nil
}

// RedisDeduper хранит отметки о доставленных терминальных наблюдениях
type RedisDeduper struct {
	redisClient *redis.Client
}

func NewRedisDeduper(client *redis.Client) *RedisDeduper {
	return &RedisDeduper{redisClient: client}
}

func deliveredKey(txHash string, status models.BlockchainStatus) string {
	return fmt.Sprintf("%s%s:%s", deliveredKeyPrefix, txHash, status)
}

func (d *RedisDeduper) MarkDelivered(ctx context.Context, txHash string, status models.BlockchainStatus) (bool, error) {
	ok, err := d.redisClient.SetNX(ctx, deliveredKey(txHash, status), time.Now().UTC().Format(time.RFC3339Nano), deliveredTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark observation delivered: %w", err)
	}
	return ok, nil
}

func (d *RedisDeduper) MarkedAt(ctx context.Context, txHash string, status models.BlockchainStatus) (time.Time, bool, error) {
	value, err := d.redisClient.Get(ctx, deliveredKey(txHash, status)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to read delivery mark: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		// Нечитаемая отметка считается старой
		return time.Time{}, true, nil
	}
	return at, true, nil
}

func (d *RedisDeduper) Release(ctx context.Context, txHash string, status models.BlockchainStatus) error {
	if err := d.redisClient.Del(ctx, deliveredKey(txHash, status)).Err(); err != nil {
		return fmt.Errorf("failed to release delivery mark: %w", err)
	}
	return nil
}

// MemoryLedger - Ledger в памяти процесса
type MemoryLedger struct {
	mu          sync.Mutex
	submissions map[string]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{submissions: make(map[string]string)}
}

func (m *MemoryLedger) Reserve(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if txHash, ok := m.submissions[key]; ok {
		return txHash, false, nil
	}
	m.submissions[key] = ""
	return "", true, nil
}

func (m *MemoryLedger) Commit(_ context.Context, key, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.submissions[key] = txHash
	return nil
}

func (m *MemoryLedger) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.submissions, key)
	return nil
}

// MemoryDeduper - Deduper в памяти процесса
type MemoryDeduper struct {
	mu        sync.Mutex
	delivered map[string]time.Time
}

func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{delivered: make(map[string]time.Time)}
}

func (m *MemoryDeduper) MarkDelivered(_ context.Context, txHash string, status models.BlockchainStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := deliveredKey(txHash, status)
	if _, ok := m.delivered[key]; ok {
		return false, nil
	}
	m.delivered[key] = time.Now()
	return true, nil
}

func (m *MemoryDeduper) MarkedAt(_ context.Context, txHash string, status models.BlockchainStatus) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.delivered[deliveredKey(txHash, status)]
	return at, ok, nil
}

func (m *MemoryDeduper) Release(_ context.Context, txHash string, status models.BlockchainStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.delivered, deliveredKey(txHash, status))
	return nil
}
