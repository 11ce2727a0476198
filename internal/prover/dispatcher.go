// Package prover связывает сервис с внешним сервисом генерации доказательств через очереди Redis.
package prover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	jobsQueueKey    = "proof_jobs"
	resultsQueueKey = "proof_results"
	deadQueueKey    = "proof_results:dead"
	blobKeyPrefix   = "proof:blob:"
)

// RedisDispatcher публикует задания на генерацию в очередь Redis
type RedisDispatcher struct {
	redisClient *redis.Client
}

func NewRedisDispatcher(client *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{redisClient: client}
}

// Dispatch публикует задание. Сервис генерации читает очередь по BRPOP.
func (d *RedisDispatcher) Dispatch(ctx context.Context, job models.ProofJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal proof job: %w", err)
	}
	if err := d.redisClient.LPush(ctx, jobsQueueKey, payload).Err(); err != nil {
		return &models.TransientError{Op: "dispatch proof job", Err: err}
	}
	return nil
}

// MemoryDispatcher запоминает задания в памяти процесса
type MemoryDispatcher struct {
	mu   sync.Mutex
	jobs []models.ProofJob
	err  error
}

func NewMemoryDispatcher() *MemoryDispatcher {
	return &MemoryDispatcher{}
}

func (d *MemoryDispatcher) Dispatch(_ context.Context, job models.ProofJob) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return d.err
	}
	d.jobs = append(d.jobs, job)
	return nil
}

// FailWith заставляет следующие вызовы Dispatch возвращать ошибку; nil снимает сбой
func (d *MemoryDispatcher) FailWith(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

// Jobs возвращает копию отправленных заданий
func (d *MemoryDispatcher) Jobs() []models.ProofJob {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.ProofJob(nil), d.jobs...)
}

// Last возвращает последнее задание
func (d *MemoryDispatcher) Last() (models.ProofJob, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.jobs) == 0 {
		return models.ProofJob{}, false
	}
	return d.jobs[len(d.jobs)-1], true
}

// RedisBlobStore хранит сериализованные доказательства по хэшу
type RedisBlobStore struct {
	redisClient *redis.Client
}

func NewRedisBlobStore(client *redis.Client) *RedisBlobStore {
	return &RedisBlobStore{redisClient: client}
}

func (s *RedisBlobStore) Put(ctx context.Context, proofHash string, blob []byte) error {
	if err := s.redisClient.Set(ctx, blobKeyPrefix+proofHash, blob, 0).Err(); err != nil {
		return fmt.Errorf("failed to store proof blob: %w", err)
	}
	return nil
}

func (s *RedisBlobStore) Blob(ctx context.Context, proofHash string) ([]byte, error) {
	blob, err := s.redisClient.Get(ctx, blobKeyPrefix+proofHash).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load proof blob: %w", err)
	}
	return blob, nil
}
