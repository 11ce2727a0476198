package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	webhookQueueKey = "webhook_events"
)

//go:generate mockgen -source=publisher.go -destination=mocks/mock_publisher.go -package=mocks

// TransitionEvent - уведомление о зафиксированном изменении инцидента
type TransitionEvent struct {
	IncidentID       string                  `json:"incident_id"`
	CompanyID        string                  `json:"company_id"`
	Event            models.EventKind        `json:"event"`
	From             string                  `json:"from"`
	To               string                  `json:"to"`
	ProofStatus      models.ProofStatus      `json:"proof_status"`
	BlockchainStatus models.BlockchainStatus `json:"blockchain_status"`
	TransactionHash  *string                 `json:"transaction_hash,omitempty"`
	LastError        *string                 `json:"last_error,omitempty"`
	Version          int64                   `json:"version"`
	Timestamp        time.Time               `json:"timestamp"`
}

// NewTransitionEvent собирает уведомление из состояния до и после фиксации
func NewTransitionEvent(from models.State, next *models.Incident, kind models.EventKind) TransitionEvent {
	return TransitionEvent{
		IncidentID:       next.IncidentID,
		CompanyID:        next.CompanyID,
		Event:            kind,
		From:             from.String(),
		To:               next.State().String(),
		ProofStatus:      next.ProofStatus,
		BlockchainStatus: next.BlockchainStatus,
		TransactionHash:  next.TransactionHash,
		LastError:        next.LastError,
		Version:          next.Version,
		Timestamp:        time.Now().UTC(),
	}
}

// WebhookPublisher - интерфейс для публикации вебхуков
type WebhookPublisher interface {
	Publish(ctx context.Context, event TransitionEvent) error
}

// RedisWebhookPublisher - реализация WebhookPublisher, использующая Redis
type RedisWebhookPublisher struct {
	redisClient *redis.Client
}

// NewRedisWebhookPublisher создает новый RedisWebhookPublisher
func NewRedisWebhookPublisher(client *redis.Client) *RedisWebhookPublisher {
	return &RedisWebhookPublisher{
		redisClient: client,
	}
}

// Publish публикует событие вебхука в очередь Redis
func (p *RedisWebhookPublisher) Publish(ctx context.Context, event TransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event: %w", err)
	}

	// LPUSH добавляет событие в левую часть списка, воркер забирает справа
	if err := p.redisClient.LPush(ctx, webhookQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish webhook event to Redis: %w", err)
	}
	return nil
}
