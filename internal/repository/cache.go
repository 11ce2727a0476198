package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dankishon/prtc-mvp-back/internal/models"
	"github.com/redis/go-redis/v9"
)

// Срок жизни кэша короткий: кэш обслуживает только отчетные чтения,
// машина состояний всегда читает из хранилища
const incidentCacheTTL = 30 * time.Second

// IncidentCache - read-through кэш инцидентов в Redis
type IncidentCache struct {
	redisClient *redis.Client
}

func NewIncidentCache(redisClient *redis.Client) *IncidentCache {
	return &IncidentCache{redisClient: redisClient}
}

func incidentCacheKey(id string) string {
	return fmt.Sprintf("incident:%s", id)
}

// GetIncidentFromCache пытается получить инцидент из Redis; промах возвращает nil, nil
func (c *IncidentCache) GetIncidentFromCache(ctx context.Context, id string) (*models.Incident, error) {
	val, err := c.redisClient.Get(ctx, incidentCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get incident from cache: %w", err)
	}

	incident := &models.Incident{}
	if err := json.Unmarshal(val, incident); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident from cache: %w", err)
	}
	return incident, nil
}

// SetIncidentCache сохраняет инцидент в Redis
func (c *IncidentCache) SetIncidentCache(ctx context.Context, incident *models.Incident) error {
	val, err := json.Marshal(incident)
	if err != nil {
		return fmt.Errorf("failed to marshal incident for cache: %w", err)
	}
	if err := c.redisClient.Set(ctx, incidentCacheKey(incident.IncidentID), val, incidentCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to set incident in cache: %w", err)
	}
	return nil
}

// InvalidateIncidentCache удаляет инцидент из Redis кэша
func (c *IncidentCache) InvalidateIncidentCache(ctx context.Context, id string) error {
	if err := c.redisClient.Del(ctx, incidentCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate incident cache: %w", err)
	}
	return nil
}
