package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dankishon/prtc-mvp-back/internal/config"
)

const (
	maxConns        = 20
	maxConnIdleTime = 5 * time.Minute
	pingTimeout     = 5 * time.Second
)

// NewPostgresDB создает пул соединений PostgreSQL и проверяет доступность базы.
// Переходы инцидентов используют короткие транзакции compare-and-swap, поэтому пул небольшой.
func NewPostgresDB(ctx context.Context, appCfg *config.Config) (*pgxpool.Pool, error) {
	cfgPool, err := pgxpool.ParseConfig(appCfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе конфигурации postgres: %w", err)
	}
	if cfgPool.MaxConns > maxConns {
		cfgPool.MaxConns = maxConns
	}
	cfgPool.MaxConnIdleTime = maxConnIdleTime

	dbpool, err := pgxpool.NewWithConfig(ctx, cfgPool)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("не удалось выполнить ping к postgres: %w", err)
	}

	return dbpool, nil
}
