// Package app собирает зависимости сервиса для HTTP-сервера и CLI оператора
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bsm/redislock"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Dankishon/prtc-mvp-back/internal/chain"
	"github.com/Dankishon/prtc-mvp-back/internal/config"
	"github.com/Dankishon/prtc-mvp-back/internal/metrics"
	"github.com/Dankishon/prtc-mvp-back/internal/prover"
	"github.com/Dankishon/prtc-mvp-back/internal/queue"
	"github.com/Dankishon/prtc-mvp-back/internal/repository"
	"github.com/Dankishon/prtc-mvp-back/internal/retry"
	"github.com/Dankishon/prtc-mvp-back/internal/service"
	"github.com/Dankishon/prtc-mvp-back/internal/tracker"
	"github.com/Dankishon/prtc-mvp-back/internal/validation"
	"github.com/Dankishon/prtc-mvp-back/internal/webhook"
	"github.com/Dankishon/prtc-mvp-back/internal/zk"
	"github.com/Dankishon/prtc-mvp-back/pkg/postgres"
	redisclient "github.com/Dankishon/prtc-mvp-back/pkg/redis"
)

// Store - хранилище инцидентов и компаний, которое умеет выдавать ожидающие транзакции
type Store interface {
	service.IncidentRepository
	service.CompanyRepository
	tracker.PendingLister
}

// App - собранные компоненты процесса
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Redis     *redis.Client
	Store     Store
	Tracker   *tracker.Tracker
	Scheduler *queue.RedisScheduler
	Blobs     *prover.RedisBlobStore
	Registry  *prometheus.Registry
	Backoff   retry.Backoff
	Service   service.IncidentService

	closers []func()
}

// New подключается к Redis, хранилищу и сети и собирает сервис инцидентов
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	redisClient, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	a.Redis = redisClient
	a.closers = append(a.closers, func() { _ = redisClient.Close() })
	log.Info("Successfully connected to Redis")

	var cache service.IncidentCache
	a.Store, cache, err = a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	chainClient, err := openChain(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to connect to chain: %w", err)
	}

	a.Blobs = prover.NewRedisBlobStore(redisClient)
	verifier, err := openVerifier(cfg, a.Blobs, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load verifying key: %w", err)
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.Tracker = tracker.NewTracker(chainClient, tracker.NewRedisLedger(redisClient), tracker.NewRedisDeduper(redisClient), cfg.ChainPollInterval, cfg.ChainWatchMaxAge, log)
	a.Scheduler = queue.NewRedisScheduler(redisClient, log)
	a.Backoff = retry.Backoff{Base: cfg.RetryBaseDelay, Max: cfg.RetryMaxDelay}

	a.Service = service.NewIncidentService(service.Deps{
		Incidents:  a.Store,
		Companies:  a.Store,
		Cache:      cache,
		Validator:  validation.NewValidator(verifier),
		Dispatcher: prover.NewRedisDispatcher(redisClient),
		Chain:      a.Tracker,
		Scheduler:  a.Scheduler,
		Publisher:  webhook.NewRedisWebhookPublisher(redisClient),
		Metrics:    metrics.NewLifecycle(a.Registry),
	}, service.LifecycleConfig{
		ProofMaxAttempts:  cfg.ProofMaxAttempts,
		SubmitMaxAttempts: cfg.SubmitMaxAttempts,
		DeferMaxAttempts:  cfg.DeferMaxAttempts,
		CASMaxRetries:     cfg.CASMaxRetries,
		Backoff:           a.Backoff,
	}, log)

	return a, nil
}

// StartWorkers запускает фоновую обработку событий. Возвращает воркер результатов генерации,
// который также принимает результаты из входящего вебхука.
func (a *App) StartWorkers(ctx context.Context) *prover.ResultWorker {
	svc := a.Service
	a.Tracker.Run(ctx, svc.HandleChainObservation)
	tracker.NewSweeper(a.Tracker, a.Store, redislock.New(a.Redis), svc.HandleChainObservation, a.Config.SweepInterval, a.Config.SweepRedeliveryGrace, a.Logger).Start(ctx)
	queue.NewWorker(a.Scheduler, svc.Apply, a.Config.SchedulerPollInterval, a.Logger).Start(ctx)

	results := prover.NewResultWorker(a.Redis, a.Blobs, svc.Apply, a.Config.SubmitMaxAttempts, a.Backoff, a.Logger)
	results.Start(ctx)
	webhook.NewWebhookWorker(a.Redis, a.Logger, a.Config).Start(ctx)
	return results
}

// Close освобождает соединения в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openStore выбирает хранилище по STORE_DRIVER. Кэш отчетных чтений нужен только PostgreSQL.
func (a *App) openStore(ctx context.Context) (Store, service.IncidentCache, error) {
	cfg, log := a.Config, a.Logger
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("Using in-memory store, state is lost on restart")
		return repository.NewMemoryStore(), nil, nil
	}

	if err := RunMigrations(cfg, log); err != nil {
		return nil, nil, err
	}
	dbpool, err := postgres.NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	a.closers = append(a.closers, dbpool.Close)
	log.Info("Successfully connected to PostgreSQL")

	return repository.NewPostgresStore(dbpool), repository.NewIncidentCache(a.Redis), nil
}

// RunMigrations применяет миграции из каталога migrations
func RunMigrations(cfg *config.Config, log *logrus.Logger) error {
	log.Info("Running database migrations...")

	migrationURL := cfg.DatabaseURL
	if !strings.HasPrefix(migrationURL, "pgx5://") {
		migrationURL = strings.Replace(migrationURL, "postgres://", "pgx5://", 1)
	}

	m, err := migrate.New("file://migrations", migrationURL)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Info("Database migrations applied successfully")
	return nil
}

// openChain подключается к сети или, без CHAIN_RPC_URL, использует клиент разработки
func openChain(ctx context.Context, cfg *config.Config, log *logrus.Logger) (tracker.ChainClient, error) {
	if cfg.ChainRPCURL == "" {
		log.Warn("CHAIN_RPC_URL is not set, using development chain client")
		return chain.NewDevClient(cfg.ChainPollInterval * 2), nil
	}
	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:        cfg.ChainRPCURL,
		ChainID:       cfg.ChainID,
		PrivateKey:    cfg.ChainPrivateKey,
		Contract:      cfg.VerifierContract,
		Confirmations: cfg.ChainConfirmations,
		GasLimit:      cfg.ChainGasLimit,
	}, log)
	if err != nil {
		return nil, err
	}
	log.WithField("from", client.From().Hex()).Info("Connected to chain")
	return client, nil
}

// openVerifier загружает ключ проверки Groth16. Без ключа привязка не проверяется.
func openVerifier(cfg *config.Config, blobs zk.BlobSource, log *logrus.Logger) (validation.BindingVerifier, error) {
	if cfg.VerifyingKeyPath == "" {
		log.Warn("VERIFYING_KEY_PATH is not set, proofs are accepted without binding verification")
		return zk.InsecureVerifier{}, nil
	}
	vk, err := zk.LoadVerifyingKey(cfg.VerifyingKeyPath)
	if err != nil {
		return nil, err
	}
	return zk.NewGroth16Verifier(vk, blobs, log), nil
}
