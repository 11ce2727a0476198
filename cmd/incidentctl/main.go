package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Dankishon/prtc-mvp-back/internal/app"
	"github.com/Dankishon/prtc-mvp-back/internal/config"
	"github.com/Dankishon/prtc-mvp-back/pkg/logger"
)

// openApp подключается к тем же хранилищу и Redis, что и сервер. Фоновые воркеры не запускаются:
// результаты команд обрабатывает сервер.
func openApp(ctx context.Context) (*session, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("STORE_DRIVER=memory: changes are not visible to the server process")
	}

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return &session{
		service: application.Service,
		store:   application.Store,
		logger:  log,
		close:   application.Close,
	}, nil
}

func main() {
	if err := newRootCmd(openApp, os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
