package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilans/internal/backend"
	"bilans/internal/cli"
	apphttp "bilans/internal/http"
	"bilans/internal/log"
	"bilans/internal/metrics"
	"bilans/internal/services"
)

func main() {
	// Bootstrap logger until the configuration is known
	logger := cli.SetupLogger(nil, log.ComponentApp, os.Stdout)
	cli.LoadEnvFile(logger)

	cfg, group := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg, log.ComponentApp, os.Stdout)

	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend)).CreateBackend(initCtx, bc)
	initCancel()
	if err != nil {
		logger.Error("Failed to initialize data backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	rec := metrics.New()
	ledger := services.NewLedgerService(group, result.Ledger, services.WithMetrics(rec))

	srv := apphttp.NewServer(":"+cfg.Port, ledger,
		apphttp.WithMetrics(rec),
		apphttp.WithLogger(logger.WithComponent(log.ComponentHTTP)),
	)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting bilans server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"participants", group.String(),
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
