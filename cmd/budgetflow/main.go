package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"budgetflow/internal/amqp"
	"budgetflow/internal/cache"
	"budgetflow/internal/cli"
	"budgetflow/internal/events"
	apphttp "budgetflow/internal/http"
	"budgetflow/internal/log"
	"budgetflow/internal/refresh"
	"budgetflow/internal/services"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	boot := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	logger.Info("Starting budgetflow", "backend", cfg.LedgerBackend, "user", cfg.LedgerUser)

	store, closeStore := cli.InitStore(context.Background(), logger, cfg)
	defer closeStore()

	bus := events.NewBus(64)

	policy, err := refresh.ParseRerunPolicy(cfg.RefreshRerunPolicy)
	if err != nil {
		logger.Error("Invalid refresh rerun policy", log.FieldError, err)
		os.Exit(1)
	}
	coordinator := refresh.NewCoordinator(store, refresh.NewResults(cfg.SummaryCacheSize), refresh.Config{
		Debounce:         cfg.RefreshDebounce,
		MinInterval:      cfg.RefreshMinInterval,
		Rerun:            policy,
		SummaryCacheSize: cfg.SummaryCacheSize,
		Now:              time.Now,
	})

	caches := cache.NewManager()
	caches.Register(coordinator.Results().SummaryCache())
	caches.StartCleanup(10 * time.Minute)

	rollover := services.NewRolloverChecker(bus, cfg.RolloverCheckInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = coordinator.Run(ctx, bus)
	}()

	var amqpClient *amqp.Client
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		amqpClient.WithUser(cfg.LedgerUser)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := amqpClient.ConsumeLedgerEvents(ctx, amqp.Forward(bus)); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Ledger event consumption failed", log.FieldError, err)
			}
		}()
		logger.Info("Consuming ledger events", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - refreshes follow in-process events and manual requests only")
	}

	if err := rollover.Start(ctx); err != nil {
		logger.Error("Failed to start rollover checker", log.FieldError, err)
	}

	// The first run rebuilds the pool so stale entries never survive a restart.
	if err := coordinator.RunNow(ctx, true); err != nil {
		logger.Error("Initial refresh failed", log.FieldError, err)
	}

	var ready apphttp.Pinger
	if p, ok := store.(apphttp.Pinger); ok {
		ready = p
	}
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Aggregates:   refresh.NewReader(store, coordinator.Results(), time.Now),
		Refresher:    coordinator,
		Ready:        ready,
		Logger:       logger.WithComponent(log.ComponentHTTP),
		RefreshLimit: cfg.ManualRefreshPerMinute,
	})

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := rollover.Stop(ctx); err != nil {
			logger.Warn("Rollover checker stop error", log.FieldError, err)
		}
		cancel()
		caches.Stop()
		wg.Wait()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting budgetflow server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
