package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tradeflowafrica/tradeflow/internal/config"
	"github.com/tradeflowafrica/tradeflow/internal/engine"
	"github.com/tradeflowafrica/tradeflow/internal/handler"
	"github.com/tradeflowafrica/tradeflow/internal/rail"
	"github.com/tradeflowafrica/tradeflow/internal/rate"
	"github.com/tradeflowafrica/tradeflow/internal/registry"
	"github.com/tradeflowafrica/tradeflow/internal/service"
	"github.com/tradeflowafrica/tradeflow/internal/settlement"
	"github.com/tradeflowafrica/tradeflow/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Set up slog logger with configured level.
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Instantiate stores.
	intentStore := store.NewIntentStore()
	matchStore := store.NewMatchStore()
	caseStore := store.NewCaseStore()
	ledgerStore := store.NewLedgerStore()
	eventLog := store.NewEventLog()
	webhookStore := store.NewWebhookStore()

	// Registry and expiry sweeper.
	reg := registry.New(intentStore, matchStore, ledgerStore, eventLog, logger)
	sweeper := registry.NewSweeper(cfg.SweepInterval, reg, logger)

	// Rate provider: live er-api feed when a URL is configured, fixed
	// dev rates otherwise. Cached either way so one validity window sees
	// one rate.
	var rates rate.Provider
	if cfg.RateURL != "" {
		rates = rate.NewERAPIProvider(cfg.RateURL, cfg.RateTTL, cfg.RateTimeout)
	} else {
		rates = rate.NewFixedProvider(cfg.RateTTL)
	}
	rates = rate.NewCachedProvider(rates)

	// Settlement rails: real adapters when configured, stubs otherwise.
	var ngnRail rail.ReversibleRail = rail.NewStubRail("ngn")
	if cfg.ProvidusURL != "" {
		ngnRail = rail.NewProvidusRail(cfg.ProvidusURL, cfg.ProvidusClientID, cfg.ProvidusClientSecret, cfg.RailTimeout)
	}
	var cnyRail rail.Rail = rail.NewStubRail("cny")
	if cfg.CIPSURL != "" {
		cnyRail = rail.NewCIPSRail(cfg.CIPSURL, cfg.CIPSAPIKey, cfg.CIPSMerchantID, cfg.RailTimeout)
	}

	// Settlement orchestrator.
	orch := settlement.New(
		settlement.Config{
			Workers:             cfg.SettlementWorkers,
			MaxSubmitAttempts:   cfg.MaxSubmitAttempts,
			MaxPollAttempts:     cfg.MaxPollAttempts,
			PollInitialInterval: cfg.PollInitialInterval,
			PollMaxInterval:     cfg.PollMaxInterval,
			ReversalMaxInterval: cfg.ReversalMaxInterval,
		},
		caseStore, reg, ngnRail, cnyRail, nil, eventLog, logger,
	)

	// Matching engine.
	eng := engine.New(engine.NewPairLock(), reg, rates, orch, logger)

	// Services.
	intentSvc := service.NewIntentService(reg, rates)
	webhookSvc := service.NewWebhookService(webhookStore, eventLog, cfg.WebhookTimeout, logger)

	// Router.
	router := handler.NewRouter(intentSvc, webhookSvc, eng, orch, matchStore, ledgerStore, rates, logger)

	// Start background goroutines with a cancellable context.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweeper.Start(ctx)
	orch.Start(ctx)
	go webhookSvc.Run(ctx, cfg.SweepInterval)

	// Configure HTTP server.
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Start HTTP server in a goroutine.
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for SIGINT/SIGTERM.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown signal received", slog.String("signal", sig.String()))

	// Graceful shutdown: stop HTTP server, then the background workers.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	orch.Wait()

	logger.Info("server stopped")
}
