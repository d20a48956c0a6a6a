package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/maxpower-app/wallet-backend/internal/api"
	"github.com/maxpower-app/wallet-backend/internal/api/middleware"
	"github.com/maxpower-app/wallet-backend/internal/config"
	"github.com/maxpower-app/wallet-backend/internal/domain"
	"github.com/maxpower-app/wallet-backend/internal/idempotency"
	"github.com/maxpower-app/wallet-backend/internal/observability"
	"github.com/maxpower-app/wallet-backend/internal/referral"
	"github.com/maxpower-app/wallet-backend/internal/service"
	"github.com/maxpower-app/wallet-backend/internal/store"
	"github.com/maxpower-app/wallet-backend/internal/worker"
)

// Run bootstraps the HTTP server and backlog worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, redisClient, cleanup, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var idemStore *idempotency.Store
	if redisClient != nil {
		idemStore = idempotency.NewStore(redisClient, cfg.IdempotencyTTL)
	} else {
		logger.Warn("no redis client, idempotency protection disabled", zap.String("driver", cfg.StoreDriver))
	}

	tiers, err := domain.ParseTierTable(cfg.ReferralTiers)
	if err != nil {
		return fmt.Errorf("parse referral tiers: %w", err)
	}
	resolver := referral.NewResolver(cfg.TerminatorCodes)
	engine := referral.NewEngine(tiers)

	accountSvc := service.NewAccountService(st, resolver)
	ledgerSvc := service.NewLedgerService(st)
	walletSvc := service.NewWalletService(st, accountSvc, resolver, cfg.ActivationFee)
	settlementSvc := service.NewSettlementService(st, ledgerSvc, accountSvc, resolver, engine)
	creditSvc := service.NewCreditService(st, accountSvc)
	settingsSvc := service.NewSettingsService(st)

	backlogWorker := worker.NewBacklogWorker(ledgerSvc).WithInterval(cfg.BacklogInterval)
	stopWorker := backlogWorker.Run(ctx)
	logger.Info("backlog worker started", zap.Duration("interval", cfg.BacklogInterval))

	router := api.NewRouter(cfg, logger, st, api.Services{
		Accounts:   accountSvc,
		Ledger:     ledgerSvc,
		Wallet:     walletSvc,
		Settlement: settlementSvc,
		Credit:     creditSvc,
		Settings:   settingsSvc,
	}, idemStore)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("store_driver", cfg.StoreDriver),
		)
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping backlog worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// newStore opens the configured record store driver. The redis client is
// returned separately because the idempotency layer shares it.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, *redis.Client, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverRedis:
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return store.NewRedis(client), client, func() { client.Close() }, nil

	case config.StoreDriverPostgres:
		pool, err := store.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect database: %w", err)
		}
		cleanup := func() { pool.Close() }

		// Idempotency still rides on redis when it is reachable.
		client, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			zap.L().Warn("redis unavailable, idempotency protection disabled", zap.Error(err))
			return store.NewPostgres(pool), nil, cleanup, nil
		}
		return store.NewPostgres(pool), client, func() { client.Close(); pool.Close() }, nil

	case config.StoreDriverMemory:
		return store.NewMemory(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
