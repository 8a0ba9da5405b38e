// Command case-engine starts the case-opening economy HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/casebros/case-engine/internal/config"
	"github.com/casebros/case-engine/internal/limiter"
	"github.com/casebros/case-engine/internal/market"
	"github.com/casebros/case-engine/internal/migrate"
	"github.com/casebros/case-engine/internal/promo"
	"github.com/casebros/case-engine/internal/repository/postgres"
	httpserver "github.com/casebros/case-engine/internal/server/http"
	"github.com/casebros/case-engine/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, runs migrations, and starts the HTTP server.
func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.ServerAddr),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}

	// DB pool
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	// Repositories
	db := &postgres.DB{Pool: pool}
	userRepo := postgres.NewUserRepo(db)
	catalogRepo := postgres.NewCatalogRepo(db)
	openRepo := postgres.NewOpenRepo(db)
	inventoryRepo := postgres.NewInventoryRepo(db)
	priceRepo := postgres.NewPriceRepo(db)
	promoRepo := postgres.NewPromoRepo(db)

	lim := limiter.New(pool, 15*time.Minute, 5, 15*time.Minute)

	// Market price resolver over the external fetcher and the DB cache
	fetcher := market.NewSteamClient(10*time.Second, cfg.PriceCurrency, "US")
	resolver := market.NewResolver(fetcher, priceRepo, logger, market.Config{
		Currency:   cfg.PriceCurrency,
		TTL:        cfg.PriceTTL(),
		Attempts:   cfg.PriceAttempts,
		BatchLimit: cfg.PriceBatchLimit,
	})

	// Services
	promos := promo.NewProvider(promoRepo, logger)
	authSvc := service.NewAuthService(userRepo, []byte(cfg.JWTSecret), cfg.AccessTTL(), cfg.StartingGemsCents, lim)
	openSvc := service.NewOpenService(catalogRepo, openRepo, resolver, promos, service.OpenConfig{
		EarnRate:        cfg.EarnRate,
		PerOpenCapCents: cfg.PerOpenCapCents,
		DailyCapCents:   cfg.DailyCapCents,
		StatTrakChance:  cfg.StatTrakChance,
		PriceBehavior:   market.Await,
	}, logger)
	invSvc := service.NewInventoryService(inventoryRepo, cfg.SellRate, logger)
	bonusSvc := service.NewBonusService(userRepo, service.BonusConfig{
		MinCents: cfg.BonusMinCents,
		MaxCents: cfg.BonusMaxCents,
		Cooldown: cfg.BonusCooldown(),
	}, logger)

	app := httpserver.New(authSvc, openSvc, invSvc, bonusSvc, catalogRepo, userRepo, resolver, []byte(cfg.JWTSecret), logger)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.ServerAddr))
		errCh <- srv.ListenAndServe()
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", zap.Error(err))
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}

	logger.Info("shutdown complete")
}
