package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"culturehub-api/internal/bootstrap"
	"culturehub-api/internal/config"
	"culturehub-api/internal/guard"
	"culturehub-api/internal/handler"
	"culturehub-api/internal/logger"
	"culturehub-api/internal/middleware"
	"culturehub-api/internal/router"
	"culturehub-api/internal/service"
)

func main() {
	cfg := config.MustLoad()

	log := logger.Must(cfg.App.LogLevel, cfg.App.IsDevelopment())
	defer log.Sync() //nolint:errcheck

	log.Info("starting CultureHub API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := bootstrap.OpenStore(ctx, cfg.Store, log)
	if err != nil {
		cancel()
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	catalog, err := bootstrap.OpenCatalog(ctx, cfg.Catalog, store, log)
	cancel()
	if err != nil {
		log.Fatal("failed to open catalog", zap.Error(err))
	}
	defer catalog.Close()

	appCache := bootstrap.OpenCache(cfg.Cache, log)
	defer appCache.Close()

	// Services
	now := time.Now
	g := guard.New(cfg.Game.Placeholders)
	catalogService := service.NewCatalogService(catalog, g, appCache, cfg.Catalog.CacheTTL, cfg.Game.MaxCollectRadius, log)
	accountService := service.NewAccountService(store.Accounts(), now, log)
	sessionService := service.NewSessionService(appCache, cfg.Game.SessionTTL, now, log)
	collectorService := service.NewCollectorService(store.Accounts(), catalog, g, cfg.Game.MaxCollectRadius, now, log)
	collectionService := service.NewCollectionService(store.Accounts(), catalogService, now, log)
	tradeService := service.NewTradeService(store, cfg.Game.TradeCodeTTL, now, log)
	reviewService := service.NewReviewService(store, store.Reviews(), store.Accounts(), catalogService, now, log)

	cleanupCfg := service.DefaultCleanupConfig()
	cleanupCfg.Interval = cfg.Game.TradeCodeReapEvery
	cleanup := service.NewCleanupScheduler(store.TradeCodes(), cleanupCfg, now, log)
	cleanup.Start()

	// Handlers
	checks := map[string]handler.Pinger{
		"store":   store,
		"catalog": catalog,
	}
	if pinger, ok := appCache.(handler.Pinger); ok {
		checks["cache"] = pinger
	}

	r := router.New(router.Config{
		Handler:       handler.New(cfg.App.Name, cfg.App.Version, checks),
		AuthHandler:   handler.NewAuthHandler(accountService, sessionService, log),
		UserHandler:   handler.NewUserHandler(accountService, collectorService, collectionService, cfg.Game.CollectRadius, log),
		SiteHandler:   handler.NewSiteHandler(catalogService, cfg.Game.CollectRadius, log),
		TradeHandler:  handler.NewTradeHandler(tradeService, log),
		ReviewHandler: handler.NewReviewHandler(reviewService, log),
		AdminHandler: handler.NewAdminHandler(handler.AdminConfig{
			Store:       store,
			Sites:       catalog,
			Purger:      cleanup,
			StoreType:   cfg.Store.Type,
			CatalogType: cfg.Catalog.Type,
			CacheType:   cfg.Cache.Type,
			Logger:      log,
		}),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
			Sessions: sessionService,
		}),
		AdminKey:       cfg.App.AdminKey,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Address()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}
	cleanup.Stop()

	log.Info("server stopped")
}
