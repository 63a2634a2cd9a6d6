package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/web3-frozen/nav-oracle/internal/app"
	"github.com/web3-frozen/nav-oracle/internal/config"
	"github.com/web3-frozen/nav-oracle/internal/handler"
	"github.com/web3-frozen/nav-oracle/internal/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis retries up to 30s for ExternalSecret to sync
	a, err := app.New(ctx, cfg, logger, app.Options{RedisAttempts: 6, RedisRetryDelay: 5 * time.Second})
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	if a.Bot == nil {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, run alerts disabled")
	}

	go a.Engine.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.CORS(cfg.FrontendOrigin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", handler.Health())
	r.Get("/readyz", handler.Ready(a.Store))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/full", handler.RunFull(a.Engine, logger))
		r.Get("/midnight", handler.RunSnapshot(a.Engine, logger))
		r.Get("/token", handler.Token(a.Engine, logger))
		r.Get("/nav", handler.NavMin(a.Engine, logger))
		r.Get("/nav/full", handler.NavFull(a.Engine, logger))
	})
	r.Get("/api/stats", handler.Stats(a.Engine))

	// Full runs wait on every upstream, retries included.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "sources", a.Engine.SourceIDs())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gracefully")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
