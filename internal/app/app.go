// Package app wires configuration into a running engine. It is shared by
// the HTTP server and navctl.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/web3-frozen/nav-oracle/internal/cache"
	"github.com/web3-frozen/nav-oracle/internal/config"
	"github.com/web3-frozen/nav-oracle/internal/fetch"
	"github.com/web3-frozen/nav-oracle/internal/nav"
	"github.com/web3-frozen/nav-oracle/internal/store"
	"github.com/web3-frozen/nav-oracle/internal/telegram"
)

// Options tunes start-up behaviour that differs between the long-running
// server and one-shot commands.
type Options struct {
	RedisAttempts   int
	RedisRetryDelay time.Duration
}

// App holds the long-lived dependencies. Cache and Bot are nil when not
// configured.
type App struct {
	Config config.Config
	Store  store.Backend
	Cache  *cache.Cache
	Bot    *telegram.Bot
	Engine *nav.Engine
}

// New connects the store and cache, migrates the schema and builds the
// engine.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*App, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database connected and migrated")

	a := &App{Config: cfg, Store: db}

	if cfg.RedisURL != "" {
		a.Cache, err = connectRedis(ctx, cfg, logger, opts)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("redis connected for cache, run lock and alert dedup")
	}

	client := fetch.New(fetch.Policy{
		Attempts:  cfg.FetchAttempts,
		BaseDelay: cfg.FetchBaseDelay,
		Timeout:   cfg.FetchTimeout,
	})

	var alertFn nav.AlertFunc
	if cfg.TelegramToken != "" {
		a.Bot = telegram.NewBot(cfg.TelegramToken, cfg.TelegramChatID, client)
		alertFn = a.Bot.Alert
	}

	// Assigning a nil *cache.Cache to the interface would make it non-nil.
	var c nav.Cache
	if a.Cache != nil {
		c = a.Cache
	}
	a.Engine = nav.NewEngine(Settings(cfg, client), db, c, logger, alertFn)
	return a, nil
}

// connectRedis retries while the secret holding the password syncs.
func connectRedis(ctx context.Context, cfg config.Config, logger *slog.Logger, opts Options) (*cache.Cache, error) {
	attempts := max(opts.RedisAttempts, 1)
	var lastErr error
	for i := 0; i < attempts; i++ {
		c, err := cache.New(cfg.RedisURL, cfg.RedisPassword)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		logger.Warn("redis not ready, retrying...", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RedisRetryDelay):
		}
	}
	return nil, fmt.Errorf("connect redis after %d attempts: %w", attempts, lastErr)
}

func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	a.Store.Close()
}
