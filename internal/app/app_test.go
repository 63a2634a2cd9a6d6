package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3-frozen/nav-oracle/internal/config"
	"github.com/web3-frozen/nav-oracle/internal/fetch"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		DatabaseURL:       "sqlite:" + filepath.Join(t.TempDir(), "nav.db"),
		TickerSymbol:      "ETHUSDT",
		FetchAttempts:     1,
		FetchTimeout:      time.Second,
		PublishedCacheTTL: time.Minute,
		AlertCooldown:     time.Hour,
		SnapshotTZ:        "UTC",
		Layout:            config.DefaultLayout(),
	}
	return cfg
}

func TestSettingsEmptyConfig(t *testing.T) {
	cfg := baseConfig(t)
	s := Settings(cfg, fetch.New(fetch.DefaultPolicy()))

	assert.Empty(t, s.Funds)
	assert.Nil(t, s.Validator)
	assert.Nil(t, s.Price)
	assert.Nil(t, s.NavSource)
	assert.Nil(t, s.NavMinSource)
	assert.Nil(t, s.DeFi)
	assert.Empty(t, s.Mirrors, "mirrors need a spreadsheet")
	assert.Empty(t, s.Snapshot)
	assert.Nil(t, s.Published)
	assert.Equal(t, "nav_total", s.Nav.RecordID)
}

func TestSettingsFullConfig(t *testing.T) {
	cfg := baseConfig(t)
	cfg.SpreadsheetID = "sheet-1"
	cfg.NavAddress = "0xnav"
	cfg.NavMinAddress = "0xmin"
	cfg.DeFiAddresses = []string{"0xa", "0xb"}
	cfg.ValidatorURL = "https://beaconcha.in/validator/4242"
	cfg.Layout.Funds = []config.FundLayout{
		{ID: 3, Name: "yield", Address: "0xy", RecordID: "yield_rec", AddendRange: "NAV Yield!D10"},
		{ID: 2, Name: "assets", Address: "0xz", RecordID: "bck_assets_2"},
	}

	s := Settings(cfg, fetch.New(fetch.DefaultPolicy()))

	require.Len(t, s.Funds, 2)
	assert.Equal(t, "zerion:yield", s.Funds[0].Source.ID())
	require.NotNil(t, s.Funds[0].Addend)
	assert.Equal(t, "sheet:NAV Yield!D10", s.Funds[0].Addend.ID())
	assert.Nil(t, s.Funds[1].Addend)

	require.NotNil(t, s.Validator)
	assert.Equal(t, "bck_assets_2_ETH2", s.Validator.RecordID)
	assert.Equal(t, "ETH2", s.Validator.Label)
	assert.Equal(t, "binance:ETHUSDT", s.Price.ID())

	assert.Equal(t, "debank", s.NavSource.ID())
	assert.NotNil(t, s.NavMinSource)
	assert.Equal(t, "zapper", s.DeFi.ID())

	assert.Len(t, s.Mirrors, 2)
	assert.Len(t, s.Snapshot, 3)
	assert.Equal(t, "Token!C7", s.Snapshot[0].Label)
	assert.Equal(t, "sheet:Token!C6", s.Published.ID())
}

func TestNewWithSQLiteAndRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.TelegramToken = "tok"
	cfg.TelegramChatID = 42

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, logger, Options{RedisAttempts: 1})
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Cache)
	assert.NotNil(t, a.Bot)
	assert.NotNil(t, a.Engine)
	require.NoError(t, a.Store.Ping(context.Background()))
}

func TestNewRedisUnreachable(t *testing.T) {
	cfg := baseConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := New(context.Background(), cfg, logger, Options{RedisAttempts: 2, RedisRetryDelay: time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
}
