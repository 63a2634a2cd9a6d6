package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnv = []string{
	"PORT", "DATABASE_URL", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "FRONTEND_ORIGIN",
	"REDIS_URL", "REDIS_PASSWORD", "INFISICAL_CLIENT_ID", "INFISICAL_CLIENT_SECRET",
	"ZERION_API_KEY", "DEBANK_ACCESS_KEY", "ZAPPER_API_KEY", "SHEETS_API_KEY", "BEACON_API_KEY",
	"SPREADSHEET_ID", "NAV_ADDRESS", "NAV_MIN_ADDRESS", "DEFI_ADDRESSES", "VALIDATOR_URL",
	"ETH_TICKER_SYMBOL", "FETCH_ATTEMPTS", "FETCH_BASE_DELAY", "FETCH_TIMEOUT", "RUN_INTERVAL",
	"PUBLISHED_CACHE_TTL", "ALERT_COOLDOWN", "SNAPSHOT_TZ", "LAYOUT_FILE",
	"FUND_YIELD_ADDRESS", "FUND_ASSETS_ADDRESS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnv {
		t.Setenv(k, "")
	}
}

func TestEnvOr(t *testing.T) {
	// Unset key returns fallback
	os.Unsetenv("TEST_ENVOR_KEY")
	if got := envOr("TEST_ENVOR_KEY", "default"); got != "default" {
		t.Errorf("envOr unset key = %q, want %q", got, "default")
	}

	// Set key returns value
	t.Setenv("TEST_ENVOR_KEY", "custom")
	if got := envOr("TEST_ENVOR_KEY", "default"); got != "custom" {
		t.Errorf("envOr set key = %q, want %q", got, "custom")
	}

	// Empty string returns fallback
	t.Setenv("TEST_ENVOR_KEY", "")
	if got := envOr("TEST_ENVOR_KEY", "fallback"); got != "fallback" {
		t.Errorf("envOr empty key = %q, want %q", got, "fallback")
	}
}

func TestEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " 0xa, ,0xb ,")
	got := envList("TEST_LIST", nil)
	if len(got) != 2 || got[0] != "0xa" || got[1] != "0xb" {
		t.Errorf("envList = %v, want [0xa 0xb]", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "sqlite:nav.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.FrontendOrigin != "*" {
		t.Errorf("FrontendOrigin = %q, want %q", cfg.FrontendOrigin, "*")
	}
	if cfg.TickerSymbol != "ETHUSDT" {
		t.Errorf("TickerSymbol = %q, want ETHUSDT", cfg.TickerSymbol)
	}
	if cfg.FetchAttempts != 4 || cfg.FetchBaseDelay != time.Second || cfg.FetchTimeout != 15*time.Second {
		t.Errorf("fetch policy = %d/%v/%v, want 4/1s/15s", cfg.FetchAttempts, cfg.FetchBaseDelay, cfg.FetchTimeout)
	}
	if cfg.RunInterval != 0 {
		t.Errorf("RunInterval = %v, want 0", cfg.RunInterval)
	}
	if cfg.PublishedCacheTTL != 5*time.Minute {
		t.Errorf("PublishedCacheTTL = %v, want 5m", cfg.PublishedCacheTTL)
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location = %v, want UTC", cfg.Location())
	}
	if cfg.Layout.Published.Range != "Token!C6" {
		t.Errorf("published range = %q", cfg.Layout.Published.Range)
	}
	if len(cfg.Layout.Funds) != 0 {
		t.Errorf("funds = %v, want none without addresses", cfg.Layout.Funds)
	}
	if len(cfg.Layout.Snapshot.Ranges) != 3 {
		t.Errorf("snapshot ranges = %v", cfg.Layout.Snapshot.Ranges)
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/nav")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")
	t.Setenv("NAV_ADDRESS", "0xnav")
	t.Setenv("DEFI_ADDRESSES", "0x1,0x2")
	t.Setenv("FETCH_ATTEMPTS", "6")
	t.Setenv("RUN_INTERVAL", "15m")
	t.Setenv("SNAPSHOT_TZ", "Europe/Madrid")
	t.Setenv("FUND_ASSETS_ADDRESS", "0xassets")
	t.Setenv("VALIDATOR_URL", "https://beaconcha.in/validator/4242")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.DatabaseURL != "postgres://localhost/nav" {
		t.Errorf("Port/DatabaseURL = %q/%q", cfg.Port, cfg.DatabaseURL)
	}
	if cfg.TelegramChatID != -100123 {
		t.Errorf("TelegramChatID = %d", cfg.TelegramChatID)
	}
	if cfg.MinAddress() != "0xnav" {
		t.Errorf("MinAddress = %q, want fallback to NAV_ADDRESS", cfg.MinAddress())
	}
	if len(cfg.DeFiAddresses) != 2 {
		t.Errorf("DeFiAddresses = %v", cfg.DeFiAddresses)
	}
	if cfg.FetchAttempts != 6 || cfg.RunInterval != 15*time.Minute {
		t.Errorf("FetchAttempts/RunInterval = %d/%v", cfg.FetchAttempts, cfg.RunInterval)
	}
	if cfg.Location().String() != "Europe/Madrid" {
		t.Errorf("Location = %v", cfg.Location())
	}
	if len(cfg.Layout.Funds) != 1 || cfg.Layout.Funds[0].RecordID != "bck_assets_2" {
		t.Errorf("funds = %+v", cfg.Layout.Funds)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing database", map[string]string{}, "DatabaseURL"},
		{"chat id required with token", map[string]string{"DATABASE_URL": "x", "TELEGRAM_BOT_TOKEN": "tok"}, "TelegramChatID"},
		{"bad duration", map[string]string{"DATABASE_URL": "x", "FETCH_TIMEOUT": "soon"}, "FETCH_TIMEOUT"},
		{"attempts out of range", map[string]string{"DATABASE_URL": "x", "FETCH_ATTEMPTS": "0"}, "FetchAttempts"},
		{"bad time zone", map[string]string{"DATABASE_URL": "x", "SNAPSHOT_TZ": "Mars/Olympus"}, "SnapshotTZ"},
		{"bad symbol", map[string]string{"DATABASE_URL": "x", "ETH_TICKER_SYMBOL": "ETH-USDT"}, "TickerSymbol"},
		{"validator url without id", map[string]string{"DATABASE_URL": "x", "VALIDATOR_URL": "https://beaconcha.in/dashboard"}, "ValidatorURL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Load error = %v, want *ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadLayoutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	yml := `
funds:
  - id: 3
    name: yield
    address: "0xyield"
    record_id: cm2uauagx000109tiw2seaoiao
    addend_range: "NAV Yield!D10"
validator:
  record_id: eth2_rec
mirrors:
  - range: "Clients!E6"
    record_id: BLCA_10005
snapshot:
  fund_id: 5
  ranges:
    - range: "Token!C7"
    - range: "Token!C12"
      label: c12
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	l, err := LoadLayout(path)
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	if len(l.Funds) != 1 || l.Funds[0].AddendRange != "NAV Yield!D10" {
		t.Errorf("funds = %+v", l.Funds)
	}
	if l.Validator.RecordID != "eth2_rec" || l.Validator.Label != "ETH2" || l.Validator.FundID != 2 {
		t.Errorf("validator = %+v, want overridden record and default label/fund", l.Validator)
	}
	if l.Nav.RecordID != "nav_total" || l.Nav.Label != "NAV" {
		t.Errorf("nav = %+v, want defaults", l.Nav)
	}
	if l.Snapshot.FundID != 5 || l.Snapshot.Ranges[0].Label != "Token!C7" || l.Snapshot.Ranges[1].Label != "c12" {
		t.Errorf("snapshot = %+v", l.Snapshot)
	}
	if l.Published.Range != "Token!C6" {
		t.Errorf("published = %+v", l.Published)
	}
}

func TestLayoutFileValidated(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("funds:\n  - id: 1\n    name: x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DATABASE_URL", "x")
	t.Setenv("LAYOUT_FILE", path)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "Address") {
		t.Errorf("Load error = %v, want missing fund address", err)
	}
}

func TestLoadLayoutMissingFile(t *testing.T) {
	if _, err := LoadLayout(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing layout file")
	}
}
