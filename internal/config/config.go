package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // SNAPSHOT_TZ must resolve in minimal images

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	infisical "github.com/infisical/go-sdk"

	"github.com/web3-frozen/nav-oracle/internal/nav/sources"
)

type Config struct {
	Port           string `default:"8080"`
	DatabaseURL    string `validate:"required"`
	FrontendOrigin string `default:"*"`
	RedisURL       string
	RedisPassword  string
	TelegramToken  string
	TelegramChatID int64 `validate:"required_with=TelegramToken"`

	ZerionAPIKey    string
	DebankAccessKey string
	ZapperAPIKey    string
	SheetsAPIKey    string
	BeaconAPIKey    string
	SpreadsheetID   string

	NavAddress    string
	NavMinAddress string
	DeFiAddresses []string
	ValidatorURL  string
	TickerSymbol  string `default:"ETHUSDT" validate:"alphanum"`

	FetchAttempts     int           `default:"4" validate:"min=1,max=10"`
	FetchBaseDelay    time.Duration `default:"1s" validate:"min=0"`
	FetchTimeout      time.Duration `default:"15s" validate:"gt=0"`
	RunInterval       time.Duration `validate:"min=0"`
	PublishedCacheTTL time.Duration `default:"5m" validate:"gt=0"`
	AlertCooldown     time.Duration `default:"1h" validate:"gt=0"`
	SnapshotTZ        string        `default:"UTC"`

	LayoutFile string
	Layout     Layout
}

// ValidationError lists every problem found in a loaded Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Load builds the Config from struct defaults, the environment, Infisical
// (when credentials are present) and the layout file, then validates it.
func Load() (Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, fmt.Errorf("apply defaults: %w", err)
	}

	var problems []string
	str := func(key string, target *string) {
		*target = envOr(key, *target)
	}
	str("PORT", &cfg.Port)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("FRONTEND_ORIGIN", &cfg.FrontendOrigin)
	str("REDIS_URL", &cfg.RedisURL)
	str("REDIS_PASSWORD", &cfg.RedisPassword)
	str("TELEGRAM_BOT_TOKEN", &cfg.TelegramToken)
	str("ZERION_API_KEY", &cfg.ZerionAPIKey)
	str("DEBANK_ACCESS_KEY", &cfg.DebankAccessKey)
	str("ZAPPER_API_KEY", &cfg.ZapperAPIKey)
	str("SHEETS_API_KEY", &cfg.SheetsAPIKey)
	str("BEACON_API_KEY", &cfg.BeaconAPIKey)
	str("SPREADSHEET_ID", &cfg.SpreadsheetID)
	str("NAV_ADDRESS", &cfg.NavAddress)
	str("NAV_MIN_ADDRESS", &cfg.NavMinAddress)
	str("VALIDATOR_URL", &cfg.ValidatorURL)
	str("ETH_TICKER_SYMBOL", &cfg.TickerSymbol)
	str("SNAPSHOT_TZ", &cfg.SnapshotTZ)
	str("LAYOUT_FILE", &cfg.LayoutFile)
	cfg.DeFiAddresses = envList("DEFI_ADDRESSES", cfg.DeFiAddresses)

	if err := envInt64("TELEGRAM_CHAT_ID", &cfg.TelegramChatID); err != nil {
		problems = append(problems, err.Error())
	}
	if err := envInt("FETCH_ATTEMPTS", &cfg.FetchAttempts); err != nil {
		problems = append(problems, err.Error())
	}
	for key, target := range map[string]*time.Duration{
		"FETCH_BASE_DELAY":    &cfg.FetchBaseDelay,
		"FETCH_TIMEOUT":       &cfg.FetchTimeout,
		"RUN_INTERVAL":        &cfg.RunInterval,
		"PUBLISHED_CACHE_TTL": &cfg.PublishedCacheTTL,
		"ALERT_COOLDOWN":      &cfg.AlertCooldown,
	} {
		if err := envDuration(key, target); err != nil {
			problems = append(problems, err.Error())
		}
	}

	// If Infisical credentials are available, fetch missing secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	if cfg.LayoutFile != "" {
		layout, err := LoadLayout(cfg.LayoutFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Layout = layout
	} else {
		cfg.Layout = DefaultLayout()
	}

	if len(problems) > 0 {
		return Config{}, &ValidationError{Problems: problems}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks struct tags, the layout, the snapshot time zone and the
// validator identifier.
func (c Config) Validate() error {
	var problems []string
	if err := validator.New().Struct(c); err != nil {
		problems = append(problems, describe(err)...)
	}
	if _, err := time.LoadLocation(c.SnapshotTZ); err != nil {
		problems = append(problems, fmt.Sprintf("SnapshotTZ: unknown time zone %q", c.SnapshotTZ))
	}
	if c.ValidatorURL != "" {
		if _, err := sources.ValidatorID(c.ValidatorURL); err != nil {
			problems = append(problems, fmt.Sprintf("ValidatorURL: %v", err))
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Location returns the snapshot time zone. Validate guarantees it loads.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SnapshotTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MinAddress is the address used for the mandatory-only NAV.
func (c Config) MinAddress() string {
	if c.NavMinAddress != "" {
		return c.NavMinAddress
	}
	return c.NavAddress
}

func describe(err error) []string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			out = append(out, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return out
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL",
		"http://infisical-infisical-standalone-infisical.infisical.svc.cluster.local:8080")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	for key, target := range secretTargets(cfg) {
		if *target != "" {
			continue // env var already set, skip
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"DATABASE_URL":       &cfg.DatabaseURL,
		"REDIS_PASSWORD":     &cfg.RedisPassword,
		"TELEGRAM_BOT_TOKEN": &cfg.TelegramToken,
		"ZERION_API_KEY":     &cfg.ZerionAPIKey,
		"DEBANK_ACCESS_KEY":  &cfg.DebankAccessKey,
		"ZAPPER_API_KEY":     &cfg.ZapperAPIKey,
		"SHEETS_API_KEY":     &cfg.SheetsAPIKey,
		"BEACON_API_KEY":     &cfg.BeaconAPIKey,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, target *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: not an integer: %q", key, v)
	}
	*target = n
	return nil
}

func envInt64(key string, target *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: not an integer: %q", key, v)
	}
	*target = n
	return nil
}

func envDuration(key string, target *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: not a duration: %q", key, v)
	}
	*target = d
	return nil
}
