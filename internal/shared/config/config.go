package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// ProviderConfig holds the payment-provider account API settings.
type ProviderConfig struct {
	APIURL        string
	APIKey        string
	WebhookSecret string
	RefreshURL    string // where the hosted onboarding flow sends expired links
	ReturnURL     string // where the hosted onboarding flow returns to
	CallTimeout   time.Duration
}

// IdentityConfig holds the hosted auth backend settings.
type IdentityConfig struct {
	APIURL     string
	ServiceKey string
}

// TelegramConfig holds the moderator review channel settings.
type TelegramConfig struct {
	Enabled      bool
	BotToken     string
	ChannelID    int64
	ModeratorIDs []int64
}

// PayoutConfig holds the fixed payout policy constants.
type PayoutConfig struct {
	Minimum       decimal.Decimal
	WithdrawalFee decimal.Decimal
}

// SyncConfig holds the provider retry policy knobs.
type SyncConfig struct {
	RetryInitialBackoff time.Duration
	RetryMaxAttempts    int
}

// Config holds all configuration for the application.
type Config struct {
	AppEnv         string
	DatabaseURL    string
	HTTPListenAddr string
	AnalyticsCron  string
	Provider       ProviderConfig
	Identity       IdentityConfig
	Telegram       TelegramConfig
	Payout         PayoutConfig
	Sync           SyncConfig
}

// bindings maps viper keys to the environment variables that feed them.
var bindings = map[string]string{
	"app.env":                  "APP_ENV",
	"database.url":             "DATABASE_URL",
	"http.listen_addr":         "HTTP_LISTEN_ADDR",
	"analytics.cron":           "ANALYTICS_CRON",
	"provider.api_url":         "PROVIDER_API_URL",
	"provider.api_key":         "PROVIDER_API_KEY",
	"provider.webhook_secret":  "PROVIDER_WEBHOOK_SECRET",
	"provider.refresh_url":     "PROVIDER_REFRESH_URL",
	"provider.return_url":      "PROVIDER_RETURN_URL",
	"provider.call_timeout_s":  "PROVIDER_CALL_TIMEOUT_S",
	"identity.api_url":         "IDENTITY_API_URL",
	"identity.service_key":     "IDENTITY_SERVICE_KEY",
	"telegram.bot_token":       "TELEGRAM_BOT_TOKEN",
	"telegram.channel_id":      "TELEGRAM_REVIEW_CHANNEL_ID",
	"telegram.moderator_ids":   "TELEGRAM_MODERATOR_IDS",
	"payout.minimum":           "PAYOUT_MINIMUM",
	"payout.withdrawal_fee":    "PAYOUT_WITHDRAWAL_FEE",
	"sync.retry_initial_ms":    "SYNC_RETRY_INITIAL_MS",
	"sync.retry_max_attempts":  "SYNC_RETRY_MAX_ATTEMPTS",
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env into the process environment first. A missing file is fine
	// in production where real env vars are set.
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	for key, env := range bindings {
		if err := viper.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", key, err)
		}
	}

	viper.SetDefault("app.env", "dev")
	viper.SetDefault("http.listen_addr", "127.0.0.1:8080")
	viper.SetDefault("analytics.cron", "@hourly")
	viper.SetDefault("provider.call_timeout_s", 10)
	viper.SetDefault("payout.minimum", "10.00")
	viper.SetDefault("payout.withdrawal_fee", "2.50")
	viper.SetDefault("sync.retry_initial_ms", 500)
	viper.SetDefault("sync.retry_max_attempts", 3)

	minimum, err := decimal.NewFromString(viper.GetString("payout.minimum"))
	if err != nil {
		return nil, fmt.Errorf("PAYOUT_MINIMUM is not a valid decimal: %w", err)
	}
	fee, err := decimal.NewFromString(viper.GetString("payout.withdrawal_fee"))
	if err != nil {
		return nil, fmt.Errorf("PAYOUT_WITHDRAWAL_FEE is not a valid decimal: %w", err)
	}

	moderatorIDs, err := parseIDList(viper.GetString("telegram.moderator_ids"))
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_MODERATOR_IDS is not a comma-separated id list: %w", err)
	}

	cfg := Config{
		AppEnv:         viper.GetString("app.env"),
		DatabaseURL:    viper.GetString("database.url"),
		HTTPListenAddr: viper.GetString("http.listen_addr"),
		AnalyticsCron:  viper.GetString("analytics.cron"),
		Provider: ProviderConfig{
			APIURL:        viper.GetString("provider.api_url"),
			APIKey:        viper.GetString("provider.api_key"),
			WebhookSecret: viper.GetString("provider.webhook_secret"),
			RefreshURL:    viper.GetString("provider.refresh_url"),
			ReturnURL:     viper.GetString("provider.return_url"),
			CallTimeout:   time.Duration(viper.GetInt("provider.call_timeout_s")) * time.Second,
		},
		Identity: IdentityConfig{
			APIURL:     viper.GetString("identity.api_url"),
			ServiceKey: viper.GetString("identity.service_key"),
		},
		Telegram: TelegramConfig{
			Enabled:      viper.GetString("telegram.bot_token") != "",
			BotToken:     viper.GetString("telegram.bot_token"),
			ChannelID:    viper.GetInt64("telegram.channel_id"),
			ModeratorIDs: moderatorIDs,
		},
		Payout: PayoutConfig{
			Minimum:       minimum,
			WithdrawalFee: fee,
		},
		Sync: SyncConfig{
			RetryInitialBackoff: time.Duration(viper.GetInt("sync.retry_initial_ms")) * time.Millisecond,
			RetryMaxAttempts:    viper.GetInt("sync.retry_max_attempts"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set in environment or .env file")
	}
	if cfg.Provider.APIURL == "" {
		return nil, errors.New("PROVIDER_API_URL is not set in environment or .env file")
	}
	if cfg.Payout.Minimum.Cmp(decimal.Zero) <= 0 {
		return nil, errors.New("PAYOUT_MINIMUM must be positive")
	}
	if cfg.Payout.WithdrawalFee.Cmp(decimal.Zero) < 0 {
		return nil, errors.New("PAYOUT_WITHDRAWAL_FEE must not be negative")
	}
	if cfg.Telegram.Enabled && cfg.Telegram.ChannelID == 0 {
		return nil, errors.New("TELEGRAM_REVIEW_CHANNEL_ID must be set when a bot token is configured")
	}
	// The retry count feeds an unsigned max-tries knob downstream; zero or
	// negative values must never reach it.
	if cfg.Sync.RetryMaxAttempts < 1 {
		return nil, errors.New("SYNC_RETRY_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.Sync.RetryInitialBackoff < 0 {
		return nil, errors.New("SYNC_RETRY_INITIAL_MS must not be negative")
	}

	return &cfg, nil
}

func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
