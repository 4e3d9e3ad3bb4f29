package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/washerhub_test")
	t.Setenv("PROVIDER_API_URL", "https://provider.test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, "@hourly", cfg.AnalyticsCron)
	assert.True(t, cfg.Payout.Minimum.String() == "10")
	assert.Equal(t, 500*time.Millisecond, cfg.Sync.RetryInitialBackoff)
	assert.Equal(t, 3, cfg.Sync.RetryMaxAttempts)
	assert.False(t, cfg.Telegram.Enabled)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PROVIDER_API_URL", "https://provider.test")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_RejectsNonPositiveRetryAttempts(t *testing.T) {
	// A negative count would wrap when converted to the unsigned max-tries
	// knob and retry effectively forever.
	for _, raw := range []string{"0", "-1"} {
		t.Run(raw, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("SYNC_RETRY_MAX_ATTEMPTS", raw)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "SYNC_RETRY_MAX_ATTEMPTS")
		})
	}
}

func TestLoad_RejectsNegativeRetryBackoff(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SYNC_RETRY_INITIAL_MS", "-100")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SYNC_RETRY_INITIAL_MS")
}

func TestLoad_BotTokenDemandsChannel(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_REVIEW_CHANNEL_ID", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEGRAM_REVIEW_CHANNEL_ID")
}
