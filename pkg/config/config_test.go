package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.Campaigns.FeeReminderInterval)
	assert.Equal(t, time.Hour, cfg.Campaigns.WelcomeInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.Campaigns.AttendanceFollowupInterval)
	assert.True(t, cfg.Campaigns.DedupeEnabled)
	assert.Equal(t, NotifierConsole, cfg.Notifier.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CAMPAIGN_WELCOME_INTERVAL", "15m")
	t.Setenv("NOTIFIER_DRIVER", "WhatsApp")
	t.Setenv("ALLOWED_ORIGINS", "https://admin.example.com, ,https://coach.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.Campaigns.WelcomeInterval)
	assert.Equal(t, NotifierWhatsApp, cfg.Notifier.Driver)
	assert.Equal(t, []string{"https://admin.example.com", "https://coach.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
