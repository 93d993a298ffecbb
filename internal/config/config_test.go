package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ModeSimulated, cfg.Mode)
	assert.True(t, cfg.IsSimulated())
	assert.False(t, cfg.AssistantConfigured())
	assert.False(t, cfg.BillingConfigured())
}

func TestLoadConfigRejectsUnknownMode(t *testing.T) {
	t.Setenv("APP_MODE", "staging")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigLiveModeRequiresFirebase(t *testing.T) {
	t.Setenv("APP_MODE", ModeLive)
	_, err := LoadConfig()
	require.Error(t, err)

	t.Setenv("FIREBASE_PROJECT_ID", "tarot-oracle")
	_, err = LoadConfig()
	require.Error(t, err, "credentials are still missing")

	t.Setenv("FIREBASE_SERVICE_ACCOUNT_JSON_BASE64", "e30=")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsSimulated())
	assert.Equal(t, "tarot-oracle", cfg.FirebaseProjectID)
}

func TestBillingConfigured(t *testing.T) {
	cfg := &Config{StripeSecretKey: "sk_test_x"}
	assert.False(t, cfg.BillingConfigured(), "webhook secret is required too")
	cfg.StripeWebhookSecret = "whsec_x"
	assert.True(t, cfg.BillingConfigured())
}
