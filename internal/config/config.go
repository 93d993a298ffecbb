package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Modes for the backend provider selection. Simulated mode runs every
// collaborator (identity, persistence, assistant) against in-process fakes so
// the service works without live credentials.
const (
	ModeLive      = "live"
	ModeSimulated = "simulated"
)

// Config holds all configuration for the application, resolved once at
// startup from the deployment environment.
type Config struct {
	Port    string `mapstructure:"PORT"`
	GinMode string `mapstructure:"GIN_MODE"`
	Mode    string `mapstructure:"APP_MODE"`

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripePriceID       string `mapstructure:"STRIPE_PRICE_ID"`
	CheckoutSuccessURL  string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL   string `mapstructure:"CHECKOUT_CANCEL_URL"`

	ClientURL string `mapstructure:"CLIENT_URL"`
}

// IsSimulated reports whether the simulated backend provider is selected.
func (c *Config) IsSimulated() bool {
	return strings.EqualFold(c.Mode, ModeSimulated)
}

// AssistantConfigured reports whether a live model credential is present.
// Without one the Assistant Bridge degrades to its canned simulated provider
// rather than failing startup.
func (c *Config) AssistantConfigured() bool {
	return c.GeminiAPIKey != ""
}

// BillingConfigured reports whether the Stripe keys needed for the purchase
// flow are present. Without them checkout requests fail with a configuration
// error; entitlement via trial window is unaffected.
func (c *Config) BillingConfigured() bool {
	return c.StripeSecretKey != "" && c.StripeWebhookSecret != ""
}

// LoadConfig loads configuration from a local .env file (if present) and the
// process environment using Viper.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GIN_MODE", "debug")
	viper.SetDefault("APP_MODE", ModeSimulated)
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")

	for _, key := range []string{
		"PORT", "GIN_MODE", "APP_MODE",
		"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
		"GEMINI_API_KEY", "GEMINI_MODEL",
		"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_PRICE_ID",
		"CHECKOUT_SUCCESS_URL", "CHECKOUT_CANCEL_URL",
		"CLIENT_URL",
	} {
		viper.BindEnv(key)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if !strings.EqualFold(cfg.Mode, ModeLive) && !strings.EqualFold(cfg.Mode, ModeSimulated) {
		return nil, errors.New("APP_MODE must be 'live' or 'simulated', got: " + cfg.Mode)
	}

	// Only live mode has hard requirements; everything else degrades.
	if strings.EqualFold(cfg.Mode, ModeLive) {
		if cfg.FirebaseProjectID == "" {
			return nil, errors.New("FIREBASE_PROJECT_ID is required in live mode")
		}
		if cfg.GoogleApplicationCredentials == "" && cfg.FirebaseServiceAccountJSONBase64 == "" {
			return nil, errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required in live mode")
		}
	}

	return &cfg, nil
}
