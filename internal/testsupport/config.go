package testsupport

import (
	"path/filepath"
	"testing"

	"aeromedia/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Payments.SecretKey = "sk_test_local"
	cfg.Payments.WebhookSecret = "whsec_test_local"
	cfg.Payments.SuccessURL = "https://example.test/success?session_id={CHECKOUT_SESSION_ID}"
	cfg.Payments.CancelURL = "https://example.test/cancel"
	cfg.Storage.BaseURL = "https://storage.test"
	cfg.Storage.ServiceKey = "storage-test-key"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithStorageBaseURL points the storage client at a test server.
func WithStorageBaseURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Storage.BaseURL = url
	}
}

// WithPaymentsBaseURL points the payments client at a test server.
func WithPaymentsBaseURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.Payments.BaseURL = url
	}
}

// WithAPIToken sets the admin bearer token on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(c *config.Config) {
		c.Paths.APIToken = token
	}
}
