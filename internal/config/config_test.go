package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"aeromedia/internal/config"
)

func TestLoadDefaultsExpandPathsAndEnvKeys(t *testing.T) {
	t.Setenv("AEROMEDIA_PAYMENTS_KEY", "sk_test_env")
	t.Setenv("AEROMEDIA_STORAGE_KEY", "storage-env")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "aeromedia", "data")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8320" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Payments.SecretKey != "sk_test_env" {
		t.Fatalf("expected payments key from env, got %q", cfg.Payments.SecretKey)
	}
	if cfg.Storage.ServiceKey != "storage-env" {
		t.Fatalf("expected storage key from env, got %q", cfg.Storage.ServiceKey)
	}
	if cfg.Storage.SignedURLTTL != 3600 {
		t.Fatalf("unexpected signed url ttl: %d", cfg.Storage.SignedURLTTL)
	}
	if cfg.Payments.Currency != "usd" {
		t.Fatalf("unexpected currency: %q", cfg.Payments.Currency)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
	if !strings.HasPrefix(cfg.DatabasePath(), cfg.Paths.DataDir) {
		t.Fatalf("database path %q not under data dir", cfg.DatabasePath())
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	// Env keys from the host must not leak into the parse assertions.
	t.Setenv("AEROMEDIA_PAYMENTS_KEY", "")
	t.Setenv("AEROMEDIA_WEBHOOK_SECRET", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"
api_bind = " 0.0.0.0:9000 "

[storage]
base_url = "https://storage.example.com/"
media_bucket = "flights"

[payments]
secret_key = "sk_test_123"
currency = "EUR"
success_url = "https://example.com/ok?session_id={CHECKOUT_SESSION_ID}"
cancel_url = "https://example.com/cancel"

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("expected api bind trimmed, got %q", cfg.Paths.APIBind)
	}
	if cfg.Storage.BaseURL != "https://storage.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Storage.BaseURL)
	}
	if cfg.Storage.MediaBucket != "flights" {
		t.Fatalf("unexpected bucket: %q", cfg.Storage.MediaBucket)
	}
	if cfg.Payments.Currency != "eur" {
		t.Fatalf("expected currency lowered, got %q", cfg.Payments.Currency)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected logging normalized, got %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "bad currency",
			mutate: func(c *config.Config) { c.Payments.Currency = "dollars" },
			want:   "payments.currency",
		},
		{
			name: "secret without success url",
			mutate: func(c *config.Config) {
				c.Payments.SecretKey = "sk_test"
				c.Payments.SuccessURL = ""
			},
			want: "payments.success_url",
		},
		{
			name:   "bad log format",
			mutate: func(c *config.Config) { c.Logging.Format = "yaml" },
			want:   "logging.format",
		},
		{
			name:   "bad log level",
			mutate: func(c *config.Config) { c.Logging.Level = "trace" },
			want:   "logging.level",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}
