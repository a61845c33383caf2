package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validatePayments(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.BaseURL != "" {
		if _, err := url.Parse(c.Storage.BaseURL); err != nil {
			return fmt.Errorf("storage.base_url: %w", err)
		}
	}
	if c.Storage.SignedURLTTL <= 0 {
		return errors.New("storage.signed_url_ttl must be positive")
	}
	if c.Storage.UploadRetries <= 0 {
		return errors.New("storage.upload_retries must be positive")
	}
	return nil
}

func (c *Config) validatePayments() error {
	// Keys may be absent in catalog-only deployments; checkout refuses to
	// start without them at request time.
	if len(c.Payments.Currency) != 3 {
		return fmt.Errorf("payments.currency must be a 3-letter code, got %q", c.Payments.Currency)
	}
	if c.Payments.SecretKey != "" {
		if strings.TrimSpace(c.Payments.SuccessURL) == "" {
			return errors.New("payments.success_url must be set when payments.secret_key is configured")
		}
		if strings.TrimSpace(c.Payments.CancelURL) == "" {
			return errors.New("payments.cancel_url must be set when payments.secret_key is configured")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
