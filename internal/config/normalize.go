package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizePayments()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.BaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.BaseURL), "/")
	if c.Storage.ServiceKey == "" {
		if value, ok := os.LookupEnv("AEROMEDIA_STORAGE_KEY"); ok {
			c.Storage.ServiceKey = value
		}
	}
	c.Storage.ServiceKey = strings.TrimSpace(c.Storage.ServiceKey)
	c.Storage.MediaBucket = strings.TrimSpace(c.Storage.MediaBucket)
	if c.Storage.MediaBucket == "" {
		c.Storage.MediaBucket = defaultMediaBucket
	}
	c.Storage.PreviewPrefix = strings.Trim(strings.TrimSpace(c.Storage.PreviewPrefix), "/")
	if c.Storage.PreviewPrefix == "" {
		c.Storage.PreviewPrefix = defaultPreviewPrefix
	}
	if c.Storage.SignedURLTTL <= 0 {
		c.Storage.SignedURLTTL = defaultSignedURLTTL
	}
	if c.Storage.UploadRetries <= 0 {
		c.Storage.UploadRetries = defaultUploadRetries
	}
}

func (c *Config) normalizePayments() {
	c.Payments.BaseURL = strings.TrimRight(strings.TrimSpace(c.Payments.BaseURL), "/")
	if c.Payments.BaseURL == "" {
		c.Payments.BaseURL = defaultPaymentsBaseURL
	}
	if c.Payments.SecretKey == "" {
		if value, ok := os.LookupEnv("AEROMEDIA_PAYMENTS_KEY"); ok {
			c.Payments.SecretKey = value
		}
	}
	c.Payments.SecretKey = strings.TrimSpace(c.Payments.SecretKey)
	if c.Payments.WebhookSecret == "" {
		if value, ok := os.LookupEnv("AEROMEDIA_WEBHOOK_SECRET"); ok {
			c.Payments.WebhookSecret = value
		}
	}
	c.Payments.WebhookSecret = strings.TrimSpace(c.Payments.WebhookSecret)
	c.Payments.Currency = strings.ToLower(strings.TrimSpace(c.Payments.Currency))
	if c.Payments.Currency == "" {
		c.Payments.Currency = defaultPaymentsCurrency
	}
	c.Payments.SuccessURL = strings.TrimSpace(c.Payments.SuccessURL)
	c.Payments.CancelURL = strings.TrimSpace(c.Payments.CancelURL)
	if c.Payments.TimeoutSecs <= 0 {
		c.Payments.TimeoutSecs = defaultPaymentsTimeoutSecs
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
