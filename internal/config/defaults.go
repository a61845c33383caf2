package config

const (
	defaultDataDir             = "~/.local/share/aeromedia/data"
	defaultLogDir              = "~/.local/share/aeromedia/logs"
	defaultAPIBind             = "127.0.0.1:8320"
	defaultMediaBucket         = "aeromedia"
	defaultPreviewPrefix       = "previews"
	defaultSignedURLTTL        = 3600
	defaultUploadRetries       = 5
	defaultPaymentsBaseURL     = "https://api.stripe.com/v1"
	defaultPaymentsCurrency    = "usd"
	defaultPaymentsTimeoutSecs = 30
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Storage: Storage{
			MediaBucket:   defaultMediaBucket,
			PreviewPrefix: defaultPreviewPrefix,
			SignedURLTTL:  defaultSignedURLTTL,
			UploadRetries: defaultUploadRetries,
		},
		Payments: Payments{
			BaseURL:     defaultPaymentsBaseURL,
			Currency:    defaultPaymentsCurrency,
			TimeoutSecs: defaultPaymentsTimeoutSecs,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Purchases:      true,
			Refunds:        true,
			Uploads:        true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
