// internal/config/normalize.go
package config

// Defaults match the bench device and the BLE ATT minimum payload.
const (
	DefaultDiscoverTimeoutS = 10
	DefaultConnectTimeoutS  = 10
	DefaultLengthSize       = 2
	DefaultCheck            = "crc16"
	DefaultMaxChunkSize     = 20
	DefaultTimeoutMs        = 3000
	DefaultRetryLimit       = 2
	DefaultRetryBackoffMs   = 100
	DefaultPollIntervalS    = 30
)

// Normalize fills zero values with defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Device.DiscoverTimeoutS == 0 {
		cfg.Device.DiscoverTimeoutS = DefaultDiscoverTimeoutS
	}
	if cfg.Device.ConnectTimeoutS == 0 {
		cfg.Device.ConnectTimeoutS = DefaultConnectTimeoutS
	}

	if cfg.Frame.LengthSize == 0 {
		cfg.Frame.LengthSize = DefaultLengthSize
	}
	if cfg.Frame.Check == "" {
		cfg.Frame.Check = DefaultCheck
	}
	if cfg.Frame.MaxChunkSize == 0 {
		cfg.Frame.MaxChunkSize = DefaultMaxChunkSize
	}

	if cfg.Request.TimeoutMs == 0 {
		cfg.Request.TimeoutMs = DefaultTimeoutMs
	}
	if cfg.Request.RetryLimit == 0 {
		cfg.Request.RetryLimit = DefaultRetryLimit
	}
	if cfg.Request.RetryBackoffMs == 0 {
		cfg.Request.RetryBackoffMs = DefaultRetryBackoffMs
	}

	if cfg.Poll.IntervalS == 0 {
		cfg.Poll.IntervalS = DefaultPollIntervalS
	}
}
