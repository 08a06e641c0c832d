// internal/config/validate.go
package config

import "fmt"

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration. Zero values mean "use default" and are
// filled in by Normalize afterwards.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}

	// ------------------------------------------------------------
	// FRAME LAYOUT
	// ------------------------------------------------------------

	switch cfg.Frame.LengthSize {
	case 0, 1, 2:
	default:
		return fmt.Errorf("config: frame.length_size must be 1 or 2, got %d", cfg.Frame.LengthSize)
	}

	switch cfg.Frame.Check {
	case "", "crc16", "sum8":
	default:
		return fmt.Errorf("config: frame.check must be %q or %q, got %q", "crc16", "sum8", cfg.Frame.Check)
	}

	if cfg.Frame.MaxChunkSize < 0 {
		return fmt.Errorf("config: frame.max_chunk_size must not be negative")
	}

	// ------------------------------------------------------------
	// TIMINGS
	// ------------------------------------------------------------

	if cfg.Device.DiscoverTimeoutS < 0 {
		return fmt.Errorf("config: device.discover_timeout_s must not be negative")
	}
	if cfg.Device.ConnectTimeoutS < 0 {
		return fmt.Errorf("config: device.connect_timeout_s must not be negative")
	}
	if cfg.Request.TimeoutMs < 0 {
		return fmt.Errorf("config: request.timeout_ms must not be negative")
	}
	if cfg.Request.RetryLimit < 0 {
		return fmt.Errorf("config: request.retry_limit must not be negative")
	}
	if cfg.Request.RetryBackoffMs < 0 {
		return fmt.Errorf("config: request.retry_backoff_ms must not be negative")
	}
	if cfg.Poll.IntervalS < 0 {
		return fmt.Errorf("config: poll.interval_s must not be negative")
	}

	return nil
}
