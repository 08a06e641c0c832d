// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Frame   FrameConfig   `yaml:"frame"`
	Request RequestConfig `yaml:"request"`
	Poll    PollConfig    `yaml:"poll"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	// Address of the appliance. Empty means discover by service UUID.
	Address          string `yaml:"address"`
	DiscoverTimeoutS int    `yaml:"discover_timeout_s"`
	ConnectTimeoutS  int    `yaml:"connect_timeout_s"`
}

// ---- FRAME LAYOUT ----

// FrameConfig fixes the device-specific wire field widths.
type FrameConfig struct {
	LengthSize   int    `yaml:"length_size"`    // 1 or 2
	Check        string `yaml:"check"`          // "crc16" or "sum8"
	MaxChunkSize int    `yaml:"max_chunk_size"` // bytes per write/notification
}

// ---- REQUEST ----

type RequestConfig struct {
	TimeoutMs      int `yaml:"timeout_ms"`
	RetryLimit     int `yaml:"retry_limit"`
	RetryBackoffMs int `yaml:"retry_backoff_ms"`
}

// ---- POLL ----

type PollConfig struct {
	IntervalS int `yaml:"interval_s"`
}

// Load reads and decodes a YAML config file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}
