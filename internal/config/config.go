// Package config loads, defaults, and validates the watcher's YAML
// configuration.
package config

import (
	"time"

	"momentumwatch/internal/combine"
	"momentumwatch/internal/history"
)

// WatcherConfig is the root configuration for a watcher instance.
type WatcherConfig struct {
	Gateway  GatewayConfig    `yaml:"gateway"`
	Database history.DBConfig `yaml:"database"`
	Scanner  ScannerConfig    `yaml:"scanner"`
	Filters  combine.Filters  `yaml:"filters"`
	Poller   PollerConfig     `yaml:"poller"`
	Catalyst CatalystConfig   `yaml:"catalyst"`
	Enrich   EnrichConfig     `yaml:"enrich"`
	Logging  LoggingConfig    `yaml:"logging"`
}

// GatewayConfig holds brokerage gateway connection settings.
type GatewayConfig struct {
	Host     string `yaml:"host"`
	Ports    []int  `yaml:"ports"` // Tried in order; first handshake wins
	ClientID int    `yaml:"client_id"`

	DialTimeout      time.Duration `yaml:"dial_timeout"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`

	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnects      int           `yaml:"max_reconnects"` // 0 = retry forever
}

// ScannerConfig holds scanner subscription settings. An empty Scanners list
// subscribes to every alert scanner.
type ScannerConfig struct {
	Scanners       []string `yaml:"scanners"` // Scan codes or aliases
	NumberOfRows   int      `yaml:"number_of_rows"`
	AboveVolume    int64    `yaml:"above_volume"`
	MarketDataType int      `yaml:"market_data_type"`
}

// PollerConfig holds poll cycle settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// CatalystConfig holds confirmation pipeline settings.
type CatalystConfig struct {
	MaxConcurrent int           `yaml:"max_concurrent"`
	CheckTimeout  time.Duration `yaml:"check_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"`
}

// EnrichConfig holds news/profile enrichment client settings.
type EnrichConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RatePerSec float64       `yaml:"rate_per_sec"`
	Burst      int           `yaml:"burst"`
	NewsCount  int           `yaml:"news_count"`
}

// LoggingConfig holds log output settings. File rotation applies when File
// is set.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Console    bool   `yaml:"console"`
}
