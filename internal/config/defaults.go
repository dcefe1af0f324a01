package config

import (
	"time"

	"momentumwatch/internal/combine"
)

// Default values for optional configuration fields.
const (
	DefaultGatewayHost        = "127.0.0.1"
	DefaultClientID           = 1
	DefaultDialTimeout        = 2 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second

	DefaultDBPort    = 5432
	DefaultDBSSLMode = "prefer"
	DefaultMaxConns  = 10
	DefaultMinConns  = 2

	DefaultNumberOfRows   = 50
	DefaultAboveVolume    = 100_000
	DefaultMarketDataType = 4 // delayed-frozen

	DefaultPollInterval = 60 * time.Second

	DefaultCatalystConcurrent = 4
	DefaultCheckTimeout       = 10 * time.Second
	DefaultCatalystRetries    = 3
	DefaultRetryBackoff       = 2 * time.Second

	DefaultEnrichTimeout = 15 * time.Second
	DefaultEnrichRetries = 2
	DefaultRatePerSec    = 2.0
	DefaultBurst         = 4
	DefaultNewsCount     = 5

	DefaultLogLevel   = "info"
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 14
)

// DefaultGatewayPorts is tried in order when no ports are configured.
var DefaultGatewayPorts = []int{7497, 7500}

func (c *WatcherConfig) applyDefaults() {
	// Gateway defaults
	if c.Gateway.Host == "" {
		c.Gateway.Host = DefaultGatewayHost
	}
	if len(c.Gateway.Ports) == 0 {
		c.Gateway.Ports = append([]int(nil), DefaultGatewayPorts...)
	}
	if c.Gateway.ClientID == 0 {
		c.Gateway.ClientID = DefaultClientID
	}
	if c.Gateway.DialTimeout == 0 {
		c.Gateway.DialTimeout = DefaultDialTimeout
	}
	if c.Gateway.HandshakeTimeout == 0 {
		c.Gateway.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Gateway.WriteTimeout == 0 {
		c.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if c.Gateway.ReconnectBaseDelay == 0 {
		c.Gateway.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Gateway.ReconnectMaxDelay == 0 {
		c.Gateway.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Scanner defaults
	if c.Scanner.NumberOfRows == 0 {
		c.Scanner.NumberOfRows = DefaultNumberOfRows
	}
	if c.Scanner.AboveVolume == 0 {
		c.Scanner.AboveVolume = DefaultAboveVolume
	}
	if c.Scanner.MarketDataType == 0 {
		c.Scanner.MarketDataType = DefaultMarketDataType
	}

	// Filter defaults: an entirely zero block means unconfigured
	if c.Filters == (combine.Filters{}) {
		c.Filters = combine.DefaultFilters()
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Catalyst defaults
	if c.Catalyst.MaxConcurrent == 0 {
		c.Catalyst.MaxConcurrent = DefaultCatalystConcurrent
	}
	if c.Catalyst.CheckTimeout == 0 {
		c.Catalyst.CheckTimeout = DefaultCheckTimeout
	}
	if c.Catalyst.MaxRetries == 0 {
		c.Catalyst.MaxRetries = DefaultCatalystRetries
	}
	if c.Catalyst.RetryBackoff == 0 {
		c.Catalyst.RetryBackoff = DefaultRetryBackoff
	}

	// Enrichment defaults
	if c.Enrich.Timeout == 0 {
		c.Enrich.Timeout = DefaultEnrichTimeout
	}
	if c.Enrich.MaxRetries == 0 {
		c.Enrich.MaxRetries = DefaultEnrichRetries
	}
	if c.Enrich.RatePerSec == 0 {
		c.Enrich.RatePerSec = DefaultRatePerSec
	}
	if c.Enrich.Burst == 0 {
		c.Enrich.Burst = DefaultBurst
	}
	if c.Enrich.NewsCount == 0 {
		c.Enrich.NewsCount = DefaultNewsCount
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultMaxAgeDays
	}
	if c.Logging.File == "" {
		c.Logging.Console = true
	}
}
