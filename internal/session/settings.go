package session

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"momentumwatch/internal/combine"
)

// Setting keys accepted by Set.
const (
	KeyGatewayHost  = "gateway_host"
	KeyGatewayPort  = "gateway_port"
	KeyPollInterval = "poll_interval"
	KeyMinPrice     = "min_price"
	KeyMaxPrice     = "max_price"
	KeyMaxFloat     = "max_float"
	KeyMinRVol      = "min_rvol"
	KeyMinChangePct = "min_change_pct"
)

// ConfigError reports a rejected setting change. The prior value stays in
// effect.
type ConfigError struct {
	Key   string
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("setting %s=%q rejected: %v", e.Key, e.Value, e.Cause)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Settings are the operator-adjustable runtime knobs.
type Settings struct {
	mu           sync.RWMutex
	gatewayHost  string
	gatewayPort  int // 0 means try the default port order
	pollInterval time.Duration
	filters      combine.Filters
}

// NewSettings starts from the given filter thresholds and defaults.
func NewSettings(host string, port int, pollInterval time.Duration, filters combine.Filters) *Settings {
	if host == "" {
		host = "127.0.0.1"
	}
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second
	}
	return &Settings{
		gatewayHost:  host,
		gatewayPort:  port,
		pollInterval: pollInterval,
		filters:      filters,
	}
}

// GatewayHost returns the gateway host.
func (s *Settings) GatewayHost() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gatewayHost
}

// GatewayPort returns the pinned gateway port, 0 when unpinned.
func (s *Settings) GatewayPort() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gatewayPort
}

// PollInterval returns the poll cycle interval.
func (s *Settings) PollInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pollInterval
}

// Filters returns the current momentum thresholds.
func (s *Settings) Filters() combine.Filters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters
}

// Set validates and applies one setting. A bad key or value returns a
// ConfigError and leaves the prior value untouched.
func (s *Settings) Set(key, value string) error {
	reject := func(cause error) error {
		return &ConfigError{Key: key, Value: value, Cause: cause}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch key {
	case KeyGatewayHost:
		if value == "" {
			return reject(fmt.Errorf("host must not be empty"))
		}
		s.gatewayHost = value

	case KeyGatewayPort:
		port, err := strconv.Atoi(value)
		if err != nil {
			return reject(err)
		}
		if port < 0 || port > 65535 {
			return reject(fmt.Errorf("port out of range"))
		}
		s.gatewayPort = port

	case KeyPollInterval:
		d, err := time.ParseDuration(value)
		if err != nil {
			return reject(err)
		}
		if d < time.Second {
			return reject(fmt.Errorf("interval below 1s"))
		}
		s.pollInterval = d

	case KeyMinPrice, KeyMaxPrice, KeyMaxFloat, KeyMinRVol, KeyMinChangePct:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return reject(err)
		}
		if f < 0 {
			return reject(fmt.Errorf("must not be negative"))
		}
		switch key {
		case KeyMinPrice:
			s.filters.MinPrice = f
		case KeyMaxPrice:
			s.filters.MaxPrice = f
		case KeyMaxFloat:
			s.filters.MaxFloat = f
		case KeyMinRVol:
			s.filters.MinRVol = f
		case KeyMinChangePct:
			s.filters.MinChangePct = f
		}

	default:
		return reject(fmt.Errorf("unknown setting"))
	}
	return nil
}
