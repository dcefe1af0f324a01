package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"momentumwatch/internal/combine"
	"momentumwatch/internal/history"
)

func TestLoad(t *testing.T) {
	yaml := `
gateway:
  host: 10.0.0.5
  ports: [7497]
  client_id: 3
database:
  host: localhost
  port: 5432
  name: momentumwatch
  user: watcher
  password: testpass
scanner:
  scanners: [gain, hot]
filters:
  min_price: 2
  max_price: 15
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Gateway.Host != "10.0.0.5" {
		t.Errorf("Gateway.Host = %q, want %q", cfg.Gateway.Host, "10.0.0.5")
	}
	if cfg.Gateway.ClientID != 3 {
		t.Errorf("Gateway.ClientID = %d, want 3", cfg.Gateway.ClientID)
	}
	if cfg.Database.Host != "localhost" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "localhost")
	}
	if len(cfg.Scanner.Scanners) != 2 || cfg.Scanner.Scanners[0] != "gain" {
		t.Errorf("Scanner.Scanners = %v", cfg.Scanner.Scanners)
	}
	if cfg.Filters.MaxPrice != 15 {
		t.Errorf("Filters.MaxPrice = %g, want 15", cfg.Filters.MaxPrice)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
database:
  host: localhost
  name: momentumwatch
  user: watcher
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
database:
  host: localhost
  name: momentumwatch
  user: watcher
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Gateway.Host != DefaultGatewayHost {
		t.Errorf("Gateway.Host = %q, want default %q", cfg.Gateway.Host, DefaultGatewayHost)
	}
	if len(cfg.Gateway.Ports) != 2 || cfg.Gateway.Ports[0] != 7497 {
		t.Errorf("Gateway.Ports = %v, want default %v", cfg.Gateway.Ports, DefaultGatewayPorts)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Scanner.MarketDataType != DefaultMarketDataType {
		t.Errorf("Scanner.MarketDataType = %d, want default %d", cfg.Scanner.MarketDataType, DefaultMarketDataType)
	}
	if cfg.Filters != combine.DefaultFilters() {
		t.Errorf("Filters = %+v, want defaults", cfg.Filters)
	}
	if cfg.Poller.Interval != DefaultPollInterval {
		t.Errorf("Poller.Interval = %v, want default %v", cfg.Poller.Interval, DefaultPollInterval)
	}
	if cfg.Catalyst.MaxConcurrent != DefaultCatalystConcurrent {
		t.Errorf("Catalyst.MaxConcurrent = %d, want default %d", cfg.Catalyst.MaxConcurrent, DefaultCatalystConcurrent)
	}
	if !cfg.Logging.Console {
		t.Error("Logging.Console should default to true when no file is set")
	}
}

func TestLoadWithDefaults_PartialFiltersKept(t *testing.T) {
	yaml := `
database:
  host: localhost
  name: momentumwatch
  user: watcher
  password: testpass
filters:
  min_price: 0.5
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// A partially specified filter block is taken as-is, not merged with
	// defaults.
	if cfg.Filters.MinPrice != 0.5 {
		t.Errorf("Filters.MinPrice = %g, want 0.5", cfg.Filters.MinPrice)
	}
	if cfg.Filters.MaxPrice != 0 {
		t.Errorf("Filters.MaxPrice = %g, want 0", cfg.Filters.MaxPrice)
	}
}

func validConfig() WatcherConfig {
	cfg := WatcherConfig{
		Database: history.DBConfig{
			Host: "localhost", Name: "momentumwatch",
			User: "watcher", Password: "pass",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*WatcherConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *WatcherConfig) {},
			wantErr: "",
		},
		{
			name:    "missing gateway host",
			mutate:  func(c *WatcherConfig) { c.Gateway.Host = "" },
			wantErr: "gateway.host is required",
		},
		{
			name:    "port out of range",
			mutate:  func(c *WatcherConfig) { c.Gateway.Ports = []int{99999} },
			wantErr: "gateway.ports entry 99999 out of range",
		},
		{
			name:    "missing database password",
			mutate:  func(c *WatcherConfig) { c.Database.Password = "" },
			wantErr: "database.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *WatcherConfig) {
				c.Database.MinConns = 10
				c.Database.MaxConns = 5
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "too many scanner rows",
			mutate:  func(c *WatcherConfig) { c.Scanner.NumberOfRows = 100 },
			wantErr: "scanner.number_of_rows must be between 1 and 50, got 100",
		},
		{
			name:    "blank scanner entry",
			mutate:  func(c *WatcherConfig) { c.Scanner.Scanners = []string{" "} },
			wantErr: "scanner.scanners entries must not be empty",
		},
		{
			name: "inverted price bounds",
			mutate: func(c *WatcherConfig) {
				c.Filters.MinPrice = 10
				c.Filters.MaxPrice = 5
			},
			wantErr: "filters.max_price (5) cannot be below min_price (10)",
		},
		{
			name:    "poll interval too short",
			mutate:  func(c *WatcherConfig) { c.Poller.Interval = 100 * time.Millisecond },
			wantErr: "poller.interval must be >= 1s",
		},
		{
			name:    "bad log level",
			mutate:  func(c *WatcherConfig) { c.Logging.Level = "verbose" },
			wantErr: `logging.level must be debug, info, warn, or error, got "verbose"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
