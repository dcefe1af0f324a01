package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *WatcherConfig) Validate() error {
	if c.Gateway.Host == "" {
		return errors.New("gateway.host is required")
	}
	for _, port := range c.Gateway.Ports {
		if port < 1 || port > 65535 {
			return fmt.Errorf("gateway.ports entry %d out of range", port)
		}
	}
	if c.Gateway.ClientID < 0 {
		return errors.New("gateway.client_id must be >= 0")
	}

	if err := validateDB(c); err != nil {
		return err
	}

	if c.Scanner.NumberOfRows < 1 || c.Scanner.NumberOfRows > 50 {
		return fmt.Errorf("scanner.number_of_rows must be between 1 and 50, got %d", c.Scanner.NumberOfRows)
	}
	for _, name := range c.Scanner.Scanners {
		if strings.TrimSpace(name) == "" {
			return errors.New("scanner.scanners entries must not be empty")
		}
	}

	if c.Filters.MinPrice < 0 || c.Filters.MaxPrice < 0 {
		return errors.New("filters price bounds must be >= 0")
	}
	if c.Filters.MaxPrice > 0 && c.Filters.MaxPrice < c.Filters.MinPrice {
		return fmt.Errorf("filters.max_price (%g) cannot be below min_price (%g)",
			c.Filters.MaxPrice, c.Filters.MinPrice)
	}

	if c.Poller.Interval < time.Second {
		return errors.New("poller.interval must be >= 1s")
	}

	if c.Catalyst.MaxConcurrent < 1 {
		return errors.New("catalyst.max_concurrent must be >= 1")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	return nil
}

func validateDB(c *WatcherConfig) error {
	db := &c.Database
	if db.Host == "" {
		return errors.New("database.host is required")
	}
	if db.Name == "" {
		return errors.New("database.name is required")
	}
	if db.User == "" {
		return errors.New("database.user is required")
	}
	if db.Password == "" {
		return errors.New("database.password is required")
	}
	if db.MaxConns < 1 {
		return errors.New("database.max_conns must be >= 1")
	}
	if db.MinConns < 0 {
		return errors.New("database.min_conns must be >= 0")
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("database.min_conns (%d) cannot exceed max_conns (%d)", db.MinConns, db.MaxConns)
	}
	return nil
}
