package database

import (
	"errors"
	"fmt"
)

// DefaultDSN points at a file database next to the binary with foreign keys
// enforced and a busy timeout long enough for the web and CLI to share it.
const DefaultDSN = "file:portal.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

var (
	ErrNoConnections      = errors.New("database config has no connections")
	ErrUnknownDefault     = errors.New("default connection is not defined")
	ErrNegativePoolOption = errors.New("connection pool options cannot be negative")
)

// Config represents database module configuration
type Config struct {
	// Connections contains all defined database connections
	Connections map[string]ConnectionConfig `json:"connections" yaml:"connections" desc:"Named database connections"`

	// Default specifies the name of the default connection
	Default string `json:"default" yaml:"default" default:"default" desc:"Name of the default connection"`

	// URL overrides the DSN of the default connection when set
	URL string `json:"-" yaml:"-" env:"DATABASE_URL"`
}

// ConnectionConfig represents configuration for a single database connection
type ConnectionConfig struct {
	// Driver specifies the database/sql driver name ("sqlite")
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the database connection string
	DSN string `json:"dsn" yaml:"dsn"`

	// MaxOpenConnections sets the maximum number of open connections to the database
	MaxOpenConnections int `json:"max_open_connections" yaml:"max_open_connections"`

	// MaxIdleConnections sets the maximum number of idle connections in the pool
	MaxIdleConnections int `json:"max_idle_connections" yaml:"max_idle_connections"`

	// ConnectionMaxLifetime sets the maximum amount of time a connection may be reused (in seconds)
	ConnectionMaxLifetime int `json:"connection_max_lifetime" yaml:"connection_max_lifetime"`

	// ConnectionMaxIdleTime sets the maximum amount of time a connection may be idle (in seconds)
	ConnectionMaxIdleTime int `json:"connection_max_idle_time" yaml:"connection_max_idle_time"`
}

// DefaultConfig returns a single sqlite connection named "default".
func DefaultConfig() *Config {
	return &Config{
		Default: "default",
		Connections: map[string]ConnectionConfig{
			"default": {
				Driver:             "sqlite",
				DSN:                DefaultDSN,
				MaxOpenConnections: 1,
			},
		},
	}
}

// Validate applies the URL override and checks the pool settings.
func (c *Config) Validate() error {
	if len(c.Connections) == 0 {
		return ErrNoConnections
	}
	if c.Default == "" {
		c.Default = "default"
	}
	conn, ok := c.Connections[c.Default]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDefault, c.Default)
	}
	if c.URL != "" {
		conn.DSN = c.URL
		c.Connections[c.Default] = conn
	}
	for name, cc := range c.Connections {
		if cc.Driver == "" {
			return fmt.Errorf("connection %s: %w", name, ErrMissingDriver)
		}
		if cc.DSN == "" {
			return fmt.Errorf("connection %s: %w", name, ErrMissingDSN)
		}
		if cc.MaxOpenConnections < 0 || cc.MaxIdleConnections < 0 ||
			cc.ConnectionMaxLifetime < 0 || cc.ConnectionMaxIdleTime < 0 {
			return fmt.Errorf("connection %s: %w", name, ErrNegativePoolOption)
		}
	}
	return nil
}
