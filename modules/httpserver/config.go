// Package httpserver provides an HTTP server module for the modular framework.
package httpserver

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidPort    = errors.New("invalid port number")
	ErrMissingTLSFile = errors.New("TLS is enabled but certificate or key file is missing")
)

// HTTPServerConfig defines the configuration for the HTTP server module.
type HTTPServerConfig struct {
	// Host is the hostname or IP address to bind to.
	Host string `yaml:"host" json:"host" default:"0.0.0.0" env:"HTTP_HOST" desc:"Address to bind to"`

	// Port is the port number to listen on. Zero picks a free port.
	Port int `yaml:"port" json:"port" env:"PORT" desc:"Port to listen on"`

	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" default:"30s" desc:"Grace period for in-flight requests on shutdown"`

	// TLS configuration if HTTPS is enabled
	TLS *TLSConfig `yaml:"tls" json:"tls"`
}

// TLSConfig holds the TLS configuration for HTTPS support
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`
}

// DefaultConfig returns the server configuration used when nothing is fed.
func DefaultConfig() *HTTPServerConfig {
	return &HTTPServerConfig{
		Host:            "0.0.0.0",
		Port:            5000,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Validate checks if the configuration is valid and sets default values
// where appropriate.
func (c *HTTPServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.TLS != nil && c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return ErrMissingTLSFile
	}
	return nil
}

// Address returns host:port.
func (c *HTTPServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
