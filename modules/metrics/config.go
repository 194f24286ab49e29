package metrics

import (
	"errors"
	"strings"
)

var ErrInvalidPath = errors.New("metrics path must start with '/'")

// Config holds the metrics module settings.
type Config struct {
	// Enabled exposes the registry over HTTP. Collection always happens.
	Enabled bool `yaml:"enabled" json:"enabled" env:"METRICS_ENABLED" desc:"Expose Prometheus metrics over HTTP"`

	// Path is where the exposition handler is mounted.
	Path string `yaml:"path" json:"path" default:"/metrics" env:"METRICS_PATH"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" json:"namespace" default:"portal"`

	// RuntimeCollectors adds the Go runtime and process collectors.
	RuntimeCollectors bool `yaml:"runtime_collectors" json:"runtime_collectors"`
}

// DefaultConfig returns the metrics configuration used when nothing is fed.
func DefaultConfig() *Config {
	return &Config{
		Enabled:           true,
		Path:              "/metrics",
		Namespace:         "portal",
		RuntimeCollectors: true,
	}
}

// Validate implements modular.ConfigValidator.
func (c *Config) Validate() error {
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Path, "/") {
		return ErrInvalidPath
	}
	return nil
}
