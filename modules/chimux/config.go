package chimux

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidBasePath     = errors.New("base path must start with '/'")
	ErrWildcardCredentials = errors.New("allow_credentials cannot be combined with the '*' origin")
	ErrNegativeCorsMaxAge  = errors.New("max_age must not be negative")
	ErrNegativeTimeout     = errors.New("timeout must not be negative")
)

// ChiMuxConfig holds the configuration for the chimux module.
//
// Example YAML configuration:
//
//	chimux:
//	  allowed_origins:
//	    - "https://portal.example.com"
//	  allow_credentials: true
//	  timeout: 30s
//	  request_logging: true
//
// Cross-origin requests are refused unless allowed_origins lists them; the
// portal screens are same-origin and need no CORS headers.
type ChiMuxConfig struct {
	// AllowedOrigins lists the origins allowed for CORS requests. "*" allows
	// any origin. Empty disables CORS headers.
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" desc:"List of allowed origins for CORS requests." env:"CHIMUX_ALLOWED_ORIGINS"`

	// AllowedMethods lists the HTTP methods announced for CORS requests.
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods" desc:"List of allowed HTTP methods." env:"CHIMUX_ALLOWED_METHODS"`

	// AllowedHeaders lists the request headers announced for CORS requests.
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers" desc:"List of allowed request headers." env:"CHIMUX_ALLOWED_HEADERS"`

	// AllowCredentials allows cookies and authorization headers in CORS requests.
	AllowCredentials bool `yaml:"allow_credentials" json:"allow_credentials" default:"false" desc:"Allow credentials in CORS requests." env:"CHIMUX_ALLOW_CREDENTIALS"`

	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int `yaml:"max_age" json:"max_age" default:"300" desc:"Maximum age for CORS preflight cache in seconds." env:"CHIMUX_MAX_AGE"`

	// Timeout bounds request handling. Zero disables the timeout middleware.
	Timeout time.Duration `yaml:"timeout" json:"timeout" desc:"Default request timeout, 0 disables it." env:"CHIMUX_TIMEOUT"`

	// BasePath mounts every route under a prefix, e.g. "/portal".
	BasePath string `yaml:"basepath" json:"basepath" desc:"A base path prefix for all routes registered through this module." env:"CHIMUX_BASE_PATH"`

	// RequestLogging logs every request through the application logger.
	RequestLogging bool `yaml:"request_logging" json:"request_logging" desc:"Log every request with method, path, status and duration." env:"CHIMUX_REQUEST_LOGGING"`
}

// DefaultConfig returns the router configuration used when nothing is fed.
func DefaultConfig() *ChiMuxConfig {
	return &ChiMuxConfig{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		MaxAge:         300,
		Timeout:        60 * time.Second,
		RequestLogging: true,
	}
}

// Validate implements the modular.ConfigValidator interface.
func (c *ChiMuxConfig) Validate() error {
	if c.BasePath != "" && !strings.HasPrefix(c.BasePath, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidBasePath, c.BasePath)
	}
	c.BasePath = strings.TrimSuffix(c.BasePath, "/")
	if c.MaxAge < 0 {
		return ErrNegativeCorsMaxAge
	}
	if c.Timeout < 0 {
		return ErrNegativeTimeout
	}
	if c.AllowCredentials {
		for _, origin := range c.AllowedOrigins {
			if origin == "*" {
				return ErrWildcardCredentials
			}
		}
	}
	return nil
}
