package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Config represents the authentication module configuration
type Config struct {
	JWT      JWTConfig      `yaml:"jwt" json:"jwt"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Password PasswordConfig `yaml:"password" json:"password"`

	// AutoLoginUser, when set, logs every anonymous request in as this
	// login. Intended for local demos only.
	AutoLoginUser string `yaml:"auto_login_user" json:"auto_login_user" env:"AUTH_AUTO_LOGIN_USER" desc:"Login used for anonymous requests (demo only)"`
}

// JWTConfig contains JWT-related configuration
type JWTConfig struct {
	Secret            string        `yaml:"secret" json:"secret" env:"AUTH_JWT_SECRET" desc:"HMAC secret for API tokens"`
	Expiration        time.Duration `yaml:"expiration" json:"expiration" default:"1h"`
	RefreshExpiration time.Duration `yaml:"refresh_expiration" json:"refresh_expiration" default:"168h"`
	Issuer            string        `yaml:"issuer" json:"issuer" default:"portal"`
}

// SessionConfig contains session-related configuration
type SessionConfig struct {
	Store       string        `yaml:"store" json:"store" env:"AUTH_SESSION_STORE" default:"database" desc:"memory, redis or database"`
	CookieName  string        `yaml:"cookie_name" json:"cookie_name" default:"portal_session"`
	MaxAge      time.Duration `yaml:"max_age" json:"max_age" default:"8h"`
	Secure      bool          `yaml:"secure" json:"secure" env:"AUTH_COOKIE_SECURE"`
	HTTPOnly    bool          `yaml:"http_only" json:"http_only" default:"true"`
	SameSite    string        `yaml:"same_site" json:"same_site" default:"lax" desc:"strict, lax or none"`
	Domain      string        `yaml:"domain" json:"domain"`
	Path        string        `yaml:"path" json:"path" default:"/"`
	CleanupCron string        `yaml:"cleanup_cron" json:"cleanup_cron" default:"*/15 * * * *" desc:"Schedule for removing expired sessions"`
}

// RedisConfig configures the redis session store
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr" env:"AUTH_REDIS_ADDR" default:"localhost:6379"`
	Password  string `yaml:"password" json:"password" env:"AUTH_REDIS_PASSWORD"`
	DB        int    `yaml:"db" json:"db"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix" default:"portal:session:"`
}

// PasswordConfig contains password-related configuration
type PasswordConfig struct {
	MinLength      int  `yaml:"min_length" json:"min_length" default:"6"`
	RequireUpper   bool `yaml:"require_upper" json:"require_upper"`
	RequireLower   bool `yaml:"require_lower" json:"require_lower"`
	RequireDigit   bool `yaml:"require_digit" json:"require_digit"`
	RequireSpecial bool `yaml:"require_special" json:"require_special"`
	BcryptCost     int  `yaml:"bcrypt_cost" json:"bcrypt_cost" default:"10"`
}

// Session store kinds
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StoreDatabase = "database"
)

// DefaultConfig returns the configuration used when nothing is fed.
func DefaultConfig() *Config {
	return &Config{
		JWT: JWTConfig{
			Expiration:        time.Hour,
			RefreshExpiration: 7 * 24 * time.Hour,
			Issuer:            "portal",
		},
		Session: SessionConfig{
			Store:       StoreDatabase,
			CookieName:  "portal_session",
			MaxAge:      8 * time.Hour,
			HTTPOnly:    true,
			SameSite:    "lax",
			Path:        "/",
			CleanupCron: "*/15 * * * *",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "portal:session:",
		},
		Password: PasswordConfig{
			MinLength:  6,
			BcryptCost: 10,
		},
	}
}

// Validate validates the authentication configuration
func (c *Config) Validate() error {
	if c.JWT.Expiration <= 0 || c.JWT.RefreshExpiration <= 0 {
		return fmt.Errorf("%w: token expirations must be positive", ErrInvalidConfig)
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("%w: session max_age must be positive", ErrInvalidConfig)
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("%w: session cookie_name is required", ErrInvalidConfig)
	}
	switch c.Session.Store {
	case StoreMemory, StoreRedis, StoreDatabase:
	default:
		return fmt.Errorf("%w: unknown session store %q", ErrInvalidConfig, c.Session.Store)
	}
	if c.Session.Store == StoreRedis && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis addr is required", ErrInvalidConfig)
	}
	if c.Password.MinLength < 1 {
		return fmt.Errorf("%w: password min_length must be at least 1", ErrInvalidConfig)
	}
	if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
		return fmt.Errorf("%w: bcrypt_cost must be between 4 and 31", ErrInvalidConfig)
	}
	return nil
}

func (s SessionConfig) sameSite() http.SameSite {
	switch strings.ToLower(s.SameSite) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
