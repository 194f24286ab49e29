// Package auth provides password hashing, server-side login sessions and
// bearer tokens for API clients.
package auth

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/portal/modules/database"
)

const (
	// ServiceName is the name the auth service is registered under
	ServiceName = "auth"
	// Name is the module name
	Name = "auth"
)

const ephemeralSecretWarning = "No JWT secret configured, generated an ephemeral one; API tokens will not survive restarts"

// Module wires the auth Service into a modular application.
type Module struct {
	initial *Config
	config  *Config
	service *Service
	redis   *RedisSessionStore
	logger  modular.Logger
}

// NewModule creates a new auth module
func NewModule() *Module {
	return &Module{}
}

// NewModuleWithConfig creates an auth module whose config section starts
// from cfg instead of DefaultConfig.
func NewModuleWithConfig(cfg *Config) *Module {
	return &Module{initial: cfg}
}

func (m *Module) Name() string {
	return Name
}

func (m *Module) RegisterConfig(app modular.Application) error {
	m.config = m.initial
	if m.config == nil {
		m.config = DefaultConfig()
	}
	app.RegisterConfigSection(m.Name(), modular.NewStdConfigProvider(m.config))
	return nil
}

func (m *Module) Init(app modular.Application) error {
	m.logger = app.Logger()

	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("auth module configuration validation failed: %w", err)
	}

	if m.config.JWT.Secret == "" {
		secret, err := GenerateSecret()
		if err != nil {
			return err
		}
		m.config.JWT.Secret = secret
		m.logger.Warn(ephemeralSecretWarning)
	}
	if m.config.AutoLoginUser != "" {
		m.logger.Warn("Auto-login is enabled, anonymous requests act as a fixed user", "login", m.config.AutoLoginUser)
	}

	store, err := m.buildSessionStore(app)
	if err != nil {
		return err
	}
	m.service = NewService(m.config, store)

	m.logger.Info("Authentication module initialized", "module", m.Name(), "session_store", m.config.Session.Store)
	return nil
}

func (m *Module) buildSessionStore(app modular.Application) (SessionStore, error) {
	switch m.config.Session.Store {
	case StoreRedis:
		m.redis = NewRedisSessionStore(NewRedisClient(m.config.Redis), m.config.Redis.KeyPrefix)
		return m.redis, nil
	case StoreDatabase:
		var db database.DatabaseService
		if err := app.GetService(database.ServiceName, &db); err != nil || db == nil || db.DB() == nil {
			return nil, ErrDatabaseUnavailable
		}
		store := NewSQLSessionStore(db.DB())
		if err := store.EnsureSchema(context.Background()); err != nil {
			return nil, err
		}
		return store, nil
	default:
		return NewMemorySessionStore(), nil
	}
}

func (m *Module) Start(ctx context.Context) error {
	if m.redis != nil {
		if err := m.redis.Ping(ctx); err != nil {
			return fmt.Errorf("auth session store unavailable: %w", err)
		}
	}
	m.logger.Info("Authentication module started", "module", m.Name())
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.logger.Warn("Closing redis session store failed", "error", err)
		}
	}
	m.logger.Info("Authentication module stopped", "module", m.Name())
	return nil
}

// Dependencies returns the database module, which backs the default
// session store.
func (m *Module) Dependencies() []string {
	return []string{database.Name}
}

func (m *Module) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{
			Name:        ServiceName,
			Description: "Authentication service providing passwords, sessions and API tokens",
			Instance:    m.service,
		},
	}
}

func (m *Module) RequiresServices() []modular.ServiceDependency {
	return []modular.ServiceDependency{
		{Name: database.ServiceName, Required: false},
	}
}

// Service returns the initialized auth service.
func (m *Module) Service() *Service {
	return m.service
}
