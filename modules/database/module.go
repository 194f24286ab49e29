// Package database manages named database/sql connection pools, schema
// migrations and connection health for a modular application.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/GoCodeAlone/modular"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Module name constant
const Name = "database"

// Service names registered by the module
const (
	ManagerServiceName = "database.manager"
	ServiceName        = "database.service"
)

// Module represents the database module
type Module struct {
	initial     *Config
	config      *Config
	logger      modular.Logger
	connections map[string]*sql.DB
	services    map[string]DatabaseService
}

// NewModule creates a new database module
func NewModule() *Module {
	return &Module{
		connections: make(map[string]*sql.DB),
		services:    make(map[string]DatabaseService),
	}
}

// NewModuleWithConfig creates a database module whose config section starts
// from cfg instead of DefaultConfig. Feeders still apply on top of it.
func NewModuleWithConfig(cfg *Config) *Module {
	m := NewModule()
	m.initial = cfg
	return m
}

// Name returns the name of the module
func (m *Module) Name() string {
	return Name
}

// RegisterConfig registers the module's configuration structure
func (m *Module) RegisterConfig(app modular.Application) error {
	cfg := m.initial
	if cfg == nil {
		cfg = DefaultConfig()
	}
	app.RegisterConfigSection(m.Name(), modular.NewStdConfigProvider(cfg))
	return nil
}

// Init opens every configured connection
func (m *Module) Init(app modular.Application) error {
	provider, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section: %w", err)
	}
	cfg, ok := provider.GetConfig().(*Config)
	if !ok {
		return ErrInvalidConfigType
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid database config: %w", err)
	}

	m.config = cfg
	m.logger = app.Logger()

	if err := m.initializeConnections(); err != nil {
		return fmt.Errorf("failed to initialize database connections: %w", err)
	}
	return nil
}

// Start verifies every connection is still reachable
func (m *Module) Start(ctx context.Context) error {
	for name, db := range m.connections {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("failed to ping database connection '%s': %w", name, err)
		}
	}
	return nil
}

// Stop closes all database services
func (m *Module) Stop(ctx context.Context) error {
	for name, service := range m.services {
		if err := service.Close(); err != nil {
			return fmt.Errorf("failed to close database service '%s': %w", name, err)
		}
		if m.logger != nil {
			m.logger.Debug("Database connection closed", "connection", name)
		}
	}

	m.connections = make(map[string]*sql.DB)
	m.services = make(map[string]DatabaseService)
	return nil
}

// Dependencies returns the names of modules this module depends on
func (m *Module) Dependencies() []string {
	return nil
}

// ProvidesServices declares services provided by this module
func (m *Module) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{
			Name:        ManagerServiceName,
			Description: "Database connection manager",
			Instance:    m,
		},
		{
			Name:        ServiceName,
			Description: "Default database service",
			Instance:    m.GetDefaultService(),
		},
	}
}

// RequiresServices declares services required by this module
func (m *Module) RequiresServices() []modular.ServiceDependency {
	return nil
}

// GetConnection returns a database connection by name
func (m *Module) GetConnection(name string) (*sql.DB, bool) {
	db, exists := m.connections[name]
	return db, exists
}

// GetDefaultConnection returns the default database connection
func (m *Module) GetDefaultConnection() *sql.DB {
	if svc := m.GetDefaultService(); svc != nil {
		return svc.DB()
	}
	return nil
}

// GetConnections returns the sorted names of all connections
func (m *Module) GetConnections() []string {
	connections := make([]string, 0, len(m.connections))
	for name := range m.connections {
		connections = append(connections, name)
	}
	sort.Strings(connections)
	return connections
}

// GetDefaultService returns the service for the default connection, falling
// back to the first connection by name.
func (m *Module) GetDefaultService() DatabaseService {
	if m.config == nil {
		return nil
	}
	if service, exists := m.services[m.config.Default]; exists {
		return service
	}
	for _, name := range m.GetConnections() {
		return m.services[name]
	}
	return nil
}

// GetService returns a database service by name
func (m *Module) GetService(name string) (DatabaseService, bool) {
	service, exists := m.services[name]
	return service, exists
}

func (m *Module) initializeConnections() error {
	for name, connConfig := range m.config.Connections {
		dbService, err := NewDatabaseService(connConfig, m.logger)
		if err != nil {
			return fmt.Errorf("failed to create database service for '%s': %w", name, err)
		}
		if err := dbService.Connect(); err != nil {
			return fmt.Errorf("failed to connect to database '%s': %w", name, err)
		}

		m.connections[name] = dbService.DB()
		m.services[name] = dbService
		if m.logger != nil {
			m.logger.Info("Database connection established", "connection", name, "driver", connConfig.Driver)
		}
	}
	return nil
}
