// Package portal is the project management portal: projects, incidents,
// tasks, users and profiles behind an HTML interface and a small JSON API.
//
// The package is a modular module. It depends on the database, auth,
// chimux, scheduler and metrics modules and registers:
//
//   - ServiceName: the *Service with the business operations
//   - StoreServiceName: the *store.Store repositories
//   - EventsServiceName: the *Events change publisher
package portal

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/portal/internal/portal/store"
	"github.com/GoCodeAlone/portal/modules/auth"
	"github.com/GoCodeAlone/portal/modules/chimux"
	"github.com/GoCodeAlone/portal/modules/database"
	"github.com/GoCodeAlone/portal/modules/metrics"
	"github.com/GoCodeAlone/portal/modules/scheduler"
)

const (
	// Name is the module name
	Name = "portal"
	// ServiceName is the name the *Service is registered under
	ServiceName = "portal.service"
	// StoreServiceName is the name the *store.Store is registered under
	StoreServiceName = "portal.store"
	// EventsServiceName is the name the *Events is registered under
	EventsServiceName = "portal.events"
)

// Module wires the portal into a modular application.
type Module struct {
	initial *Config
	config  *Config
	logger  modular.Logger

	store   *store.Store
	events  *Events
	service *Service
}

// NewModule creates the portal module
func NewModule() *Module {
	return &Module{}
}

// NewModuleWithConfig creates a portal module whose config section starts
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

// Init builds the store and service, registers the routes and schedules the
// housekeeping jobs.
func (m *Module) Init(app modular.Application) error {
	m.logger = app.Logger()
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("portal module configuration validation failed: %w", err)
	}
	loc, err := m.config.Location()
	if err != nil {
		return err
	}

	var (
		db      database.DatabaseService
		manager *database.Module
		authSvc *auth.Service
		router  *chimux.ChiMuxModule
		sched   *scheduler.SchedulerModule
		mtr     *metrics.Module
	)
	if err := app.GetService(database.ServiceName, &db); err != nil {
		return fmt.Errorf("portal: database unavailable: %w", err)
	}
	if err := app.GetService(database.ManagerServiceName, &manager); err != nil {
		return fmt.Errorf("portal: database manager unavailable: %w", err)
	}
	if err := app.GetService(auth.ServiceName, &authSvc); err != nil {
		return fmt.Errorf("portal: auth unavailable: %w", err)
	}
	if err := app.GetService(chimux.ServiceName, &router); err != nil {
		return fmt.Errorf("portal: router unavailable: %w", err)
	}
	if err := app.GetService(scheduler.ServiceName, &sched); err != nil {
		return fmt.Errorf("portal: scheduler unavailable: %w", err)
	}
	if err := app.GetService(metrics.ServiceName, &mtr); err != nil {
		return fmt.Errorf("portal: metrics unavailable: %w", err)
	}

	m.store = store.New(db.DB(), loc)
	m.events = NewEvents(m.store.Activity, mtr, m.logger)
	m.service = NewService(db, m.store, authSvc, m.events, m.config, m.logger)
	authSvc.SetEventEmitter(m.events)
	db.SetEventEmitter(m.events)

	h, err := newHandlers(m.service, authSvc, manager, m.config, router.Config().BasePath, m.logger)
	if err != nil {
		return fmt.Errorf("portal: %w", err)
	}
	h.routes(router.ChiRouter())

	hk := &housekeeping{svc: m.service, auth: authSvc, observer: mtr, logger: m.logger}
	if err := hk.schedule(sched, m.config); err != nil {
		return fmt.Errorf("portal: scheduling housekeeping: %w", err)
	}

	m.logger.Info("Portal module initialized", "timezone", loc.String())
	return nil
}

// Start migrates the schema and ensures the built-in profiles and, when a
// password is configured, the admin user.
func (m *Module) Start(ctx context.Context) error {
	if err := m.service.Bootstrap(ctx); err != nil {
		return fmt.Errorf("portal bootstrap failed: %w", err)
	}
	m.logger.Info("Portal module started")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Portal module stopped")
	return nil
}

func (m *Module) Dependencies() []string {
	return []string{database.Name, auth.Name, chimux.ModuleName, scheduler.ModuleName, metrics.Name}
}

func (m *Module) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{Name: ServiceName, Description: "Portal business operations", Instance: m.service},
		{Name: StoreServiceName, Description: "Portal repositories", Instance: m.store},
		{Name: EventsServiceName, Description: "Portal change event publisher", Instance: m.events},
	}
}

func (m *Module) RequiresServices() []modular.ServiceDependency {
	return []modular.ServiceDependency{
		{Name: database.ServiceName, Required: true},
		{Name: database.ManagerServiceName, Required: true},
		{Name: auth.ServiceName, Required: true},
		{Name: chimux.ServiceName, Required: true},
		{Name: scheduler.ServiceName, Required: true},
		{Name: metrics.ServiceName, Required: true},
	}
}

// Service returns the initialized portal service.
func (m *Module) Service() *Service {
	return m.service
}
