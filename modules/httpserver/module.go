// Package httpserver serves the application's router over HTTP.
//
// Usage:
//
//	app.RegisterModule(chimux.NewChiMuxModule())
//	app.RegisterModule(httpserver.NewHTTPServerModule())
//
// The module resolves the "router" service during Init, binds the listener
// in Start so that bind errors fail startup, and shuts down gracefully in
// Stop within the configured shutdown timeout.
package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/GoCodeAlone/modular"

	"github.com/GoCodeAlone/portal/modules/chimux"
)

// ModuleName is the name of this module for registration and dependency resolution.
const ModuleName = "httpserver"

// ServiceName is the name the module registers itself under.
const ServiceName = "httpserver"

// HTTPServerModule runs an http.Server around the router service.
type HTTPServerModule struct {
	initial  *HTTPServerConfig
	config   *HTTPServerConfig
	server   *http.Server
	listener net.Listener
	logger   modular.Logger
	handler  http.Handler
	done     chan struct{}
	mu       sync.Mutex
	started  bool
}

// Make sure the HTTPServerModule implements the Module interface
var _ modular.Module = (*HTTPServerModule)(nil)

// NewHTTPServerModule creates a new instance of the HTTP server module.
func NewHTTPServerModule() *HTTPServerModule {
	return &HTTPServerModule{}
}

// NewHTTPServerModuleWithConfig creates a server module whose config
// section starts from cfg instead of DefaultConfig.
func NewHTTPServerModuleWithConfig(cfg *HTTPServerConfig) *HTTPServerModule {
	return &HTTPServerModule{initial: cfg}
}

// Name returns the name of the module.
func (m *HTTPServerModule) Name() string {
	return ModuleName
}

// RegisterConfig registers the module's configuration structure.
func (m *HTTPServerModule) RegisterConfig(app modular.Application) error {
	m.config = m.initial
	if m.config == nil {
		m.config = DefaultConfig()
	}
	app.RegisterConfigSection(m.Name(), modular.NewStdConfigProvider(m.config))
	return nil
}

// Init loads the configuration and resolves the router.
func (m *HTTPServerModule) Init(app modular.Application) error {
	m.logger = app.Logger()

	cfg, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	config, ok := cfg.GetConfig().(*HTTPServerConfig)
	if !ok {
		return fmt.Errorf("httpserver: unexpected config type %T", cfg.GetConfig())
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("httpserver module configuration validation failed: %w", err)
	}
	m.config = config

	var router any
	if err := app.GetService(chimux.ServiceName, &router); err != nil {
		return fmt.Errorf("%w: %w", ErrNoHandler, err)
	}
	handler, ok := router.(http.Handler)
	if !ok {
		return fmt.Errorf("%w: %T", ErrRouterServiceNotHandler, router)
	}
	m.handler = handler
	return nil
}

// Start binds the listener and serves requests in the background.
func (m *HTTPServerModule) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler == nil {
		return ErrNoHandler
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", m.config.Address())
	if err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	m.server = &http.Server{
		Handler:      m.handler,
		ReadTimeout:  m.config.ReadTimeout,
		WriteTimeout: m.config.WriteTimeout,
		IdleTimeout:  m.config.IdleTimeout,
	}
	tlsEnabled := m.config.TLS != nil && m.config.TLS.Enabled
	if tlsEnabled {
		m.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	m.listener = listener
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		var err error
		if tlsEnabled {
			err = m.server.ServeTLS(listener, m.config.TLS.CertFile, m.config.TLS.KeyFile)
		} else {
			err = m.server.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.started = true
	m.logger.Info("HTTP server started successfully", "address", listener.Addr().String(), "tls", tlsEnabled)
	return nil
}

// Stop stops the HTTP server gracefully.
func (m *HTTPServerModule) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.server == nil || !m.started {
		return ErrServerNotStarted
	}

	m.logger.Info("Stopping HTTP server", "timeout", m.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(ctx, m.config.ShutdownTimeout)
	defer cancel()

	if err := m.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}
	<-m.done

	m.started = false
	m.logger.Info("HTTP server stopped successfully")
	return nil
}

// Addr returns the bound address once the server has started.
func (m *HTTPServerModule) Addr() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listener == nil {
		return ""
	}
	return m.listener.Addr().String()
}

// Dependencies returns the router module.
func (m *HTTPServerModule) Dependencies() []string {
	return []string{chimux.ModuleName}
}

// ProvidesServices returns the services provided by this module
func (m *HTTPServerModule) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{
			Name:        ServiceName,
			Description: "HTTP server serving the application router",
			Instance:    m,
		},
	}
}

// RequiresServices returns the services required by this module
func (m *HTTPServerModule) RequiresServices() []modular.ServiceDependency {
	return []modular.ServiceDependency{
		{Name: chimux.ServiceName, Required: true},
	}
}
