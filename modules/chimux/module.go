// Package chimux provides a Chi-based HTTP router module for the modular framework.
//
// The module owns the single chi.Mux of the application. It installs the
// default middleware chain (request IDs, real client IP, request logging,
// panic recovery, timeouts and CORS) and registers the router as a service
// so that feature modules can mount their routes on it during Init.
//
// # Service Registration
//
//   - "router": the *ChiMuxModule, a BasicRouter that honors BasePath
//   - "chi.router": direct access to the underlying Chi router
//
// # Usage
//
//	var router chimux.BasicRouter
//	if err := app.GetService(chimux.ServiceName, &router); err != nil {
//	    return err
//	}
//	router.Route("/projetos", func(r chi.Router) {
//	    r.Get("/", listProjects)
//	})
//
// Modules that contribute middleware implement MiddlewareProvider and pass
// themselves to UseProvider before any route is registered.
package chimux

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/GoCodeAlone/modular"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ModuleName is the unique identifier for the chimux module.
const ModuleName = "chimux"

// ServiceName is the name of the router service provided by this module.
const ServiceName = "router"

// ChiRouterServiceName exposes the raw chi.Router.
const ChiRouterServiceName = "chi.router"

// ChiMuxModule provides HTTP routing functionality using the Chi router library.
type ChiMuxModule struct {
	initial *ChiMuxConfig
	config  *ChiMuxConfig
	router  *chi.Mux
	logger  modular.Logger
}

// NewChiMuxModule creates a new instance of the chimux module.
//
//	app.RegisterModule(chimux.NewChiMuxModule())
func NewChiMuxModule() *ChiMuxModule {
	return &ChiMuxModule{}
}

// NewChiMuxModuleWithConfig creates a chimux module whose config section
// starts from cfg instead of DefaultConfig.
func NewChiMuxModuleWithConfig(cfg *ChiMuxConfig) *ChiMuxModule {
	return &ChiMuxModule{initial: cfg}
}

// Name returns the unique identifier for this module.
func (m *ChiMuxModule) Name() string {
	return ModuleName
}

// RegisterConfig registers the module's configuration structure.
func (m *ChiMuxModule) RegisterConfig(app modular.Application) error {
	m.config = m.initial
	if m.config == nil {
		m.config = DefaultConfig()
	}
	app.RegisterConfigSection(m.Name(), modular.NewStdConfigProvider(m.config))
	app.Logger().Debug("Registered config section", "module", m.Name())
	return nil
}

// Init creates the router and installs the default middleware chain.
func (m *ChiMuxModule) Init(app modular.Application) error {
	m.logger = app.Logger()

	cfg, err := app.GetConfigSection(m.Name())
	if err != nil {
		return fmt.Errorf("failed to get config section '%s': %w", m.Name(), err)
	}
	config, ok := cfg.GetConfig().(*ChiMuxConfig)
	if !ok {
		return fmt.Errorf("chimux: unexpected config type %T", cfg.GetConfig())
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("chimux module configuration validation failed: %w", err)
	}
	m.config = config

	m.initRouter()
	m.logger.Info("Chimux module initialized", "base_path", m.config.BasePath, "cors_origins", m.config.AllowedOrigins)
	return nil
}

// initRouter initializes the chi router with default middleware
func (m *ChiMuxModule) initRouter() {
	m.router = chi.NewRouter()

	m.router.Use(middleware.RequestID)
	m.router.Use(middleware.RealIP)
	if m.config.RequestLogging {
		m.router.Use(m.requestLogger)
	}
	m.router.Use(middleware.Recoverer)
	if m.config.Timeout > 0 {
		m.router.Use(middleware.Timeout(m.config.Timeout))
	}
	if len(m.config.AllowedOrigins) > 0 {
		m.router.Use(m.corsMiddleware())
	}
}

// Start logs the registered routes.
func (m *ChiMuxModule) Start(ctx context.Context) error {
	routes := 0
	_ = chi.Walk(m.router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes++
		m.logger.Debug("Route", "method", method, "pattern", m.config.BasePath+route)
		return nil
	})
	m.logger.Info("Chimux router ready", "routes", routes, "middleware", len(m.router.Middlewares()))
	return nil
}

// Stop is a no-op; the HTTP server module owns the listener.
func (m *ChiMuxModule) Stop(ctx context.Context) error {
	m.logger.Info("Stopping chimux module")
	return nil
}

// ProvidesServices declares services provided by this module.
func (m *ChiMuxModule) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{
			Name:        ServiceName,
			Description: "Chi router honoring the configured base path",
			Instance:    m,
		},
		{
			Name:        ChiRouterServiceName,
			Description: "Full Chi router with Route/Group support",
			Instance:    m.ChiRouter(),
		},
	}
}

// Config returns the active router configuration.
func (m *ChiMuxModule) Config() *ChiMuxConfig {
	return m.config
}

// ChiRouter returns the underlying chi.Router instance
func (m *ChiMuxModule) ChiRouter() chi.Router {
	return m.router
}

// UseProvider appends the middleware of p to the chain. Like Use it must
// be called before routes are registered.
func (m *ChiMuxModule) UseProvider(p MiddlewareProvider) {
	for _, mw := range p.ProvideMiddleware() {
		m.router.Use(mw)
	}
}

func (m *ChiMuxModule) Get(pattern string, handler http.HandlerFunc) {
	m.router.Get(pattern, handler)
}

func (m *ChiMuxModule) Post(pattern string, handler http.HandlerFunc) {
	m.router.Post(pattern, handler)
}

func (m *ChiMuxModule) Put(pattern string, handler http.HandlerFunc) {
	m.router.Put(pattern, handler)
}

func (m *ChiMuxModule) Delete(pattern string, handler http.HandlerFunc) {
	m.router.Delete(pattern, handler)
}

func (m *ChiMuxModule) Patch(pattern string, handler http.HandlerFunc) {
	m.router.Patch(pattern, handler)
}

func (m *ChiMuxModule) Head(pattern string, handler http.HandlerFunc) {
	m.router.Head(pattern, handler)
}

func (m *ChiMuxModule) Options(pattern string, handler http.HandlerFunc) {
	m.router.Options(pattern, handler)
}

func (m *ChiMuxModule) Connect(pattern string, h http.HandlerFunc) {
	m.router.Connect(pattern, h)
}

func (m *ChiMuxModule) Trace(pattern string, h http.HandlerFunc) {
	m.router.Trace(pattern, h)
}

// Mount attaches another http.Handler at the given pattern
func (m *ChiMuxModule) Mount(pattern string, handler http.Handler) {
	m.router.Mount(pattern, handler)
}

// Use appends middleware to the chain
func (m *ChiMuxModule) Use(middlewares ...func(http.Handler) http.Handler) {
	m.router.Use(middlewares...)
}

func (m *ChiMuxModule) Handle(pattern string, handler http.Handler) {
	m.router.Handle(pattern, handler)
}

func (m *ChiMuxModule) HandleFunc(pattern string, handler http.HandlerFunc) {
	m.router.HandleFunc(pattern, handler)
}

func (m *ChiMuxModule) Route(pattern string, fn func(chi.Router)) chi.Router {
	return m.router.Route(pattern, fn)
}

func (m *ChiMuxModule) Group(fn func(chi.Router)) chi.Router {
	return m.router.Group(fn)
}

func (m *ChiMuxModule) With(middlewares ...func(http.Handler) http.Handler) chi.Router {
	return m.router.With(middlewares...)
}

func (m *ChiMuxModule) Method(method, pattern string, h http.Handler) {
	m.router.Method(method, pattern, h)
}

func (m *ChiMuxModule) MethodFunc(method, pattern string, h http.HandlerFunc) {
	m.router.MethodFunc(method, pattern, h)
}

func (m *ChiMuxModule) NotFound(h http.HandlerFunc) {
	m.router.NotFound(h)
}

func (m *ChiMuxModule) MethodNotAllowed(h http.HandlerFunc) {
	m.router.MethodNotAllowed(h)
}

func (m *ChiMuxModule) Routes() []chi.Route {
	return m.router.Routes()
}

func (m *ChiMuxModule) Middlewares() chi.Middlewares {
	return m.router.Middlewares()
}

func (m *ChiMuxModule) Match(rctx *chi.Context, method, path string) bool {
	return m.router.Match(rctx, method, path)
}

func (m *ChiMuxModule) Find(rctx *chi.Context, method, path string) string {
	return m.router.Find(rctx, method, path)
}

// ServeHTTP implements the http.Handler interface to properly handle base path prefixing
func (m *ChiMuxModule) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.config.BasePath == "" {
		m.router.ServeHTTP(w, r)
		return
	}

	if r.URL.Path != m.config.BasePath && !strings.HasPrefix(r.URL.Path, m.config.BasePath+"/") {
		http.NotFound(w, r)
		return
	}

	r2 := new(http.Request)
	*r2 = *r
	r2.URL = new(url.URL)
	*r2.URL = *r.URL
	r2.URL.Path = strings.TrimPrefix(r.URL.Path, m.config.BasePath)
	r2.URL.RawPath = ""
	if r2.URL.Path == "" {
		r2.URL.Path = "/"
	}
	m.router.ServeHTTP(w, r2)
}

// requestLogger logs each request once it completes. Server errors are
// logged at info level, everything else at debug.
func (m *ChiMuxModule) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				m.logger.Info("Request failed", args...)
				return
			}
			m.logger.Debug("Request", args...)
		}()
		next.ServeHTTP(ww, r)
	})
}

// corsMiddleware creates a CORS middleware handler using the module's configuration
func (m *ChiMuxModule) corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !m.originAllowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if len(m.config.AllowedMethods) > 0 {
				h.Set("Access-Control-Allow-Methods", strings.Join(m.config.AllowedMethods, ", "))
			}
			if len(m.config.AllowedHeaders) > 0 {
				h.Set("Access-Control-Allow-Headers", strings.Join(m.config.AllowedHeaders, ", "))
			}
			if m.config.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
			if m.config.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", fmt.Sprintf("%d", m.config.MaxAge))
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *ChiMuxModule) originAllowed(origin string) bool {
	for _, allowed := range m.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
