// Package metrics collects Prometheus metrics for the application and
// exposes them on the router.
//
// The module installs an HTTP middleware that counts requests and observes
// their latency by route pattern, and offers counters that feature modules
// feed: record changes per entity and action, and scheduled job runs.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/modular"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoCodeAlone/portal/modules/chimux"
)

const (
	// Name is the module name
	Name = "metrics"
	// ServiceName is the name the *Module is registered under
	ServiceName = "metrics"
)

// Module owns the Prometheus registry.
type Module struct {
	initial  *Config
	config   *Config
	logger   modular.Logger
	registry *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	recordChanges *prometheus.CounterVec
	jobRuns       *prometheus.CounterVec
}

// NewModule creates a metrics module
func NewModule() *Module {
	return &Module{}
}

// NewModuleWithConfig creates a metrics module whose config section starts
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

// Init builds the registry, installs the HTTP middleware and mounts the
// exposition handler.
func (m *Module) Init(app modular.Application) error {
	m.logger = app.Logger()
	if err := m.config.Validate(); err != nil {
		return fmt.Errorf("metrics module configuration validation failed: %w", err)
	}
	if err := m.buildRegistry(); err != nil {
		return err
	}

	var router *chimux.ChiMuxModule
	if err := app.GetService(chimux.ServiceName, &router); err != nil {
		return fmt.Errorf("metrics: router unavailable: %w", err)
	}
	router.UseProvider(m)
	if m.config.Enabled {
		router.Handle(m.config.Path, m.Handler())
	}

	m.logger.Info("Metrics module initialized", "path", m.config.Path, "exposed", m.config.Enabled)
	return nil
}

func (m *Module) buildRegistry() error {
	ns := m.config.Namespace
	m.registry = prometheus.NewRegistry()
	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})
	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.recordChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "record_changes_total",
		Help:      "Records created, updated or deleted, by entity and action.",
	}, []string{"entity", "action"})
	m.jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "job_runs_total",
		Help:      "Scheduled job runs by job name and outcome.",
	}, []string{"job", "outcome"})

	cs := []prometheus.Collector{m.requests, m.duration, m.recordChanges, m.jobRuns}
	if m.config.RuntimeCollectors {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return fmt.Errorf("registering collector: %w", err)
		}
	}
	return nil
}

func (m *Module) Start(ctx context.Context) error {
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	return nil
}

// Dependencies returns the router module the middleware is installed on.
func (m *Module) Dependencies() []string {
	return []string{chimux.ModuleName}
}

func (m *Module) ProvidesServices() []modular.ServiceProvider {
	return []modular.ServiceProvider{
		{
			Name:        ServiceName,
			Description: "Prometheus registry and application counters",
			Instance:    m,
		},
	}
}

func (m *Module) RequiresServices() []modular.ServiceDependency {
	return []modular.ServiceDependency{
		{Name: chimux.ServiceName, Required: true},
	}
}

// Registry returns the registry all collectors are registered on.
func (m *Module) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Module) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      m,
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Println implements promhttp.Logger.
func (m *Module) Println(v ...any) {
	m.logger.Error("Metrics exposition failed", "error", fmt.Sprint(v...))
}

// RecordChange counts a create, update or delete of an entity.
func (m *Module) RecordChange(entity, action string) {
	m.recordChanges.WithLabelValues(entity, action).Inc()
}

// ObserveJob counts a scheduled job run.
func (m *Module) ObserveJob(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
		if errors.Is(err, context.Canceled) {
			outcome = "cancelled"
		}
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
}

// ProvideMiddleware implements chimux.MiddlewareProvider.
func (m *Module) ProvideMiddleware() []chimux.Middleware {
	return []chimux.Middleware{m.instrument}
}

func (m *Module) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
