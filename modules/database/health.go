package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// HealthStatus is the outcome of a connection health check.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthReport describes the health of one database connection.
type HealthReport struct {
	Module    string         `json:"module"`
	Component string         `json:"component"`
	Status    HealthStatus   `json:"status"`
	Message   string         `json:"message"`
	CheckedAt time.Time      `json:"checked_at"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthCheck pings every configured connection and returns one report per
// connection, sorted by connection name.
func (m *Module) HealthCheck(ctx context.Context) ([]HealthReport, error) {
	checkTime := time.Now()

	if len(m.connections) == 0 {
		return []HealthReport{{
			Module:    Name,
			Component: "connections",
			Status:    HealthStatusUnhealthy,
			Message:   "no connections available",
			CheckedAt: checkTime,
			Details:   map[string]any{"configured_connections": 0},
		}}, nil
	}

	names := make([]string, 0, len(m.connections))
	for name := range m.connections {
		names = append(names, name)
	}
	sort.Strings(names)

	reports := make([]HealthReport, 0, len(names))
	for _, name := range names {
		reports = append(reports, m.checkConnectionHealth(ctx, name, m.connections[name], checkTime))
	}
	return reports, nil
}

func (m *Module) checkConnectionHealth(ctx context.Context, name string, db *sql.DB, checkTime time.Time) HealthReport {
	report := HealthReport{
		Module:    Name,
		Component: name,
		CheckedAt: checkTime,
		Details:   map[string]any{"connection_name": name},
	}

	if err := db.PingContext(ctx); err != nil {
		report.Status = HealthStatusUnhealthy
		report.Message = fmt.Sprintf("connection failed: %v", err)
		report.Details["ping_error"] = err.Error()
		return report
	}

	stats := db.Stats()
	report.Details["open_connections"] = stats.OpenConnections
	report.Details["in_use"] = stats.InUse
	report.Details["idle"] = stats.Idle
	report.Details["max_open_connections"] = stats.MaxOpenConnections

	switch {
	case stats.OpenConnections == 0:
		report.Status = HealthStatusUnhealthy
		report.Message = "no open connections in pool"
	case stats.MaxOpenConnections > 1 && float64(stats.InUse)/float64(stats.MaxOpenConnections) > 0.9:
		report.Status = HealthStatusDegraded
		report.Message = fmt.Sprintf("connection pool usage high: %d/%d connections in use",
			stats.InUse, stats.MaxOpenConnections)
	default:
		report.Status = HealthStatusHealthy
		report.Message = fmt.Sprintf("connection healthy: %d open connections", stats.OpenConnections)
	}

	if m.config != nil {
		if connConfig, exists := m.config.Connections[name]; exists {
			report.Details["driver"] = connConfig.Driver
			report.Details["is_default"] = name == m.config.Default
		}
	}
	return report
}

// IsHealthy returns true if all database connections are healthy.
func (m *Module) IsHealthy(ctx context.Context) bool {
	reports, err := m.HealthCheck(ctx)
	if err != nil {
		return false
	}
	for _, report := range reports {
		if report.Status != HealthStatusHealthy {
			return false
		}
	}
	return true
}
