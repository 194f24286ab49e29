package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"time"
)

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateTableName validates table name to prevent SQL injection
func validateTableName(tableName string) error {
	if !tableNamePattern.MatchString(tableName) {
		return ErrInvalidTableName
	}
	return nil
}

// Migration represents a forward-only schema migration
type Migration struct {
	ID      string
	Version string
	SQL     string
}

// MigrationService provides migration functionality
type MigrationService interface {
	// RunMigration executes a single migration
	RunMigration(ctx context.Context, migration Migration) error

	// GetAppliedMigrations returns a list of already applied migrations
	GetAppliedMigrations(ctx context.Context) ([]string, error)

	// CreateMigrationsTable creates the migrations tracking table
	CreateMigrationsTable(ctx context.Context) error
}

type migrationServiceImpl struct {
	db           *sql.DB
	eventEmitter EventEmitter
	tableName    string
}

// NewMigrationService creates a migration service tracking applied
// migrations in schema_migrations. The emitter may be nil.
func NewMigrationService(db *sql.DB, eventEmitter EventEmitter) MigrationService {
	return &migrationServiceImpl{
		db:           db,
		eventEmitter: eventEmitter,
		tableName:    "schema_migrations",
	}
}

func (m *migrationServiceImpl) CreateMigrationsTable(ctx context.Context) error {
	if err := validateTableName(m.tableName); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}

	// #nosec G201 - table name is validated above
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			version TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`, m.tableName)

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

func (m *migrationServiceImpl) GetAppliedMigrations(ctx context.Context) ([]string, error) {
	if err := validateTableName(m.tableName); err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	// #nosec G201 - table name is validated above
	query := fmt.Sprintf("SELECT id FROM %s ORDER BY version, applied_at", m.tableName)

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var migrations []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		migrations = append(migrations, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}
	return migrations, nil
}

func (m *migrationServiceImpl) emit(ctx context.Context, eventType string, migration Migration, started time.Time, cause error) {
	if m.eventEmitter == nil {
		return
	}
	data := map[string]any{
		"migration_id": migration.ID,
		"version":      migration.Version,
	}
	if eventType != EventTypeMigrationStarted {
		data["duration_ms"] = time.Since(started).Milliseconds()
	}
	if cause != nil {
		data["error"] = cause.Error()
	}
	// emission failures never fail a migration
	_ = m.eventEmitter.EmitEvent(ctx, newEvent(eventType, data))
}

// RunMigration executes a migration and records it in a single transaction.
func (m *migrationServiceImpl) RunMigration(ctx context.Context, migration Migration) (err error) {
	started := time.Now()
	m.emit(ctx, EventTypeMigrationStarted, migration, started, nil)
	defer func() {
		if err != nil {
			m.emit(ctx, EventTypeMigrationFailed, migration, started, err)
			return
		}
		m.emit(ctx, EventTypeMigrationCompleted, migration, started, nil)
	}()

	if err := validateTableName(m.tableName); err != nil {
		return fmt.Errorf("invalid table name for migration record: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	if _, err = tx.ExecContext(ctx, migration.SQL); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to execute migration %s: %w", migration.ID, err)
	}

	// #nosec G201 - table name is validated above
	recordQuery := fmt.Sprintf("INSERT INTO %s (id, version) VALUES (?, ?)", m.tableName)
	if _, err = tx.ExecContext(ctx, recordQuery, migration.ID, migration.Version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", migration.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", migration.ID, err)
	}
	return nil
}

// MigrationRunner helps run multiple migrations
type MigrationRunner struct {
	service MigrationService
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(service MigrationService) *MigrationRunner {
	return &MigrationRunner{service: service}
}

// RunMigrations runs the migrations not yet applied, sorted by version.
// The caller's slice is not reordered.
func (r *MigrationRunner) RunMigrations(ctx context.Context, migrations []Migration) error {
	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Version < ordered[j].Version
	})

	if err := r.service.CreateMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := r.service.GetAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedMap := make(map[string]bool, len(applied))
	for _, id := range applied {
		appliedMap[id] = true
	}

	for _, migration := range ordered {
		if appliedMap[migration.ID] {
			continue
		}
		if err := r.service.RunMigration(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", migration.ID, err)
		}
	}
	return nil
}
