package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/GoCodeAlone/modular"
)

// DefaultConnectionTimeout bounds the ping performed by Connect.
const DefaultConnectionTimeout = 5 * time.Second

// DatabaseService defines the operations available on a single connection.
type DatabaseService interface {
	// Connect opens the pool and verifies it with a ping
	Connect() error

	// Close closes the pool
	Close() error

	// DB returns the underlying pool
	DB() *sql.DB

	// Ping checks if the database is reachable
	Ping(ctx context.Context) error

	// Stats returns pool statistics
	Stats() sql.DBStats

	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

	// WithTx runs fn inside a transaction, committing when fn returns nil
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error

	// RunMigrations applies the pending migrations in version order
	RunMigrations(ctx context.Context, migrations []Migration) error

	// GetAppliedMigrations returns the IDs of applied migrations
	GetAppliedMigrations(ctx context.Context) ([]string, error)

	// SetEventEmitter sets the emitter used for migration events
	SetEventEmitter(emitter EventEmitter)
}

type databaseServiceImpl struct {
	config       ConnectionConfig
	db           *sql.DB
	eventEmitter EventEmitter
	logger       modular.Logger
	mu           sync.RWMutex
}

// NewDatabaseService creates a new database service from configuration.
// The logger may be nil.
func NewDatabaseService(config ConnectionConfig, logger modular.Logger) (DatabaseService, error) {
	if config.Driver == "" {
		return nil, ErrMissingDriver
	}
	if config.DSN == "" {
		return nil, ErrMissingDSN
	}
	return &databaseServiceImpl{config: config, logger: logger}, nil
}

// Connect establishes the database connection
func (s *databaseServiceImpl) Connect() error {
	db, err := sql.Open(s.config.Driver, s.config.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if s.config.MaxOpenConnections > 0 {
		db.SetMaxOpenConns(s.config.MaxOpenConnections)
	}
	if s.config.MaxIdleConnections > 0 {
		db.SetMaxIdleConns(s.config.MaxIdleConnections)
	}
	if s.config.ConnectionMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(s.config.ConnectionMaxLifetime) * time.Second)
	}
	if s.config.ConnectionMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(time.Duration(s.config.ConnectionMaxIdleTime) * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), DefaultConnectionTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
	return nil
}

func (s *databaseServiceImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func (s *databaseServiceImpl) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func (s *databaseServiceImpl) Ping(ctx context.Context) error {
	db := s.DB()
	if db == nil {
		return ErrDatabaseNotConnected
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

func (s *databaseServiceImpl) Stats() sql.DBStats {
	db := s.DB()
	if db == nil {
		return sql.DBStats{}
	}
	return db.Stats()
}

func (s *databaseServiceImpl) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db := s.DB()
	if db == nil {
		return nil, ErrDatabaseNotConnected
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

func (s *databaseServiceImpl) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db := s.DB()
	if db == nil {
		return nil, ErrDatabaseNotConnected
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying database: %w", err)
	}
	return rows, nil
}

// QueryRowContext returns nil when the service is not connected.
func (s *databaseServiceImpl) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	db := s.DB()
	if db == nil {
		return nil
	}
	return db.QueryRowContext(ctx, query, args...)
}

func (s *databaseServiceImpl) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	db := s.DB()
	if db == nil {
		return nil, ErrDatabaseNotConnected
	}
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning database transaction: %w", err)
	}
	return tx, nil
}

func (s *databaseServiceImpl) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && s.logger != nil {
			s.logger.Warn("Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *databaseServiceImpl) migrations() (MigrationService, error) {
	db := s.DB()
	if db == nil {
		return nil, ErrDatabaseNotConnected
	}
	return NewMigrationService(db, s.eventEmitter), nil
}

func (s *databaseServiceImpl) RunMigrations(ctx context.Context, migrations []Migration) error {
	svc, err := s.migrations()
	if err != nil {
		return err
	}
	return NewMigrationRunner(svc).RunMigrations(ctx, migrations)
}

func (s *databaseServiceImpl) GetAppliedMigrations(ctx context.Context) ([]string, error) {
	svc, err := s.migrations()
	if err != nil {
		return nil, err
	}
	return svc.GetAppliedMigrations(ctx)
}

func (s *databaseServiceImpl) SetEventEmitter(emitter EventEmitter) {
	s.eventEmitter = emitter
}
