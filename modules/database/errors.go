package database

import "errors"

// Static error definitions to avoid dynamic error creation (err113 linter)
var (
	ErrInvalidConfigType = errors.New("invalid config type for database module")
	ErrMissingDriver     = errors.New("database connection missing driver")
	ErrMissingDSN        = errors.New("database connection missing DSN")

	// ErrDatabaseNotConnected is returned by service calls made before Connect
	ErrDatabaseNotConnected = errors.New("database not connected")

	// ErrTransactionNil is returned when a nil transaction is passed to transaction operations
	ErrTransactionNil = errors.New("transaction cannot be nil")

	// ErrInvalidTableName is returned when an invalid table name is used
	ErrInvalidTableName = errors.New("invalid table name: must start with letter/underscore and contain only alphanumeric/underscore characters")

	// ErrNoDefaultService is returned when no connection could be resolved as default
	ErrNoDefaultService = errors.New("no default database service")
)
