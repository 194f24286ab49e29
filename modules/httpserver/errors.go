package httpserver

import (
	"errors"
)

// Error definitions for HTTP server operations.
var (
	// ErrServerNotStarted is returned when attempting to stop a server that hasn't been started.
	ErrServerNotStarted = errors.New("server not started")

	// ErrNoHandler is returned when no HTTP handler is available for the server.
	ErrNoHandler = errors.New("no HTTP handler available")

	// ErrRouterServiceNotHandler is returned when the router service doesn't implement http.Handler.
	ErrRouterServiceNotHandler = errors.New("router service does not implement http.Handler")
)
