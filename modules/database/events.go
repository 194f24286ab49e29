package database

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event type constants for database module events.
// Following CloudEvents specification reverse domain notation.
const (
	EventTypeConnected    = "com.portal.database.connected"
	EventTypeDisconnected = "com.portal.database.disconnected"

	EventTypeMigrationStarted   = "com.portal.database.migration.started"
	EventTypeMigrationCompleted = "com.portal.database.migration.completed"
	EventTypeMigrationFailed    = "com.portal.database.migration.failed"
)

const eventSource = "portal.database"

// EventEmitter receives database lifecycle events.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event cloudevents.Event) error
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(ctx context.Context, event cloudevents.Event) error

func (f EmitterFunc) EmitEvent(ctx context.Context, event cloudevents.Event) error {
	return f(ctx, event)
}

func newEvent(eventType string, data map[string]any) cloudevents.Event {
	evt := cloudevents.NewEvent()
	evt.SetID(uuid.NewString())
	evt.SetType(eventType)
	evt.SetSource(eventSource)
	evt.SetTime(time.Now())
	_ = evt.SetData(cloudevents.ApplicationJSON, data)
	return evt
}
