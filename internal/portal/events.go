package portal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/GoCodeAlone/modular"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/portal/internal/portal/store"
)

const eventSource = "portal"

// Entities named in event types and activity entries.
const (
	EntityProject  = "project"
	EntityIncident = "incident"
	EntityTask     = "task"
	EntityUser     = "user"
	EntityProfile  = "profile"
)

// Actions named in event types and activity entries.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
	ActionLogin   = "login"
	ActionOverdue = "overdue"
)

// EventType returns the CloudEvents type of an entity change.
func EventType(entity, action string) string {
	return "com.portal." + entity + "." + action
}

// Change describes one mutation of a portal record.
type Change struct {
	Entity   string
	Action   string
	EntityID int64
	Actor    *store.User
	Summary  string
}

// ChangeData is the payload of a change event.
type ChangeData struct {
	EntityID   int64  `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id,omitempty"`
	ActorLogin string `json:"actor_login,omitempty"`
	Summary    string `json:"summary,omitempty"`
}

// ChangeCounter counts published changes.
type ChangeCounter interface {
	RecordChange(entity, action string)
}

// Listener observes published change events.
type Listener func(ctx context.Context, event cloudevents.Event)

// Events publishes record changes as CloudEvents. Every change is stored in
// the activity log, logged and counted.
type Events struct {
	activity *store.ActivityRepository
	counter  ChangeCounter
	logger   modular.Logger
	now      func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// NewEvents creates the publisher. The counter may be nil.
func NewEvents(activity *store.ActivityRepository, counter ChangeCounter, logger modular.Logger) *Events {
	return &Events{activity: activity, counter: counter, logger: logger, now: time.Now}
}

// Subscribe registers fn to receive every published change event.
func (e *Events) Subscribe(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Publish emits c. The event is returned even when persisting it failed.
func (e *Events) Publish(ctx context.Context, c Change) (cloudevents.Event, error) {
	data := ChangeData{EntityID: c.EntityID, Summary: c.Summary}
	if c.Actor != nil {
		data.ActorID = c.Actor.ID
		data.ActorLogin = c.Actor.Login
	}

	evt := cloudevents.NewEvent()
	evt.SetID(uuid.NewString())
	evt.SetType(EventType(c.Entity, c.Action))
	evt.SetSource(eventSource)
	evt.SetTime(e.now())
	if c.EntityID != 0 {
		evt.SetSubject(strconv.FormatInt(c.EntityID, 10))
	}
	if err := evt.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return evt, fmt.Errorf("encoding %s event: %w", evt.Type(), err)
	}
	if err := evt.Validate(); err != nil {
		return evt, fmt.Errorf("invalid %s event: %w", evt.Type(), err)
	}

	entry := store.Activity{
		ID:         evt.ID(),
		EventType:  evt.Type(),
		Entity:     c.Entity,
		ActorLogin: data.ActorLogin,
		Summary:    c.Summary,
		OccurredAt: evt.Time(),
	}
	if c.EntityID != 0 {
		entry.EntityID = &c.EntityID
	}
	if c.Actor != nil {
		entry.ActorID = &c.Actor.ID
	}
	err := e.activity.Record(ctx, entry)
	if err != nil {
		e.logger.Error("Failed to record activity", "type", evt.Type(), "error", err)
	}

	e.logger.Info("Record changed", "type", evt.Type(), "entity_id", c.EntityID, "actor", data.ActorLogin)
	if e.counter != nil {
		e.counter.RecordChange(c.Entity, c.Action)
	}

	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, evt)
	}
	return evt, err
}

// EmitEvent receives lifecycle events from the auth and database modules.
// They are logged but not kept in the activity log.
func (e *Events) EmitEvent(ctx context.Context, event cloudevents.Event) error {
	e.logger.Debug("Event", "type", event.Type(), "source", event.Source(), "id", event.ID())
	return nil
}
