package auth

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event type constants for auth module events.
// Following CloudEvents specification reverse domain notation.
const (
	EventTypeTokenGenerated = "com.portal.auth.token.generated" // #nosec G101 - not a credential
	EventTypeTokenExpired   = "com.portal.auth.token.expired"   // #nosec G101 - not a credential
	EventTypeTokenRefreshed = "com.portal.auth.token.refreshed" // #nosec G101 - not a credential

	EventTypeSessionCreated   = "com.portal.auth.session.created"
	EventTypeSessionExpired   = "com.portal.auth.session.expired"
	EventTypeSessionDestroyed = "com.portal.auth.session.destroyed"
	EventTypeSessionsRevoked  = "com.portal.auth.session.revoked"
)

// EventEmitter receives auth events.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event cloudevents.Event) error
}

func (s *Service) emitEvent(ctx context.Context, eventType string, data map[string]any) {
	if s.eventEmitter == nil {
		return
	}
	evt := cloudevents.NewEvent()
	evt.SetID(uuid.NewString())
	evt.SetType(eventType)
	evt.SetSource("portal.auth")
	evt.SetTime(time.Now())
	_ = evt.SetData(cloudevents.ApplicationJSON, data)
	_ = s.eventEmitter.EmitEvent(ctx, evt)
}
