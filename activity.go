package library

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEventType enumerates session lifecycle events.
type ActivityEventType string

const (
	ActivityEventLoginSuccess     ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure     ActivityEventType = "auth.login.failure"
	ActivityEventLogout           ActivityEventType = "auth.logout"
	ActivityEventSessionCorrupted ActivityEventType = "session.corrupted"
	ActivityEventSessionRejected  ActivityEventType = "session.rejected"
)

// ActivityEvent captures what happened to the session and why.
type ActivityEvent struct {
	ID         uuid.UUID
	EventType  ActivityEventType
	UserID     int64
	Email      string
	Version    uint64
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes session events for auditing or UI notifications.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

func newActivityEvent(eventType ActivityEventType, identity *Identity, version uint64, meta map[string]any, now time.Time) ActivityEvent {
	evt := ActivityEvent{
		ID:         uuid.New(),
		EventType:  eventType,
		Version:    version,
		Metadata:   meta,
		OccurredAt: now,
	}
	if identity != nil {
		evt.UserID = identity.ID
		evt.Email = identity.Email
	}
	return evt
}
