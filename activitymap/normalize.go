package activitymap

import (
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	library "github.com/goliatone/go-library-client"
)

const (
	// MetadataKeyEventID stores the event uuid.
	MetadataKeyEventID = "event_id"
	// MetadataKeySessionVersion stores the session version after the event.
	MetadataKeySessionVersion = "session_version"
	// MetadataKeyEmail stores the identity email when the event has one.
	MetadataKeyEmail = "email"
)

const (
	defaultChannel    = "session"
	defaultObjectType = "session"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(library.ActivityEvent) string
}

// Normalize converts a session ActivityEvent into a generic normalized shape.
func Normalize(event library.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := options.actorFallback
	if event.UserID != 0 {
		actorID = strconv.FormatInt(event.UserID, 10)
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithDefaultChannel sets the default channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the default object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(library.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used for events without a user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// JSONSink writes one normalized record per line. The CLI hands it stderr
// in verbose mode.
type JSONSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	opts []Option
}

var _ library.ActivitySink = (*JSONSink)(nil)

func NewJSONSink(w io.Writer, opts ...Option) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w), opts: opts}
}

// Record implements library.ActivitySink.
func (s *JSONSink) Record(_ context.Context, event library.ActivityEvent) error {
	record := Normalize(event, s.opts...)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(record)
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func resolveObjectID(event library.ActivityEvent, resolver func(library.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	return "v" + strconv.FormatUint(event.Version, 10)
}

func normalizeMetadata(event library.ActivityEvent) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+3)
	for key, value := range event.Metadata {
		metadata[key] = value
	}

	metadata[MetadataKeyEventID] = event.ID.String()
	metadata[MetadataKeySessionVersion] = event.Version
	if email := strings.TrimSpace(event.Email); email != "" {
		metadata[MetadataKeyEmail] = email
	}

	return metadata
}
