package library

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Persisted record keys. Either one missing means logged out.
const (
	TokenKey = "library_auth_token"
	UserKey  = "library_auth_user"
)

// Login response fields that may carry the token, in lookup order
var tokenFields = []string{"jwtToken", "token"}

// Registrar is implemented by authenticators that can also create accounts
type Registrar interface {
	Register(ctx context.Context, req RegisterRequest) error
}

// SessionStore owns the persisted session. Reads go to storage every time so
// a snapshot always reflects the last complete write; writes only happen at
// login, logout and when a corrupted record is cleared.
type SessionStore struct {
	storage       Storage
	authenticator Authenticator
	validator     TokenValidator
	readValidator TokenValidator
	logger        Logger
	activitySink  ActivitySink
	now           func() time.Time

	mu      sync.Mutex
	version atomic.Uint64

	subsMu  sync.RWMutex
	subs    map[int]func(Session)
	nextSub int
}

var _ TokenSource = (*SessionStore)(nil)

// NewSessionStore returns a store backed by storage that logs in through
// authenticator.
func NewSessionStore(storage Storage, authenticator Authenticator) *SessionStore {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	return &SessionStore{
		storage:       storage,
		authenticator: authenticator,
		validator:     DecodeOnly,
		logger:        defLogger{},
		activitySink:  noopActivitySink{},
		now:           time.Now,
		subs:          map[int]func(Session){},
	}
}

func (s *SessionStore) WithLogger(logger Logger) *SessionStore {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for session events.
func (s *SessionStore) WithActivitySink(sink ActivitySink) *SessionStore {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenValidator adds a validator that runs at login after decoding.
func (s *SessionStore) WithTokenValidator(validator TokenValidator) *SessionStore {
	s.validator = NewChainValidator(DecodeOnly, validator)
	return s
}

// WithExpiryCheck makes the store treat a token with a past exp claim as
// logged out, both at login and on every read.
func (s *SessionStore) WithExpiryCheck(leeway time.Duration) *SessionStore {
	expiry := ExpiryValidator{Now: func() time.Time { return s.now() }, Leeway: leeway}
	s.validator = NewChainValidator(s.validator, expiry)
	s.readValidator = expiry
	return s
}

// WithClock overrides the time source used for expiry checks and events.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	if now != nil {
		s.now = now
	}
	return s
}

// WithAuthenticator sets the login backend after construction, which lets
// the API client and the store reference each other.
func (s *SessionStore) WithAuthenticator(authenticator Authenticator) *SessionStore {
	s.authenticator = authenticator
	return s
}

// Login exchanges credentials for a session. Any prior session is cleared
// first. All failures are reported as ErrAuthFailure with the cause attached.
func (s *SessionStore) Login(ctx context.Context, credentials Credentials) (Session, error) {
	s.mu.Lock()
	var published []Session
	if snap, changed := s.clearLocked(ctx); changed {
		published = append(published, snap)
	}

	session, err := s.loginLocked(ctx, credentials)
	if err == nil {
		published = append(published, session)
	}
	s.mu.Unlock()

	for _, snap := range published {
		s.notify(snap)
	}

	if err != nil {
		s.logger.Error("Login failed for %s: %v", credentials.Email, err)
		s.emit(ctx, ActivityEventLoginFailure, nil, map[string]any{
			"email": credentials.Email,
			"error": err.Error(),
		})
		return Session{Version: s.version.Load()}, authFailure(err)
	}

	s.emit(ctx, ActivityEventLoginSuccess, session.Identity, nil)
	return session, nil
}

func (s *SessionStore) loginLocked(ctx context.Context, credentials Credentials) (Session, error) {
	if err := credentials.Validate(); err != nil {
		return Session{}, validationFailure(err, "invalid credentials")
	}

	if s.authenticator == nil {
		return Session{}, ErrAuthFailure
	}

	resp, err := s.authenticator.Authenticate(ctx, credentials)
	if err != nil {
		return Session{}, err
	}

	token := tokenFromResponse(resp)
	if token == "" {
		return Session{}, ErrNoTokenInResponse
	}

	claims := DecodeClaims(token)
	if err := s.validator.Validate(token, claims); err != nil {
		return Session{}, err
	}

	identity := IdentityFromClaims(claims, credentials.Email)
	raw, err := json.Marshal(identity)
	if err != nil {
		return Session{}, err
	}

	if err := s.storage.Set(ctx, map[string]string{
		TokenKey: token,
		UserKey:  string(raw),
	}); err != nil {
		return Session{}, err
	}

	return newSession(token, identity, s.version.Add(1)), nil
}

// Register creates an account. The prior session is cleared first, like
// visiting the sign up screen did.
func (s *SessionStore) Register(ctx context.Context, req RegisterRequest) error {
	s.Logout(ctx)

	if err := req.Validate(); err != nil {
		return validationFailure(err, "invalid registration")
	}

	registrar, ok := s.authenticator.(Registrar)
	if !ok {
		return ErrDomainRejection
	}
	return registrar.Register(ctx, req)
}

// Logout clears the persisted session. It never fails and calling it again
// changes nothing.
func (s *SessionStore) Logout(ctx context.Context) {
	s.mu.Lock()
	prev, _ := s.readIdentity(ctx)
	snap, changed := s.clearLocked(ctx)
	s.mu.Unlock()

	if !changed {
		return
	}
	s.notify(snap)
	s.emit(ctx, ActivityEventLogout, prev, nil)
}

// Token returns the stored bearer token
func (s *SessionStore) Token(ctx context.Context) (string, bool) {
	token, ok, err := s.storage.Get(ctx, TokenKey)
	if err != nil {
		s.logger.Error("Session token read failed: %v", err)
		return "", false
	}
	if !ok || token == "" {
		return "", false
	}

	// A token is only trusted next to an identity record
	_, hasUser, err := s.storage.Get(ctx, UserKey)
	if err != nil {
		s.logger.Error("Session identity read failed: %v", err)
		return "", false
	}
	if !hasUser {
		s.logger.Warn("Session token has no identity, clearing")
		s.heal(ctx, ActivityEventSessionCorrupted, ErrCorruptedSession)
		return "", false
	}

	if s.readValidator != nil {
		if err := s.readValidator.Validate(token, DecodeClaims(token)); err != nil {
			s.logger.Warn("Session token rejected: %v", err)
			s.heal(ctx, ActivityEventSessionRejected, err)
			return "", false
		}
	}

	return token, true
}

// User returns the stored identity. A corrupted record, or either record
// without the other, clears the whole session and reads as absent.
func (s *SessionStore) User(ctx context.Context) (*Identity, bool) {
	identity, err := s.readIdentity(ctx)
	if err != nil {
		s.logger.Warn("Session identity unreadable, clearing: %v", err)
		s.heal(ctx, ActivityEventSessionCorrupted, err)
		return nil, false
	}
	if identity == nil {
		if _, hasToken, _ := s.storage.Get(ctx, TokenKey); hasToken {
			s.heal(ctx, ActivityEventSessionCorrupted, ErrCorruptedSession)
		}
		return nil, false
	}

	if _, ok := s.Token(ctx); !ok {
		s.heal(ctx, ActivityEventSessionCorrupted, ErrCorruptedSession)
		return nil, false
	}

	return identity, true
}

// IsAuthenticated is true iff both records are present. It does not check
// that the token is well formed unless an expiry check was configured.
func (s *SessionStore) IsAuthenticated(ctx context.Context) bool {
	_, ok := s.Token(ctx)
	return ok
}

// Current returns an immutable snapshot of the session
func (s *SessionStore) Current(ctx context.Context) Session {
	identity, ok := s.User(ctx)
	if !ok {
		return Session{Version: s.version.Load()}
	}
	token, ok := s.Token(ctx)
	if !ok {
		return Session{Version: s.version.Load()}
	}
	return newSession(token, *identity, s.version.Load())
}

// Version is the number of times the session has been replaced
func (s *SessionStore) Version() uint64 {
	return s.version.Load()
}

// Subscribe registers fn to receive every replacement snapshot. The returned
// function removes the subscription.
func (s *SessionStore) Subscribe(fn func(Session)) func() {
	if fn == nil {
		return func() {}
	}
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// readIdentity returns nil, nil for an absent record and an error for one
// that is present but unusable.
func (s *SessionStore) readIdentity(ctx context.Context) (*Identity, error) {
	raw, ok, err := s.storage.Get(ctx, UserKey)
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || raw == "undefined" || raw == "null" {
		if ok {
			return nil, ErrCorruptedSession
		}
		return nil, nil
	}

	var identity Identity
	if err := json.Unmarshal([]byte(raw), &identity); err != nil {
		return nil, err
	}
	if identity.Email == "" {
		return nil, ErrCorruptedSession
	}
	identity.Role = NormalizeRole(string(identity.Role))
	return &identity, nil
}

// heal clears the session after a bad read
func (s *SessionStore) heal(ctx context.Context, eventType ActivityEventType, cause error) {
	s.mu.Lock()
	snap, changed := s.clearLocked(ctx)
	s.mu.Unlock()

	if !changed {
		return
	}
	s.notify(snap)
	s.emit(ctx, eventType, nil, map[string]any{"error": cause.Error()})
}

// clearLocked deletes both records. The version only moves when something
// was actually stored.
func (s *SessionStore) clearLocked(ctx context.Context) (Session, bool) {
	_, hasToken, _ := s.storage.Get(ctx, TokenKey)
	_, hasUser, _ := s.storage.Get(ctx, UserKey)

	if err := s.storage.Delete(ctx, TokenKey, UserKey); err != nil {
		s.logger.Error("Session clear failed: %v", err)
	}

	if !hasToken && !hasUser {
		return Session{Version: s.version.Load()}, false
	}
	return Session{Version: s.version.Add(1)}, true
}

func (s *SessionStore) notify(snap Session) {
	s.subsMu.RLock()
	fns := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *SessionStore) emit(ctx context.Context, eventType ActivityEventType, identity *Identity, meta map[string]any) {
	evt := newActivityEvent(eventType, identity, s.version.Load(), meta, s.now())
	if err := s.activitySink.Record(ctx, evt); err != nil {
		s.logger.Error("Activity sink failed for %s: %v", eventType, err)
	}
}

func tokenFromResponse(resp map[string]any) string {
	for _, field := range tokenFields {
		if token, ok := resp[field].(string); ok && strings.TrimSpace(token) != "" {
			return token
		}
	}
	return ""
}
