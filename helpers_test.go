package library

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	return "eyJhbGciOiJIUzI1NiJ9." + base64.RawURLEncoding.EncodeToString(payload) + ".c2ln"
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Debug(format string, args ...any) { l.add("DBG", format, args...) }
func (l *recordingLogger) Info(format string, args ...any)  { l.add("INF", format, args...) }
func (l *recordingLogger) Warn(format string, args ...any)  { l.add("WRN", format, args...) }
func (l *recordingLogger) Error(format string, args ...any) { l.add("ERR", format, args...) }

func (l *recordingLogger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, evt ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) Types() []ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ActivityEventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

// staticAuthenticator answers every login with resp or err
func staticAuthenticator(resp map[string]any, err error) Authenticator {
	return AuthenticatorFunc(func(context.Context, Credentials) (map[string]any, error) {
		return resp, err
	})
}

func sessionFor(t *testing.T, role Role) Session {
	t.Helper()
	return newSession(makeToken(t, map[string]any{"role": string(role)}), Identity{
		ID:    1,
		Email: "someone@example.com",
		Role:  role,
	}, 1)
}

// staticSessions always reports session
type staticSessions Session

func (s staticSessions) Current(context.Context) Session { return Session(s) }
