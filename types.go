package library

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Storage persists string keyed records. Set must write every given record
// or none of them; readers never observe a half written session.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, records map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenSource yields the bearer token for outbound calls
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Authenticator exchanges credentials for the raw login response body
type Authenticator interface {
	Authenticate(ctx context.Context, credentials Credentials) (map[string]any, error)
}

// AuthenticatorFunc adapts a function into an Authenticator.
type AuthenticatorFunc func(ctx context.Context, credentials Credentials) (map[string]any, error)

// Authenticate satisfies the Authenticator interface.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, credentials Credentials) (map[string]any, error) {
	if f == nil {
		return nil, ErrAuthFailure
	}
	return f(ctx, credentials)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] LIBRARY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] LIBRARY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] LIBRARY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] LIBRARY "+newline(format), args...)
}

// NopLogger discards everything. The CLI uses it unless --verbose is set.
type NopLogger struct{}

func (NopLogger) Error(string, ...any) {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Debug(string, ...any) {}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
