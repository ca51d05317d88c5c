package library

import (
	"context"
)

var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithSession sets the Session snapshot in the given context
func WithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session snapshot from the context.
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	raw, ok := ctx.Value(sessionCtxKey).(Session)
	return raw, ok
}

// IdentityFromContext returns the identity of the session in ctx, if any
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	session, ok := SessionFromContext(ctx)
	if !ok || !session.Authenticated() {
		return nil, false
	}
	return session.Identity, true
}

// Can is a convenience function to check a capability directly from the context
func Can(ctx context.Context, capability Capability) bool {
	session, _ := SessionFromContext(ctx)
	return CanAccess(session, capability)
}
