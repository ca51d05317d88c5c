package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionSnapshot(t *testing.T) {
	var anon Session
	assert.False(t, anon.Authenticated())
	assert.False(t, anon.IsAdmin())
	assert.Equal(t, Role(""), anon.Role())
	assert.True(t, anon.Claims().Empty())
	assert.Equal(t, "session v0: anonymous", anon.String())

	admin := sessionFor(t, RoleAdmin)
	assert.True(t, admin.Authenticated())
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, RoleAdmin, admin.Role())
	assert.Equal(t, "session v1: id=1 email=someone@example.com role=ADMIN", admin.String())

	tokenOnly := Session{Token: admin.Token}
	assert.False(t, tokenOnly.Authenticated())
}

func TestSessionIdentityIsCopied(t *testing.T) {
	identity := Identity{ID: 2, Email: "b@example.com", Role: RoleUser}
	session := newSession("a.b.c", identity, 1)

	identity.Role = RoleAdmin
	assert.False(t, session.IsAdmin())
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	session := newSession(makeToken(t, map[string]any{"exp": now.Add(-time.Second).Unix()}), Identity{Email: "a@example.com"}, 1)
	assert.True(t, session.Expired(now))

	fresh := newSession(makeToken(t, map[string]any{"exp": now.Add(time.Hour).Unix()}), Identity{Email: "a@example.com"}, 1)
	assert.False(t, fresh.Expired(now))
}
