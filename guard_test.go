package library

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goerrors "github.com/goliatone/go-errors"
)

func TestCanAccess(t *testing.T) {
	anon := Session{}
	user := sessionFor(t, RoleUser)
	admin := sessionFor(t, RoleAdmin)
	unknown := sessionFor(t, Role("LIBRARIAN"))

	tests := []struct {
		name       string
		session    Session
		capability Capability
		want       bool
	}{
		{"anonymous none", anon, CapabilityNone, true},
		{"anonymous authenticated", anon, CapabilityAuthenticated, false},
		{"anonymous admin", anon, CapabilityAdmin, false},
		{"user authenticated", user, CapabilityAuthenticated, true},
		{"user admin", user, CapabilityAdmin, false},
		{"admin admin", admin, CapabilityAdmin, true},
		{"unknown role admin", unknown, CapabilityAdmin, false},
		{"unknown capability", admin, Capability("SUPERUSER"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAccess(tt.session, tt.capability))
		})
	}
}

func TestRequireCapability(t *testing.T) {
	ctx := context.Background()

	err := RequireCapability(ctx, CapabilityAuthenticated)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.True(t, IsForbidden(err))

	userCtx := WithSession(ctx, sessionFor(t, RoleUser))
	assert.NoError(t, RequireCapability(userCtx, CapabilityAuthenticated))

	err = RequireCapability(userCtx, CapabilityAdmin)
	require.Error(t, err)
	assert.True(t, IsForbidden(err))

	var rich *goerrors.Error
	require.True(t, errors.As(err, &rich))
	assert.Equal(t, "ADMIN", rich.Metadata["required"])
	assert.Equal(t, "USER", rich.Metadata["role"])

	adminCtx := WithSession(ctx, sessionFor(t, RoleAdmin))
	assert.NoError(t, RequireCapability(adminCtx, CapabilityAdmin))
}

func TestGuardResolve(t *testing.T) {
	guard := NewGuard().WithLogger(NopLogger{})
	anon := Session{}
	user := sessionFor(t, RoleUser)
	admin := sessionFor(t, RoleAdmin)

	tests := []struct {
		name    string
		session Session
		path    string
		want    Decision
	}{
		{"root anonymous", anon, "/", Decision{Path: "/", Redirect: ScreenLogin}},
		{"root authenticated", user, "/", Decision{Path: "/", Redirect: ScreenBooks}},
		{"empty path", admin, "", Decision{Path: "/", Redirect: ScreenBooks}},
		{"login open", anon, "/login", Decision{Path: "/login", Allowed: true}},
		{"register open", anon, "/register", Decision{Path: "/register", Allowed: true}},
		{"books needs session", anon, "/books", Decision{Path: "/books", Redirect: ScreenLogin}},
		{"books for user", user, "/books", Decision{Path: "/books", Allowed: true}},
		{"trailing slash", user, "/loans/", Decision{Path: "/loans", Allowed: true}},
		{"no leading slash", user, "loans", Decision{Path: "/loans", Allowed: true}},
		{"users anonymous", anon, "/users", Decision{Path: "/users", Redirect: ScreenLogin}},
		{"users non admin", user, "/users", Decision{Path: "/users", Redirect: ScreenBooks}},
		{"users admin", admin, "/users", Decision{Path: "/users", Allowed: true}},
		{"unknown", admin, "/reports", Decision{Path: "/reports", NotFound: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guard.Resolve(tt.session, tt.path))
		})
	}
}

func TestGuardWithScreen(t *testing.T) {
	guard := NewGuard().
		WithLogger(NopLogger{}).
		WithScreen(Screen{Path: "reports/", Capability: CapabilityAdmin})

	assert.Equal(t, Decision{Path: "/reports", Allowed: true}, guard.Resolve(sessionFor(t, RoleAdmin), "/reports"))
	assert.Equal(t, Decision{Path: "/reports", Redirect: ScreenBooks}, guard.Resolve(sessionFor(t, RoleUser), "/reports"))

	screens := guard.Screens()
	require.Len(t, screens, len(defaultScreens)+1)
	assert.Equal(t, ScreenLogin, screens[0].Path)
	assert.Equal(t, Screen{Path: "/reports", Capability: CapabilityAdmin}, screens[len(screens)-1])
}

func TestGuardAffordances(t *testing.T) {
	guard := NewGuard().WithLogger(NopLogger{})

	assert.Empty(t, guard.VisibleAffordances(Session{}))

	assert.Equal(t, []Affordance{AffordanceBorrowBook, AffordanceReturnBook}, guard.VisibleAffordances(sessionFor(t, RoleUser)))
	assert.False(t, guard.Visible(sessionFor(t, RoleUser), AffordanceDeleteBook))
	assert.False(t, guard.Visible(sessionFor(t, RoleUser), AffordanceManageUsers))

	all := guard.VisibleAffordances(sessionFor(t, RoleAdmin))
	assert.Len(t, all, len(affordanceCapabilities))
	assert.True(t, guard.Visible(sessionFor(t, RoleAdmin), AffordanceViewOverdueLoans))

	assert.False(t, guard.Visible(sessionFor(t, RoleAdmin), Affordance("book.burn")))
}
