package library

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeClaims(t *testing.T) {
	payload := map[string]any{
		"sub":       "42",
		"userId":    float64(42),
		"firstName": "Ada",
		"roles":     []any{"ROLE_ADMIN"},
		"nested":    map[string]any{"k": "v"},
	}
	token := makeToken(t, payload)

	claims := DecodeClaims(token)
	assert.Equal(t, Claims(payload), claims)
}

func TestDecodeClaimsMalformed(t *testing.T) {
	good := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"1"}`))
	invalidUTF8 := base64.RawURLEncoding.EncodeToString([]byte{'{', '"', 'a', '"', ':', '"', 0xff, '"', '}'})
	array := base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`))

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "one segment", token: "abc"},
		{name: "two segments", token: "h." + good},
		{name: "four segments", token: "h." + good + ".s.x"},
		{name: "bad base64", token: "h.!!!.s"},
		{name: "not json", token: "h." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".s"},
		{name: "invalid utf8", token: "h." + invalidUTF8 + ".s"},
		{name: "json array", token: "h." + array + ".s"},
		{name: "json null", token: "h." + base64.RawURLEncoding.EncodeToString([]byte("null")) + ".s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var claims Claims
			require.NotPanics(t, func() { claims = DecodeClaims(tt.token) })
			assert.NotNil(t, claims)
			assert.True(t, claims.Empty())
		})
	}
}

func TestDecodeClaimsAcceptsPadding(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte(`{"sub":"1"}`))
	claims := DecodeClaims("h." + padded + ".s")
	assert.Equal(t, "1", claims.Subject())
}

func TestRoleFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims Claims
		want   string
	}{
		{name: "roles list admin", claims: Claims{"roles": []any{"ROLE_ADMIN"}}, want: "ADMIN"},
		{name: "roles list takes first", claims: Claims{"roles": []any{"ROLE_USER", "ROLE_ADMIN"}}, want: "USER"},
		{name: "scalar role", claims: Claims{"role": "ROLE_USER"}, want: "USER"},
		{name: "scalar role without prefix", claims: Claims{"role": "ADMIN"}, want: "ADMIN"},
		{name: "empty claims", claims: Claims{}, want: "USER"},
		{name: "empty roles list falls back to role", claims: Claims{"roles": []any{}, "role": "ROLE_ADMIN"}, want: "ADMIN"},
		{name: "unknown value kept as is", claims: Claims{"role": "ROLE_LIBRARIAN"}, want: "LIBRARIAN"},
		{name: "null role", claims: Claims{"role": nil}, want: "USER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RoleFromClaims(tt.claims))
		})
	}
}

func TestClaimsAccessors(t *testing.T) {
	claims := Claims{"sub": "7", "lastName": "Lovelace"}
	assert.Equal(t, int64(7), claims.UserID())
	assert.Equal(t, "User", claims.FirstName())
	assert.Equal(t, "Lovelace", claims.LastName())

	claims = Claims{"userId": float64(9), "sub": "a@b.com"}
	assert.Equal(t, int64(9), claims.UserID())

	claims = Claims{"sub": "a@b.com"}
	assert.Equal(t, int64(0), claims.UserID())
}

func TestClaimsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	claims := Claims{"exp": float64(now.Add(time.Hour).Unix())}
	assert.True(t, now.Add(time.Hour).Equal(claims.Expires()))
	assert.False(t, claims.ExpiredAt(now))
	assert.True(t, claims.ExpiredAt(now.Add(2*time.Hour)))

	assert.True(t, Claims{}.Expires().IsZero())
	assert.False(t, Claims{}.ExpiredAt(now))
	assert.False(t, Claims{"exp": "soon"}.ExpiredAt(now))
}

func TestIdentityFromClaims(t *testing.T) {
	claims := Claims{
		"userId":    float64(3),
		"email":     "token@example.com",
		"firstName": "Grace",
		"lastName":  "Hopper",
		"roles":     []any{"ROLE_ADMIN"},
	}

	identity := IdentityFromClaims(claims, "login@example.com")
	assert.Equal(t, Identity{
		ID:        3,
		Email:     "login@example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Role:      RoleAdmin,
	}, identity)

	identity = IdentityFromClaims(Claims{"role": "ROLE_LIBRARIAN"}, "x@example.com")
	assert.Equal(t, RoleUser, identity.Role)
	assert.False(t, identity.IsAdmin())
}
