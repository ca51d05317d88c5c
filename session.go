package library

import (
	"fmt"
	"time"
)

// Session is an immutable snapshot of the caller's authentication state.
// Token and Identity are either both set or both empty. A new Session value
// replaces the old one on every login or logout; Version grows each time.
type Session struct {
	Token    string
	Identity *Identity
	Version  uint64
}

// Authenticated reports whether the snapshot holds a token
func (s Session) Authenticated() bool {
	return s.Token != "" && s.Identity != nil
}

// IsAdmin reports whether the snapshot belongs to an admin
func (s Session) IsAdmin() bool {
	return s.Authenticated() && s.Identity.IsAdmin()
}

// Role returns the normalized role, empty for a logged out session
func (s Session) Role() Role {
	if !s.Authenticated() {
		return ""
	}
	return NormalizeRole(string(s.Identity.Role))
}

// Claims decodes the session token again. Nothing here is trusted for
// authorization beyond UI hinting.
func (s Session) Claims() Claims {
	if s.Token == "" {
		return Claims{}
	}
	return DecodeClaims(s.Token)
}

// Expired reports whether the token has an exp claim before now
func (s Session) Expired(now time.Time) bool {
	return s.Claims().ExpiredAt(now)
}

func (s Session) String() string {
	if !s.Authenticated() {
		return fmt.Sprintf("session v%d: anonymous", s.Version)
	}
	return fmt.Sprintf(
		"session v%d: id=%d email=%s role=%s",
		s.Version,
		s.Identity.ID,
		s.Identity.Email,
		s.Role(),
	)
}

func newSession(token string, identity Identity, version uint64) Session {
	id := identity
	return Session{
		Token:    token,
		Identity: &id,
		Version:  version,
	}
}
