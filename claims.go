package library

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
)

const defaultFirstName = "User"

// Claims is the decoded payload of a bearer token. Values keep whatever
// shape the issuer gave them.
type Claims map[string]any

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// DecodeClaims reads the payload segment of token without verifying the
// signature. It never fails: a malformed token yields empty claims so callers
// fail closed.
func DecodeClaims(token string) Claims {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil || !utf8.Valid(payload) {
		return Claims{}
	}

	claims := Claims{}
	if err := json.Unmarshal(payload, &claims); err != nil || claims == nil {
		return Claims{}
	}

	return claims
}

// Empty reports whether decoding produced nothing usable
func (c Claims) Empty() bool {
	return len(c) == 0
}

// RoleFromClaims applies the role derivation rule: first entry of a non
// empty "roles" list, else the scalar "role", else USER. The ROLE_ prefix is
// stripped; the result is not validated.
func RoleFromClaims(c Claims) string {
	if roles, ok := c["roles"].([]any); ok && len(roles) > 0 {
		return strings.TrimPrefix(scalarString(roles[0]), rolePrefix)
	}

	if role, ok := c["role"]; ok && role != nil {
		if s := scalarString(role); s != "" {
			return strings.TrimPrefix(s, rolePrefix)
		}
	}

	return string(RoleUser)
}

// Role returns the derived role string
func (c Claims) Role() string {
	return RoleFromClaims(c)
}

// UserID prefers "userId", then a numeric "sub"
func (c Claims) UserID() int64 {
	if id, ok := int64Claim(c["userId"]); ok {
		return id
	}
	if id, ok := int64Claim(c["sub"]); ok {
		return id
	}
	return 0
}

// Subject returns the "sub" claim as text
func (c Claims) Subject() string {
	return scalarString(c["sub"])
}

// FirstName falls back to a generic label like the web client did
func (c Claims) FirstName() string {
	if s := scalarString(c["firstName"]); s != "" {
		return s
	}
	return defaultFirstName
}

func (c Claims) LastName() string {
	return scalarString(c["lastName"])
}

// Expires returns the "exp" claim, zero if missing or unreadable
func (c Claims) Expires() time.Time {
	exp, err := jwt.MapClaims(c).GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// ExpiredAt reports whether the token carries an expiry before now
func (c Claims) ExpiredAt(now time.Time) bool {
	exp := c.Expires()
	return !exp.IsZero() && !now.Before(exp)
}

// IdentityFromClaims assembles the session identity. The email always comes
// from the login credentials, never from the token.
func IdentityFromClaims(c Claims, email string) Identity {
	return Identity{
		ID:        c.UserID(),
		Email:     email,
		FirstName: c.FirstName(),
		LastName:  c.LastName(),
		Role:      NormalizeRole(c.Role()),
	}
}

func scalarString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case json.Number:
		return val.String()
	default:
		return ""
	}
}

func int64Claim(v any) (int64, bool) {
	switch val := v.(type) {
	case float64:
		if val != math.Trunc(val) {
			return 0, false
		}
		return int64(val), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		return id, true
	case json.Number:
		id, err := val.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}
