package library

import "strings"

// Role is the caller's global role
type Role string

const (
	// RoleUser can browse, borrow and return
	RoleUser Role = "USER"
	// RoleAdmin can also manage the catalog, users and everyone's loans
	RoleAdmin Role = "ADMIN"
)

// rolePrefix is how the backend tags authorities inside tokens
const rolePrefix = "ROLE_"

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin:
		return true
	default:
		return false
	}
}

// IsAdmin is true only for the exact admin role
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

func (r Role) String() string {
	return string(r)
}

// ParseRole safely parses a string into a Role
func ParseRole(roleStr string) (Role, bool) {
	role := Role(roleStr)
	return role, role.IsValid()
}

// NormalizeRole maps any role string onto the enum. Anything that is not
// recognizably ADMIN becomes USER so an unknown value never grants admin.
func NormalizeRole(roleStr string) Role {
	s := strings.ToUpper(strings.TrimSpace(roleStr))
	s = strings.TrimPrefix(s, rolePrefix)
	if role, ok := ParseRole(s); ok {
		return role
	}
	return RoleUser
}

// GetAllRoles returns all roles, lowest first
func GetAllRoles() []Role {
	return []Role{RoleUser, RoleAdmin}
}
