package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{in: "ADMIN", want: RoleAdmin},
		{in: "admin", want: RoleAdmin},
		{in: " ROLE_ADMIN ", want: RoleAdmin},
		{in: "USER", want: RoleUser},
		{in: "ROLE_USER", want: RoleUser},
		{in: "", want: RoleUser},
		{in: "LIBRARIAN", want: RoleUser},
		{in: "ADMINISTRATOR", want: RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRole(tt.in))
		})
	}
}

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("ADMIN")
	assert.True(t, ok)
	assert.True(t, role.IsAdmin())

	_, ok = ParseRole("admin")
	assert.False(t, ok)

	assert.Equal(t, []Role{RoleUser, RoleAdmin}, GetAllRoles())
	assert.Equal(t, "USER", RoleUser.String())
}
