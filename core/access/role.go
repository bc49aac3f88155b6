package access

import (
	"strings"

	"github.com/pkg/errors"
)

// Role is the single role a CoursePalette user holds.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// ErrInvalidRole is returned when parsing an unknown role name.
var ErrInvalidRole = errors.New("unknown role")

// Roles lists every known role, lowest privilege first.
var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

var rolePriorities = map[Role]int{
	RoleStudent: 1,
	RoleTeacher: 11,
	RoleAdmin:   21,
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := rolePriorities[r]
	return ok
}

// Priority orders roles by privilege; unknown roles have priority 0.
func (r Role) Priority() int {
	return rolePriorities[r]
}

// IsBackOffice reports whether r lands on the back-office pages after login.
func (r Role) IsBackOffice() bool {
	return r == RoleAdmin || r == RoleTeacher
}

func (r Role) String() string { return string(r) }

// ParseRole parses a role name, case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", errors.Wrapf(ErrInvalidRole, "role %q", s)
	}
	return r, nil
}
