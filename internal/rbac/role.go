package rbac

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrInvalidRole indicates a value outside the role enumeration.
var ErrInvalidRole = errors.New("rbac: invalid role")

// Role is the closed set of privilege tiers an identity may hold.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleMaster Role = "master"
)

// DefaultRole is assigned to newly registered identities.
const DefaultRole = RoleUser

var roleTitler = cases.Title(language.English)

// Roles lists every role in privilege order.
func Roles() []Role {
	return []Role{RoleUser, RoleAdmin, RoleMaster}
}

// ParseRole converts raw input into a Role, rejecting anything outside the enumeration.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMaster:
		return RoleMaster, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleMaster:
		return true
	default:
		return false
	}
}

// Label returns the display name of the role.
func (r Role) Label() string {
	return roleTitler.String(string(r))
}

func (r Role) String() string {
	return string(r)
}
