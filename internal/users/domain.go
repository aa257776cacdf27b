package users

import (
	"time"

	"github.com/gazette-app/gazette/internal/rbac"
)

// User represents a stored account with its role.
type User struct {
	ID        int64
	Email     string
	Role      rbac.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity projects the account onto the principal used by policy checks.
func (u User) Identity() rbac.Identity {
	return rbac.Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}
