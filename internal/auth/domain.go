package auth

import (
	"time"

	"github.com/gazette-app/gazette/internal/rbac"
)

// Account is the credential record behind an identity.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         rbac.Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
