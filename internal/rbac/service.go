package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/shared"
)

// UserStore is the persistence port the authorization service needs.
type UserStore interface {
	IdentityLoader
	// ListIdentities returns every identity ordered by email.
	ListIdentities(ctx context.Context) ([]Identity, error)
	UpdateRole(ctx context.Context, id int64, role Role) error
}

// RoleChangeNotifier is told about completed role changes.
type RoleChangeNotifier interface {
	NotifyRoleChanged(ctx context.Context, target Identity, previous Role) error
}

// AuthorizationInfo is the self-service "what can I do" report.
type AuthorizationInfo struct {
	Identity     Identity
	RoleLabel    string
	Capabilities []string
	// Roster is only populated for identities that manage users.
	Roster         []Identity
	CanManageUsers bool
	AssignableRole []Role
}

// Service orchestrates authorization reporting and role administration.
type Service struct {
	users    UserStore
	notifier RoleChangeNotifier
	auditor  shared.Auditor
	logger   *slog.Logger
}

// NewService constructs a Service. notifier and auditor may be nil.
func NewService(users UserStore, notifier RoleChangeNotifier, auditor shared.Auditor, logger *slog.Logger) *Service {
	return &Service{users: users, notifier: notifier, auditor: auditor, logger: logger}
}

// AuthorizationInfo reports the actor's role and capabilities, plus the user roster for masters.
func (s *Service) AuthorizationInfo(ctx context.Context, actor Identity) (AuthorizationInfo, error) {
	if !actor.Authenticated() {
		return AuthorizationInfo{}, httpx.ErrUnauthorized
	}
	info := AuthorizationInfo{
		Identity:     actor,
		RoleLabel:    actor.Role.Label(),
		Capabilities: CapabilityListing(actor.Role),
	}
	if !CanManageUsers(actor) {
		return info, nil
	}
	roster, err := s.users.ListIdentities(ctx)
	if err != nil {
		return AuthorizationInfo{}, fmt.Errorf("rbac: list identities: %w", err)
	}
	info.Roster = roster
	info.CanManageUsers = true
	info.AssignableRole = Roles()
	return info, nil
}

// UpdateUserRole changes another identity's role. The actor must manage users.
func (s *Service) UpdateUserRole(ctx context.Context, actor Identity, targetID int64, rawRole string) (Identity, error) {
	if !CanManageUsers(actor) {
		return Identity{}, httpx.ErrForbidden
	}
	role, err := ParseRole(rawRole)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	target, err := s.users.GetIdentity(ctx, targetID)
	if err != nil {
		return Identity{}, err
	}
	previous := target.Role
	if previous == role {
		return target, nil
	}
	if err := s.users.UpdateRole(ctx, target.ID, role); err != nil {
		return Identity{}, err
	}
	target.Role = role
	if s.auditor != nil {
		err := s.auditor.Record(ctx, shared.AuditLog{
			ActorID:  actor.ID,
			Action:   "user.role_changed",
			Entity:   "user",
			EntityID: strconv.FormatInt(target.ID, 10),
			Meta:     map[string]any{"from": previous.String(), "to": role.String()},
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("audit role change", slog.Int64("user_id", target.ID), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyRoleChanged(ctx, target, previous); err != nil && s.logger != nil {
			s.logger.Warn("notify role change", slog.Int64("user_id", target.ID), slog.Any("error", err))
		}
	}
	return target, nil
}

// IsNotFound reports whether err means the target identity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, httpx.ErrNotFound)
}
