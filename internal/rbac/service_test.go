package rbac

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/shared"
)

type memUsers struct {
	byID map[int64]Identity
}

func newMemUsers(ids ...Identity) *memUsers {
	m := &memUsers{byID: map[int64]Identity{}}
	for _, id := range ids {
		m.byID[id.ID] = id
	}
	return m
}

func (m *memUsers) GetIdentity(ctx context.Context, id int64) (Identity, error) {
	got, ok := m.byID[id]
	if !ok {
		return Identity{}, httpx.ErrNotFound
	}
	return got, nil
}

func (m *memUsers) ListIdentities(ctx context.Context) ([]Identity, error) {
	out := make([]Identity, 0, len(m.byID))
	for _, id := range m.byID {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memUsers) UpdateRole(ctx context.Context, id int64, role Role) error {
	got, ok := m.byID[id]
	if !ok {
		return httpx.ErrNotFound
	}
	got.Role = role
	m.byID[id] = got
	return nil
}

type recordingNotifier struct {
	calls []Role
	err   error
}

func (n *recordingNotifier) NotifyRoleChanged(ctx context.Context, target Identity, previous Role) error {
	n.calls = append(n.calls, previous)
	return n.err
}

var (
	testUser   = Identity{ID: 1, Email: "carol@example.com", Role: RoleUser}
	testAdmin  = Identity{ID: 2, Email: "adam@example.com", Role: RoleAdmin}
	testMaster = Identity{ID: 3, Email: "mia@example.com", Role: RoleMaster}
)

func TestAuthorizationInfoRoster(t *testing.T) {
	svc := NewService(newMemUsers(testUser, testAdmin, testMaster), nil, nil, nil)

	info, err := svc.AuthorizationInfo(context.Background(), testUser)
	require.NoError(t, err)
	assert.Equal(t, "User", info.RoleLabel)
	assert.Equal(t, CapabilityListing(RoleUser), info.Capabilities)
	assert.Nil(t, info.Roster)
	assert.False(t, info.CanManageUsers)

	info, err = svc.AuthorizationInfo(context.Background(), testMaster)
	require.NoError(t, err)
	require.Len(t, info.Roster, 3)
	assert.Equal(t, "adam@example.com", info.Roster[0].Email)
	assert.Equal(t, Roles(), info.AssignableRole)

	_, err = svc.AuthorizationInfo(context.Background(), Identity{})
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
}

func TestMasterPromotesUserToAdmin(t *testing.T) {
	store := newMemUsers(testUser, testMaster)
	notifier := &recordingNotifier{}
	auditor := &recordingAuditor{}
	svc := NewService(store, notifier, auditor, nil)

	updated, err := svc.UpdateUserRole(context.Background(), testMaster, testUser.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, updated.Role)
	assert.Equal(t, []Role{RoleUser}, notifier.calls)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, "user.role_changed", auditor.logs[0].Action)
	assert.Equal(t, testMaster.ID, auditor.logs[0].ActorID)
	assert.Equal(t, map[string]any{"from": "user", "to": "admin"}, auditor.logs[0].Meta)

	stored, err := store.GetIdentity(context.Background(), testUser.ID)
	require.NoError(t, err)
	assert.True(t, CanManagePublishers(stored))
	assert.False(t, CanCreatePosts(stored))
	assert.False(t, CanViewPublisherDirectory(stored))

	// Unchanged role does not notify again.
	_, err = svc.UpdateUserRole(context.Background(), testMaster, testUser.ID, "admin")
	require.NoError(t, err)
	assert.Len(t, notifier.calls, 1)
	assert.Len(t, auditor.logs, 1)
}

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (a *recordingAuditor) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestUpdateUserRoleRejections(t *testing.T) {
	store := newMemUsers(testUser, testAdmin, testMaster)
	svc := NewService(store, &recordingNotifier{err: errors.New("queue down")}, nil, nil)

	_, err := svc.UpdateUserRole(context.Background(), testAdmin, testUser.ID, "master")
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	_, err = svc.UpdateUserRole(context.Background(), testMaster, testUser.ID, "emperor")
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.UpdateUserRole(context.Background(), testMaster, 404, "admin")
	assert.True(t, IsNotFound(err))

	assert.Equal(t, RoleUser, store.byID[testUser.ID].Role)

	// Notification failures do not undo the change.
	updated, err := svc.UpdateUserRole(context.Background(), testMaster, testUser.ID, "master")
	require.NoError(t, err)
	assert.Equal(t, RoleMaster, updated.Role)
}
