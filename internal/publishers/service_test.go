package publishers_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/publishers"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]publishers.Publisher
	// postPublisher maps post id to publisher id.
	postPublisher map[int64]int64
	posts         map[int64][]publishers.PostSummary
}

func newMemStore() *memStore {
	return &memStore{items: map[int64]publishers.Publisher{}, postPublisher: map[int64]int64{}, posts: map[int64][]publishers.PostSummary{}}
}

func (m *memStore) sorted(filter func(publishers.Publisher) bool) []publishers.Publisher {
	var out []publishers.Publisher
	for _, p := range m.items {
		if filter(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *memStore) List(ctx context.Context) ([]publishers.Publisher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(publishers.Publisher) bool { return true }), nil
}

func (m *memStore) ListActive(ctx context.Context) ([]publishers.Publisher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted(func(p publishers.Publisher) bool { return p.Active }), nil
}

func (m *memStore) Get(ctx context.Context, id int64) (publishers.Publisher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return publishers.Publisher{}, httpx.ErrNotFound
	}
	return p, nil
}

func (m *memStore) ListPosts(ctx context.Context, id int64) ([]publishers.PostSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[id], nil
}

func (m *memStore) nameTaken(name string, except int64) bool {
	for id, p := range m.items {
		if id != except && p.Name == name {
			return true
		}
	}
	return false
}

func (m *memStore) Create(ctx context.Context, in publishers.Input) (publishers.Publisher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(in.Name, 0) {
		return publishers.Publisher{}, &publishers.ValidationError{Fields: map[string]string{"name": "has already been taken"}}
	}
	m.nextID++
	p := publishers.Publisher{ID: m.nextID, Name: in.Name, Description: in.Description, Active: in.Active}
	m.items[p.ID] = p
	return p, nil
}

func (m *memStore) Update(ctx context.Context, id int64, in publishers.Input) (publishers.Publisher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return publishers.Publisher{}, httpx.ErrNotFound
	}
	if m.nameTaken(in.Name, id) {
		return publishers.Publisher{}, &publishers.ValidationError{Fields: map[string]string{"name": "has already been taken"}}
	}
	p.Name, p.Description, p.Active = in.Name, in.Description, in.Active
	m.items[id] = p
	return p, nil
}

func (m *memStore) Delete(ctx context.Context, id int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return 0, httpx.ErrNotFound
	}
	var detached int64
	for postID, pubID := range m.postPublisher {
		if pubID == id {
			m.postPublisher[postID] = 0
			detached++
		}
	}
	delete(m.items, id)
	return detached, nil
}

type recordingAuditor struct {
	entries []shared.AuditLog
}

func (a *recordingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

var (
	user   = rbac.Identity{ID: 1, Email: "user@example.com", Role: rbac.RoleUser}
	admin  = rbac.Identity{ID: 2, Email: "admin@example.com", Role: rbac.RoleAdmin}
	master = rbac.Identity{ID: 3, Email: "master@example.com", Role: rbac.RoleMaster}
)

func TestCreateRequiresPublisherManagement(t *testing.T) {
	svc := publishers.NewService(newMemStore(), nil, nil)

	_, err := svc.Create(context.Background(), user, publishers.Input{Name: "Daily"})
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	for _, actor := range []rbac.Identity{admin, master} {
		p, err := svc.Create(context.Background(), actor, publishers.Input{Name: "Daily " + actor.Role.String(), Active: true})
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
	}
}

func TestCreateValidatesLengths(t *testing.T) {
	svc := publishers.NewService(newMemStore(), nil, nil)
	long := make([]byte, 501)
	for i := range long {
		long[i] = 'x'
	}

	_, err := svc.Create(context.Background(), admin, publishers.Input{Name: " A ", Description: string(long)})
	var verr *publishers.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "description")
}

func TestDuplicateNameLeavesFirstUnchanged(t *testing.T) {
	store := newMemStore()
	svc := publishers.NewService(store, nil, nil)

	first, err := svc.Create(context.Background(), admin, publishers.Input{Name: "Herald", Description: "original"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), master, publishers.Input{Name: "Herald", Description: "copy"})
	var verr *publishers.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "has already been taken", verr.Fields["name"])

	got, err := svc.Get(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", got.Description)
	all, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteDetachesPosts(t *testing.T) {
	store := newMemStore()
	auditor := &recordingAuditor{}
	svc := publishers.NewService(store, auditor, nil)

	p, err := svc.Create(context.Background(), admin, publishers.Input{Name: "Gazette"})
	require.NoError(t, err)
	for postID := int64(1); postID <= 3; postID++ {
		store.postPublisher[postID] = p.ID
	}

	_, err = svc.Delete(context.Background(), user, p.ID)
	assert.ErrorIs(t, err, httpx.ErrForbidden)

	detached, err := svc.Delete(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detached)
	assert.Len(t, store.postPublisher, 3)
	for _, pubID := range store.postPublisher {
		assert.Zero(t, pubID)
	}
	_, err = svc.Get(context.Background(), p.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	require.Len(t, auditor.entries, 2)
	assert.Equal(t, "publisher.deleted", auditor.entries[1].Action)
}

func TestShowLoadsPublisherAndPosts(t *testing.T) {
	store := newMemStore()
	svc := publishers.NewService(store, nil, nil)
	p, err := svc.Create(context.Background(), admin, publishers.Input{Name: "Courier"})
	require.NoError(t, err)
	store.posts[p.ID] = []publishers.PostSummary{{ID: 9, Title: "Latest"}, {ID: 4, Title: "Older"}}

	detail, err := svc.Show(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Courier", detail.Publisher.Name)
	assert.Len(t, detail.Posts, 2)

	_, err = svc.Show(context.Background(), 999)
	assert.True(t, errors.Is(err, httpx.ErrNotFound))
}

func TestListActiveHidesInactive(t *testing.T) {
	svc := publishers.NewService(newMemStore(), nil, nil)
	_, err := svc.Create(context.Background(), admin, publishers.Input{Name: "Beta", Active: true})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), admin, publishers.Input{Name: "Alpha", Active: false})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), admin, publishers.Input{Name: "Aardvark", Active: true})
	require.NoError(t, err)

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "Aardvark", active[0].Name)
	assert.Equal(t, "Beta", active[1].Name)
}
