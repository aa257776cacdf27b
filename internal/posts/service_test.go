package posts_test

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/posts"
	"github.com/gazette-app/gazette/internal/publishers"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	clock  time.Time
	items  map[int64]posts.Post

	lastOffset int
}

func newMemStore() *memStore {
	return &memStore{items: map[int64]posts.Post{}, clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *memStore) ordered(keep func(posts.Post) bool) []posts.Post {
	var out []posts.Post
	for _, p := range m.items {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *memStore) ListPublished(ctx context.Context) ([]posts.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordered(func(p posts.Post) bool { return p.Status == posts.StatusPublished }), nil
}

func (m *memStore) ListByOwner(ctx context.Context, ownerID int64, status posts.Status, limit, offset int) ([]posts.Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOffset = offset
	all := m.ordered(func(p posts.Post) bool {
		return p.UserID == ownerID && (status == "" || p.Status == status)
	})
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *memStore) Get(ctx context.Context, id int64) (posts.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return posts.Post{}, httpx.ErrNotFound
	}
	return p, nil
}

func (m *memStore) Create(ctx context.Context, p posts.Post) (posts.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	p.ID = m.nextID
	// Posts created in the same instant still page deterministically by id.
	if m.nextID%2 == 0 {
		m.clock = m.clock.Add(time.Minute)
	}
	p.CreatedAt, p.UpdatedAt = m.clock, m.clock
	m.items[p.ID] = p
	return p, nil
}

func (m *memStore) Update(ctx context.Context, p posts.Post) (posts.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[p.ID]; !ok {
		return posts.Post{}, httpx.ErrNotFound
	}
	m.items[p.ID] = p
	return p, nil
}

func (m *memStore) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type stubPublishers struct {
	items map[int64]publishers.Publisher
}

func (s stubPublishers) ListActive(ctx context.Context) ([]publishers.Publisher, error) {
	var out []publishers.Publisher
	for _, p := range s.items {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s stubPublishers) Get(ctx context.Context, id int64) (publishers.Publisher, error) {
	p, ok := s.items[id]
	if !ok {
		return publishers.Publisher{}, httpx.ErrNotFound
	}
	return p, nil
}

type memKeys struct {
	claimed map[string]bool
}

func (k *memKeys) CheckAndInsert(ctx context.Context, key, scope string) error {
	if k.claimed[scope+"/"+key] {
		return shared.ErrIdempotencyConflict
	}
	k.claimed[scope+"/"+key] = true
	return nil
}

func (k *memKeys) Delete(ctx context.Context, key, scope string) error {
	delete(k.claimed, scope+"/"+key)
	return nil
}

var (
	alice  = rbac.Identity{ID: 1, Email: "alice@example.com", Role: rbac.RoleUser}
	bob    = rbac.Identity{ID: 2, Email: "bob@example.com", Role: rbac.RoleUser}
	admin  = rbac.Identity{ID: 3, Email: "admin@example.com", Role: rbac.RoleAdmin}
	master = rbac.Identity{ID: 4, Email: "master@example.com", Role: rbac.RoleMaster}
)

func pubs() stubPublishers {
	return stubPublishers{items: map[int64]publishers.Publisher{
		1: {ID: 1, Name: "Active Press", Active: true},
		2: {ID: 2, Name: "Dormant Press", Active: false},
	}}
}

func newService(store *memStore) *posts.Service {
	return posts.NewService(store, pubs(), posts.Options{Idempotency: &memKeys{claimed: map[string]bool{}}})
}

func validInput() posts.Input {
	return posts.Input{Title: "Hello world", Content: "This is long enough content."}
}

func TestCreateRejectsShortContent(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	_, err := svc.Create(context.Background(), alice, posts.Input{Title: "Hello", Content: "short"}, "")
	var verr *posts.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, verr.Fields, "content")
	assert.Empty(t, store.items)
}

func TestCreateDefaultsToPublished(t *testing.T) {
	svc := newService(newMemStore())
	p, err := svc.Create(context.Background(), alice, validInput(), "")
	require.NoError(t, err)
	assert.Equal(t, posts.StatusPublished, p.Status)
	assert.Equal(t, alice.ID, p.UserID)

	in := validInput()
	in.Status = posts.StatusPublished
	in.SaveDraft = true
	p, err = svc.Create(context.Background(), alice, in, "")
	require.NoError(t, err)
	assert.Equal(t, posts.StatusDraft, p.Status)
}

func TestCreateByNonUserFailsValidation(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	for _, actor := range []rbac.Identity{admin, master} {
		_, err := svc.Create(context.Background(), actor, validInput(), "")
		var verr *posts.ValidationError
		require.ErrorAs(t, err, &verr, actor.Role.String())
		assert.Equal(t, "must have 'user' role to create posts", verr.Fields["user"])
	}
	assert.Empty(t, store.items)
}

func TestCreateChecksPublisher(t *testing.T) {
	svc := newService(newMemStore())
	for _, tc := range []struct {
		id   int64
		want string
	}{{id: 2, want: "is not active"}, {id: 99, want: "must exist"}} {
		in := validInput()
		in.PublisherID = &tc.id
		_, err := svc.Create(context.Background(), alice, in, "")
		var verr *posts.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tc.want, verr.Fields["publisher_id"])
	}

	id := int64(1)
	in := validInput()
	in.PublisherID = &id
	p, err := svc.Create(context.Background(), alice, in, "")
	require.NoError(t, err)
	require.NotNil(t, p.PublisherID)
	assert.Equal(t, int64(1), *p.PublisherID)
}

func TestCreateIsIdempotentPerKey(t *testing.T) {
	store := newMemStore()
	svc := newService(store)

	_, err := svc.Create(context.Background(), alice, validInput(), "key-1")
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), alice, validInput(), "key-1")
	assert.ErrorIs(t, err, posts.ErrAlreadySubmitted)
	assert.ErrorIs(t, err, httpx.ErrDuplicate)
	assert.Len(t, store.items, 1)

	// Keys are scoped per owner.
	_, err = svc.Create(context.Background(), bob, validInput(), "key-1")
	require.NoError(t, err)
	assert.Len(t, store.items, 2)
}

func TestOnlyOwnerMayMutate(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	p, err := svc.Create(context.Background(), alice, validInput(), "")
	require.NoError(t, err)

	for _, actor := range []rbac.Identity{bob, admin, master} {
		_, err := svc.Update(context.Background(), actor, p.ID, validInput())
		assert.ErrorIs(t, err, httpx.ErrForbidden, actor.Email)
		assert.ErrorIs(t, svc.Delete(context.Background(), actor, p.ID), httpx.ErrForbidden, actor.Email)
	}

	in := validInput()
	in.Title = "Renamed title"
	updated, err := svc.Update(context.Background(), alice, p.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Renamed title", updated.Title)
	assert.Equal(t, posts.StatusPublished, updated.Status)

	require.NoError(t, svc.Delete(context.Background(), alice, p.ID))
	_, err = svc.Show(context.Background(), alice, p.ID)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateTogglesStatus(t *testing.T) {
	svc := newService(newMemStore())
	p, err := svc.Create(context.Background(), alice, validInput(), "")
	require.NoError(t, err)

	in := validInput()
	in.Status = posts.StatusDraft
	updated, err := svc.Update(context.Background(), alice, p.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.Draft())

	in.Status = posts.StatusPublished
	updated, err = svc.Update(context.Background(), alice, p.ID, in)
	require.NoError(t, err)
	assert.False(t, updated.Draft())

	in.Status = "archived"
	_, err = svc.Update(context.Background(), alice, p.ID, in)
	var verr *posts.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "status")
}

func TestDraftVisibleToOwnerOnly(t *testing.T) {
	svc := newService(newMemStore())
	in := validInput()
	in.SaveDraft = true
	p, err := svc.Create(context.Background(), alice, in, "")
	require.NoError(t, err)

	got, err := svc.Show(context.Background(), alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	for _, actor := range []rbac.Identity{bob, admin, master} {
		_, err := svc.Show(context.Background(), actor, p.ID)
		assert.ErrorIs(t, err, httpx.ErrNotFound)
	}

	index, err := svc.Index(context.Background())
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestMinePagesNewestFirst(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	var created []int64
	for i := 0; i < 12; i++ {
		in := validInput()
		in.Title = "Post number " + strings.Repeat("x", i%3+1)
		in.SaveDraft = i%4 == 0
		p, err := svc.Create(context.Background(), alice, in, "")
		require.NoError(t, err)
		created = append(created, p.ID)
	}
	_, err := svc.Create(context.Background(), bob, validInput(), "")
	require.NoError(t, err)

	var seen []int64
	for page, want := range []int{5, 5, 2} {
		result, err := svc.Mine(context.Background(), alice, posts.FilterAll, page+1)
		require.NoError(t, err)
		require.Len(t, result.Posts, want)
		assert.Equal(t, 12, result.Pagination.Total)
		assert.Equal(t, 3, result.Pagination.TotalPages)
		for _, p := range result.Posts {
			seen = append(seen, p.ID)
		}
	}
	for i := range seen {
		assert.Equal(t, created[len(created)-1-i], seen[i])
	}

	drafts, err := svc.Mine(context.Background(), alice, posts.FilterDraft, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, drafts.Pagination.Total)
	for _, p := range drafts.Posts {
		assert.True(t, p.Draft())
	}

	published, err := svc.Mine(context.Background(), alice, posts.ParseFilter("published"), 2)
	require.NoError(t, err)
	assert.Equal(t, 9, published.Pagination.Total)
	assert.Len(t, published.Posts, 4)
}

func TestMineHugePageReturnsEmptyPage(t *testing.T) {
	store := newMemStore()
	svc := newService(store)
	_, err := svc.Create(context.Background(), alice, validInput(), "")
	require.NoError(t, err)

	result, err := svc.Mine(context.Background(), alice, posts.FilterAll, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, result.Posts)
	assert.Equal(t, 1, result.Pagination.Total)
	assert.Positive(t, store.lastOffset)
	assert.LessOrEqual(t, store.lastOffset, math.MaxInt32)
}

func TestParseFilterFallsBackToAll(t *testing.T) {
	assert.Equal(t, posts.FilterAll, posts.ParseFilter(""))
	assert.Equal(t, posts.FilterAll, posts.ParseFilter("archived"))
	assert.Equal(t, posts.FilterDraft, posts.ParseFilter(" Draft "))
}
