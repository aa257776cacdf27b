package posts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/publishers"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
)

// DefaultPageSize is the number of posts per my-posts page.
const DefaultPageSize = 5

// ErrAlreadySubmitted reports a replayed create form.
var ErrAlreadySubmitted = fmt.Errorf("posts: form already submitted: %w", httpx.ErrDuplicate)

// ErrNotOwner is returned when someone other than the owner mutates a post.
var ErrNotOwner = fmt.Errorf("posts: not the owner: %w", httpx.ErrForbidden)

// Store is the persistence port for posts.
type Store interface {
	ListPublished(ctx context.Context) ([]Post, error)
	ListByOwner(ctx context.Context, ownerID int64, status Status, limit, offset int) ([]Post, int, error)
	Get(ctx context.Context, id int64) (Post, error)
	Create(ctx context.Context, p Post) (Post, error)
	Update(ctx context.Context, p Post) (Post, error)
	Delete(ctx context.Context, id int64) error
}

// PublisherLookup resolves publishers offered on post forms.
type PublisherLookup interface {
	ListActive(ctx context.Context) ([]publishers.Publisher, error)
	Get(ctx context.Context, id int64) (publishers.Publisher, error)
}

// KeyClaimer collapses duplicate form submissions.
type KeyClaimer interface {
	CheckAndInsert(ctx context.Context, key, scope string) error
	Delete(ctx context.Context, key, scope string) error
}

// MinePage is one page of the caller's posts.
type MinePage struct {
	Posts      []Post
	Filter     Filter
	Pagination shared.Pagination
}

// Options configures a Service. Zero values are valid.
type Options struct {
	PageSize    int
	Idempotency KeyClaimer
	Auditor     shared.Auditor
	Logger      *slog.Logger
}

// Service implements the post use cases.
type Service struct {
	store      Store
	publishers PublisherLookup
	pageSize   int
	keys       KeyClaimer
	auditor    shared.Auditor
	logger     *slog.Logger
}

// NewService constructs a Service.
func NewService(store Store, pubs PublisherLookup, opts Options) *Service {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		store:      store,
		publishers: pubs,
		pageSize:   opts.PageSize,
		keys:       opts.Idempotency,
		auditor:    opts.Auditor,
		logger:     opts.Logger,
	}
}

// Index lists published posts newest first.
func (s *Service) Index(ctx context.Context) ([]Post, error) {
	return s.store.ListPublished(ctx)
}

// ActivePublishers lists the publishers a post may be attributed to.
func (s *Service) ActivePublishers(ctx context.Context) ([]publishers.Publisher, error) {
	return s.publishers.ListActive(ctx)
}

// Mine returns a page of the actor's own posts.
func (s *Service) Mine(ctx context.Context, actor rbac.Identity, filter Filter, page int) (MinePage, error) {
	if !actor.Authenticated() {
		return MinePage{}, httpx.ErrUnauthorized
	}
	page = shared.ClampPage(page, s.pageSize)
	offset := (page - 1) * s.pageSize
	items, total, err := s.store.ListByOwner(ctx, actor.ID, filter.Status(), s.pageSize, offset)
	if err != nil {
		return MinePage{}, err
	}
	return MinePage{Posts: items, Filter: filter, Pagination: shared.NewPagination(page, s.pageSize, total)}, nil
}

// Show returns a post. Drafts are only visible to their owner.
func (s *Service) Show(ctx context.Context, actor rbac.Identity, id int64) (Post, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if p.Draft() && !rbac.IsOwner(actor, p) {
		return Post{}, fmt.Errorf("posts: %d: %w", id, httpx.ErrNotFound)
	}
	return p, nil
}

// Editable returns a post the actor may edit.
func (s *Service) Editable(ctx context.Context, actor rbac.Identity, id int64) (Post, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !rbac.IsOwner(actor, p) {
		return Post{}, ErrNotOwner
	}
	return p, nil
}

// Create stores a new post owned by actor. A non-empty key makes the call idempotent.
func (s *Service) Create(ctx context.Context, actor rbac.Identity, in Input, key string) (Post, error) {
	if !actor.Authenticated() {
		return Post{}, httpx.ErrUnauthorized
	}
	in = normalize(in)
	if err := Validate(actor, in); err != nil {
		return Post{}, err
	}
	if err := s.checkPublisher(ctx, in.PublisherID); err != nil {
		return Post{}, err
	}

	scope := "posts.create:" + strconv.FormatInt(actor.ID, 10)
	if key != "" && s.keys != nil {
		if err := s.keys.CheckAndInsert(ctx, key, scope); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Post{}, ErrAlreadySubmitted
			}
			return Post{}, err
		}
	}

	p, err := s.store.Create(ctx, Post{
		Title:       in.Title,
		Content:     in.Content,
		Status:      resolveStatus(in),
		UserID:      actor.ID,
		PublisherID: in.PublisherID,
	})
	if err != nil {
		if key != "" && s.keys != nil {
			if derr := s.keys.Delete(ctx, key, scope); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		return Post{}, err
	}
	s.audit(ctx, actor, "post.created", p.ID, map[string]any{"status": string(p.Status)})
	return p, nil
}

// Update edits a post. Only the owner may do so, whatever their role.
func (s *Service) Update(ctx context.Context, actor rbac.Identity, id int64, in Input) (Post, error) {
	current, err := s.Editable(ctx, actor, id)
	if err != nil {
		return Post{}, err
	}
	in = normalize(in)
	if err := Validate(actor, in); err != nil {
		return Post{}, err
	}
	if !samePublisher(in.PublisherID, current.PublisherID) {
		if err := s.checkPublisher(ctx, in.PublisherID); err != nil {
			return Post{}, err
		}
	}
	if in.Status == "" && !in.SaveDraft {
		in.Status = current.Status
	}
	current.Title = in.Title
	current.Content = in.Content
	current.Status = resolveStatus(in)
	current.PublisherID = in.PublisherID
	updated, err := s.store.Update(ctx, current)
	if err != nil {
		return Post{}, err
	}
	s.audit(ctx, actor, "post.updated", id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// Delete removes a post. Only the owner may do so, whatever their role.
func (s *Service) Delete(ctx context.Context, actor rbac.Identity, id int64) error {
	if _, err := s.Editable(ctx, actor, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, "post.deleted", id, nil)
	return nil
}

func (s *Service) checkPublisher(ctx context.Context, id *int64) error {
	if id == nil || s.publishers == nil {
		return nil
	}
	pub, err := s.publishers.Get(ctx, *id)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return &ValidationError{Fields: map[string]string{"publisher_id": "must exist"}}
		}
		return err
	}
	if !pub.Active {
		return &ValidationError{Fields: map[string]string{"publisher_id": "is not active"}}
	}
	return nil
}

func samePublisher(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *Service) audit(ctx context.Context, actor rbac.Identity, action string, id int64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "post",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit post", slog.String("action", action), slog.Any("error", err))
	}
}
