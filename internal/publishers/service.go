package publishers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/rbac"
	"github.com/gazette-app/gazette/internal/shared"
)

// Store is the persistence port for publishers.
type Store interface {
	List(ctx context.Context) ([]Publisher, error)
	ListActive(ctx context.Context) ([]Publisher, error)
	Get(ctx context.Context, id int64) (Publisher, error)
	ListPosts(ctx context.Context, publisherID int64) ([]PostSummary, error)
	Create(ctx context.Context, in Input) (Publisher, error)
	Update(ctx context.Context, id int64, in Input) (Publisher, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// Detail is a publisher together with its posts.
type Detail struct {
	Publisher Publisher
	Posts     []PostSummary
}

// Service implements publisher use cases behind the permission policy.
type Service struct {
	store   Store
	auditor shared.Auditor
	logger  *slog.Logger
}

// NewService constructs a Service. auditor may be nil.
func NewService(store Store, auditor shared.Auditor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, auditor: auditor, logger: logger}
}

// List returns every publisher ordered by name.
func (s *Service) List(ctx context.Context) ([]Publisher, error) {
	return s.store.List(ctx)
}

// ListActive returns the publishers offered on post forms.
func (s *Service) ListActive(ctx context.Context) ([]Publisher, error) {
	return s.store.ListActive(ctx)
}

// Get fetches a single publisher.
func (s *Service) Get(ctx context.Context, id int64) (Publisher, error) {
	return s.store.Get(ctx, id)
}

// Show loads a publisher and its posts concurrently.
func (s *Service) Show(ctx context.Context, id int64) (Detail, error) {
	var detail Detail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.Get(gctx, id)
		if err != nil {
			return err
		}
		detail.Publisher = p
		return nil
	})
	g.Go(func() error {
		posts, err := s.store.ListPosts(gctx, id)
		if err != nil {
			return fmt.Errorf("publishers: list posts: %w", err)
		}
		detail.Posts = posts
		return nil
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// Create adds a publisher on behalf of actor.
func (s *Service) Create(ctx context.Context, actor rbac.Identity, in Input) (Publisher, error) {
	if !rbac.CanManagePublishers(actor) {
		return Publisher{}, httpx.ErrForbidden
	}
	in = normalize(in)
	if err := Validate(in); err != nil {
		return Publisher{}, err
	}
	p, err := s.store.Create(ctx, in)
	if err != nil {
		return Publisher{}, err
	}
	s.audit(ctx, actor, "publisher.created", p.ID, map[string]any{"name": p.Name})
	return p, nil
}

// Update edits a publisher on behalf of actor.
func (s *Service) Update(ctx context.Context, actor rbac.Identity, id int64, in Input) (Publisher, error) {
	if !rbac.CanManagePublishers(actor) {
		return Publisher{}, httpx.ErrForbidden
	}
	in = normalize(in)
	if err := Validate(in); err != nil {
		return Publisher{}, err
	}
	p, err := s.store.Update(ctx, id, in)
	if err != nil {
		return Publisher{}, err
	}
	s.audit(ctx, actor, "publisher.updated", p.ID, map[string]any{"name": p.Name, "active": p.Active})
	return p, nil
}

// Delete removes a publisher. Its posts stay and lose their attribution.
func (s *Service) Delete(ctx context.Context, actor rbac.Identity, id int64) (int64, error) {
	if !rbac.CanManagePublishers(actor) {
		return 0, httpx.ErrForbidden
	}
	detached, err := s.store.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	s.audit(ctx, actor, "publisher.deleted", id, map[string]any{"detached_posts": detached})
	return detached, nil
}

func (s *Service) audit(ctx context.Context, actor rbac.Identity, action string, id int64, meta map[string]any) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "publisher",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit publisher", slog.String("action", action), slog.Any("error", err))
	}
}
