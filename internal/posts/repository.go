package posts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gazette-app/gazette/internal/platform/db"
	"github.com/gazette-app/gazette/internal/platform/httpx"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository provides PostgreSQL backed persistence for posts.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const selectPost = `SELECT p.id, p.title, p.content, p.status, p.user_id, p.publisher_id, p.created_at, p.updated_at,
       u.email, COALESCE(pub.name, '')
FROM posts p
JOIN users u ON u.id = p.user_id
LEFT JOIN publishers pub ON pub.id = p.publisher_id`

// ListPublished returns every published post, newest first.
func (r *Repository) ListPublished(ctx context.Context) ([]Post, error) {
	rows, err := r.db.Query(ctx, selectPost+`
WHERE p.status = 'published'
ORDER BY p.created_at DESC, p.id DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// ListByOwner returns one page of the owner's posts and the total matching the filter.
func (r *Repository) ListByOwner(ctx context.Context, ownerID int64, status Status, limit, offset int) ([]Post, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM posts WHERE user_id = $1 AND ($2 = '' OR status = $2)`,
		ownerID, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.db.Query(ctx, selectPost+`
WHERE p.user_id = $1 AND ($2 = '' OR p.status = $2)
ORDER BY p.created_at DESC, p.id DESC
LIMIT $3 OFFSET $4`, ownerID, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Get fetches a post with its author and publisher names.
func (r *Repository) Get(ctx context.Context, id int64) (Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, selectPost+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, fmt.Errorf("posts: %d: %w", id, httpx.ErrNotFound)
		}
		return Post{}, err
	}
	return p, nil
}

// Create inserts a post.
func (r *Repository) Create(ctx context.Context, p Post) (Post, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO posts (title, content, status, user_id, publisher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		p.Title, p.Content, string(p.Status), p.UserID, p.PublisherID, now).Scan(&p.ID)
	if err != nil {
		return Post{}, mapWriteError(err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return p, nil
}

// Update stores title, content, status and publisher.
func (r *Repository) Update(ctx context.Context, p Post) (Post, error) {
	now := time.Now().UTC()
	tag, err := r.db.Exec(ctx, `UPDATE posts SET title = $1, content = $2, status = $3, publisher_id = $4, updated_at = $5 WHERE id = $6`,
		p.Title, p.Content, string(p.Status), p.PublisherID, now, p.ID)
	if err != nil {
		return Post{}, mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return Post{}, fmt.Errorf("posts: %d: %w", p.ID, httpx.ErrNotFound)
	}
	p.UpdatedAt = now
	return p, nil
}

// Delete removes a post.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("posts: %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func mapWriteError(err error) error {
	if db.IsForeignKeyViolation(err) {
		return &ValidationError{Fields: map[string]string{"publisher_id": "must exist"}}
	}
	return err
}

func collect(rows pgx.Rows) ([]Post, error) {
	defer rows.Close()
	var out []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPost(row pgx.Row) (Post, error) {
	var (
		p      Post
		status string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &status, &p.UserID, &p.PublisherID, &p.CreatedAt, &p.UpdatedAt,
		&p.AuthorEmail, &p.PublisherName); err != nil {
		return Post{}, err
	}
	parsed, err := ParseStatus(status)
	if err != nil {
		return Post{}, err
	}
	p.Status = parsed
	return p, nil
}

var _ Store = (*Repository)(nil)
