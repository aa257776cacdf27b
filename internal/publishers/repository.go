package publishers

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

type txdb interface {
	dbtx
	db.Beginner
}

// Repository provides PostgreSQL backed persistence for publishers.
type Repository struct {
	db txdb
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const publisherColumns = `id, name, description, active, created_at, updated_at`

// List returns all publishers ordered by name.
func (r *Repository) List(ctx context.Context) ([]Publisher, error) {
	return r.list(ctx, `SELECT `+publisherColumns+` FROM publishers ORDER BY name ASC`)
}

// ListActive returns active publishers ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]Publisher, error) {
	return r.list(ctx, `SELECT `+publisherColumns+` FROM publishers WHERE active ORDER BY name ASC`)
}

func (r *Repository) list(ctx context.Context, sql string) ([]Publisher, error) {
	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Publisher
	for rows.Next() {
		p, err := scanPublisher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get fetches a publisher by id.
func (r *Repository) Get(ctx context.Context, id int64) (Publisher, error) {
	p, err := scanPublisher(r.db.QueryRow(ctx, `SELECT `+publisherColumns+` FROM publishers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Publisher{}, fmt.Errorf("publishers: %d: %w", id, httpx.ErrNotFound)
		}
		return Publisher{}, err
	}
	return p, nil
}

// ListPosts returns the publisher's published posts, newest first.
func (r *Repository) ListPosts(ctx context.Context, publisherID int64) ([]PostSummary, error) {
	rows, err := r.db.Query(ctx, `SELECT p.id, p.title, u.email, p.created_at
FROM posts p
JOIN users u ON u.id = p.user_id
WHERE p.publisher_id = $1 AND p.status = 'published'
ORDER BY p.created_at DESC, p.id DESC`, publisherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PostSummary
	for rows.Next() {
		var s PostSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.AuthorEmail, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Create inserts a publisher. A taken name is reported as a validation error.
func (r *Repository) Create(ctx context.Context, in Input) (Publisher, error) {
	now := time.Now().UTC()
	p, err := scanPublisher(r.db.QueryRow(ctx, `INSERT INTO publishers (name, description, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4) RETURNING `+publisherColumns, in.Name, in.Description, in.Active, now))
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return Publisher{}, nameTaken()
		}
		return Publisher{}, err
	}
	return p, nil
}

// Update rewrites publisher attributes.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Publisher, error) {
	p, err := scanPublisher(r.db.QueryRow(ctx, `UPDATE publishers SET name = $1, description = $2, active = $3, updated_at = $4
WHERE id = $5 RETURNING `+publisherColumns, in.Name, in.Description, in.Active, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Publisher{}, fmt.Errorf("publishers: %d: %w", id, httpx.ErrNotFound)
		}
		if _, dup := db.UniqueViolation(err); dup {
			return Publisher{}, nameTaken()
		}
		return Publisher{}, err
	}
	return p, nil
}

// Delete clears the publisher from its posts and removes it in one transaction.
// It returns the number of posts that were detached.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	var detached int64
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE posts SET publisher_id = NULL, updated_at = $2 WHERE publisher_id = $1`, id, time.Now().UTC())
		if err != nil {
			return err
		}
		detached = tag.RowsAffected()
		tag, err = tx.Exec(ctx, `DELETE FROM publishers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("publishers: %d: %w", id, httpx.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return detached, nil
}

func scanPublisher(row pgx.Row) (Publisher, error) {
	var p Publisher
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

var _ Store = (*Repository)(nil)
