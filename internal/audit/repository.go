package audit

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const timelineSelect = `
SELECT a.occurred_at, COALESCE(u.email, ''), a.action, a.entity, a.entity_id, a.meta::text
FROM audit_logs a
LEFT JOIN users u ON u.id = a.actor_id
WHERE a.occurred_at >= $1 AND a.occurred_at < $2
  AND ($3 = '' OR lower(u.email) = lower($3))
  AND ($4 = '' OR a.entity = $4)
  AND ($5 = '' OR a.action = $5)
ORDER BY a.occurred_at DESC, a.id DESC`

// Window returns up to limit rows after skipping offset.
func (r *Repository) Window(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineSelect+` OFFSET $6 LIMIT $7`, filterArgs(f, offset, limit)...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

// All returns every matching row.
func (r *Repository) All(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, timelineSelect, filterArgs(f, 0, 0)[:5]...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func filterArgs(f TimelineFilters, offset, limit int) []any {
	// To is a calendar day and therefore inclusive.
	end := f.To.Add(24 * time.Hour)
	return []any{f.From, end, strings.TrimSpace(f.Actor), strings.TrimSpace(f.Entity), strings.TrimSpace(f.Action), offset, limit}
}

func collect(rows pgx.Rows) ([]TimelineRow, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (TimelineRow, error) {
		var t TimelineRow
		err := row.Scan(&t.At, &t.ActorEmail, &t.Action, &t.Entity, &t.EntityID, &t.Meta)
		return t, err
	})
}

var _ Store = (*Repository)(nil)
