package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gazette-app/gazette/internal/platform/httpx"
	"github.com/gazette-app/gazette/internal/rbac"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const userColumns = `id, email, role, created_at, updated_at`

// Get fetches a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("users: %d: %w", id, httpx.ErrNotFound)
		}
		return User{}, err
	}
	return user, nil
}

// GetIdentity resolves the principal for a session user id.
func (r *Repository) GetIdentity(ctx context.Context, id int64) (rbac.Identity, error) {
	user, err := r.Get(ctx, id)
	if err != nil {
		return rbac.Identity{}, err
	}
	return user.Identity(), nil
}

// ListUsers returns all users ordered by email.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY email ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListIdentities returns every identity ordered by email.
func (r *Repository) ListIdentities(ctx context.Context) ([]rbac.Identity, error) {
	users, err := r.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]rbac.Identity, len(users))
	for i, u := range users {
		ids[i] = u.Identity()
	}
	return ids, nil
}

// UpdateRole stores a new role for the user.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role rbac.Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %w", httpx.ErrValidation, rbac.ErrInvalidRole)
	}
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $1, updated_at = $2 WHERE id = $3`, string(role), time.Now(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("users: %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user User
		role string
	)
	if err := row.Scan(&user.ID, &user.Email, &role, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	parsed, err := rbac.ParseRole(role)
	if err != nil {
		return User{}, fmt.Errorf("users: %d: %w", user.ID, err)
	}
	user.Role = parsed
	return user, nil
}

var (
	_ rbac.UserStore      = (*Repository)(nil)
	_ rbac.IdentityLoader = (*Repository)(nil)
)
