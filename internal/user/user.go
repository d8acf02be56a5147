// Package user provides the minimal User repository the core components
// need: soft-delete-aware lookups and the timezone lookup the sync
// orchestrator uses to drive the streak engine. Profile CRUD, OAuth, and
// follow/feed behavior are collaborator concerns outside this package.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agusmdev/burntop/internal/api"
)

// User is the identity anchor described in §3.
type User struct {
	ID          uuid.UUID
	Email       string
	Username    string
	DisplayName *string
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a user by id, excluding soft-deleted rows. deleted_at IS NULL
// filtering happens here, at the repository boundary, rather than being
// hidden behind model inheritance.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, username, display_name, is_public, created_at, updated_at, deleted_at
		 FROM users WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.IsPublic, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, api.NewNotFoundError("user", id.String())
	}
	if err != nil {
		return nil, api.NewDatabaseError("loading user", err)
	}
	return &u, nil
}

// Create inserts a new user, mapping a unique-constraint violation on
// email or username to a CONFLICT error.
func (r *Repository) Create(ctx context.Context, email, username string) (*User, error) {
	id := uuid.New()
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, is_public, created_at, updated_at)
		 VALUES ($1, $2, $3, true, $4, $4)`,
		id, email, username, now,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_users_email") {
			return nil, api.NewConflictError("user", "email")
		}
		if isUniqueViolation(err, "uq_users_username") {
			return nil, api.NewConflictError("user", "username")
		}
		return nil, api.NewDatabaseError("creating user", err)
	}
	return &User{ID: id, Email: email, Username: username, IsPublic: true, CreatedAt: now, UpdatedAt: now}, nil
}

// SoftDelete sets deleted_at, excluding the user from all reads by
// default without removing its rows.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return api.NewDatabaseError("soft-deleting user", err)
	}
	if tag.RowsAffected() == 0 {
		return api.NewNotFoundError("user", id.String())
	}
	return nil
}

// UserTimezone satisfies sync.TimezoneLookup: the stored streak timezone,
// or "UTC" when the user has no streak row yet.
func (r *Repository) UserTimezone(ctx context.Context, userID uuid.UUID) (string, error) {
	var tz string
	err := r.pool.QueryRow(ctx, `SELECT timezone FROM streaks WHERE user_id = $1`, userID).Scan(&tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return "UTC", nil
	}
	if err != nil {
		return "UTC", fmt.Errorf("loading user timezone: %w", err)
	}
	return tz, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	const uniqueViolationCode = "23505"
	return pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == constraint
}
