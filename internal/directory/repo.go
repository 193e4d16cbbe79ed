package directory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
)

const userColumns = `id, email, password_hash, role, COALESCE(teacher_id, ''), scheduled_time_in, scheduled_time_out, created_at`

// Repository reads users from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(ctx context.Context, id string) (User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1`, normalizeEmail(email))
}

// InternProfile satisfies attendance.ProfileSource.
func (r *Repository) InternProfile(ctx context.Context, internID string) (attendance.InternProfile, error) {
	u, err := r.FindByID(ctx, internID)
	if err != nil {
		return attendance.InternProfile{}, err
	}
	return u.Profile()
}

func (r *Repository) one(ctx context.Context, query string, arg string) (User, error) {
	var u User
	var role string
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &u.TeacherID,
		&u.ScheduledTimeIn, &u.ScheduledTimeOut, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	return u, nil
}
