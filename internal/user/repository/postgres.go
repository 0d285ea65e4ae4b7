package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"passwordless-auth/internal/user/domain"
)

const userColumns = `
	SELECT id, email, first_name, last_name, role, email_verified, last_login_at,
	       COALESCE(avatar_url, ''), provider, created_at, updated_at
	FROM users`

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a user repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID returns the user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, userColumns+` WHERE id = $1`, id)
}

// GetByEmail returns the user with the given normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, userColumns+` WHERE email = $1`, email)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, arg string) (*domain.User, error) {
	var (
		u         domain.User
		role      string
		lastLogin sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &role,
		&u.EmailVerified, &lastLogin, &u.AvatarURL, &u.Provider, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = domain.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return &u, nil
}

// Create persists the user. The user must have ID set; it is not assigned by this method.
// Returns ErrEmailTaken when the email is already registered.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, role, email_verified, last_login_at,
		                   avatar_url, provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)`,
		u.ID, u.Email, u.FirstName, u.LastName, string(u.Role), u.EmailVerified, nullTime(u),
		u.AvatarURL, u.Provider, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes the mutable profile and verification fields of u.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET first_name = $2, last_name = $3, email_verified = $4, last_login_at = $5,
		                 avatar_url = NULLIF($6, ''), updated_at = $7
		WHERE id = $1`,
		u.ID, u.FirstName, u.LastName, u.EmailVerified, nullTime(u), u.AvatarURL, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func nullTime(u *domain.User) sql.NullTime {
	if u.LastLoginAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *u.LastLoginAt, Valid: true}
}
