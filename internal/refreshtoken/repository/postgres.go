package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"passwordless-auth/internal/refreshtoken/domain"
)

const selectColumns = `
	SELECT id, user_id, lookup_hash, token_hash, COALESCE(device_info, ''), COALESCE(host(ip_address), ''),
	       COALESCE(user_agent, ''), expires_at, is_revoked, revoked_at, parent_token_id, created_at
	FROM refresh_tokens`

const insertToken = `
	INSERT INTO refresh_tokens (id, user_id, lookup_hash, token_hash, device_info, ip_address, user_agent,
	                            expires_at, is_revoked, parent_token_id, created_at)
	VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, '')::inet, NULLIF($7, ''), $8, FALSE, $9, $10)`

const revokeToken = `
	UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2
	WHERE id = $1 AND is_revoked = FALSE`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PostgresRepository stores refresh tokens in the refresh_tokens table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a refresh token repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists t. ID and CreatedAt must be set by the caller.
func (r *PostgresRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	if err := insert(ctx, r.db, t); err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	return nil
}

func insert(ctx context.Context, ex execer, t *domain.RefreshToken) error {
	var parent any
	if t.ParentTokenID != nil {
		parent = *t.ParentTokenID
	}
	_, err := ex.ExecContext(ctx, insertToken,
		t.ID, t.UserID, t.LookupHash, t.TokenHash, t.DeviceInfo, t.IPAddress, t.UserAgent,
		t.ExpiresAt, parent, t.CreatedAt)
	return err
}

// GetByLookupHash returns the token indexed by lookupHash, or nil if not found.
func (r *PostgresRepository) GetByLookupHash(ctx context.Context, lookupHash string) (*domain.RefreshToken, error) {
	return r.getOne(ctx, selectColumns+` WHERE lookup_hash = $1`, lookupHash)
}

// GetByID returns the token with id, or nil if not found.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.RefreshToken, error) {
	return r.getOne(ctx, selectColumns+` WHERE id = $1`, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*domain.RefreshToken, error) {
	t, err := scanToken(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return t, nil
}

// Revoke marks id revoked. Revoking an already revoked token is a no-op that returns false.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, revokeToken, id, at)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return n > 0, nil
}

// CountChildren returns the number of tokens rotated from id.
func (r *PostgresRepository) CountChildren(ctx context.Context, id string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens WHERE parent_token_id = $1`, id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count child tokens: %w", err)
	}
	return n, nil
}

// RevokeAllForUser revokes every active token of userID.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET is_revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND is_revoked = FALSE`,
		userID, at)
	if err != nil {
		return 0, fmt.Errorf("revoke user tokens: %w", err)
	}
	return res.RowsAffected()
}

// ListActiveForUser returns the user's non-revoked, unexpired tokens, newest first.
func (r *PostgresRepository) ListActiveForUser(ctx context.Context, userID string, now time.Time) ([]*domain.RefreshToken, error) {
	rows, err := r.db.QueryContext(ctx,
		selectColumns+` WHERE user_id = $1 AND is_revoked = FALSE AND expires_at > $2 ORDER BY created_at DESC`,
		userID, now)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	var out []*domain.RefreshToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("list active tokens: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	return out, nil
}

// PurgeExpired deletes tokens whose expiry is before before.
func (r *PostgresRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return res.RowsAffected()
}

// Rotate revokes oldID and creates next atomically. The conditional revoke
// serializes concurrent rotations of the same token: only the caller whose
// UPDATE flips is_revoked inserts a successor.
func (r *PostgresRepository) Rotate(ctx context.Context, oldID string, next *domain.RefreshToken, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, revokeToken, oldID, at)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: revoke: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: revoke: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if err := insert(ctx, tx, next); err != nil {
		return false, fmt.Errorf("rotate refresh token: insert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("rotate refresh token: commit: %w", err)
	}
	return true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*domain.RefreshToken, error) {
	var (
		t         domain.RefreshToken
		revokedAt sql.NullTime
		parentID  sql.NullString
	)
	err := row.Scan(&t.ID, &t.UserID, &t.LookupHash, &t.TokenHash, &t.DeviceInfo, &t.IPAddress,
		&t.UserAgent, &t.ExpiresAt, &t.IsRevoked, &revokedAt, &parentID, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		ts := revokedAt.Time
		t.RevokedAt = &ts
	}
	if parentID.Valid {
		p := parentID.String
		t.ParentTokenID = &p
	}
	return &t, nil
}
