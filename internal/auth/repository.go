// Package auth provides authentication for the Strata admin API: JWT
// access tokens, rotating refresh tokens, and Argon2id password hashing.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/strata-cms/strata/internal/database"
)

// ErrTokenAlreadyUsed is returned by RotateRefreshToken when the old token
// has already been consumed. All refresh tokens for the affected admin are
// revoked when this happens.
var ErrTokenAlreadyUsed = errors.New("refresh token already used")

// Admin is a row of the admins table.
type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    time.Time
}

// RefreshToken is a row of the refresh_tokens table.
type RefreshToken struct {
	ID        string
	AdminID   string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Repository provides database access for authentication operations.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// GetAdminByEmail returns the admin with the given email, or an error
// wrapping pgx.ErrNoRows when none exists.
func (r *Repository) GetAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, created_at FROM admins WHERE email = $1`,
		email,
	)

	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("admin not found: %w", err)
		}
		return nil, fmt.Errorf("querying admin by email: %w", err)
	}
	return &a, nil
}

// GetAdminByID returns the admin with the given id, or an error wrapping
// pgx.ErrNoRows when none exists.
func (r *Repository) GetAdminByID(ctx context.Context, adminID string) (*Admin, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT id, email, password_hash, display_name, created_at FROM admins WHERE id = $1`,
		adminID,
	)

	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("admin not found: %w", err)
		}
		return nil, fmt.Errorf("querying admin by id: %w", err)
	}
	return &a, nil
}

// CreateAdmin inserts a new admin. When one with the same email already
// exists the existing row is returned, which keeps EnsureAdmin free of a
// check-then-create race.
func (r *Repository) CreateAdmin(ctx context.Context, email, passwordHash, displayName string) (*Admin, error) {
	row := r.db.Pool().QueryRow(ctx,
		`INSERT INTO admins (email, password_hash, display_name) VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, email, password_hash, display_name, created_at`,
		email, passwordHash, displayName,
	)

	var a Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// ON CONFLICT DO NOTHING returned no row, the admin exists.
			return r.GetAdminByEmail(ctx, email)
		}
		return nil, fmt.Errorf("creating admin: %w", err)
	}
	return &a, nil
}

// CountAdmins returns the number of admin accounts.
func (r *Repository) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return count, nil
}

// CreateRefreshToken stores a refresh token hash for the admin.
func (r *Repository) CreateRefreshToken(ctx context.Context, adminID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.Pool().Exec(ctx,
		`INSERT INTO refresh_tokens (admin_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		adminID, tokenHash, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken looks up a refresh token by its SHA256 hash. Returns an
// error wrapping pgx.ErrNoRows when no matching token exists.
func (r *Repository) GetRefreshToken(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT id, admin_id, token_hash, expires_at, created_at
		 FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	)

	var t RefreshToken
	if err := row.Scan(&t.ID, &t.AdminID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("refresh token not found: %w", err)
		}
		return nil, fmt.Errorf("querying refresh token: %w", err)
	}
	return &t, nil
}

// RotateRefreshToken deletes the old refresh token and inserts the new one
// in a single transaction. When the old token was already consumed (0 rows
// deleted) every token for the admin is revoked and ErrTokenAlreadyUsed is
// returned.
func (r *Repository) RotateRefreshToken(ctx context.Context, oldTokenHash, newTokenHash, adminID string, expiresAt time.Time) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning refresh token rotation tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	tag, err := tx.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1 AND admin_id = $2`,
		oldTokenHash, adminID,
	)
	if err != nil {
		return fmt.Errorf("deleting old refresh token: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Possible replay. Revoke every session for this admin.
		if _, err := tx.Exec(ctx,
			`DELETE FROM refresh_tokens WHERE admin_id = $1`,
			adminID,
		); err != nil {
			return fmt.Errorf("revoking all tokens after replay: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("committing replay revocation: %w", err)
		}
		return ErrTokenAlreadyUsed
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO refresh_tokens (admin_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		adminID, newTokenHash, expiresAt,
	); err != nil {
		return fmt.Errorf("inserting new refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing refresh token rotation: %w", err)
	}
	return nil
}

// DeleteRefreshToken removes the token with the given hash. A missing
// token is not an error.
func (r *Repository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.db.Pool().Exec(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1`,
		tokenHash,
	)
	if err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// DeleteAllForAdmin removes every refresh token belonging to the admin.
func (r *Repository) DeleteAllForAdmin(ctx context.Context, adminID string) error {
	_, err := r.db.Pool().Exec(ctx,
		`DELETE FROM refresh_tokens WHERE admin_id = $1`,
		adminID,
	)
	if err != nil {
		return fmt.Errorf("deleting all tokens for admin: %w", err)
	}
	return nil
}

// DeleteExpiredTokens removes refresh tokens past their expiry.
func (r *Repository) DeleteExpiredTokens(ctx context.Context) error {
	_, err := r.db.Pool().Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at < now()`,
	)
	if err != nil {
		return fmt.Errorf("deleting expired tokens: %w", err)
	}
	return nil
}
