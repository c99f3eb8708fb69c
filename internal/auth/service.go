package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"
)

const (
	refreshTokenExpiry = 7 * 24 * time.Hour
	refreshTokenBytes  = 32
	minPasswordLength  = 8
	maxPasswordLength  = 64
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired refresh token")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
	ErrPasswordTooLong    = fmt.Errorf("password must be at most %d characters", maxPasswordLength)
)

// Service implements authentication logic: password hashing, JWT creation,
// and refresh token management.
type Service struct {
	repo      *Repository
	jwtSecret string
}

func NewService(repo *Repository, jwtSecret string) *Service {
	return &Service{
		repo:      repo,
		jwtSecret: jwtSecret,
	}
}

// EnsureAdmin creates the initial admin account if one with the given
// email does not yet exist.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, displayName string) error {
	if err := validatePassword(password); err != nil {
		return fmt.Errorf("initial admin password: %w", err)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing initial admin password: %w", err)
	}

	admin, err := s.repo.CreateAdmin(ctx, email, hash, displayName)
	if err != nil {
		return fmt.Errorf("creating initial admin: %w", err)
	}

	slog.Info("initial admin ensured", "email", admin.Email, "id", admin.ID)
	return nil
}

// HashPassword hashes a password with Argon2id default parameters.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return hash, nil
}

// VerifyPassword reports whether the password matches the Argon2id hash.
func (s *Service) VerifyPassword(hash, password string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("verifying password: %w", err)
	}
	return match, nil
}

// Login validates the credentials and, on success, returns the admin id, a
// signed JWT access token, and a raw refresh token for the client cookie.
// Only the refresh token's SHA256 hash is stored.
func (s *Service) Login(ctx context.Context, email, password string) (adminID, accessToken, refreshToken string, err error) {
	admin, err := s.repo.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", "", ErrInvalidCredentials
		}
		return "", "", "", fmt.Errorf("looking up admin: %w", err)
	}

	match, err := s.VerifyPassword(admin.PasswordHash, password)
	if err != nil {
		return "", "", "", fmt.Errorf("verifying password: %w", err)
	}
	if !match {
		return "", "", "", ErrInvalidCredentials
	}

	accessToken, err = CreateAccessToken(admin.ID, admin.Email, s.jwtSecret)
	if err != nil {
		return "", "", "", err
	}

	refreshToken, err = s.createRefreshToken(ctx, admin.ID)
	if err != nil {
		return "", "", "", err
	}

	return admin.ID, accessToken, refreshToken, nil
}

// Refresh validates the raw refresh token, rotates it atomically, and
// returns new access and refresh tokens. A replayed token revokes every
// session of the admin.
func (s *Service) Refresh(ctx context.Context, oldToken string) (accessToken string, newRefreshToken string, err error) {
	oldTokenHash := hashToken(oldToken)

	stored, err := s.repo.GetRefreshToken(ctx, oldTokenHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("looking up refresh token: %w", err)
	}

	if time.Now().After(stored.ExpiresAt) {
		_ = s.repo.DeleteRefreshToken(ctx, oldTokenHash)
		return "", "", ErrInvalidToken
	}

	// New token material is generated before the transaction.
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating refresh token: %w", err)
	}
	newToken := hex.EncodeToString(raw)
	newTokenHash := hashToken(newToken)
	expiresAt := time.Now().Add(refreshTokenExpiry)

	if err := s.repo.RotateRefreshToken(ctx, oldTokenHash, newTokenHash, stored.AdminID, expiresAt); err != nil {
		if errors.Is(err, ErrTokenAlreadyUsed) {
			slog.Warn("refresh token replay detected, all sessions revoked",
				"admin_id", stored.AdminID)
			return "", "", ErrInvalidToken
		}
		return "", "", fmt.Errorf("rotating refresh token: %w", err)
	}

	admin, err := s.repo.GetAdminByID(ctx, stored.AdminID)
	if err != nil {
		return "", "", fmt.Errorf("looking up admin for refresh: %w", err)
	}

	accessToken, err = CreateAccessToken(admin.ID, admin.Email, s.jwtSecret)
	if err != nil {
		return "", "", err
	}

	return accessToken, newToken, nil
}

// Logout deletes the refresh token. A missing token is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	tokenHash := hashToken(refreshToken)
	if err := s.repo.DeleteRefreshToken(ctx, tokenHash); err != nil {
		return fmt.Errorf("deleting refresh token on logout: %w", err)
	}
	return nil
}

// createRefreshToken generates a random token, stores its SHA256 hash, and
// returns the raw hex-encoded token.
func (s *Service) createRefreshToken(ctx context.Context, adminID string) (string, error) {
	raw := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}

	token := hex.EncodeToString(raw)
	tokenHash := hashToken(token)
	expiresAt := time.Now().Add(refreshTokenExpiry)

	if err := s.repo.CreateRefreshToken(ctx, adminID, tokenHash, expiresAt); err != nil {
		return "", err
	}
	return token, nil
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// validatePassword enforces the length policy in runes, not bytes.
func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < minPasswordLength {
		return ErrPasswordTooShort
	}
	if n > maxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}
