package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/learnhub/auth-service/pkg/errors"
)

// PasswordResetTokenRepository implements repository.PasswordResetTokenRepository
// using PostgreSQL.
type PasswordResetTokenRepository struct {
	db DB
}

// NewPasswordResetTokenRepository creates a new PostgreSQL-backed reset token repository.
func NewPasswordResetTokenRepository(db DB) *PasswordResetTokenRepository {
	return &PasswordResetTokenRepository{db: db}
}

// Replace atomically discards any pending reset secret for the user and
// stores the new one. The delete+insert runs in a transaction so the old
// secret is never valid alongside the new one.
func (r *PasswordResetTokenRepository) Replace(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM password_reset_tokens WHERE user_id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("discard previous reset token: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO password_reset_tokens (user_id, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		userID, tokenHash, expiresAt, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Consume deletes the matching non-expired secret and returns its user id.
// The single DELETE ... RETURNING statement makes concurrent consumption
// attempts race safely: exactly one wins, the rest see ErrNotFound.
// A secret whose expiry equals now is already expired.
func (r *PasswordResetTokenRepository) Consume(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	query := `
		DELETE FROM password_reset_tokens
		WHERE token_hash = $1 AND expires_at > $2
		RETURNING user_id`

	var userID string
	err := r.db.QueryRow(ctx, query, tokenHash, now).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("consume reset token: %w", err)
	}

	return userID, nil
}

// DeleteByUserID clears any pending reset secret for the user.
func (r *PasswordResetTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete reset tokens by user: %w", err)
	}
	return nil
}

// --- Email Verification Token Repository ---

// EmailVerificationTokenRepository implements
// repository.EmailVerificationTokenRepository using PostgreSQL.
type EmailVerificationTokenRepository struct {
	db DB
}

// NewEmailVerificationTokenRepository creates a new PostgreSQL-backed
// verification token repository.
func NewEmailVerificationTokenRepository(db DB) *EmailVerificationTokenRepository {
	return &EmailVerificationTokenRepository{db: db}
}

// Replace atomically discards any pending verification secret for the user
// and stores the new one.
func (r *EmailVerificationTokenRepository) Replace(ctx context.Context, userID, tokenHash string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`DELETE FROM email_verification_tokens WHERE user_id = $1`,
		userID,
	); err != nil {
		return fmt.Errorf("discard previous verification token: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO email_verification_tokens (user_id, token_hash, created_at)
		 VALUES ($1, $2, $3)`,
		userID, tokenHash, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("insert verification token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// Consume deletes the matching secret and returns its user id.
func (r *EmailVerificationTokenRepository) Consume(ctx context.Context, tokenHash string) (string, error) {
	query := `
		DELETE FROM email_verification_tokens
		WHERE token_hash = $1
		RETURNING user_id`

	var userID string
	err := r.db.QueryRow(ctx, query, tokenHash).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.ErrNotFound
		}
		return "", fmt.Errorf("consume verification token: %w", err)
	}

	return userID, nil
}

// DeleteByUserID clears any pending verification secret for the user.
func (r *EmailVerificationTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM email_verification_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete verification tokens by user: %w", err)
	}
	return nil
}
