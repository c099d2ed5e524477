package repository

import (
	"context"
	"time"

	"github.com/learnhub/auth-service/internal/domain"
)

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address. The lookup is
	// case-insensitive; emails are stored lowercased.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// Update modifies an existing user in the store.
	Update(ctx context.Context, user *domain.User) error

	// TouchLastLogin records a successful login timestamp.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	// Delete removes a user from the store by their identifier.
	Delete(ctx context.Context, id string) error
}

// PasswordResetTokenRepository manages pending password reset secrets.
// At most one pending secret exists per user.
type PasswordResetTokenRepository interface {
	// Replace atomically discards any pending reset secret for the user and
	// stores the new one, so issuing a new secret invalidates the previous.
	Replace(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error

	// Consume deletes the matching non-expired secret and returns its user id.
	// Returns ErrNotFound for an unknown hash or a lapsed expiry; a second
	// consumption of the same secret therefore also fails.
	Consume(ctx context.Context, tokenHash string, now time.Time) (string, error)

	// DeleteByUserID clears any pending reset secret for the user.
	DeleteByUserID(ctx context.Context, userID string) error
}

// EmailVerificationTokenRepository manages pending email verification secrets.
// At most one pending secret exists per user.
type EmailVerificationTokenRepository interface {
	// Replace atomically discards any pending verification secret for the
	// user and stores the new one.
	Replace(ctx context.Context, userID, tokenHash string) error

	// Consume deletes the matching secret and returns its user id.
	// Returns ErrNotFound for an unknown hash.
	Consume(ctx context.Context, tokenHash string) (string, error)

	// DeleteByUserID clears any pending verification secret for the user.
	DeleteByUserID(ctx context.Context, userID string) error
}
