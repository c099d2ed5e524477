package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/learnhub/auth-service/internal/auth"
	"github.com/learnhub/auth-service/internal/domain"
	"github.com/learnhub/auth-service/internal/event"
	"github.com/learnhub/auth-service/internal/mailer"
	"github.com/learnhub/auth-service/internal/repository"
	apperrors "github.com/learnhub/auth-service/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// opaqueTokenBytes is the entropy of reset/verification secrets.
const opaqueTokenBytes = 32

// AuthService implements the business logic for credential and token operations.
type AuthService struct {
	userRepo   repository.UserRepository
	resetRepo  repository.PasswordResetTokenRepository
	verifyRepo repository.EmailVerificationTokenRepository
	jwtManager *auth.JWTManager
	mailer     mailer.Sender
	producer   *event.Producer
	logger     *slog.Logger

	resetTTL  time.Duration
	publicURL string
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	resetRepo repository.PasswordResetTokenRepository,
	verifyRepo repository.EmailVerificationTokenRepository,
	jwtManager *auth.JWTManager,
	sender mailer.Sender,
	producer *event.Producer,
	logger *slog.Logger,
	resetTTL time.Duration,
	publicURL string,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		resetRepo:  resetRepo,
		verifyRepo: verifyRepo,
		jwtManager: jwtManager,
		mailer:     sender,
		producer:   producer,
		logger:     logger,
		resetTTL:   resetTTL,
		publicURL:  strings.TrimRight(publicURL, "/"),
	}
}

// --- Input types ---

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// LoginInput holds the parameters for login.
type LoginInput struct {
	Email    string
	Password string
}

// --- Operations ---

// Register creates a new account, stores a pending email verification secret,
// and issues a session token. Verification email delivery is best-effort:
// on failure the pending secret is rolled back so a resend can mint a fresh
// one, but registration itself still succeeds.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, string, error) {
	if input.Name == "" {
		return nil, "", apperrors.InvalidInput("name is required")
	}
	if input.Email == "" {
		return nil, "", apperrors.InvalidInput("email is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, "", err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Email:        normalizeEmail(input.Email),
		PasswordHash: string(hashedPassword),
		Role:         domain.RoleStudent,
		IsVerified:   false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	// Issue the verification secret and try to deliver it.
	if err := s.issueVerification(ctx, user); err != nil {
		// Delivery failure is non-fatal to registration: roll the secret
		// back so resend-verification starts clean.
		if delErr := s.verifyRepo.DeleteByUserID(ctx, user.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back verification token",
				slog.String("user_id", user.ID),
				slog.String("error", delErr.Error()),
			)
		}
		s.logger.WarnContext(ctx, "verification email not sent",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	token, err := s.jwtManager.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("generate session token: %w", err)
	}

	// Publish registration event (non-blocking on failure).
	if err := s.producer.PublishAccountRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, token, nil
}

// Login authenticates an account with email and password. Unknown email and
// wrong password collapse into one generic error so callers cannot probe
// which addresses have accounts.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.User, string, error) {
	if input.Email == "" {
		return nil, "", apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, "", apperrors.InvalidInput("password is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, "", apperrors.Unauthorized("invalid email or password")
	}

	// Last-login bookkeeping is best-effort.
	loginAt := time.Now().UTC()
	if err := s.userRepo.TouchLastLogin(ctx, user.ID, loginAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to record last login",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLoginAt = &loginAt
	}

	token, err := s.jwtManager.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("generate session token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return user, token, nil
}

// CurrentUser retrieves the account for an authenticated request.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}
	return user, nil
}

// UpdatePassword changes an authenticated account's password after verifying
// the current one, and issues a fresh session token.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, currentPassword, newPassword string) (*domain.User, string, error) {
	if currentPassword == "" {
		return nil, "", apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, "", err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("get user for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return nil, "", apperrors.Unauthorized("current password is incorrect")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashedPassword)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("update user password: %w", err)
	}

	token, err := s.jwtManager.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("generate session token: %w", err)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("user_id", user.ID),
	)

	return user, token, nil
}

// ForgotPassword stores a hashed single-use reset secret with a bounded
// expiry window and emails the raw secret. The response is identical whether
// or not the email has an account. Delivery failure rolls the secret back
// and fails the request: a reset link that never arrives is a dead end for
// the user, unlike the verification mail which can be re-requested.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		// Do not reveal whether the email exists.
		s.logger.InfoContext(ctx, "password reset requested for unknown email",
			slog.String("email", email),
		)
		return nil
	}

	rawToken, err := newOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.resetTTL)
	if err := s.resetRepo.Replace(ctx, user.ID, hashToken(rawToken), expiresAt); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password/%s", s.publicURL, rawToken)
	body := fmt.Sprintf(
		"You requested a password reset.\n\nReset your password within %s:\n\n%s\n\nIf you did not request this, you can ignore this email.",
		s.resetTTL, resetURL,
	)

	if err := s.mailer.Send(ctx, user.Email, "Reset your LearnHub password", body); err != nil {
		if delErr := s.resetRepo.DeleteByUserID(ctx, user.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back reset token",
				slog.String("user_id", user.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return apperrors.Internal(fmt.Errorf("send reset email: %w", err))
	}

	// Publish reset-requested event (non-blocking on failure).
	if err := s.producer.PublishAccountPasswordReset(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.password_reset event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResetPassword consumes a reset secret and sets the new password, issuing a
// fresh session token so the user is logged in immediately. Wrong and
// expired secrets are indistinguishable to the caller, and a consumed secret
// cannot be consumed again.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) (*domain.User, string, error) {
	if rawToken == "" {
		return nil, "", apperrors.InvalidInput("reset token is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return nil, "", err
	}

	userID, err := s.resetRepo.Consume(ctx, hashToken(rawToken), time.Now().UTC())
	if err != nil {
		return nil, "", apperrors.InvalidInput("invalid or expired reset token")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("get user for password reset: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash new password: %w", err)
	}

	user.PasswordHash = string(hashedPassword)
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("update user password: %w", err)
	}

	token, err := s.jwtManager.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("generate session token: %w", err)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	return user, token, nil
}

// VerifyEmail consumes a verification secret and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, rawToken string) (*domain.User, error) {
	if rawToken == "" {
		return nil, apperrors.InvalidInput("verification token is required")
	}

	userID, err := s.verifyRepo.Consume(ctx, hashToken(rawToken))
	if err != nil {
		return nil, apperrors.InvalidInput("invalid verification token")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user for verification: %w", err)
	}

	user.IsVerified = true
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("mark user verified: %w", err)
	}

	// Publish verification event (non-blocking on failure).
	if err := s.producer.PublishAccountEmailVerified(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish account.email_verified event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
	)

	return user, nil
}

// ResendVerification issues a fresh verification secret, invalidating any
// previous one. Already-verified accounts are rejected without touching
// state. Delivery failure rolls the new secret back and fails the request.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return fmt.Errorf("get user for resend: %w", err)
	}

	if user.IsVerified {
		return apperrors.InvalidInput("email is already verified")
	}

	if err := s.issueVerification(ctx, user); err != nil {
		if delErr := s.verifyRepo.DeleteByUserID(ctx, user.ID); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to roll back verification token",
				slog.String("user_id", user.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return apperrors.Internal(fmt.Errorf("send verification email: %w", err))
	}

	s.logger.InfoContext(ctx, "verification email resent",
		slog.String("user_id", user.ID),
	)

	return nil
}

// DeleteAccount removes an account. Admin-only at the transport layer.
func (s *AuthService) DeleteAccount(ctx context.Context, userID string) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	s.logger.InfoContext(ctx, "account deleted",
		slog.String("user_id", userID),
	)

	return nil
}

// --- Helpers ---

// issueVerification mints a verification secret, stores its hash (replacing
// any previous one), and emails the raw secret.
func (s *AuthService) issueVerification(ctx context.Context, user *domain.User) error {
	rawToken, err := newOpaqueToken()
	if err != nil {
		return fmt.Errorf("generate verification token: %w", err)
	}

	if err := s.verifyRepo.Replace(ctx, user.ID, hashToken(rawToken)); err != nil {
		return fmt.Errorf("store verification token: %w", err)
	}

	verifyURL := fmt.Sprintf("%s/verify-email/%s", s.publicURL, rawToken)
	body := fmt.Sprintf(
		"Welcome to LearnHub, %s!\n\nPlease confirm your email address:\n\n%s\n",
		user.Name, verifyURL,
	)

	return s.mailer.Send(ctx, user.Email, "Verify your LearnHub email", body)
}

// newOpaqueToken returns a random hex-encoded secret.
func newOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// hashToken returns the SHA256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// normalizeEmail lowercases and trims an address; uniqueness is
// case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword checks the minimum length requirement.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}
