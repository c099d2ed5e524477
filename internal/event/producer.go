package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnhub/auth-service/internal/domain"
	pkgkafka "github.com/learnhub/auth-service/pkg/kafka"
)

// Kafka topic constants for account domain events.
const (
	TopicAccountRegistered    = "learnhub.account.registered"
	TopicAccountPasswordReset = "learnhub.account.password_reset"
	TopicAccountEmailVerified = "learnhub.account.email_verified"
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// AccountPasswordResetData is the payload for an account.password_reset event.
type AccountPasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// AccountEmailVerifiedData is the payload for an account.email_verified event.
type AccountEmailVerifiedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Producer publishes account domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, user *domain.User) error {
	data := AccountRegisteredData{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}

	event, err := pkgkafka.NewEvent(TopicAccountRegistered, user.ID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create account.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicAccountRegistered, event); err != nil {
		return fmt.Errorf("publish account.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published account.registered event",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return nil
}

// PublishAccountPasswordReset publishes an account.password_reset event.
func (p *Producer) PublishAccountPasswordReset(ctx context.Context, userID, email string) error {
	data := AccountPasswordResetData{
		UserID: userID,
		Email:  email,
	}

	event, err := pkgkafka.NewEvent(TopicAccountPasswordReset, userID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create account.password_reset event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicAccountPasswordReset, event); err != nil {
		return fmt.Errorf("publish account.password_reset event: %w", err)
	}

	return nil
}

// PublishAccountEmailVerified publishes an account.email_verified event.
func (p *Producer) PublishAccountEmailVerified(ctx context.Context, userID, email string) error {
	data := AccountEmailVerifiedData{
		UserID: userID,
		Email:  email,
	}

	event, err := pkgkafka.NewEvent(TopicAccountEmailVerified, userID, AggregateTypeAccount, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create account.email_verified event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicAccountEmailVerified, event); err != nil {
		return fmt.Errorf("publish account.email_verified event: %w", err)
	}

	return nil
}
