package mailer

import (
	"context"
	"log/slog"
)

// LogSender is a sender implementation that logs messages and always
// succeeds. Used in development when no SMTP relay is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new logging sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message details instead of delivering it.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "log sender: email sent",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)),
	)
	return nil
}
