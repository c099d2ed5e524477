package mailer

import "context"

// Sender delivers outbound email. It is the seam between the auth flows and
// whatever transport actually carries the message; the retry/queueing policy
// lives behind this interface, not in handler control flow.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
