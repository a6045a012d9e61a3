// Package mailer provides the outbound email capability. A Mailer attempts
// delivery exactly once per call; any retry policy belongs to the caller.
package mailer

import "context"

// Mailer sends a single email. Implementations must be safe for sequential
// reuse and must honor ctx for the send deadline.
type Mailer interface {
	Send(ctx context.Context, recipient, subject, body string) error
}
