// File: internal/domain/ports/adapter/notifier.go
package adapter

import "context"

// Notifier delivers a plain text message to a subject (an MSISDN).
// Implementations must honour ctx deadlines; callers log failures and move on.
type Notifier interface {
	Send(ctx context.Context, to, text string) error
}
