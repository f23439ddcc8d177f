// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// OperatorAlerter pushes short operational alerts (store outages, exhausted
// issuance) to the people running the service.
type OperatorAlerter interface {
	Alert(ctx context.Context, text string) error
}
