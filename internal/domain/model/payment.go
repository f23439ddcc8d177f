package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentEvent is one EcoCash payment notification as parsed from an inbound
// message. TransactionRef is the idempotency key; rows are never updated.
type PaymentEvent struct {
	ID             string // assigned by the ledger on insert
	TransactionRef string // upper-case provider reference, unique forever
	Amount         decimal.Decimal
	FromPhone      string
	ReceivedAt     time.Time
	RawText        string // kept verbatim for audit
}
