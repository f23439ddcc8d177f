// File: internal/usecase/message_parser.go
package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ecocash-activation/internal/domain/model"
)

// ParseErrorKind enumerates the ordered extraction rules of an EcoCash notification.
type ParseErrorKind int

const (
	NotAPaymentMessage ParseErrorKind = iota + 1
	AmountNotFound
	AmountMismatch
	PhoneNotFound
	ReferenceNotFound
)

var (
	ErrNotAPaymentMessage = errors.New("not an EcoCash payment message")
	ErrAmountNotFound     = errors.New("could not extract amount")
	ErrAmountMismatch     = errors.New("amount does not match subscription price")
	ErrPhoneNotFound      = errors.New("could not extract sender phone")
	ErrReferenceNotFound  = errors.New("could not extract transaction reference")
)

var parseKindErrors = map[ParseErrorKind]error{
	NotAPaymentMessage: ErrNotAPaymentMessage,
	AmountNotFound:     ErrAmountNotFound,
	AmountMismatch:     ErrAmountMismatch,
	PhoneNotFound:      ErrPhoneNotFound,
	ReferenceNotFound:  ErrReferenceNotFound,
}

// ParseError is the typed failure of ParsePaymentMessage. Expected and Actual
// are only set for AmountMismatch.
type ParseError struct {
	Kind     ParseErrorKind
	Expected decimal.Decimal
	Actual   decimal.Decimal
}

func (e *ParseError) Error() string {
	if e.Kind == AmountMismatch {
		return fmt.Sprintf("amount does not match subscription price ($%s)", e.Expected.StringFixed(2))
	}
	return e.Unwrap().Error()
}

// Unwrap lets callers match with errors.Is(err, ErrAmountMismatch) etc.
func (e *ParseError) Unwrap() error { return parseKindErrors[e.Kind] }

// AmountTolerance is the absolute difference accepted between paid amount and price.
var AmountTolerance = decimal.RequireFromString("0.01")

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	preambleRe   = regexp.MustCompile(`(?i)^You have received`)
	amountRe     = regexp.MustCompile(`(?i)received \$?(\d+(?:\.\d{2})?)`)
	phoneRe      = regexp.MustCompile(`(?i)from (\d{10,12})`)
	referenceRe  = regexp.MustCompile(`(?i)reference:?\s*([A-Z0-9]+)`)
)

// ParsePaymentMessage turns one raw EcoCash confirmation text into a PaymentEvent.
// The rules run in order and the first failing rule decides the error. It never
// touches storage; ID is left empty for the ledger to assign.
func ParsePaymentMessage(raw string, price decimal.Decimal, now time.Time) (*model.PaymentEvent, error) {
	text := whitespaceRe.ReplaceAllString(strings.TrimSpace(raw), " ")

	if !preambleRe.MatchString(text) {
		return nil, &ParseError{Kind: NotAPaymentMessage}
	}

	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Kind: AmountNotFound}
	}
	amount, err := decimal.NewFromString(m[1])
	if err != nil {
		return nil, &ParseError{Kind: AmountNotFound}
	}
	if amount.Sub(price).Abs().GreaterThan(AmountTolerance) {
		return nil, &ParseError{Kind: AmountMismatch, Expected: price, Actual: amount}
	}

	m = phoneRe.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Kind: PhoneNotFound}
	}
	phone := m[1]

	m = referenceRe.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Kind: ReferenceNotFound}
	}

	return &model.PaymentEvent{
		TransactionRef: strings.ToUpper(m[1]),
		Amount:         amount,
		FromPhone:      phone,
		ReceivedAt:     now,
		RawText:        raw,
	}, nil
}
