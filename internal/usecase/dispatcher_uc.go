// File: internal/usecase/dispatcher_uc.go
package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/ports/adapter"
	"ecocash-activation/internal/infra/i18n"
	"ecocash-activation/internal/infra/logging"
)

// WebhookPayload is the WhatsApp Cloud API delivery envelope; only the fields
// the pipeline reads are modelled.
type WebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []InboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type InboundMessage struct {
	Type string `json:"type"`
	From string `json:"from"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
}

// UnmarshalJSON never fails: fields of an unexpected type are left empty so one
// odd message cannot spoil the rest of a delivery. A numeric sender is kept.
func (m *InboundMessage) UnmarshalJSON(b []byte) error {
	*m = InboundMessage{}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	_ = json.Unmarshal(raw["type"], &m.Type)
	if err := json.Unmarshal(raw["from"], &m.From); err != nil {
		var n json.Number
		if json.Unmarshal(raw["from"], &n) == nil {
			m.From = n.String()
		}
	}
	var text map[string]json.RawMessage
	if json.Unmarshal(raw["text"], &text) == nil {
		_ = json.Unmarshal(text["body"], &m.Text.Body)
	}
	return nil
}

// Outcome labels a processed message; values double as metric labels.
type Outcome string

const (
	OutcomeIssued    Outcome = "issued"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

type MessageReport struct {
	Sender    string
	Outcome   Outcome
	Reason    string // parse rule or error class when not issued
	Notified  bool
	NotifyErr error
}

// DeliveryReport summarises one webhook delivery. It never carries an error:
// per-message failures are logged and answered through the notifier only.
type DeliveryReport struct {
	Messages []MessageReport
	Skipped  int // non-text messages
}

type DispatcherUseCase interface {
	// Handshake answers the provider's subscription challenge.
	Handshake(mode, token, challenge string) (string, bool)
	HandleDelivery(ctx context.Context, p *WebhookPayload) DeliveryReport
}

// Compile-time check
var _ DispatcherUseCase = (*dispatcherUC)(nil)

type dispatcherUC struct {
	ingest        IngestUseCase
	notifier      adapter.Notifier
	alerter       adapter.OperatorAlerter
	verifyToken   string
	notifyTimeout time.Duration
	codeTTL       time.Duration
	subWindow     time.Duration
	dev           bool
	replies       *i18n.Translator
	log           *zerolog.Logger
}

type DispatcherOptions struct {
	VerifyToken        string
	NotifyTimeout      time.Duration
	CodeTTL            time.Duration
	SubscriptionWindow time.Duration
	Dev                bool

	// Replies renders the WhatsApp answers; nil means the embedded English set.
	Replies *i18n.Translator
}

func NewDispatcherUseCase(ingest IngestUseCase, notifier adapter.Notifier, alerter adapter.OperatorAlerter, opts DispatcherOptions, logger *zerolog.Logger) *dispatcherUC {
	l := logger.With().Str("component", "DispatcherUC").Logger()
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if opts.Replies == nil {
		opts.Replies = i18n.Default()
	}
	return &dispatcherUC{
		ingest:        ingest,
		notifier:      notifier,
		alerter:       alerter,
		verifyToken:   opts.VerifyToken,
		notifyTimeout: opts.NotifyTimeout,
		codeTTL:       opts.CodeTTL,
		subWindow:     opts.SubscriptionWindow,
		dev:           opts.Dev,
		replies:       opts.Replies,
		log:           &l,
	}
}

func (u *dispatcherUC) Handshake(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || u.verifyToken == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(u.verifyToken)) != 1 {
		return "", false
	}
	return challenge, true
}

func (u *dispatcherUC) HandleDelivery(ctx context.Context, p *WebhookPayload) DeliveryReport {
	var rep DeliveryReport
	if p == nil {
		return rep
	}
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" {
					rep.Skipped++
					continue
				}
				rep.Messages = append(rep.Messages, u.handleMessage(ctx, msg))
			}
		}
	}
	return rep
}

func (u *dispatcherUC) handleMessage(ctx context.Context, msg InboundMessage) MessageReport {
	l := logging.With(ctx, u.log)
	sender := msg.From
	mr := MessageReport{Sender: sender}
	l.Info().Str("from", logging.Redact(sender, u.dev)).Msg("processing payment message")

	res, err := u.ingest.Ingest(ctx, msg.Text.Body)

	var reply string
	var perr *ParseError
	switch {
	case err == nil:
		mr.Outcome = OutcomeIssued
		reply = u.replies.T("payment_verified", res.Code.Value,
			int(u.codeTTL/time.Minute), int(u.subWindow/(24*time.Hour)))
		l.Info().
			Str("payment_id", res.Payment.ID).
			Str("transaction_ref", res.Payment.TransactionRef).
			Str("code", logging.Redact(res.Code.Value, u.dev)).
			Time("expires_at", res.Code.ExpiresAt).
			Msg("activation code issued")
	case errors.As(err, &perr):
		mr.Outcome = OutcomeRejected
		mr.Reason = parseReason(perr.Kind)
		reply = u.replies.T("payment_invalid", perr.Error())
		ev := l.Warn().Str("reason", mr.Reason)
		if perr.Kind == AmountMismatch {
			ev = ev.Str("expected", perr.Expected.String()).Str("actual", perr.Actual.String())
		}
		ev.Msg("invalid payment message")
	case errors.Is(err, domain.ErrDuplicatePayment):
		mr.Outcome = OutcomeDuplicate
		mr.Reason = "duplicate"
		reply = u.replies.T("payment_duplicate")
	default:
		mr.Outcome = OutcomeFailed
		mr.Reason = "dependency"
		if errors.Is(err, domain.ErrIssuanceExhausted) {
			mr.Reason = "exhausted"
		}
		reply = u.replies.T("payment_error")
		l.Error().Err(err).Str("reason", mr.Reason).Msg("payment processing failed")
		u.alert(ctx, fmt.Sprintf("payment ingestion failed (%s): %v", mr.Reason, err))
	}

	mr.NotifyErr = u.notify(ctx, sender, reply)
	mr.Notified = mr.NotifyErr == nil
	if mr.NotifyErr != nil {
		l.Error().Err(mr.NotifyErr).Str("to", logging.Redact(sender, u.dev)).Msg("notification failed")
	}
	return mr
}

func (u *dispatcherUC) notify(ctx context.Context, to, text string) error {
	if u.notifier == nil || to == "" {
		return errors.New("no notifier or recipient")
	}
	ctx, cancel := context.WithTimeout(ctx, u.notifyTimeout)
	defer cancel()
	return u.notifier.Send(ctx, to, text)
}

func (u *dispatcherUC) alert(ctx context.Context, text string) {
	if u.alerter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, u.notifyTimeout)
	defer cancel()
	if err := u.alerter.Alert(ctx, text); err != nil {
		u.log.Warn().Err(err).Msg("operator alert failed")
	}
}

func parseReason(k ParseErrorKind) string {
	switch k {
	case NotAPaymentMessage:
		return "not_payment"
	case AmountNotFound:
		return "amount_not_found"
	case AmountMismatch:
		return "amount_mismatch"
	case PhoneNotFound:
		return "phone_not_found"
	case ReferenceNotFound:
		return "reference_not_found"
	default:
		return "unknown"
	}
}
