//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ecocash-activation/internal/domain"
	"ecocash-activation/internal/domain/model"
	"ecocash-activation/internal/usecase"
)

func textDelivery(t *testing.T, msgs ...usecase.InboundMessage) *usecase.WebhookPayload {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"entry": []any{map[string]any{
			"changes": []any{map[string]any{
				"value": map[string]any{"messages": msgs},
			}},
		}},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	var p usecase.WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return &p
}

func textMsg(from, body string) usecase.InboundMessage {
	m := usecase.InboundMessage{Type: "text", From: from}
	m.Text.Body = body
	return m
}

func newDispatcher(ingest usecase.IngestUseCase, n *MockNotifier, a *MockAlerter) usecase.DispatcherUseCase {
	return usecase.NewDispatcherUseCase(ingest, n, a, usecase.DispatcherOptions{
		VerifyToken:        "verify-me",
		NotifyTimeout:      time.Second,
		CodeTTL:            20 * time.Minute,
		SubscriptionWindow: 30 * 24 * time.Hour,
	}, newTestLogger())
}

func TestDispatcherUseCase_Handshake(t *testing.T) {
	d := newDispatcher(&MockIngestUC{}, &MockNotifier{}, &MockAlerter{})

	if got, ok := d.Handshake("subscribe", "verify-me", "challenge-1"); !ok || got != "challenge-1" {
		t.Errorf("valid handshake: got %q %v", got, ok)
	}
	if _, ok := d.Handshake("subscribe", "wrong", "c"); ok {
		t.Error("wrong token must be refused")
	}
	if _, ok := d.Handshake("unsubscribe", "verify-me", "c"); ok {
		t.Error("wrong mode must be refused")
	}

	empty := usecase.NewDispatcherUseCase(&MockIngestUC{}, nil, nil, usecase.DispatcherOptions{}, newTestLogger())
	if _, ok := empty.Handshake("subscribe", "", "c"); ok {
		t.Error("an unset verify token must never match")
	}
}

func TestDispatcherUseCase_HandleDelivery(t *testing.T) {
	ctx := context.Background()
	subject := "263771234567"
	paymentID := "pay-1"
	issued := &usecase.IngestResult{
		Payment: &model.PaymentEvent{ID: paymentID, TransactionRef: "ABCD1234", Amount: decimal.RequireFromString("3")},
		Code:    &model.Code{Value: "ABCD-EFGH-JKMN", Subject: &subject, LinkedPaymentID: &paymentID, ExpiresAt: time.Now().Add(20 * time.Minute)},
	}

	cases := []struct {
		name      string
		result    *usecase.IngestResult
		err       error
		outcome   usecase.Outcome
		reason    string
		replyHas  []string
		wantAlert bool
	}{
		{
			name:    "issued",
			result:  issued,
			outcome: usecase.OutcomeIssued,
			replyHas: []string{
				"✅ Payment verified!",
				"Your activation code: ABCD-EFGH-JKMN",
				"expires in 20 minutes",
				"30-day subscription",
			},
		},
		{
			name:     "not a payment",
			err:      &usecase.ParseError{Kind: usecase.NotAPaymentMessage},
			outcome:  usecase.OutcomeRejected,
			reason:   "not_payment",
			replyHas: []string{"❌ Invalid payment message: not an EcoCash payment message", "Please send the exact EcoCash payment confirmation message."},
		},
		{
			name:     "amount mismatch",
			err:      &usecase.ParseError{Kind: usecase.AmountMismatch, Expected: decimal.RequireFromString("3"), Actual: decimal.RequireFromString("5")},
			outcome:  usecase.OutcomeRejected,
			reason:   "amount_mismatch",
			replyHas: []string{"amount does not match subscription price ($3.00)"},
		},
		{
			name:     "duplicate",
			err:      domain.ErrDuplicatePayment,
			outcome:  usecase.OutcomeDuplicate,
			reason:   "duplicate",
			replyHas: []string{"❌ Payment processing failed: Transaction already processed"},
		},
		{
			name:      "store outage",
			err:       domain.ErrOperationFailed,
			outcome:   usecase.OutcomeFailed,
			reason:    "dependency",
			replyHas:  []string{"❌ An error occurred while processing your payment. Please try again later."},
			wantAlert: true,
		},
		{
			name:      "exhausted issuance",
			err:       domain.ErrIssuanceExhausted,
			outcome:   usecase.OutcomeFailed,
			reason:    "exhausted",
			replyHas:  []string{"Please try again later."},
			wantAlert: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ingest := &MockIngestUC{IngestFunc: func(ctx context.Context, body string) (*usecase.IngestResult, error) {
				return tc.result, tc.err
			}}
			notifier := &MockNotifier{}
			alerter := &MockAlerter{}
			d := newDispatcher(ingest, notifier, alerter)

			rep := d.HandleDelivery(ctx, textDelivery(t, textMsg(subject, "body")))
			if len(rep.Messages) != 1 {
				t.Fatalf("expected 1 report, got %d", len(rep.Messages))
			}
			mr := rep.Messages[0]
			if mr.Outcome != tc.outcome || mr.Reason != tc.reason {
				t.Errorf("outcome=%s reason=%q, want %s %q", mr.Outcome, mr.Reason, tc.outcome, tc.reason)
			}
			if !mr.Notified || len(notifier.Sent) != 1 {
				t.Fatalf("expected exactly one reply, got %d", len(notifier.Sent))
			}
			if notifier.Sent[0].To != subject {
				t.Errorf("reply sent to %q", notifier.Sent[0].To)
			}
			for _, want := range tc.replyHas {
				if !strings.Contains(notifier.Sent[0].Text, want) {
					t.Errorf("reply %q does not contain %q", notifier.Sent[0].Text, want)
				}
			}
			if got := len(alerter.Alerts) > 0; got != tc.wantAlert {
				t.Errorf("alert sent = %v, want %v", got, tc.wantAlert)
			}
		})
	}
}

func TestDispatcherUseCase_DeliveryShape(t *testing.T) {
	ctx := context.Background()

	t.Run("non-text messages are skipped", func(t *testing.T) {
		ingest := &MockIngestUC{IngestFunc: func(ctx context.Context, body string) (*usecase.IngestResult, error) {
			return nil, &usecase.ParseError{Kind: usecase.NotAPaymentMessage}
		}}
		d := newDispatcher(ingest, &MockNotifier{}, &MockAlerter{})
		img := usecase.InboundMessage{Type: "image", From: "1"}

		rep := d.HandleDelivery(ctx, textDelivery(t, img, textMsg("2", "a"), textMsg("3", "b")))
		if rep.Skipped != 1 || len(rep.Messages) != 2 {
			t.Errorf("skipped=%d processed=%d", rep.Skipped, len(rep.Messages))
		}
		if len(ingest.Bodies) != 2 || ingest.Bodies[0] != "a" || ingest.Bodies[1] != "b" {
			t.Errorf("messages not processed in order: %v", ingest.Bodies)
		}
	})

	t.Run("mistyped message fields do not fail the decode", func(t *testing.T) {
		raw := `{"entry":[{"changes":[{"value":{"messages":[
			"not an object",
			{"type":"video","text":"oops"},
			{"type":"text","from":263771234567,"text":{"body":"a"}}
		]}}]}]}`
		var p usecase.WebhookPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		ingest := &MockIngestUC{IngestFunc: func(ctx context.Context, body string) (*usecase.IngestResult, error) {
			return nil, &usecase.ParseError{Kind: usecase.NotAPaymentMessage}
		}}
		notifier := &MockNotifier{}
		d := newDispatcher(ingest, notifier, &MockAlerter{})

		rep := d.HandleDelivery(ctx, &p)
		if rep.Skipped != 2 || len(rep.Messages) != 1 {
			t.Fatalf("skipped=%d processed=%d", rep.Skipped, len(rep.Messages))
		}
		if len(notifier.Sent) != 1 || notifier.Sent[0].To != "263771234567" {
			t.Errorf("reply not sent to the numeric sender: %+v", notifier.Sent)
		}
	})

	t.Run("empty payloads are fine", func(t *testing.T) {
		d := newDispatcher(&MockIngestUC{}, &MockNotifier{}, &MockAlerter{})
		if rep := d.HandleDelivery(ctx, nil); len(rep.Messages) != 0 {
			t.Error("nil payload produced reports")
		}
		if rep := d.HandleDelivery(ctx, &usecase.WebhookPayload{}); len(rep.Messages) != 0 {
			t.Error("empty payload produced reports")
		}
	})

	t.Run("notifier failure does not undo the issuance", func(t *testing.T) {
		subject := "0771234567"
		ingest := &MockIngestUC{IngestFunc: func(ctx context.Context, body string) (*usecase.IngestResult, error) {
			return &usecase.IngestResult{
				Payment: &model.PaymentEvent{ID: "p"},
				Code:    &model.Code{Value: "ABCD-EFGH-JKMN", Subject: &subject},
			}, nil
		}}
		notifier := &MockNotifier{Err: errors.New("graph api 500")}
		d := newDispatcher(ingest, notifier, &MockAlerter{})

		rep := d.HandleDelivery(ctx, textDelivery(t, textMsg(subject, "x")))
		mr := rep.Messages[0]
		if mr.Outcome != usecase.OutcomeIssued {
			t.Errorf("outcome = %s", mr.Outcome)
		}
		if mr.Notified || mr.NotifyErr == nil {
			t.Error("notify failure should be reported")
		}
	})
}

// stuckNotifier holds every send until the caller gives up.
type stuckNotifier struct{}

func (stuckNotifier) Send(ctx context.Context, to, text string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcherUseCase_NotifyTimeout(t *testing.T) {
	ingest := &MockIngestUC{IngestFunc: func(ctx context.Context, body string) (*usecase.IngestResult, error) {
		return nil, domain.ErrDuplicatePayment
	}}
	const timeout = 50 * time.Millisecond
	d := usecase.NewDispatcherUseCase(ingest, stuckNotifier{}, &MockAlerter{}, usecase.DispatcherOptions{
		NotifyTimeout: timeout,
	}, newTestLogger())

	start := time.Now()
	rep := d.HandleDelivery(context.Background(), textDelivery(t, textMsg("0771234567", "x")))
	if elapsed := time.Since(start); elapsed > 20*timeout {
		t.Fatalf("HandleDelivery took %v with a %v notify timeout", elapsed, timeout)
	}
	if len(rep.Messages) != 1 {
		t.Fatalf("expected 1 report, got %d", len(rep.Messages))
	}
	mr := rep.Messages[0]
	if mr.Notified {
		t.Error("a timed-out send must not count as notified")
	}
	if !errors.Is(mr.NotifyErr, context.DeadlineExceeded) {
		t.Errorf("NotifyErr = %v, want deadline exceeded", mr.NotifyErr)
	}
	if mr.Outcome != usecase.OutcomeDuplicate {
		t.Errorf("outcome = %s", mr.Outcome)
	}
}
