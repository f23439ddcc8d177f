// File: internal/infra/adapters/whatsapp/cloud_notifier.go
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ecocash-activation/internal/domain/ports/adapter"
	"ecocash-activation/internal/infra/metrics"
)

var _ adapter.Notifier = (*CloudNotifier)(nil)

const DefaultBaseURL = "https://graph.facebook.com/v18.0"

// NotifyError reports a non-2xx answer from the Graph API.
type NotifyError struct {
	StatusCode int
	Body       string
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("whatsapp send failed: status %d: %s", e.StatusCode, e.Body)
}

// CloudNotifier sends plain text messages through the WhatsApp Cloud API.
type CloudNotifier struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	client        *http.Client
	log           *zerolog.Logger
}

func NewCloudNotifier(baseURL, phoneNumberID, accessToken string, timeout time.Duration, logger *zerolog.Logger) (*CloudNotifier, error) {
	if phoneNumberID == "" || accessToken == "" {
		return nil, errors.New("whatsapp phone number id and access token are required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	l := logger.With().Str("component", "WhatsAppNotifier").Logger()
	return &CloudNotifier{
		baseURL:       strings.TrimRight(baseURL, "/"),
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		client:        &http.Client{Timeout: timeout},
		log:           &l,
	}, nil
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

func (n *CloudNotifier) Send(ctx context.Context, to, text string) error {
	msg := textMessage{MessagingProduct: "whatsapp", To: to, Type: "text"}
	msg.Text.Body = text
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/messages", n.baseURL, n.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.accessToken)

	resp, err := n.client.Do(req)
	if err != nil {
		metrics.IncNotify("whatsapp", "error")
		return fmt.Errorf("whatsapp send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		metrics.IncNotify("whatsapp", "error")
		return &NotifyError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	metrics.IncNotify("whatsapp", "sent")
	return nil
}
