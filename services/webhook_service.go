package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// WebhookPayload is posted to a form's webhook on approval and dismissal.
type WebhookPayload struct {
	Event          string          `json:"event"`
	ConsentID      uint            `json:"consentId"`
	FormIdentifier string          `json:"formIdentifier"`
	Email          string          `json:"email"`
	ApprovalDate   *time.Time      `json:"approvalDate,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
}

// WebhookNotifier forwards approve and dismiss events to the webhook URL
// configured on the consent's form.
type WebhookNotifier struct {
	Client *http.Client
	Logger *slog.Logger
}

func NewWebhookNotifier(logger *slog.Logger) *WebhookNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookNotifier{
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
}

// Register subscribes the notifier to approve and dismiss events.
func (n *WebhookNotifier) Register(d *EventDispatcher) {
	d.Subscribe(EventApprove, n.Notify)
	d.Subscribe(EventDismiss, n.Notify)
}

// Notify posts the event. Delivery failures are logged, not returned, so a
// broken webhook never blocks the user's confirmation.
func (n *WebhookNotifier) Notify(ctx context.Context, ev *ConsentEvent) error {
	if ev.Form == nil || ev.Form.WebhookURL == "" || ev.Consent == nil {
		return nil
	}

	payload := WebhookPayload{
		Event:          ev.Kind.String(),
		ConsentID:      ev.Consent.ID,
		FormIdentifier: ev.Consent.FormPersistenceIdentifier,
		Email:          ev.Consent.Email,
		ApprovalDate:   ev.Consent.ApprovalDate,
	}
	if ev.Kind == EventApprove && len(ev.Consent.Data) > 0 {
		payload.Data = json.RawMessage(ev.Consent.Data)
	}

	if err := n.post(ctx, ev.Form.WebhookURL, payload); err != nil {
		n.Logger.WarnContext(ctx, "webhook delivery failed",
			"consent_id", ev.Consent.ID, "event", payload.Event, "err", err)
	}
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, url string, payload WebhookPayload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
