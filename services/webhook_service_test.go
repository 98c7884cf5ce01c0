package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"form-consent/models"
)

func TestWebhookNotifierPostsApproval(t *testing.T) {
	received := make(chan WebhookPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		received <- p
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	approvedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ev := &ConsentEvent{
		Kind: EventApprove,
		Consent: &models.Consent{
			ID:                        3,
			Email:                     "jane@example.com",
			FormPersistenceIdentifier: "contact",
			Data:                      []byte(`{"name":"Jane"}`),
			ApprovalDate:              &approvedAt,
		},
		Form: &models.FormSetting{WebhookURL: srv.URL},
	}

	n := NewWebhookNotifier(nil)
	if err := n.Notify(context.Background(), ev); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	p := <-received
	if p.Event != "approved" || p.ConsentID != 3 || p.FormIdentifier != "contact" {
		t.Errorf("payload = %+v", p)
	}
	if string(p.Data) != `{"name":"Jane"}` {
		t.Errorf("data = %s", p.Data)
	}
}

func TestWebhookNotifierIgnoresFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ev := &ConsentEvent{
		Kind:    EventDismiss,
		Consent: &models.Consent{ID: 1},
		Form:    &models.FormSetting{WebhookURL: srv.URL},
	}
	if err := NewWebhookNotifier(nil).Notify(context.Background(), ev); err != nil {
		t.Errorf("Notify() error = %v, want nil", err)
	}
}
