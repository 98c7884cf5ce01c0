package services

import (
	"context"
	"testing"
	"time"

	"form-consent/models"
)

// seedConsents mirrors the lookup fixtures: one consent without expiry, one
// valid for a long time, one deleted and one expired.
func seedConsents(t *testing.T, store ConsentStore, now time.Time) map[string]uint {
	t.Helper()
	ctx := context.Background()
	future := time.Date(2038, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	fixtures := []struct {
		hash       string
		validUntil *time.Time
		deleted    bool
	}{
		{"foo", nil, false},
		{"baz", &future, false},
		{"blub", nil, true},
		{"dummy", &past, false},
	}

	ids := map[string]uint{}
	for _, f := range fixtures {
		c := &models.Consent{
			Email:          f.hash + "@example.com",
			ValidationHash: f.hash,
			ValidUntil:     f.validUntil,
		}
		if err := store.Create(ctx, c); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if f.deleted {
			if err := store.Delete(ctx, c.ID); err != nil {
				t.Fatalf("Delete() error = %v", err)
			}
		}
		ids[f.hash] = c.ID
	}
	return ids
}

func TestFindByValidationHashReturnsValidConsent(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().Consents()
	ids := seedConsents(t, store, now)

	for _, hash := range []string{"foo", "baz"} {
		t.Run(hash, func(t *testing.T) {
			c, err := store.FindByValidationHash(context.Background(), hash, now)
			if err != nil {
				t.Fatalf("FindByValidationHash() error = %v", err)
			}
			if c == nil {
				t.Fatal("expected consent, got nil")
			}
			if c.ValidationHash != hash || c.ID != ids[hash] {
				t.Errorf("got consent %d/%q", c.ID, c.ValidationHash)
			}
		})
	}
}

func TestFindByValidationHashReturnsNilForInvalidConsents(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore().Consents()
	seedConsents(t, store, now)

	tests := map[string]string{
		"deleted":      "blub",
		"expired":      "dummy",
		"non-existent": "some-invalid-hash",
		"empty":        "",
	}
	for name, hash := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := store.FindByValidationHash(context.Background(), hash, now)
			if err != nil {
				t.Fatalf("FindByValidationHash() error = %v", err)
			}
			if c != nil {
				t.Errorf("expected nil, got consent %d", c.ID)
			}
		})
	}
}

func TestDeleteExpiredSkipsApprovedConsents(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	past := now.Add(-time.Minute)
	store := NewMemoryStore().Consents()

	expired := &models.Consent{ValidationHash: "a", ValidUntil: &past}
	approved := &models.Consent{ValidationHash: "b", ValidUntil: &past}
	approved.Approve(past.Add(-time.Minute))
	open := &models.Consent{ValidationHash: "c"}
	for _, c := range []*models.Consent{expired, approved, open} {
		if err := store.Create(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := store.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if len(removed) != 1 || removed[0].ID != expired.ID {
		t.Errorf("deleted %+v, want only consent %d", removed, expired.ID)
	}
	if _, err := store.FindByID(ctx, expired.ID); err != ErrConsentNotFound {
		t.Errorf("expired consent still present: %v", err)
	}
	if _, err := store.FindByID(ctx, approved.ID); err != nil {
		t.Errorf("approved consent removed: %v", err)
	}
}

func TestWithdrawErasesDataAndSoftDeletes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore().Consents()
	c := &models.Consent{
		ValidationHash:            "w",
		Data:                      []byte(`{"name":"Jane"}`),
		OriginalRequestParameters: []byte(`{"name":["Jane"]}`),
	}
	if err := store.Create(ctx, c); err != nil {
		t.Fatal(err)
	}

	if err := store.Withdraw(ctx, c); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
	if len(c.Data) != 0 || len(c.OriginalRequestParameters) != 0 || !c.IsDeleted() {
		t.Errorf("consent after withdraw = %+v", c)
	}
	if found, _ := store.FindByValidationHash(ctx, "w", time.Now()); found != nil {
		t.Error("withdrawn consent still resolvable")
	}
	if err := store.Withdraw(ctx, c); err != ErrConsentNotFound {
		t.Errorf("second Withdraw() error = %v, want ErrConsentNotFound", err)
	}
}
