package services

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"form-consent/models"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []ConfirmationMail
	err  error
}

func (m *recordingMailer) SendConfirmation(_ context.Context, mail ConfirmationMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return m.err
}

type fixture struct {
	svc       *ConsentService
	store     *MemoryStore
	mailer    *recordingMailer
	uploadDir string
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewMemoryStore()
	hash := newTestHashService(t)
	mailer := &recordingMailer{}
	f := &fixture{
		store:     store,
		mailer:    mailer,
		uploadDir: t.TempDir(),
		now:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &ConsentService{
		Consents:    store.Consents(),
		Forms:       store.Forms(),
		Transformer: NewFormRequestTransformer(hash, NewFileStorage(f.uploadDir, store.Files())),
		Hash:        hash,
		Mailer:      mailer,
		Events:      NewEventDispatcher(),
		PublicURL:   "https://consent.example.com/",
		Now:         func() time.Time { return f.now },
	}

	err := store.Forms().Save(context.Background(), &models.FormSetting{
		Identifier:      "contact",
		EmailField:      "contact[email]",
		ApprovalPeriod:  3600,
		ShowDismissLink: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) submit(t *testing.T, values url.Values) *models.Consent {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c, err := f.svc.Submit(context.Background(), SubmitInput{FormIdentifier: "contact", Request: req})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	return c
}

// multipartRequest builds a submission carrying fields and one upload named
// fileField.
func multipartRequest(t *testing.T, fields map[string]string, fileField string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := w.CreateFormFile(fileField, "cv.pdf")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("%PDF-1.4"))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func (f *fixture) uploads(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(f.uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func validSubmission() url.Values {
	return url.Values{
		"contact[name]":  {"Jane"},
		"contact[email]": {"Jane <jane@example.com>"},
	}
}

func TestSubmitCreatesPendingConsentAndMailsLinks(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, validSubmission())

	if c.ID == 0 || c.Approved {
		t.Fatalf("unexpected consent state: %+v", c)
	}
	if c.Email != "jane@example.com" {
		t.Errorf("email = %q", c.Email)
	}
	if c.ValidUntil == nil || !c.ValidUntil.Equal(f.now.Add(time.Hour)) {
		t.Errorf("validUntil = %v", c.ValidUntil)
	}
	if c.ValidationHash == "" {
		t.Fatal("no validation hash issued")
	}

	if len(f.mailer.sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(f.mailer.sent))
	}
	m := f.mailer.sent[0]
	wantApprove := "https://consent.example.com/api/consent/approve?hash=" + c.ValidationHash
	if m.To != "jane@example.com" || m.ApproveURL != wantApprove {
		t.Errorf("mail = %+v", m)
	}
	if !strings.Contains(m.DismissURL, "/api/consent/dismiss?hash=") {
		t.Errorf("dismiss url = %q", m.DismissURL)
	}
}

func TestSubmitRejectsUnknownFormAndMissingEmail(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err := f.svc.Submit(context.Background(), SubmitInput{FormIdentifier: "unknown", Request: req})
	if !errors.Is(err, ErrFormNotConfigured) {
		t.Errorf("unknown form: error = %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("contact[email]=not-an-address"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	_, err = f.svc.Submit(context.Background(), SubmitInput{FormIdentifier: "contact", Request: req})
	if !errors.Is(err, ErrMissingEmail) {
		t.Errorf("invalid email: error = %v", err)
	}
}

func TestModifyListenerCanChangeConsent(t *testing.T) {
	f := newFixture(t)
	f.svc.Events.Subscribe(EventModify, func(_ context.Context, ev *ConsentEvent) error {
		ev.Consent.OriginalContentElementUID = 99
		return nil
	})

	c := f.submit(t, validSubmission())
	stored, err := f.store.Consents().FindByID(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.OriginalContentElementUID != 99 {
		t.Errorf("listener change not persisted: %d", stored.OriginalContentElementUID)
	}
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, validSubmission())

	var approvedEvents int
	f.svc.Events.Subscribe(EventApprove, func(_ context.Context, ev *ConsentEvent) error {
		approvedEvents++
		ev.RedirectURL = "https://example.com/thanks"
		return nil
	})

	ev, err := f.svc.Approve(context.Background(), c.ValidationHash)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !ev.Consent.Approved || ev.Consent.ApprovalDate == nil || !ev.Consent.ApprovalDate.Equal(f.now) {
		t.Errorf("consent not approved: %+v", ev.Consent)
	}
	if ev.RedirectURL != "https://example.com/thanks" || approvedEvents != 1 {
		t.Errorf("listener not applied: %q / %d", ev.RedirectURL, approvedEvents)
	}

	if _, err := f.svc.Approve(context.Background(), c.ValidationHash); !errors.Is(err, ErrAlreadyApproved) {
		t.Errorf("second approval: error = %v", err)
	}
}

func TestApproveRejectsExpiredAndUnknownHashes(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, validSubmission())

	if _, err := f.svc.Approve(context.Background(), "unknown"); !errors.Is(err, ErrConsentNotFound) {
		t.Errorf("unknown hash: error = %v", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	if _, err := f.svc.Approve(context.Background(), c.ValidationHash); !errors.Is(err, ErrConsentNotFound) {
		t.Errorf("expired hash: error = %v", err)
	}
}

func TestDismissErasesDataAndHidesConsent(t *testing.T) {
	f := newFixture(t)
	c := f.submit(t, validSubmission())

	ev, err := f.svc.Dismiss(context.Background(), c.ValidationHash)
	if err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if len(ev.Consent.Data) != 0 || len(ev.Consent.OriginalRequestParameters) != 0 {
		t.Errorf("data not erased: %s", ev.Consent.Data)
	}

	found, err := f.svc.FindValid(context.Background(), c.ValidationHash)
	if err != nil {
		t.Fatal(err)
	}
	if found != nil {
		t.Error("dismissed consent still resolvable by hash")
	}
	if _, err := f.svc.Approve(context.Background(), c.ValidationHash); !errors.Is(err, ErrConsentNotFound) {
		t.Errorf("approve after dismiss: error = %v", err)
	}
}

func TestGarbageCollectRemovesExpiredConsents(t *testing.T) {
	f := newFixture(t)
	stale := f.submit(t, validSubmission())
	approved := f.submit(t, validSubmission())
	if _, err := f.svc.Approve(context.Background(), approved.ValidationHash); err != nil {
		t.Fatal(err)
	}

	f.now = f.now.Add(2 * time.Hour)
	fresh := f.submit(t, validSubmission())

	n, err := f.svc.GarbageCollect(context.Background())
	if err != nil {
		t.Fatalf("GarbageCollect() error = %v", err)
	}
	if n != 1 {
		t.Errorf("removed %d consents, want 1", n)
	}
	if _, err := f.svc.Get(context.Background(), stale.ID); !errors.Is(err, ErrConsentNotFound) {
		t.Errorf("stale consent still present: %v", err)
	}
	for _, id := range []uint{approved.ID, fresh.ID} {
		if _, err := f.svc.Get(context.Background(), id); err != nil {
			t.Errorf("consent %d removed: %v", id, err)
		}
	}
}

func TestConfirmationLinksUseFormURL(t *testing.T) {
	f := newFixture(t)
	form := &models.FormSetting{ConfirmationURL: "https://www.example.com/confirm?lang=en"}
	approve, dismiss := f.svc.ConfirmationLinks(form, &models.Consent{ValidationHash: "abc"})

	if approve != "https://www.example.com/confirm?lang=en&hash=abc&action=approve" {
		t.Errorf("approve = %q", approve)
	}
	if dismiss != "https://www.example.com/confirm?lang=en&hash=abc&action=dismiss" {
		t.Errorf("dismiss = %q", dismiss)
	}
}

func TestSubmitMailFailureKeepsConsent(t *testing.T) {
	f := newFixture(t)
	smtpDown := errors.New("smtp: connection refused")
	f.mailer.err = smtpDown

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validSubmission().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c, err := f.svc.Submit(context.Background(), SubmitInput{FormIdentifier: "contact", Request: req})
	if !errors.Is(err, smtpDown) {
		t.Fatalf("Submit() error = %v, want %v", err, smtpDown)
	}
	if c == nil || c.ID == 0 {
		t.Fatalf("consent not returned with mail error: %+v", c)
	}

	found, err := f.svc.FindValid(context.Background(), c.ValidationHash)
	if err != nil || found == nil {
		t.Errorf("consent not stored: %v / %v", found, err)
	}
}

func TestRejectedSubmissionDiscardsUploads(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		veto   bool
		want   error
	}{
		{"missing email", map[string]string{"contact[name]": "Jane"}, false, ErrMissingEmail},
		{"listener veto", map[string]string{"contact[email]": "jane@example.com"}, true, errVeto},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.svc.Events.Subscribe(EventModify, func(_ context.Context, ev *ConsentEvent) error {
				if tt.veto {
					return errVeto
				}
				return nil
			})

			_, err := f.svc.Submit(context.Background(), SubmitInput{
				FormIdentifier: "contact",
				Request:        multipartRequest(t, tt.fields, "contact[cv]"),
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.want)
			}
			if n := f.uploads(t); n != 0 {
				t.Errorf("%d uploads left on disk", n)
			}
			// ids are shared across the memory store; the upload got one of
			// the first few.
			for id := uint(1); id <= 3; id++ {
				if _, err := f.store.Files().FindByID(context.Background(), id); !errors.Is(err, ErrFileNotFound) {
					t.Errorf("file %d still recorded: %v", id, err)
				}
			}
		})
	}
}

var errVeto = errors.New("rejected by listener")

func TestDismissRemovesUploadedFiles(t *testing.T) {
	f := newFixture(t)
	c, err := f.svc.Submit(context.Background(), SubmitInput{
		FormIdentifier: "contact",
		Request:        multipartRequest(t, map[string]string{"contact[email]": "jane@example.com"}, "contact[cv]"),
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	ids := f.svc.referencedFiles(c.Data)
	if len(ids) != 1 || f.uploads(t) != 1 {
		t.Fatalf("expected one stored upload, got ids %v and %d on disk", ids, f.uploads(t))
	}

	if _, err := f.svc.Dismiss(context.Background(), c.ValidationHash); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if n := f.uploads(t); n != 0 {
		t.Errorf("%d uploads left on disk after dismissal", n)
	}
	if _, err := f.store.Files().FindByID(context.Background(), ids[0]); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("file record kept after dismissal: %v", err)
	}
}

func TestGarbageCollectRemovesUploadedFiles(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), SubmitInput{
		FormIdentifier: "contact",
		Request:        multipartRequest(t, map[string]string{"contact[email]": "jane@example.com"}, "contact[cv]"),
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	f.now = f.now.Add(2 * time.Hour)
	if n, err := f.svc.GarbageCollect(context.Background()); err != nil || n != 1 {
		t.Fatalf("GarbageCollect() = %d, %v", n, err)
	}
	if n := f.uploads(t); n != 0 {
		t.Errorf("%d uploads left on disk after expiry", n)
	}
}

func TestListenerErrorsAfterCommitAreNotReturned(t *testing.T) {
	f := newFixture(t)
	approveMe := f.submit(t, validSubmission())
	dismissMe := f.submit(t, validSubmission())

	f.svc.Events.Subscribe(EventApprove, func(context.Context, *ConsentEvent) error { return errVeto })
	f.svc.Events.Subscribe(EventDismiss, func(context.Context, *ConsentEvent) error { return errVeto })

	if _, err := f.svc.Approve(context.Background(), approveMe.ValidationHash); err != nil {
		t.Errorf("Approve() error = %v", err)
	}
	stored, err := f.svc.Get(context.Background(), approveMe.ID)
	if err != nil || !stored.Approved {
		t.Errorf("approval not stored: %+v, %v", stored, err)
	}

	if _, err := f.svc.Dismiss(context.Background(), dismissMe.ValidationHash); err != nil {
		t.Errorf("Dismiss() error = %v", err)
	}
	if _, err := f.svc.Get(context.Background(), dismissMe.ID); !errors.Is(err, ErrConsentNotFound) {
		t.Errorf("dismissed consent still present: %v", err)
	}
}
