package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"gorm.io/datatypes"

	"form-consent/models"
)

const defaultEmailField = "email"

// ConsentService manages the consent lifecycle: submission, approval,
// dismissal and expiry.
type ConsentService struct {
	Consents    ConsentStore
	Forms       FormSettingStore
	Transformer *FormRequestTransformer
	Hash        *HashService
	Mailer      ConfirmationSender
	Events      *EventDispatcher
	Logger      *slog.Logger

	// PublicURL is the externally reachable base URL of this service.
	PublicURL string

	Now func() time.Time
}

func (s *ConsentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ConsentService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// SubmitInput describes an incoming form submission.
type SubmitInput struct {
	FormIdentifier    string
	ContentElementUID uint
	Request           *http.Request
}

// Submit stores a new consent for the submission and mails the
// confirmation link to the submitter. If only the mail fails, the stored
// consent is returned together with the error. Uploads of a rejected
// submission are removed.
func (s *ConsentService) Submit(ctx context.Context, in SubmitInput) (*models.Consent, error) {
	form, err := s.Forms.FindByIdentifier(ctx, strings.TrimSpace(in.FormIdentifier))
	if err != nil {
		return nil, err
	}

	doc, err := s.Transformer.Transform(ctx, in.Request)
	if err != nil {
		return nil, err
	}

	consent, err := s.persist(ctx, in, form, doc)
	if err != nil {
		if derr := s.Transformer.Discard(ctx, doc.Files); derr != nil {
			s.logger().WarnContext(ctx, "discard uploads failed", "form", form.Identifier, "err", derr)
		}
		return nil, err
	}

	approveURL, dismissURL := s.ConfirmationLinks(form, consent)
	if !form.ShowDismissLink {
		dismissURL = ""
	}
	err = s.Mailer.SendConfirmation(ctx, ConfirmationMail{
		To:          consent.Email,
		FromAddress: form.SenderEmail,
		FromName:    form.SenderName,
		Subject:     form.Subject,
		ApproveURL:  approveURL,
		DismissURL:  dismissURL,
	})
	return consent, err
}

func (s *ConsentService) persist(ctx context.Context, in SubmitInput, form *models.FormSetting, doc FormDocument) (*models.Consent, error) {
	email, err := extractEmail(doc.Data, form.EmailField)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}
	params, err := json.Marshal(doc.Parameters)
	if err != nil {
		return nil, fmt.Errorf("encode request parameters: %w", err)
	}

	now := s.now()
	consent := &models.Consent{
		Email:                     email,
		Date:                      now,
		Data:                      datatypes.JSON(data),
		FormPersistenceIdentifier: form.Identifier,
		OriginalRequestParameters: datatypes.JSON(params),
		OriginalContentElementUID: in.ContentElementUID,
		ValidUntil:                form.ValidUntil(now),
	}
	consent.ValidationHash = s.Hash.GenerateValidationHash(consent)

	ev := &ConsentEvent{Kind: EventModify, Consent: consent, Form: form, Request: in.Request}
	if err := s.Events.Dispatch(ctx, ev); err != nil {
		return nil, err
	}

	if err := s.Consents.Create(ctx, consent); err != nil {
		return nil, fmt.Errorf("create consent: %w", err)
	}
	s.logger().InfoContext(ctx, "consent created",
		"consent_id", consent.ID, "form", form.Identifier, "valid_until", consent.ValidUntil)

	ev.Kind = EventCreated
	s.dispatchCommitted(ctx, ev)
	return consent, nil
}

// dispatchCommitted runs listeners for a change that is already stored;
// their errors are logged.
func (s *ConsentService) dispatchCommitted(ctx context.Context, ev *ConsentEvent) {
	if err := s.Events.Dispatch(ctx, ev); err != nil {
		s.logger().WarnContext(ctx, "consent listener failed",
			"event", ev.Kind.String(), "consent_id", ev.Consent.ID, "err", err)
	}
}

// ConfirmationLinks returns the approve and dismiss URLs of consent. Forms
// with a confirmation URL receive the hash and action as query parameters;
// otherwise the links point at this service.
func (s *ConsentService) ConfirmationLinks(form *models.FormSetting, consent *models.Consent) (string, string) {
	hash := url.QueryEscape(consent.ValidationHash)
	if form != nil && form.ConfirmationURL != "" {
		sep := "?"
		if strings.Contains(form.ConfirmationURL, "?") {
			sep = "&"
		}
		base := form.ConfirmationURL + sep + "hash=" + hash + "&action="
		return base + "approve", base + "dismiss"
	}

	base := strings.TrimRight(s.PublicURL, "/") + "/api/consent/"
	return base + "approve?hash=" + hash, base + "dismiss?hash=" + hash
}

// FindValid returns the consent that hash may confirm, or nil.
func (s *ConsentService) FindValid(ctx context.Context, hash string) (*models.Consent, error) {
	return s.Consents.FindByValidationHash(ctx, strings.TrimSpace(hash), s.now())
}

func (s *ConsentService) findValidOrFail(ctx context.Context, hash string) (*models.Consent, *models.FormSetting, error) {
	consent, err := s.FindValid(ctx, hash)
	if err != nil {
		return nil, nil, err
	}
	if consent == nil {
		return nil, nil, ErrConsentNotFound
	}

	form, err := s.Forms.FindByIdentifier(ctx, consent.FormPersistenceIdentifier)
	if err != nil && !errors.Is(err, ErrFormNotConfigured) {
		return nil, nil, err
	}
	return consent, form, nil
}

// Approve marks the consent identified by hash as approved.
func (s *ConsentService) Approve(ctx context.Context, hash string) (*ConsentEvent, error) {
	consent, form, err := s.findValidOrFail(ctx, hash)
	if err != nil {
		return nil, err
	}
	if consent.Approved {
		return nil, ErrAlreadyApproved
	}

	consent.Approve(s.now())
	if err := s.Consents.Save(ctx, consent); err != nil {
		return nil, fmt.Errorf("approve consent: %w", err)
	}
	s.logger().InfoContext(ctx, "consent approved", "consent_id", consent.ID)

	ev := &ConsentEvent{Kind: EventApprove, Consent: consent, Form: form}
	s.dispatchCommitted(ctx, ev)
	return ev, nil
}

// Dismiss withdraws the consent identified by hash: its submitted data and
// uploaded files are erased and the record soft-deleted.
func (s *ConsentService) Dismiss(ctx context.Context, hash string) (*ConsentEvent, error) {
	consent, form, err := s.findValidOrFail(ctx, hash)
	if err != nil {
		return nil, err
	}

	files := s.referencedFiles(consent.Data)
	if err := s.Consents.Withdraw(ctx, consent); err != nil {
		return nil, fmt.Errorf("dismiss consent: %w", err)
	}
	s.removeFiles(ctx, consent.ID, files)
	s.logger().InfoContext(ctx, "consent dismissed", "consent_id", consent.ID)

	ev := &ConsentEvent{Kind: EventDismiss, Consent: consent, Form: form}
	s.dispatchCommitted(ctx, ev)
	return ev, nil
}

// GarbageCollect soft-deletes unapproved consents past their expiry and
// removes their uploaded files.
func (s *ConsentService) GarbageCollect(ctx context.Context) (int64, error) {
	expired, err := s.Consents.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("garbage collect consents: %w", err)
	}
	for _, c := range expired {
		s.removeFiles(ctx, c.ID, s.referencedFiles(c.Data))
	}
	if len(expired) > 0 {
		s.logger().InfoContext(ctx, "expired consents removed", "count", len(expired))
	}
	return int64(len(expired)), nil
}

// referencedFiles returns the ids of stored files that data points to.
// Pointers failing verification are skipped.
func (s *ConsentService) referencedFiles(data datatypes.JSON) []uint {
	if len(data) == 0 {
		return nil
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}

	var ids []uint
	var walk func(v any)
	walk = func(v any) {
		switch v := v.(type) {
		case map[string]any:
			if p, ok := v["resourcePointer"].(string); ok {
				if id, err := s.Hash.ResolveFilePointer(p); err == nil {
					ids = append(ids, id)
				}
			}
			for _, child := range v {
				walk(child)
			}
		case []any:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(doc)
	return ids
}

func (s *ConsentService) removeFiles(ctx context.Context, consentID uint, ids []uint) {
	for _, id := range ids {
		if err := s.Transformer.Storage.RemoveByID(context.WithoutCancel(ctx), id); err != nil {
			s.logger().WarnContext(ctx, "remove consent file failed",
				"consent_id", consentID, "file_id", id, "err", err)
		}
	}
}

func (s *ConsentService) List(ctx context.Context, limit, offset int) ([]models.Consent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Consents.List(ctx, limit, offset)
}

func (s *ConsentService) Get(ctx context.Context, id uint) (*models.Consent, error) {
	return s.Consents.FindByID(ctx, id)
}

func (s *ConsentService) Delete(ctx context.Context, id uint) error {
	return s.Consents.Delete(ctx, id)
}

// extractEmail reads the submitter's address from the field named by
// field (bracket notation allowed).
func extractEmail(data map[string]any, field string) (string, error) {
	if strings.TrimSpace(field) == "" {
		field = defaultEmailField
	}

	var cur any = data
	for _, key := range splitFieldName(field) {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", ErrMissingEmail
		}
		cur = m[key]
	}

	raw, ok := cur.(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", ErrMissingEmail
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingEmail, err)
	}
	return addr.Address, nil
}
