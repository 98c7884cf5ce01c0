package services

import (
	"context"
	"errors"
	"strings"

	"form-consent/models"
	"form-consent/utils"
)

// ErrCodeInvalidFormIdentifier is returned for empty form identifiers.
const ErrCodeInvalidFormIdentifier = 1646987632

// FormSettingService manages per-form consent configuration.
type FormSettingService struct {
	Forms FormSettingStore
}

func NewFormSettingService(forms FormSettingStore) *FormSettingService {
	return &FormSettingService{Forms: forms}
}

func (s *FormSettingService) Get(ctx context.Context, identifier string) (*models.FormSetting, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return nil, utils.NewArgumentError(ErrCodeInvalidFormIdentifier, "form identifier must not be empty")
	}
	return s.Forms.FindByIdentifier(ctx, id)
}

// Upsert creates or replaces the setting stored under f.Identifier.
func (s *FormSettingService) Upsert(ctx context.Context, f *models.FormSetting) error {
	f.Identifier = strings.TrimSpace(f.Identifier)
	if f.Identifier == "" {
		return utils.NewArgumentError(ErrCodeInvalidFormIdentifier, "form identifier must not be empty")
	}
	f.ApprovalPeriod = max(0, min(f.ApprovalPeriod, models.MaxApprovalPeriod))

	existing, err := s.Forms.FindByIdentifier(ctx, f.Identifier)
	switch {
	case err == nil:
		f.ID = existing.ID
		f.CreatedAt = existing.CreatedAt
	case errors.Is(err, ErrFormNotConfigured):
		f.ID = 0
	default:
		return err
	}
	return s.Forms.Save(ctx, f)
}
