package services

import (
	"context"
	"errors"
	"time"

	"form-consent/models"
)

var (
	ErrConsentNotFound   = errors.New("consent not found")
	ErrAlreadyApproved   = errors.New("consent already approved")
	ErrFormNotConfigured = errors.New("form is not configured for consent")
	ErrMissingEmail      = errors.New("submission carries no email address")
	ErrInvalidPointer    = errors.New("invalid resource pointer")
	ErrFileNotFound      = errors.New("stored file not found")
)

// ConsentStore persists consents.
type ConsentStore interface {
	Create(ctx context.Context, c *models.Consent) error
	Save(ctx context.Context, c *models.Consent) error

	// FindByValidationHash returns the consent carrying hash unless it is
	// soft-deleted or expired at now. Absence is (nil, nil).
	FindByValidationHash(ctx context.Context, hash string, now time.Time) (*models.Consent, error)

	FindByID(ctx context.Context, id uint) (*models.Consent, error)
	List(ctx context.Context, limit, offset int) ([]models.Consent, error)
	Delete(ctx context.Context, id uint) error

	// Withdraw erases the submitted data of c and soft-deletes it in one
	// step.
	Withdraw(ctx context.Context, c *models.Consent) error

	// DeleteExpired soft-deletes unapproved consents whose validity ended
	// before now and returns them.
	DeleteExpired(ctx context.Context, now time.Time) ([]models.Consent, error)
}

// FormSettingStore persists per-form consent configuration.
type FormSettingStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.FormSetting, error)
	Save(ctx context.Context, f *models.FormSetting) error
}

// FileStore persists metadata of uploaded files.
type FileStore interface {
	Create(ctx context.Context, f *models.StoredFile) error
	FindByID(ctx context.Context, id uint) (*models.StoredFile, error)
	Delete(ctx context.Context, id uint) error
}
