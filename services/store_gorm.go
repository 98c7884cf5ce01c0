package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"form-consent/models"
)

// GormConsentStore is the MySQL-backed ConsentStore.
type GormConsentStore struct {
	DB *gorm.DB
}

func NewGormConsentStore(db *gorm.DB) *GormConsentStore {
	return &GormConsentStore{DB: db}
}

func (s *GormConsentStore) Create(ctx context.Context, c *models.Consent) error {
	if c == nil {
		return gorm.ErrInvalidData
	}
	return s.DB.WithContext(ctx).Create(c).Error
}

func (s *GormConsentStore) Save(ctx context.Context, c *models.Consent) error {
	if c == nil {
		return gorm.ErrInvalidData
	}
	return s.DB.WithContext(ctx).Save(c).Error
}

// validHashQuery scopes a query to consents that may still be confirmed.
// Soft-deleted rows are excluded by gorm's DeletedAt handling.
func validHashQuery(db *gorm.DB, hash string, now time.Time) *gorm.DB {
	return db.Model(&models.Consent{}).
		Where("validation_hash = ?", hash).
		Where("(valid_until IS NULL OR valid_until > ?)", now).
		Order("id")
}

func (s *GormConsentStore) FindByValidationHash(ctx context.Context, hash string, now time.Time) (*models.Consent, error) {
	if hash == "" {
		return nil, nil
	}

	var c models.Consent
	err := validHashQuery(s.DB.WithContext(ctx), hash, now).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormConsentStore) FindByID(ctx context.Context, id uint) (*models.Consent, error) {
	var c models.Consent
	err := s.DB.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConsentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormConsentStore) List(ctx context.Context, limit, offset int) ([]models.Consent, error) {
	var out []models.Consent
	err := s.DB.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (s *GormConsentStore) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Consent{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConsentNotFound
	}
	return nil
}

func expiredQuery(db *gorm.DB, now time.Time) *gorm.DB {
	return db.Model(&models.Consent{}).
		Where("approved = ?", false).
		Where("valid_until IS NOT NULL AND valid_until < ?", now)
}

func (s *GormConsentStore) Withdraw(ctx context.Context, c *models.Consent) error {
	if c == nil || c.ID == 0 {
		return gorm.ErrInvalidData
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c.Data = nil
		c.OriginalRequestParameters = nil
		if err := tx.Save(c).Error; err != nil {
			return err
		}
		res := tx.Delete(c)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConsentNotFound
		}
		return nil
	})
}

func (s *GormConsentStore) DeleteExpired(ctx context.Context, now time.Time) ([]models.Consent, error) {
	var expired []models.Consent
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := expiredQuery(tx, now).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]uint, len(expired))
		for i, c := range expired {
			ids[i] = c.ID
		}
		return expiredQuery(tx, now).Where("id IN ?", ids).Delete(&models.Consent{}).Error
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

// GormFormSettingStore is the MySQL-backed FormSettingStore.
type GormFormSettingStore struct {
	DB *gorm.DB
}

func NewGormFormSettingStore(db *gorm.DB) *GormFormSettingStore {
	return &GormFormSettingStore{DB: db}
}

func (s *GormFormSettingStore) FindByIdentifier(ctx context.Context, identifier string) (*models.FormSetting, error) {
	var f models.FormSetting
	err := s.DB.WithContext(ctx).Where("identifier = ?", identifier).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFormNotConfigured
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *GormFormSettingStore) Save(ctx context.Context, f *models.FormSetting) error {
	if f == nil {
		return gorm.ErrInvalidData
	}
	return s.DB.WithContext(ctx).Save(f).Error
}

// GormFileStore is the MySQL-backed FileStore.
type GormFileStore struct {
	DB *gorm.DB
}

func NewGormFileStore(db *gorm.DB) *GormFileStore {
	return &GormFileStore{DB: db}
}

func (s *GormFileStore) Create(ctx context.Context, f *models.StoredFile) error {
	return s.DB.WithContext(ctx).Create(f).Error
}

func (s *GormFileStore) FindByID(ctx context.Context, id uint) (*models.StoredFile, error) {
	var f models.StoredFile
	err := s.DB.WithContext(ctx).First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *GormFileStore) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.StoredFile{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}
