package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"form-consent/models"
)

// ConsentLogStore persists audit entries.
type ConsentLogStore interface {
	Log(ctx context.Context, entry *models.ConsentLog) error
	ListByConsent(ctx context.Context, consentID uint) ([]models.ConsentLog, error)
}

// ConsentLogService records lifecycle events of consents.
type ConsentLogService struct {
	Store  ConsentLogStore
	Logger *slog.Logger
}

func NewConsentLogService(store ConsentLogStore, logger *slog.Logger) *ConsentLogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsentLogService{Store: store, Logger: logger}
}

// Register subscribes the audit log to the lifecycle events.
func (s *ConsentLogService) Register(d *EventDispatcher) {
	d.Subscribe(EventCreated, s.record)
	d.Subscribe(EventApprove, s.record)
	d.Subscribe(EventDismiss, s.record)
}

func (s *ConsentLogService) record(ctx context.Context, ev *ConsentEvent) error {
	s.write(ctx, ev.Consent, ev.Kind.String())
	return nil
}

func (s *ConsentLogService) write(ctx context.Context, c *models.Consent, action string) {
	if c == nil {
		return
	}
	entry := &models.ConsentLog{
		ConsentID: c.ID,
		Action:    action,
		Form:      c.FormPersistenceIdentifier,
	}
	if err := s.Store.Log(ctx, entry); err != nil {
		s.Logger.WarnContext(ctx, "consent log write failed", "consent_id", c.ID, "action", action, "err", err)
	}
}

func (s *ConsentLogService) List(ctx context.Context, consentID uint) ([]models.ConsentLog, error) {
	return s.Store.ListByConsent(ctx, consentID)
}

// GormConsentLogStore is the MySQL-backed ConsentLogStore.
type GormConsentLogStore struct {
	DB *gorm.DB
}

func NewGormConsentLogStore(db *gorm.DB) *GormConsentLogStore {
	return &GormConsentLogStore{DB: db}
}

func (s *GormConsentLogStore) Log(ctx context.Context, entry *models.ConsentLog) error {
	if entry == nil {
		return gorm.ErrInvalidData
	}
	return s.DB.WithContext(ctx).Create(entry).Error
}

func (s *GormConsentLogStore) ListByConsent(ctx context.Context, consentID uint) ([]models.ConsentLog, error) {
	var out []models.ConsentLog
	err := s.DB.WithContext(ctx).Where("consent_id = ?", consentID).Order("id").Find(&out).Error
	return out, err
}

// MemoryConsentLogStore keeps audit entries in memory.
type MemoryConsentLogStore struct {
	mu      sync.RWMutex
	entries []models.ConsentLog
}

func NewMemoryConsentLogStore() *MemoryConsentLogStore {
	return &MemoryConsentLogStore{}
}

func (s *MemoryConsentLogStore) Log(_ context.Context, entry *models.ConsentLog) error {
	if entry == nil {
		return gorm.ErrInvalidData
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = uint(len(s.entries) + 1)
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryConsentLogStore) ListByConsent(_ context.Context, consentID uint) ([]models.ConsentLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.ConsentLog{}
	for _, e := range s.entries {
		if e.ConsentID == consentID {
			out = append(out, e)
		}
	}
	return out, nil
}
