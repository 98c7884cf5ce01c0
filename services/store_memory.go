package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"form-consent/models"
)

// MemoryStore keeps consents, form settings and file metadata in process
// memory. It implements ConsentStore, FormSettingStore and FileStore and
// backs the service when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint
	consents map[uint]models.Consent
	forms    map[string]models.FormSetting
	files    map[uint]models.StoredFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		consents: make(map[uint]models.Consent),
		forms:    make(map[string]models.FormSetting),
		files:    make(map[uint]models.StoredFile),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

// Consents returns a ConsentStore view of the memory store.
func (s *MemoryStore) Consents() ConsentStore { return memoryConsents{s} }

// Forms returns a FormSettingStore view of the memory store.
func (s *MemoryStore) Forms() FormSettingStore { return memoryForms{s} }

// Files returns a FileStore view of the memory store.
func (s *MemoryStore) Files() FileStore { return memoryFiles{s} }

type memoryConsents struct{ s *MemoryStore }

func (m memoryConsents) Create(_ context.Context, c *models.Consent) error {
	if c == nil {
		return gorm.ErrInvalidData
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := time.Now()
	c.ID = m.s.id()
	c.CreatedAt, c.UpdatedAt = now, now
	m.s.consents[c.ID] = *c
	return nil
}

func (m memoryConsents) Save(_ context.Context, c *models.Consent) error {
	if c == nil {
		return gorm.ErrInvalidData
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.s.id()
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	m.s.consents[c.ID] = *c
	return nil
}

func (m memoryConsents) FindByValidationHash(_ context.Context, hash string, now time.Time) (*models.Consent, error) {
	if hash == "" {
		return nil, nil
	}
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	var found *models.Consent
	for _, c := range m.s.consents {
		if !c.IsValid(hash, now) {
			continue
		}
		if found == nil || c.ID < found.ID {
			cc := c
			found = &cc
		}
	}
	return found, nil
}

func (m memoryConsents) FindByID(_ context.Context, id uint) (*models.Consent, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	c, ok := m.s.consents[id]
	if !ok || c.IsDeleted() {
		return nil, ErrConsentNotFound
	}
	return &c, nil
}

func (m memoryConsents) List(_ context.Context, limit, offset int) ([]models.Consent, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	out := make([]models.Consent, 0, len(m.s.consents))
	for _, c := range m.s.consents {
		if !c.IsDeleted() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if offset >= len(out) {
		return []models.Consent{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m memoryConsents) Delete(_ context.Context, id uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.consents[id]
	if !ok || c.IsDeleted() {
		return ErrConsentNotFound
	}
	c.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	m.s.consents[id] = c
	return nil
}

func (m memoryConsents) Withdraw(_ context.Context, c *models.Consent) error {
	if c == nil {
		return gorm.ErrInvalidData
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.consents[c.ID]
	if !ok || stored.IsDeleted() {
		return ErrConsentNotFound
	}
	now := time.Now()
	c.Data = nil
	c.OriginalRequestParameters = nil
	c.UpdatedAt = now
	c.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
	m.s.consents[c.ID] = *c
	return nil
}

func (m memoryConsents) DeleteExpired(_ context.Context, now time.Time) ([]models.Consent, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var expired []models.Consent
	for id, c := range m.s.consents {
		if c.IsDeleted() || c.Approved || c.ValidUntil == nil || !c.ValidUntil.Before(now) {
			continue
		}
		c.DeletedAt = gorm.DeletedAt{Time: now, Valid: true}
		m.s.consents[id] = c
		expired = append(expired, c)
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

type memoryForms struct{ s *MemoryStore }

func (m memoryForms) FindByIdentifier(_ context.Context, identifier string) (*models.FormSetting, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	f, ok := m.s.forms[identifier]
	if !ok {
		return nil, ErrFormNotConfigured
	}
	return &f, nil
}

func (m memoryForms) Save(_ context.Context, f *models.FormSetting) error {
	if f == nil {
		return gorm.ErrInvalidData
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if f.ID == 0 {
		f.ID = m.s.id()
		f.CreatedAt = time.Now()
	}
	f.UpdatedAt = time.Now()
	m.s.forms[f.Identifier] = *f
	return nil
}

type memoryFiles struct{ s *MemoryStore }

func (m memoryFiles) Create(_ context.Context, f *models.StoredFile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	f.ID = m.s.id()
	f.CreatedAt = time.Now()
	m.s.files[f.ID] = *f
	return nil
}

func (m memoryFiles) FindByID(_ context.Context, id uint) (*models.StoredFile, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	f, ok := m.s.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return &f, nil
}

func (m memoryFiles) Delete(_ context.Context, id uint) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.files[id]; !ok {
		return ErrFileNotFound
	}
	delete(m.s.files, id)
	return nil
}
