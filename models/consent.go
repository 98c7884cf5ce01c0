package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Consent is a form submission awaiting (or having received) confirmation
// by the person who submitted it.
type Consent struct {
	ID                        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Email                     string         `gorm:"size:255;index" json:"email"`
	Date                      time.Time      `json:"date"`
	Data                      datatypes.JSON `json:"data"`
	FormPersistenceIdentifier string         `gorm:"size:255;index" json:"formPersistenceIdentifier"`
	OriginalRequestParameters datatypes.JSON `json:"originalRequestParameters,omitempty"`
	OriginalContentElementUID uint           `gorm:"column:original_content_element_uid" json:"originalContentElementUid"`
	Approved                  bool           `gorm:"not null;default:false;index" json:"approved"`
	ApprovalDate              *time.Time     `json:"approvalDate"`
	ValidUntil                *time.Time     `gorm:"index" json:"validUntil"`
	ValidationHash            string         `gorm:"size:128;index" json:"-"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsExpired reports whether the consent's validity window has passed at now.
// A consent without ValidUntil never expires.
func (c *Consent) IsExpired(now time.Time) bool {
	return c.ValidUntil != nil && !c.ValidUntil.After(now)
}

// IsDeleted reports whether the consent carries the soft-delete marker.
func (c *Consent) IsDeleted() bool {
	return c.DeletedAt.Valid
}

// IsValid reports whether hash may be used to confirm or dismiss the consent.
func (c *Consent) IsValid(hash string, now time.Time) bool {
	if c.IsDeleted() || c.IsExpired(now) {
		return false
	}
	return c.ValidationHash != "" && c.ValidationHash == hash
}

// Approve marks the consent as approved at the given time.
func (c *Consent) Approve(at time.Time) {
	c.Approved = true
	c.ApprovalDate = &at
}
