package models

import "time"

// ConsentLog is one audit entry in a consent's lifecycle.
type ConsentLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ConsentID uint      `gorm:"index" json:"consentId"`
	Action    string    `gorm:"size:32;index" json:"action"`
	Form      string    `gorm:"size:255" json:"form"`
	CreatedAt time.Time `json:"createdAt"`
}
