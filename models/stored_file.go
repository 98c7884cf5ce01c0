package models

import "time"

// StoredFile is an uploaded file kept on disk and referenced from consent
// data through a signed pointer.
type StoredFile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255" json:"name"`
	Path      string    `gorm:"size:512" json:"-"`
	MimeType  string    `gorm:"size:127" json:"mimeType"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}
