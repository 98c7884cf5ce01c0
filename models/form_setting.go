package models

import "time"

// MaxApprovalPeriod caps ApprovalPeriod (seconds) at ten years.
const MaxApprovalPeriod int64 = 10 * 365 * 24 * 60 * 60

// FormSetting holds the consent configuration of a single form.
type FormSetting struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	Identifier string `gorm:"size:255;uniqueIndex" json:"identifier"`

	EmailField  string `gorm:"size:255" json:"emailField"`
	SenderEmail string `gorm:"size:255" json:"senderEmail"`
	SenderName  string `gorm:"size:255" json:"senderName"`
	Subject     string `gorm:"size:255" json:"subject"`

	// ApprovalPeriod is in seconds, 0 disables expiry. Values above
	// MaxApprovalPeriod are treated as MaxApprovalPeriod.
	ApprovalPeriod  int64  `json:"approvalPeriod"`
	ConfirmationURL string `gorm:"size:255" json:"confirmationUrl"`
	WebhookURL      string `gorm:"size:255" json:"webhookUrl"`
	ShowDismissLink bool   `gorm:"not null;default:true" json:"showDismissLink"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ValidUntil returns the expiry for a consent submitted at from, or nil when
// the form does not expire consents.
func (f FormSetting) ValidUntil(from time.Time) *time.Time {
	if f.ApprovalPeriod <= 0 {
		return nil
	}
	period := min(f.ApprovalPeriod, MaxApprovalPeriod)
	t := from.Add(time.Duration(period) * time.Second)
	return &t
}
