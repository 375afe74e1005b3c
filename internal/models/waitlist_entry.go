package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WaitlistEntry is one membership record for an email within a project. The
// (project_id, email) pair is unique; a second join for the same pair is an
// idempotent lookup, never a new row. Rows are immutable after insertion
// except for priority-score credits. Referral codes are unique per project,
// not globally.
type WaitlistEntry struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	ProjectID string `gorm:"type:uuid;not null;uniqueIndex:idx_entries_project_email;uniqueIndex:idx_entries_project_referral;index:idx_entries_project_joined" json:"project_id"`
	Email     string `gorm:"not null;uniqueIndex:idx_entries_project_email" json:"email"`

	JoinedAt      time.Time `gorm:"not null;index:idx_entries_project_joined" json:"joined_at"`
	ReferralCode  string    `gorm:"not null;uniqueIndex:idx_entries_project_referral" json:"referral_code"`
	ReferredBy    *string   `json:"referred_by,omitempty"`
	PriorityScore int       `gorm:"default:0" json:"priority_score"`
}

// TableName keeps the table name aligned with the dashboard/export tooling.
func (WaitlistEntry) TableName() string { return "waitlist_entries" }

// BeforeCreate assigns the row identity and join timestamp at insertion time.
func (e *WaitlistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.JoinedAt.IsZero() {
		e.JoinedAt = time.Now().UTC()
	}
	return nil
}

// NormalizeEmail lowercases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
