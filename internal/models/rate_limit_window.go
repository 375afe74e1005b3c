package models

import "time"

// RateLimitWindow is the ephemeral per-credential budget record: one row per
// credential holding the current fixed window. Rows are reset in place when a
// window elapses and may be lost without harming the business record; losing
// one only relaxes the limit for a single window.
type RateLimitWindow struct {
	Key          string    `gorm:"primaryKey;size:256"`
	WindowStart  time.Time `gorm:"not null;index"`
	RequestCount int       `gorm:"not null;default:0"`
	UpdatedAt    time.Time
}

// TableName matches the original rate-limit accounting table.
func (RateLimitWindow) TableName() string { return "api_rate_limits" }
