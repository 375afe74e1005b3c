package models

import "time"

// CacheEntry is a shared, TTL'd key-value row used when Redis is not
// configured. Magic-link tokens live here so that every service instance
// observes the same one-time tokens.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
