package models

import (
	"regexp"
	"strings"

	"gorm.io/datatypes"
)

// Ranking modes affect how the dashboard and exports present entries. The
// admission engine itself never branches on the mode.
const (
	ModeFIFO       = "fifo"
	ModeRandom     = "random"
	ModeScoreBased = "score_based"
	ModeManual     = "manual"
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9-]`)

// Project is a single waitlist. The API key is the public join credential and
// must stay unique across all projects, as must the slug.
type Project struct {
	BaseModel

	UserID string `gorm:"type:uuid;not null;index" json:"user_id"`
	Name   string `gorm:"type:varchar(120);not null" json:"name"`
	Slug   string `gorm:"uniqueIndex;not null" json:"slug"`
	APIKey string `gorm:"uniqueIndex;not null" json:"api_key"`

	IsFrozen     bool   `gorm:"default:false" json:"is_frozen"`
	Mode         string `gorm:"type:varchar(20);default:fifo" json:"mode"`
	ShowPosition bool   `gorm:"default:true" json:"show_position"`

	// WidgetSettings holds embed customisation (colours, copy) consumed by
	// third-party frontends; opaque to the backend.
	WidgetSettings datatypes.JSON `json:"widget_settings,omitempty"`

	Entries []WaitlistEntry `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}

// NormalizeSlug lowercases the slug and collapses disallowed characters to hyphens.
func NormalizeSlug(slug string) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	return slugInvalidChars.ReplaceAllString(slug, "-")
}

// ValidMode reports whether mode is one of the supported ranking modes.
func ValidMode(mode string) bool {
	switch mode {
	case ModeFIFO, ModeRandom, ModeScoreBased, ModeManual:
		return true
	}
	return false
}
