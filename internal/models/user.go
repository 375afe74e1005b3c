package models

import "time"

// User is a dashboard account that owns projects. Password is optional because
// magic-link sign-in creates accounts without one.
type User struct {
	BaseModel

	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash *string `gorm:"type:text" json:"-"`
	DisplayName  string  `gorm:"type:varchar(120)" json:"display_name"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`

	Projects []Project `gorm:"foreignKey:UserID" json:"-"`
}
