package models

import (
	"time"

	"gorm.io/datatypes"
)

// Admin represents a back-office operator.
type Admin struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:varchar(191);not null;uniqueIndex"` // Login name.
	Password string `gorm:"type:varchar(255);not null"`             // Hashed password.

	Permissions  datatypes.JSON // Granted permission keys (JSON array).
	IsSuperAdmin bool           `gorm:"not null;default:false"` // Bypasses permission checks.
	Active       bool           `gorm:"not null"`               // Whether the admin can sign in.

	TOTPSecret  string `gorm:"type:varchar(128)"`      // Confirmed TOTP secret.
	TOTPPending string `gorm:"type:varchar(128)"`      // Secret awaiting confirmation.
	TOTPEnabled bool   `gorm:"not null;default:false"` // Whether login requires a code.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Setting stores a runtime setting as JSON text.
// The column is text so SQLite keeps numeric JSON as text instead of coercing it to a number.
type Setting struct {
	Key       string         `gorm:"primaryKey;type:varchar(128)"`
	Value     datatypes.JSON `gorm:"type:text;not null"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"`
}
