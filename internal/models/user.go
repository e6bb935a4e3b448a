package models

import "time"

// UserStatus represents whether an account may sign in.
type UserStatus int

// UserStatus constants.
const (
	// UserStatusBanned blocks sign in and purchases.
	UserStatusBanned UserStatus = 0
	// UserStatusActive is the normal account state.
	UserStatusActive UserStatus = 1
)

// User represents an end-user account and its ledger balance.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UUID     string `gorm:"type:varchar(36);uniqueIndex"`           // Subscription identifier.
	Email    string `gorm:"type:varchar(191);not null;uniqueIndex"` // Login e-mail.
	Password string `gorm:"type:varchar(255);not null"`             // Hashed password.

	Balance    Money `gorm:"not null;default:0"` // Ledger balance in cents, never negative.
	Commission Money `gorm:"not null;default:0"` // Accrued invite commission in cents.

	Upload         int64      `gorm:"not null;default:0"` // Uploaded bytes.
	Download       int64      `gorm:"not null;default:0"` // Downloaded bytes.
	TransferEnable int64      `gorm:"not null;default:0"` // Traffic entitlement in bytes.
	GroupID        int        `gorm:"not null;default:1"` // Entitled node group.
	ExpiredAt      *time.Time // Entitlement expiry.

	InviteCode string `gorm:"type:varchar(32);uniqueIndex"` // Own invite code.
	InvitedBy  uint64 `gorm:"index;not null;default:0"`     // Inviter user ID.

	Status UserStatus `gorm:"not null;default:1"` // Account status.

	LastLoginAt *time.Time // Last successful sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
