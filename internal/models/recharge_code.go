package models

import "time"

// RechargeCode is a single-use token crediting a fixed amount.
type RechargeCode struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`              // Primary key.
	Code   string `gorm:"type:varchar(64);not null;uniqueIndex"` // Secret code.
	Amount Money  `gorm:"not null"`                              // Face value.

	Used   bool       `gorm:"not null;default:false;index"` // Redeemed flag.
	UsedBy *uint64    `gorm:"index"`                        // Redeeming user.
	UsedAt *time.Time // Redemption time.

	Remark    string    `gorm:"type:varchar(200)"`
	CreatedBy uint64    `gorm:"not null;default:0"`      // Creating admin.
	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
