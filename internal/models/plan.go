package models

import "time"

// Plan represents a purchasable subscription plan.
type Plan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:varchar(255);not null"` // Plan name.
	Description string `gorm:"type:text"`                  // Plan description.
	Price       Money  `gorm:"not null;default:0"`         // Price in cents.

	DurationDays int   `gorm:"not null;default:30"` // Entitlement length in days.
	TransferGB   int64 `gorm:"not null;default:0"`  // Traffic allowance in GB.
	SpeedLimit   int   `gorm:"not null;default:0"`  // Speed limit in Mbps, 0 unlimited.
	DeviceLimit  int   `gorm:"not null;default:0"`  // Concurrent devices, 0 unlimited.
	GroupID      int   `gorm:"not null;default:1"`  // Node group granted by the plan.

	Hidden    bool `gorm:"not null;default:false"` // Hidden plans cannot be ordered.
	IsEnabled bool `gorm:"not null"`               // Whether the plan is on sale.
	SortOrder int  `gorm:"not null;default:0"`     // Display ordering weight.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
