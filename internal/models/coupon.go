package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CouponType identifies how a coupon value is interpreted.
type CouponType int

// CouponType constants.
const (
	// CouponTypeFixedAmount subtracts Value cents.
	CouponTypeFixedAmount CouponType = 1
	// CouponTypePercentage subtracts Value percent, capped by MaxDiscount.
	CouponTypePercentage CouponType = 2
	// CouponTypeBonusDays adds Value days to the purchased entitlement.
	CouponTypeBonusDays CouponType = 3
)

// Valid reports whether t is a known coupon type.
func (t CouponType) Valid() bool {
	return t == CouponTypeFixedAmount || t == CouponTypePercentage || t == CouponTypeBonusDays
}

// PlanIDs stores the plans a coupon applies to as a JSON array; empty means all plans.
type PlanIDs []uint64

// Value implements driver.Valuer for database serialization.
func (ids PlanIDs) Value() (driver.Value, error) {
	data, errMarshal := json.Marshal(ids.Clean())
	if errMarshal != nil {
		return nil, fmt.Errorf("plan ids marshal: %w", errMarshal)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database deserialization.
func (ids *PlanIDs) Scan(value any) error {
	if ids == nil {
		return fmt.Errorf("plan ids scan: nil receiver")
	}
	var data []byte
	switch typed := value.(type) {
	case nil:
		*ids = PlanIDs{}
		return nil
	case []byte:
		data = typed
	case string:
		data = []byte(typed)
	default:
		return fmt.Errorf("plan ids scan: unsupported type %T", value)
	}
	if len(data) == 0 {
		*ids = PlanIDs{}
		return nil
	}
	var list []uint64
	if errUnmarshal := json.Unmarshal(data, &list); errUnmarshal != nil {
		return fmt.Errorf("plan ids scan: %w", errUnmarshal)
	}
	*ids = PlanIDs(list).Clean()
	return nil
}

// Clean removes zero values and duplicates while keeping order.
func (ids PlanIDs) Clean() PlanIDs {
	cleaned := make(PlanIDs, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		cleaned = append(cleaned, id)
	}
	return cleaned
}

// Allows reports whether planID is eligible.
func (ids PlanIDs) Allows(planID uint64) bool {
	cleaned := ids.Clean()
	if len(cleaned) == 0 {
		return true
	}
	for _, id := range cleaned {
		if id == planID {
			return true
		}
	}
	return false
}

// Coupon is a discount rule identified by a case-sensitive code.
type Coupon struct {
	ID   uint64     `gorm:"primaryKey;autoIncrement"`              // Primary key.
	Code string     `gorm:"type:varchar(64);not null;uniqueIndex"` // Redemption code.
	Type CouponType `gorm:"not null"`                              // Discount kind.

	// Value is cents for fixed amount, percent for percentage, days for bonus days.
	Value       int64 `gorm:"not null"`
	MinAmount   Money `gorm:"not null;default:0"` // Minimum gross order amount.
	MaxDiscount Money `gorm:"not null;default:0"` // Cap for percentage coupons, 0 uncapped.

	LimitPerUser int `gorm:"not null;default:0"` // Uses per user, 0 unlimited.
	TotalLimit   int `gorm:"not null;default:0"` // Global uses, 0 unlimited.
	UsedCount    int `gorm:"not null;default:0"` // Settled uses.

	PlanIDs PlanIDs `gorm:"type:text"` // Eligible plans, empty for all.

	StartAt   *time.Time // Activation start.
	ExpiredAt *time.Time // Activation end.

	IsEnabled bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
