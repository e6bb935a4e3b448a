package models

import "time"

// OrderStatus represents the lifecycle state of an order.
type OrderStatus int

// OrderStatus constants define the order lifecycle.
const (
	// OrderStatusPending marks an order awaiting settlement.
	OrderStatusPending OrderStatus = 0
	// OrderStatusPaid marks a settled order.
	OrderStatusPaid OrderStatus = 1
	// OrderStatusCancelled marks an order aborted before payment.
	OrderStatusCancelled OrderStatus = 2
	// OrderStatusRefunded marks a paid order that was reversed.
	OrderStatusRefunded OrderStatus = 3
)

// String returns the lowercase state name.
func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "pending"
	case OrderStatusPaid:
		return "paid"
	case OrderStatusCancelled:
		return "cancelled"
	case OrderStatusRefunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusPaid || next == OrderStatusCancelled
	case OrderStatusPaid:
		return next == OrderStatusRefunded
	default:
		return false
	}
}

// OrderType distinguishes plan purchases from balance top-ups.
type OrderType string

// OrderType constants.
const (
	// OrderTypePlan purchases a plan.
	OrderTypePlan OrderType = "plan"
	// OrderTypeRecharge tops up the ledger balance.
	OrderTypeRecharge OrderType = "recharge"
)

// Order records a purchase or top-up intent and its settlement.
type Order struct {
	ID      uint64    `gorm:"primaryKey;autoIncrement"`              // Primary key.
	OrderNo string    `gorm:"type:varchar(64);not null;uniqueIndex"` // Opaque order number.
	Type    OrderType `gorm:"type:varchar(20);not null;default:'plan'"`

	UserID   uint64  `gorm:"not null;index"` // Owning user.
	PlanID   *uint64 `gorm:"index"`          // Target plan, nil for top-ups.
	CouponID *uint64 `gorm:"index"`          // Applied coupon, if any.

	Amount    Money `gorm:"not null"`           // Gross amount.
	Discount  Money `gorm:"not null;default:0"` // Discount applied.
	Paid      Money `gorm:"not null;default:0"` // Net amount due, Amount - Discount.
	BonusDays int   `gorm:"not null;default:0"` // Extra entitlement days from a bonus coupon.

	Status    OrderStatus `gorm:"not null;default:0;index"`
	PayMethod string      `gorm:"type:varchar(32)"`  // Settlement method, set when paid.
	TradeNo   string      `gorm:"type:varchar(128)"` // External provider reference.
	Remark    string      `gorm:"type:text"`

	ExpiresAt   *time.Time `gorm:"index"` // Pending orders are cancelled after this instant.
	PaidAt      *time.Time
	CancelledAt *time.Time
	RefundedAt  *time.Time

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`       // Last update timestamp.
}
