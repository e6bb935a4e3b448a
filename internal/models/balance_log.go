package models

import "time"

// BalanceLogKind names the cause of a ledger mutation.
type BalanceLogKind string

// BalanceLogKind constants.
const (
	BalanceLogRechargeCode BalanceLogKind = "recharge_code"
	BalanceLogTopUp        BalanceLogKind = "topup"
	BalanceLogPayment      BalanceLogKind = "order_payment"
	BalanceLogRefund       BalanceLogKind = "refund"
	BalanceLogAdminAdjust  BalanceLogKind = "admin_adjust"
)

// BalanceLog is an append-only ledger entry.
type BalanceLog struct {
	ID           uint64         `gorm:"primaryKey;autoIncrement"`
	UserID       uint64         `gorm:"not null;index"`
	Delta        Money          `gorm:"not null"`
	BalanceAfter Money          `gorm:"not null"`
	Kind         BalanceLogKind `gorm:"type:varchar(32);not null"`
	Ref          string         `gorm:"type:varchar(128);index"` // Order number or code.
	Remark       string         `gorm:"type:varchar(255)"`
	CreatedAt    time.Time      `gorm:"not null;autoCreateTime;index"`
}
