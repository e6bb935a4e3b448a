package models

import "time"

// InviteRecordStatus tracks commission settlement.
type InviteRecordStatus int

// InviteRecordStatus constants.
const (
	InviteRecordPending InviteRecordStatus = 0
	InviteRecordSettled InviteRecordStatus = 1
)

// InviteRecord links an invitee to the inviter and the commission earned.
type InviteRecord struct {
	ID         uint64             `gorm:"primaryKey;autoIncrement"`
	InviterID  uint64             `gorm:"not null;index"`
	InviteeID  uint64             `gorm:"not null;uniqueIndex"`
	Commission Money              `gorm:"not null;default:0"`
	OrderNo    string             `gorm:"type:varchar(64)"` // First paid order.
	Status     InviteRecordStatus `gorm:"not null;default:0"`
	CreatedAt  time.Time          `gorm:"not null;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"not null;autoUpdateTime"`
}
