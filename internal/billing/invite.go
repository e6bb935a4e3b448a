package billing

import (
	"context"
	"errors"

	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/models"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Service) commissionRate() int {
	rate := internalsettings.Int(internalsettings.InviteCommissionRateKey, s.opts.CommissionRate)
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

// HandleOrderPaid credits the inviter once, on the invitee's first paid plan order.
// It is an events.Handler for events.OrderPaid.
func (s *Service) HandleOrderPaid(ctx context.Context, evt events.Event) error {
	if !s.opts.InviteEnabled || evt.OrderType != string(models.OrderTypePlan) || evt.Amount <= 0 {
		return nil
	}
	rate := s.commissionRate()
	if rate == 0 {
		return nil
	}
	commission := models.Money(evt.Amount * int64(rate) / 100)
	if commission <= 0 {
		return nil
	}
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invitee models.User
		if errFind := tx.Select("id", "invited_by").First(&invitee, evt.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil
			}
			return errFind
		}
		if invitee.InvitedBy == 0 || invitee.InvitedBy == invitee.ID {
			return nil
		}

		res := tx.Model(&models.InviteRecord{}).
			Where("invitee_id = ? AND status = ?", invitee.ID, models.InviteRecordPending).
			Updates(map[string]any{
				"commission": commission,
				"order_no":   evt.OrderNo,
				"status":     models.InviteRecordSettled,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			create := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.InviteRecord{
				InviterID:  invitee.InvitedBy,
				InviteeID:  invitee.ID,
				Commission: commission,
				OrderNo:    evt.OrderNo,
				Status:     models.InviteRecordSettled,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
			if create.Error != nil {
				return create.Error
			}
			if create.RowsAffected == 0 {
				return nil
			}
		}
		return tx.Model(&models.User{}).Where("id = ?", invitee.InvitedBy).Updates(map[string]any{
			"commission": gorm.Expr("commission + ?", commission),
			"updated_at": now,
		}).Error
	})
}

// InviteSummary aggregates a user's invite activity.
type InviteSummary struct {
	InviteCode        string
	InviteCount       int64
	TotalCommission   models.Money
	PendingInvitees   int64
	CommissionBalance models.Money
	CommissionRate    int
}

// Invites returns the invite code, invitee count and commission totals.
func (s *Service) Invites(ctx context.Context, userID uint64) (*InviteSummary, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Select("id", "invite_code", "commission").First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user")
		}
		return nil, dbError("load user", errFind)
	}
	out := &InviteSummary{
		InviteCode:        user.InviteCode,
		CommissionBalance: user.Commission,
		CommissionRate:    s.commissionRate(),
	}
	base := s.db.WithContext(ctx).Model(&models.InviteRecord{}).Where("inviter_id = ?", userID)
	if errCount := base.Session(&gorm.Session{}).Count(&out.InviteCount).Error; errCount != nil {
		return nil, dbError("count invitees", errCount)
	}
	if errCount := base.Session(&gorm.Session{}).Where("status = ?", models.InviteRecordPending).Count(&out.PendingInvitees).Error; errCount != nil {
		return nil, dbError("count pending invitees", errCount)
	}
	var total int64
	errSum := base.Session(&gorm.Session{}).Select("COALESCE(SUM(commission), 0)").Scan(&total).Error
	if errSum != nil {
		return nil, dbError("sum commission", errSum)
	}
	out.TotalCommission = models.Money(total)
	return out, nil
}
