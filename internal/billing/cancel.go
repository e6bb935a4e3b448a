package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const expireBatchSize = 500

// Cancel moves the caller's pending order to cancelled.
func (s *Service) Cancel(ctx context.Context, userID uint64, orderNo string) (order *models.Order, err error) {
	defer func(start time.Time) { s.observe("cancel", start, err) }(time.Now())

	if userID == 0 {
		return nil, notFoundError("order")
	}
	order, errFind := findOrder(s.db.WithContext(ctx), orderNo, userID)
	if errFind != nil {
		return nil, errFind
	}
	if order.Status != models.OrderStatusPending {
		return nil, stateConflictError("order is %s", order.Status)
	}
	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]any{
			"status":       models.OrderStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return nil, dbError("cancel order", res.Error)
	}
	if res.RowsAffected == 0 {
		current, errReload := findOrder(s.db.WithContext(ctx), orderNo, userID)
		if errReload != nil {
			return nil, errReload
		}
		return nil, stateConflictError("order is %s", current.Status)
	}
	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now
	s.publish(ctx, events.OrderCancelled, userID, order.OrderNo, string(order.Type), "", int64(order.Paid))
	return order, nil
}

// ExpirePending cancels pending orders whose expiry has passed and returns how many.
func (s *Service) ExpirePending(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { s.observe("expire_pending", start, err) }(time.Now())

	now := s.now()
	for {
		var batch []models.Order
		errFind := s.db.WithContext(ctx).
			Select("id", "order_no", "user_id", "type", "paid").
			Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.OrderStatusPending, now).
			Order("id").
			Limit(expireBatchSize).
			Find(&batch).Error
		if errFind != nil {
			return n, dbError("find expired orders", errFind)
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			o := &batch[i]
			res := s.db.WithContext(ctx).Model(&models.Order{}).
				Where("id = ? AND status = ?", o.ID, models.OrderStatusPending).
				Updates(map[string]any{
					"status":       models.OrderStatusCancelled,
					"cancelled_at": now,
					"updated_at":   now,
				})
			if res.Error != nil {
				return n, dbError("expire order", res.Error)
			}
			if res.RowsAffected == 0 {
				continue
			}
			n++
			s.publish(ctx, events.OrderCancelled, o.UserID, o.OrderNo, string(o.Type), "", int64(o.Paid))
		}
		if len(batch) < expireBatchSize {
			break
		}
	}
	if n > 0 {
		s.observer.RecordExpired(n)
		log.Infof("billing: expired %d pending orders", n)
	}
	return n, nil
}

// RunExpirySweeper calls ExpirePending every interval until ctx is done.
func (s *Service) RunExpirySweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, errExpire := s.ExpirePending(ctx); errExpire != nil && ctx.Err() == nil {
			log.WithError(errExpire).Warn("billing: expiry sweep failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Refund reverses a paid order and credits the paid amount to the balance.
// Coupon usage and granted entitlement are left untouched.
func (s *Service) Refund(ctx context.Context, orderNo, remark string) (order *models.Order, err error) {
	defer func(start time.Time) { s.observe("refund", start, err) }(time.Now())

	order, errFind := findOrder(s.db.WithContext(ctx), orderNo, 0)
	if errFind != nil {
		return nil, errFind
	}
	if order.Status != models.OrderStatusPaid {
		return nil, stateConflictError("order is %s", order.Status)
	}
	if order.Type == models.OrderTypeRecharge {
		return nil, validationError("top-up orders cannot be refunded to balance")
	}
	remark = strings.TrimSpace(remark)
	now := s.now()
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":      models.OrderStatusRefunded,
			"refunded_at": now,
			"updated_at":  now,
		}
		if remark != "" {
			updates["remark"] = remark
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPaid).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errLostRace
		}
		if order.Paid <= 0 {
			return nil
		}
		_, errCredit := applyLedger(tx, ledgerEntry{
			userID: order.UserID,
			delta:  order.Paid,
			kind:   models.BalanceLogRefund,
			ref:    order.OrderNo,
			remark: remark,
			at:     now,
		})
		return errCredit
	})
	if errors.Is(errTx, errLostRace) {
		current, errReload := findOrder(s.db.WithContext(ctx), orderNo, 0)
		if errReload != nil {
			return nil, errReload
		}
		return nil, stateConflictError("order is %s", current.Status)
	}
	if errTx != nil {
		return nil, dbError("refund order", errTx)
	}
	order.Status = models.OrderStatusRefunded
	order.RefundedAt = &now
	order.UpdatedAt = now
	if remark != "" {
		order.Remark = remark
	}
	s.publish(ctx, events.OrderRefunded, order.UserID, order.OrderNo, string(order.Type), order.PayMethod, int64(order.Paid))
	if order.Paid > 0 {
		s.publish(ctx, events.BalanceChanged, order.UserID, order.OrderNo, string(order.Type), order.PayMethod, int64(order.Paid))
	}
	return order, nil
}
