package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CouponQuote is the advisory result of applying a coupon to an amount.
type CouponQuote struct {
	Coupon      models.Coupon
	Amount      models.Money
	Discount    models.Money
	FinalAmount models.Money
	BonusDays   int
}

// VerifyCouponInput describes the order context a coupon is checked against.
type VerifyCouponInput struct {
	UserID uint64
	Code   string
	PlanID uint64       // Optional; when set the plan price is the amount.
	Amount models.Money // Used when PlanID is 0.
}

// ComputeDiscount returns the money discount and bonus days c grants on amount.
// The discount never exceeds amount.
func ComputeDiscount(c models.Coupon, amount models.Money) (models.Money, int) {
	if amount <= 0 {
		if c.Type == models.CouponTypeBonusDays && c.Value > 0 {
			return 0, int(c.Value)
		}
		return 0, 0
	}
	var discount models.Money
	bonusDays := 0
	switch c.Type {
	case models.CouponTypeFixedAmount:
		discount = models.Money(c.Value)
	case models.CouponTypePercentage:
		discount = models.Money(int64(amount) * c.Value / 100)
		if c.MaxDiscount > 0 && discount > c.MaxDiscount {
			discount = c.MaxDiscount
		}
	case models.CouponTypeBonusDays:
		if c.Value > 0 {
			bonusDays = int(c.Value)
		}
	}
	if discount < 0 {
		discount = 0
	}
	if discount > amount {
		discount = amount
	}
	return discount, bonusDays
}

// checkCoupon returns the first failing eligibility rule, or "" when usable.
func checkCoupon(c models.Coupon, planID uint64, amount models.Money, userUses int64, now time.Time) CouponReason {
	switch {
	case !c.IsEnabled:
		return ReasonDisabled
	case c.StartAt != nil && now.Before(*c.StartAt):
		return ReasonNotStarted
	case c.ExpiredAt != nil && !now.Before(*c.ExpiredAt):
		return ReasonExpired
	case c.TotalLimit > 0 && c.UsedCount >= c.TotalLimit:
		return ReasonUsageExhausted
	case c.LimitPerUser > 0 && userUses >= int64(c.LimitPerUser):
		return ReasonUserLimitReached
	case amount < c.MinAmount:
		return ReasonAmountTooLow
	case planID > 0 && !c.PlanIDs.Allows(planID):
		return ReasonPlanNotEligible
	}
	return ""
}

// findCoupon loads a coupon by exact, case-sensitive code.
func findCoupon(tx *gorm.DB, code string) (models.Coupon, error) {
	var c models.Coupon
	if errFind := tx.Where("code = ?", code).First(&c).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return c, couponError(ReasonNotFound)
		}
		return c, dbError("load coupon", errFind)
	}
	if c.Code != code {
		return models.Coupon{}, couponError(ReasonNotFound)
	}
	return c, nil
}

// couponUses counts the user's settled orders carrying the coupon, excluding one order.
func couponUses(tx *gorm.DB, couponID, userID, excludeOrderID uint64) (int64, error) {
	var n int64
	q := tx.Model(&models.Order{}).
		Where("user_id = ? AND coupon_id = ?", userID, couponID).
		Where("status IN ?", []models.OrderStatus{models.OrderStatusPaid, models.OrderStatusRefunded})
	if excludeOrderID > 0 {
		q = q.Where("id <> ?", excludeOrderID)
	}
	if errCount := q.Count(&n).Error; errCount != nil {
		return 0, dbError("count coupon uses", errCount)
	}
	return n, nil
}

// quoteCoupon evaluates code for the user and amount using tx for reads only.
func (s *Service) quoteCoupon(tx *gorm.DB, userID uint64, code string, planID uint64, amount models.Money) (CouponQuote, error) {
	c, errFind := findCoupon(tx, code)
	if errFind != nil {
		return CouponQuote{}, errFind
	}
	uses, errUses := couponUses(tx, c.ID, userID, 0)
	if errUses != nil {
		return CouponQuote{}, errUses
	}
	if reason := checkCoupon(c, planID, amount, uses, s.now()); reason != "" {
		return CouponQuote{}, couponError(reason)
	}
	discount, bonusDays := ComputeDiscount(c, amount)
	return CouponQuote{
		Coupon:      c,
		Amount:      amount,
		Discount:    discount,
		FinalAmount: amount - discount,
		BonusDays:   bonusDays,
	}, nil
}

// VerifyCoupon reports the discount a coupon would give without consuming it.
func (s *Service) VerifyCoupon(ctx context.Context, in VerifyCouponInput) (quote CouponQuote, err error) {
	defer func(start time.Time) { s.observe("verify_coupon", start, err) }(time.Now())

	code := strings.TrimSpace(in.Code)
	if code == "" {
		return CouponQuote{}, validationError("coupon code is required")
	}
	amount := in.Amount
	if in.PlanID > 0 {
		plan, errPlan := s.plans.Orderable(ctx, in.PlanID)
		if errPlan != nil {
			return CouponQuote{}, errPlan
		}
		amount = plan.Price
	} else if amount <= 0 {
		return CouponQuote{}, validationError("amount must be positive")
	}
	return s.quoteCoupon(s.db.WithContext(ctx), in.UserID, code, in.PlanID, amount)
}

// orderCouponReason loads the order's coupon and returns the first rule it now fails.
func orderCouponReason(tx *gorm.DB, order *models.Order, now time.Time) (models.Coupon, CouponReason, error) {
	var c models.Coupon
	if errFind := tx.First(&c, *order.CouponID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return c, ReasonNotFound, nil
		}
		return c, "", dbError("load coupon", errFind)
	}
	uses, errUses := couponUses(tx, c.ID, order.UserID, order.ID)
	if errUses != nil {
		return c, "", errUses
	}
	var planID uint64
	if order.PlanID != nil {
		planID = *order.PlanID
	}
	return c, checkCoupon(c, planID, order.Amount, uses, now), nil
}

// checkOrderCoupon fails when the order's coupon can no longer be applied.
func checkOrderCoupon(tx *gorm.DB, order *models.Order, now time.Time) error {
	if order.CouponID == nil || *order.CouponID == 0 {
		return nil
	}
	_, reason, errReason := orderCouponReason(tx, order, now)
	if errReason != nil {
		return errReason
	}
	if reason != "" {
		return couponError(reason)
	}
	return nil
}

// consumeCoupon records one use of the order's coupon at settlement.
// With enforce set the coupon is re-validated and the total limit is a hard stop.
// Without it the discount was already charged by a provider, so the use is recorded
// even past the limits and the overshoot is logged.
func (s *Service) consumeCoupon(tx *gorm.DB, order *models.Order, now time.Time, enforce bool) error {
	if order.CouponID == nil || *order.CouponID == 0 {
		return nil
	}
	c, reason, errReason := orderCouponReason(tx, order, now)
	if errReason != nil {
		return errReason
	}
	if reason != "" {
		if enforce {
			return couponError(reason)
		}
		log.WithFields(log.Fields{
			"order_no":  order.OrderNo,
			"coupon_id": *order.CouponID,
			"reason":    string(reason),
		}).Warn("settling paid order with a coupon that is no longer eligible")
		if reason == ReasonNotFound {
			return nil
		}
	}

	q := tx.Model(&models.Coupon{}).Where("id = ?", c.ID)
	if enforce {
		q = q.Where("total_limit = 0 OR used_count < total_limit")
	}
	res := q.Updates(map[string]any{
		"used_count": gorm.Expr("used_count + 1"),
		"updated_at": now,
	})
	if res.Error != nil {
		return dbError("increment coupon usage", res.Error)
	}
	if res.RowsAffected == 0 && enforce {
		return couponError(ReasonUsageExhausted)
	}
	return nil
}
