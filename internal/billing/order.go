package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/security"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/gorm"
)

// PlanOrderInput describes a plan purchase.
type PlanOrderInput struct {
	PlanID     uint64 `validate:"required"`
	CouponCode string `validate:"max=64"`
	Remark     string `validate:"max=255"`
}

// generateOrderNo returns "NP" + UTC timestamp + random suffix.
func generateOrderNo(now time.Time) (string, error) {
	suffix, errRandom := security.GenerateRandomString(6)
	if errRandom != nil {
		return "", fmt.Errorf("order number: %w", errRandom)
	}
	return "NP" + now.UTC().Format("20060102150405") + suffix, nil
}

// CreatePlanOrder creates a pending order for an orderable plan. An ineligible
// coupon rejects the order.
func (s *Service) CreatePlanOrder(ctx context.Context, userID uint64, in PlanOrderInput) (order *models.Order, err error) {
	defer func(start time.Time) { s.observe("create_order", start, err) }(time.Now())

	if errValidate := s.validateStruct(in); errValidate != nil {
		return nil, errValidate
	}
	if errUser := s.activeUser(ctx, userID); errUser != nil {
		return nil, errUser
	}
	plan, errPlan := s.plans.Orderable(ctx, in.PlanID)
	if errPlan != nil {
		return nil, errPlan
	}

	now := s.now()
	planID := plan.ID
	order = &models.Order{
		Type:     models.OrderTypePlan,
		UserID:   userID,
		PlanID:   &planID,
		Amount:   plan.Price,
		Discount: 0,
		Paid:     plan.Price,
		Status:   models.OrderStatusPending,
		Remark:   strings.TrimSpace(in.Remark),
	}

	if code := strings.TrimSpace(in.CouponCode); code != "" {
		quote, errQuote := s.quoteCoupon(s.db.WithContext(ctx), userID, code, plan.ID, plan.Price)
		if errQuote != nil {
			return nil, errQuote
		}
		couponID := quote.Coupon.ID
		order.CouponID = &couponID
		order.Discount = quote.Discount
		order.Paid = quote.FinalAmount
		order.BonusDays = quote.BonusDays
	}

	if errCreate := s.insertOrder(ctx, order, now); errCreate != nil {
		return nil, errCreate
	}
	s.publish(ctx, events.OrderCreated, userID, order.OrderNo, string(order.Type), "", int64(order.Paid))
	return order, nil
}

// CreateTopUpOrder creates a pending balance top-up. Coupons do not apply.
func (s *Service) CreateTopUpOrder(ctx context.Context, userID uint64, amount models.Money) (order *models.Order, err error) {
	defer func(start time.Time) { s.observe("create_topup", start, err) }(time.Now())

	if amount <= 0 {
		return nil, validationError("amount must be positive")
	}
	minAmount := internalsettings.Money(internalsettings.TopUpMinAmountKey, internalsettings.DefaultTopUpMinAmount)
	if minAmount > 0 && amount < minAmount {
		return nil, validationError("amount must be at least %s", minAmount)
	}
	maxAmount := internalsettings.Money(internalsettings.TopUpMaxAmountKey, internalsettings.DefaultTopUpMaxAmount)
	if maxAmount > 0 && amount > maxAmount {
		return nil, validationError("amount must not exceed %s", maxAmount)
	}
	if errUser := s.activeUser(ctx, userID); errUser != nil {
		return nil, errUser
	}

	order = &models.Order{
		Type:   models.OrderTypeRecharge,
		UserID: userID,
		Amount: amount,
		Paid:   amount,
		Status: models.OrderStatusPending,
	}
	if errCreate := s.insertOrder(ctx, order, s.now()); errCreate != nil {
		return nil, errCreate
	}
	s.publish(ctx, events.OrderCreated, userID, order.OrderNo, string(order.Type), "", int64(order.Paid))
	return order, nil
}

// insertOrder assigns the order number and expiry, then persists the row.
func (s *Service) insertOrder(ctx context.Context, order *models.Order, now time.Time) error {
	orderNo, errNo := generateOrderNo(now)
	if errNo != nil {
		return errNo
	}
	expiresAt := now.Add(s.orderTTL())
	order.OrderNo = orderNo
	order.ExpiresAt = &expiresAt
	order.CreatedAt = now
	order.UpdatedAt = now
	if errCreate := s.db.WithContext(ctx).Create(order).Error; errCreate != nil {
		return dbError("create order", errCreate)
	}
	return nil
}

// activeUser rejects unknown and banned users.
func (s *Service) activeUser(ctx context.Context, userID uint64) error {
	var user models.User
	if errFind := s.db.WithContext(ctx).Select("id", "status").First(&user, userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return notFoundError("user")
		}
		return dbError("load user", errFind)
	}
	if user.Status != models.UserStatusActive {
		return &Error{Kind: KindForbidden, Msg: "account is disabled"}
	}
	return nil
}

// findOrder loads an order by number, scoped to userID when it is non-zero.
func findOrder(tx *gorm.DB, orderNo string, userID uint64) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, validationError("order number is required")
	}
	q := tx.Where("order_no = ?", orderNo)
	if userID > 0 {
		q = q.Where("user_id = ?", userID)
	}
	var order models.Order
	if errFind := q.First(&order).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, notFoundError("order")
		}
		return nil, dbError("load order", errFind)
	}
	return &order, nil
}

// GetOrder returns the caller's order.
func (s *Service) GetOrder(ctx context.Context, userID uint64, orderNo string) (*models.Order, error) {
	if userID == 0 {
		return nil, notFoundError("order")
	}
	return findOrder(s.db.WithContext(ctx), orderNo, userID)
}

// AdminGetOrder returns any order by number.
func (s *Service) AdminGetOrder(ctx context.Context, orderNo string) (*models.Order, error) {
	return findOrder(s.db.WithContext(ctx), orderNo, 0)
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID  uint64
	Status  *models.OrderStatus
	Type    models.OrderType
	OrderNo string
	Page
}

// ListUserOrders returns the caller's orders newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID uint64, page Page) ([]models.Order, int64, error) {
	if userID == 0 {
		return nil, 0, nil
	}
	return s.ListOrders(ctx, OrderFilter{UserID: userID, Page: page})
}

// ListOrders returns orders matching f newest first.
func (s *Service) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{})
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if no := strings.TrimSpace(f.OrderNo); no != "" {
		q = q.Where("order_no LIKE ?", "%"+no+"%")
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, dbError("count orders", errCount)
	}
	offset, limit := f.normalize()
	var orders []models.Order
	if errFind := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&orders).Error; errFind != nil {
		return nil, 0, dbError("list orders", errFind)
	}
	return orders, total, nil
}

// DeleteOrder removes a pending or cancelled order.
func (s *Service) DeleteOrder(ctx context.Context, orderNo string) (err error) {
	defer func(start time.Time) { s.observe("delete_order", start, err) }(time.Now())

	order, errFind := findOrder(s.db.WithContext(ctx), orderNo, 0)
	if errFind != nil {
		return errFind
	}
	res := s.db.WithContext(ctx).
		Where("id = ? AND status IN ?", order.ID, []models.OrderStatus{models.OrderStatusPending, models.OrderStatusCancelled}).
		Delete(&models.Order{})
	if res.Error != nil {
		return dbError("delete order", res.Error)
	}
	if res.RowsAffected == 0 {
		current, errReload := findOrder(s.db.WithContext(ctx), orderNo, 0)
		if errReload != nil {
			return errReload
		}
		return stateConflictError("order is %s", current.Status)
	}
	return nil
}
