package billing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/payment"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const bytesPerGB int64 = 1024 * 1024 * 1024

// errLostRace marks a CAS update that matched no row.
var errLostRace = errors.New("billing: order no longer pending")

// PayInput starts settlement of an order.
type PayInput struct {
	UserID    uint64
	OrderNo   string
	Method    payment.Method
	ClientIP  string
	ReturnURL string
}

// PayResult is either a settled order or a redirect to an external provider.
type PayResult struct {
	Order    *models.Order
	Settled  bool
	Redirect *payment.PayResponse
}

// Pay settles an order with the balance or starts an external payment.
// Paying an already paid order with the same method returns it unchanged.
func (s *Service) Pay(ctx context.Context, in PayInput) (result *PayResult, err error) {
	defer func(start time.Time) { s.observe("pay", start, err) }(time.Now())

	method := payment.Method(strings.ToLower(strings.TrimSpace(string(in.Method))))
	if method == "" {
		return nil, validationError("payment method is required")
	}
	if method == payment.MethodManual {
		return nil, validationError("unsupported payment method %q", method)
	}
	if in.UserID == 0 {
		return nil, notFoundError("order")
	}
	order, errFind := findOrder(s.db.WithContext(ctx), in.OrderNo, in.UserID)
	if errFind != nil {
		return nil, errFind
	}
	if order.Status == models.OrderStatusPaid && order.PayMethod == string(method) {
		return &PayResult{Order: order, Settled: true}, nil
	}
	if order.Status != models.OrderStatusPending {
		return nil, stateConflictError("order is %s", order.Status)
	}
	now := s.now()
	if s.expired(order, now) {
		return nil, s.expireOne(ctx, order, now)
	}

	if method == payment.MethodBalance {
		if order.Type == models.OrderTypeRecharge {
			return nil, validationError("top-up orders cannot be paid with balance")
		}
		settled, errSettle := s.settle(ctx, order, method, "", true)
		if errSettle != nil {
			return nil, errSettle
		}
		return &PayResult{Order: settled, Settled: true}, nil
	}

	gw, ok := s.gateways.Lookup(method)
	if !ok {
		return nil, validationError("payment method %q is not available", method)
	}
	if order.Paid <= 0 {
		return nil, validationError("zero amount orders must be paid with balance")
	}
	if errCoupon := checkOrderCoupon(s.db.WithContext(ctx), order, now); errCoupon != nil {
		return nil, errCoupon
	}
	returnURL := strings.TrimSpace(in.ReturnURL)
	if returnURL == "" {
		returnURL = s.opts.ReturnURL
	}
	resp, errPay := gw.Pay(ctx, &payment.PayRequest{
		OrderNo:   order.OrderNo,
		Amount:    order.Paid,
		Subject:   orderSubject(order),
		ClientIP:  in.ClientIP,
		Method:    method,
		NotifyURL: s.notifyURL(method),
		ReturnURL: returnURL,
	})
	if errPay != nil {
		if errors.Is(errPay, payment.ErrDisabled) {
			return nil, validationError("payment method %q is not available", method)
		}
		return nil, externalError("payment provider unavailable", errPay)
	}
	if resp.TradeNo != "" {
		errTrade := s.db.WithContext(ctx).Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Update("trade_no", resp.TradeNo).Error
		if errTrade != nil {
			return nil, dbError("store trade number", errTrade)
		}
		order.TradeNo = resp.TradeNo
	}
	return &PayResult{Order: order, Redirect: resp}, nil
}

func orderSubject(order *models.Order) string {
	if order.Type == models.OrderTypeRecharge {
		return "Balance top-up " + order.OrderNo
	}
	return "Order " + order.OrderNo
}

func (s *Service) notifyURL(method payment.Method) string {
	base := strings.TrimRight(strings.TrimSpace(s.opts.NotifyBaseURL), "/")
	return base + "/api/v1/payment/notify/" + url.PathEscape(string(method))
}

func (s *Service) expired(order *models.Order, now time.Time) bool {
	return order.ExpiresAt != nil && !now.Before(*order.ExpiresAt)
}

// expireOne cancels an expired pending order and reports the conflict.
func (s *Service) expireOne(ctx context.Context, order *models.Order, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(map[string]any{
			"status":       models.OrderStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
	if res.Error != nil {
		return dbError("expire order", res.Error)
	}
	if res.RowsAffected > 0 {
		s.observer.RecordExpired(1)
		s.publish(ctx, events.OrderCancelled, order.UserID, order.OrderNo, string(order.Type), "", int64(order.Paid))
	}
	return stateConflictError("order has expired")
}

// settle runs settleTx and resolves a lost race by re-reading the order.
func (s *Service) settle(ctx context.Context, order *models.Order, method payment.Method, tradeNo string, debit bool) (*models.Order, error) {
	now := s.now()
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.settleTx(tx, order, method, tradeNo, debit, now)
	})
	if errors.Is(errTx, errLostRace) {
		current, errReload := findOrder(s.db.WithContext(ctx), order.OrderNo, 0)
		if errReload != nil {
			return nil, errReload
		}
		if current.Status == models.OrderStatusPaid && current.PayMethod == string(method) {
			return current, nil
		}
		return nil, stateConflictError("order is %s", current.Status)
	}
	if errTx != nil {
		return nil, dbError("settle order", errTx)
	}

	order.Status = models.OrderStatusPaid
	order.PayMethod = string(method)
	order.PaidAt = &now
	order.UpdatedAt = now
	if tradeNo != "" {
		order.TradeNo = tradeNo
	}
	s.observer.RecordSettlement(string(method), int64(order.Paid))
	s.publish(ctx, events.OrderPaid, order.UserID, order.OrderNo, string(order.Type), string(method), int64(order.Paid))
	if debit && order.Paid > 0 {
		s.publish(ctx, events.BalanceChanged, order.UserID, order.OrderNo, string(order.Type), string(method), -int64(order.Paid))
	}
	if order.Type == models.OrderTypeRecharge {
		s.publish(ctx, events.BalanceChanged, order.UserID, order.OrderNo, string(order.Type), string(method), int64(order.Paid))
	}
	return order, nil
}

// settleTx moves the order to paid together with every ledger and entitlement effect.
func (s *Service) settleTx(tx *gorm.DB, order *models.Order, method payment.Method, tradeNo string, debit bool, now time.Time) error {
	updates := map[string]any{
		"status":     models.OrderStatusPaid,
		"pay_method": string(method),
		"paid_at":    now,
		"updated_at": now,
	}
	if tradeNo != "" {
		updates["trade_no"] = tradeNo
	}
	res := tx.Model(&models.Order{}).
		Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errLostRace
	}

	if debit && order.Paid > 0 {
		if _, errDebit := applyLedger(tx, ledgerEntry{
			userID: order.UserID,
			delta:  -order.Paid,
			kind:   models.BalanceLogPayment,
			ref:    order.OrderNo,
			at:     now,
		}); errDebit != nil {
			return errDebit
		}
	}
	if errCoupon := s.consumeCoupon(tx, order, now, debit); errCoupon != nil {
		return errCoupon
	}

	switch order.Type {
	case models.OrderTypePlan:
		return applyEntitlement(tx, order, now)
	case models.OrderTypeRecharge:
		_, errCredit := applyLedger(tx, ledgerEntry{
			userID: order.UserID,
			delta:  order.Paid,
			kind:   models.BalanceLogTopUp,
			ref:    order.OrderNo,
			at:     now,
		})
		return errCredit
	}
	return nil
}

// applyEntitlement extends the user's plan period and traffic allowance.
func applyEntitlement(tx *gorm.DB, order *models.Order, now time.Time) error {
	if order.PlanID == nil {
		return validationError("plan order without plan")
	}
	var plan models.Plan
	if errPlan := tx.First(&plan, *order.PlanID).Error; errPlan != nil {
		if errors.Is(errPlan, gorm.ErrRecordNotFound) {
			return notFoundError("plan")
		}
		return errPlan
	}
	var user models.User
	if errUser := tx.Select("id", "expired_at").First(&user, order.UserID).Error; errUser != nil {
		if errors.Is(errUser, gorm.ErrRecordNotFound) {
			return notFoundError("user")
		}
		return errUser
	}
	base := now
	if user.ExpiredAt != nil && user.ExpiredAt.After(now) {
		base = *user.ExpiredAt
	}
	expiredAt := base.AddDate(0, 0, plan.DurationDays+order.BonusDays)
	updates := map[string]any{
		"expired_at":      expiredAt,
		"transfer_enable": gorm.Expr("transfer_enable + ?", plan.TransferGB*bytesPerGB),
		"updated_at":      now,
	}
	if plan.GroupID > 0 {
		updates["group_id"] = plan.GroupID
	}
	return tx.Model(&models.User{}).Where("id = ?", order.UserID).Updates(updates).Error
}

// HandleNotify verifies a provider callback and settles the referenced order.
// Repeated callbacks for a paid order succeed without effect.
func (s *Service) HandleNotify(ctx context.Context, method payment.Method, params map[string]string) (order *models.Order, err error) {
	defer func(start time.Time) { s.observe("notify", start, err) }(time.Now())

	method = payment.Method(strings.ToLower(strings.TrimSpace(string(method))))
	gw, ok := s.gateways.Lookup(method)
	if !ok {
		return nil, validationError("payment method %q is not available", method)
	}
	note, errVerify := gw.Verify(ctx, method, params)
	if errVerify != nil {
		switch {
		case errors.Is(errVerify, payment.ErrIgnoredEvent):
			return nil, nil
		case errors.Is(errVerify, payment.ErrInvalidSignature):
			return nil, validationError("invalid callback signature")
		default:
			return nil, externalError("callback verification failed", errVerify)
		}
	}
	return s.SettleExternal(ctx, method, note)
}

// SettleExternal applies a verified provider notification.
func (s *Service) SettleExternal(ctx context.Context, method payment.Method, note *payment.Notification) (*models.Order, error) {
	if note == nil {
		return nil, validationError("empty notification")
	}
	order, errFind := findOrder(s.db.WithContext(ctx), note.OrderNo, 0)
	if errFind != nil {
		return nil, errFind
	}
	if note.Amount != order.Paid {
		log.WithFields(log.Fields{
			"order_no": order.OrderNo,
			"expected": order.Paid.String(),
			"received": note.Amount.String(),
		}).Warn("payment callback amount mismatch")
		return nil, externalError(fmt.Sprintf("amount mismatch for order %s", order.OrderNo), nil)
	}
	switch order.Status {
	case models.OrderStatusPaid:
		return order, nil
	case models.OrderStatusPending:
	default:
		log.WithFields(log.Fields{
			"order_no": order.OrderNo,
			"status":   order.Status.String(),
			"method":   string(method),
			"trade_no": note.TradeNo,
		}).Warn("payment received for closed order, manual handling required")
		return nil, stateConflictError("order is %s", order.Status)
	}

	settled, errSettle := s.settle(ctx, order, method, note.TradeNo, false)
	if errSettle != nil {
		if errors.Is(errSettle, ErrStateConflict) {
			if current, errReload := findOrder(s.db.WithContext(ctx), order.OrderNo, 0); errReload == nil && current.Status == models.OrderStatusPaid {
				return current, nil
			}
		}
		return nil, errSettle
	}
	return settled, nil
}

// MarkPaid settles a pending order administratively without a balance debit.
func (s *Service) MarkPaid(ctx context.Context, orderNo string) (order *models.Order, err error) {
	defer func(start time.Time) { s.observe("mark_paid", start, err) }(time.Now())

	order, errFind := findOrder(s.db.WithContext(ctx), orderNo, 0)
	if errFind != nil {
		return nil, errFind
	}
	if order.Status == models.OrderStatusPaid && order.PayMethod == string(payment.MethodManual) {
		return order, nil
	}
	if order.Status != models.OrderStatusPending {
		return nil, stateConflictError("order is %s", order.Status)
	}
	return s.settle(ctx, order, payment.MethodManual, "", false)
}
