// Package billing implements orders, coupons, settlement and the balance ledger.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/metrics"
	"github.com/nyanpass/panel/internal/payment"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultOrderTTL = 30 * time.Minute

// Gateways resolves external payment gateways by method.
type Gateways interface {
	Lookup(method payment.Method) (payment.Gateway, bool)
}

// Options configures a Service.
type Options struct {
	// OrderTTL is how long a pending order may wait for payment.
	OrderTTL time.Duration
	// NotifyBaseURL is the public origin used to build provider callback URLs.
	NotifyBaseURL string
	// ReturnURL is where providers send the user after paying.
	ReturnURL string
	// InviteEnabled turns on invite commission for paid plan orders.
	InviteEnabled bool
	// CommissionRate is the inviter's share in percent; a DB setting overrides it.
	CommissionRate int

	Gateways  Gateways
	Publisher events.Publisher
	Observer  metrics.Observer
	Plans     *PlanCatalog
	Now       func() time.Time
}

// Service is the billing core. All state transitions are compare-and-swap
// updates inside a transaction together with their ledger effects.
type Service struct {
	db        *gorm.DB
	opts      Options
	gateways  Gateways
	publisher events.Publisher
	observer  metrics.Observer
	plans     *PlanCatalog
	validate  *validator.Validate
	now       func() time.Time
}

// New constructs a Service.
func New(db *gorm.DB, opts Options) *Service {
	if opts.OrderTTL <= 0 {
		opts.OrderTTL = defaultOrderTTL
	}
	s := &Service{
		db:        db,
		opts:      opts,
		gateways:  opts.Gateways,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		plans:     opts.Plans,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       opts.Now,
	}
	if s.gateways == nil {
		s.gateways = payment.NewRegistry()
	}
	if s.publisher == nil {
		s.publisher = events.NewBus()
	}
	if s.observer == nil {
		s.observer = metrics.Nop{}
	}
	if s.plans == nil {
		s.plans = NewPlanCatalog(db, 0)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Plans exposes the plan catalog for cache invalidation.
func (s *Service) Plans() *PlanCatalog { return s.plans }

func (s *Service) orderTTL() time.Duration {
	if minutes := internalsettings.Int(internalsettings.OrderTTLMinutesKey, 0); minutes > 0 {
		return time.Duration(minutes) * time.Minute
	}
	return s.opts.OrderTTL
}

// observe records the outcome of operation started at start.
func (s *Service) observe(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if be, ok := AsError(err); ok {
			result = string(be.Kind)
		}
	}
	s.observer.RecordOperation(operation, result, time.Since(start))
}

func (s *Service) publish(ctx context.Context, topic events.Topic, userID uint64, orderNo, orderType, method string, amount int64) {
	s.publisher.Publish(ctx, events.Event{
		Topic:      topic,
		UserID:     userID,
		OrderNo:    orderNo,
		OrderType:  orderType,
		PayMethod:  method,
		Amount:     amount,
		OccurredAt: s.now(),
	})
}

// validateStruct maps validator failures to a validation error.
func (s *Service) validateStruct(v any) error {
	errValidate := s.validate.Struct(v)
	if errValidate == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(errValidate, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return validationError("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
	}
	return validationError("invalid input: %v", errValidate)
}

// dbError wraps unexpected persistence failures; billing errors pass through.
func dbError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.WithError(err).Errorf("billing: %s failed", op)
	return fmt.Errorf("billing: %s: %w", op, err)
}

// Page normalizes pagination input.
type Page struct {
	Page     int
	PageSize int
}

func (p Page) normalize() (offset, limit int) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	size := p.PageSize
	if size <= 0 {
		size = 20
	}
	if size > 200 {
		size = 200
	}
	return (page - 1) * size, size
}
