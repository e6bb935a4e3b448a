package billing

import (
	"errors"
	"fmt"
)

// Kind classifies a billing failure.
type Kind string

// Error kinds surfaced to callers.
const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindStateConflict     Kind = "state_conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindCouponIneligible  Kind = "coupon_ineligible"
	KindExternal          Kind = "external"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrStateConflict     = &Error{Kind: KindStateConflict}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrCouponIneligible  = &Error{Kind: KindCouponIneligible}
	ErrExternal          = &Error{Kind: KindExternal}
)

// CouponReason explains why a coupon cannot be applied.
type CouponReason string

// Coupon rejection reasons.
const (
	ReasonNotFound         CouponReason = "not_found"
	ReasonDisabled         CouponReason = "disabled"
	ReasonNotStarted       CouponReason = "not_started"
	ReasonExpired          CouponReason = "expired"
	ReasonUsageExhausted   CouponReason = "usage_exhausted"
	ReasonUserLimitReached CouponReason = "user_limit_reached"
	ReasonAmountTooLow     CouponReason = "amount_too_low"
	ReasonPlanNotEligible  CouponReason = "plan_not_eligible"
)

var couponMessages = map[CouponReason]string{
	ReasonNotFound:         "coupon not found",
	ReasonDisabled:         "coupon is disabled",
	ReasonNotStarted:       "coupon is not active yet",
	ReasonExpired:          "coupon has expired",
	ReasonUsageExhausted:   "coupon usage limit reached",
	ReasonUserLimitReached: "coupon already used the maximum number of times",
	ReasonAmountTooLow:     "order amount is below the coupon minimum",
	ReasonPlanNotEligible:  "coupon does not apply to this plan",
}

// Error is a classified billing failure. Reason is set for coupon and some state errors.
type Error struct {
	Kind   Kind
	Reason string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

// Retryable reports whether the caller may retry unchanged.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindExternal
}

// AsError extracts the billing error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

func validationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func notFoundError(what string) error {
	return &Error{Kind: KindNotFound, Msg: what + " not found"}
}

func stateConflictError(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Msg: fmt.Sprintf(format, args...)}
}

func couponError(reason CouponReason) error {
	return &Error{Kind: KindCouponIneligible, Reason: string(reason), Msg: couponMessages[reason]}
}

func externalError(msg string, err error) error {
	return &Error{Kind: KindExternal, Msg: msg, Err: err}
}
