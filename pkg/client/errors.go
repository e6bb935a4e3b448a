package client

import (
	"errors"
	"fmt"
)

// Envelope codes returned by the billing API.
const (
	CodeOK                = 0
	CodeUnauthorized      = 401
	CodeInternal          = 500
	CodeValidation        = 1001
	CodeNotFound          = 1002
	CodeForbidden         = 1003
	CodeStateConflict     = 1004
	CodeInsufficientFunds = 1005
	CodeCouponIneligible  = 1006
	CodeExternal          = 1007
	CodeRateLimited       = 1008
)

// ErrNotSignedIn is returned before a request that needs a session is sent.
var ErrNotSignedIn = errors.New("client: not signed in")

// APIError is a request the server answered with a non-zero envelope code.
type APIError struct {
	Status    int
	Code      int
	Msg       string
	Reason    string // coupon rejection reason, if any
	Retryable bool
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("api error %d (%d): %s [%s]", e.Code, e.Status, e.Msg, e.Reason)
	}
	return fmt.Sprintf("api error %d (%d): %s", e.Code, e.Status, e.Msg)
}

// IsCode reports whether err is an *APIError with code.
func IsCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// NetworkError wraps a transport failure. The request may or may not have
// reached the server, so callers re-read state before retrying mutations.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "client: network: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }
