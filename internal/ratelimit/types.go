package ratelimit

import (
	"context"
	"time"
)

// Window is the fixed counting window for all limiters.
const Window = time.Minute

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// Scope indicates which dimension the rate limit applies to.
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeIP limits unauthenticated endpoints per client address.
	ScopeIP
	// ScopeUser limits authenticated endpoints per user.
	ScopeUser
)

// Decision describes the resolved rate limit and scope.
type Decision struct {
	Limit int
	Scope Scope
}
