package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/ratelimit"
	log "github.com/sirupsen/logrus"
)

// Limiter is the subset of ratelimit.Manager used by RateLimit.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (ratelimit.Result, error)
}

// RateLimit enforces the limit resolved for scope. ScopeUser must run after UserAuth.
// Limiter failures let the request through.
func RateLimit(limiter Limiter, scope ratelimit.Scope) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		decision := ratelimit.ResolveLimit(scope)
		var subject string
		switch scope {
		case ratelimit.ScopeIP:
			subject = c.ClientIP()
		case ratelimit.ScopeUser:
			if userID := UserID(c); userID != 0 {
				subject = strconv.FormatUint(userID, 10)
			}
		}
		key := ratelimit.KeyForDecision(subject, decision)
		if key == "" {
			c.Next()
			return
		}
		result, errAllow := limiter.Allow(c.Request.Context(), key, decision.Limit)
		if errAllow != nil {
			log.WithError(errAllow).Warn("rate limit check failed")
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Reset.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
		}
		if !result.Allowed {
			response.TooManyRequests(c)
			return
		}
		c.Next()
	}
}
