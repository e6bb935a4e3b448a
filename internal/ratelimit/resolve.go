package ratelimit

import internalsettings "github.com/nyanpass/panel/internal/settings"

// ResolveLimit returns the configured per-window limit for scope.
func ResolveLimit(scope Scope) Decision {
	switch scope {
	case ScopeIP:
		limit := internalsettings.Int(internalsettings.AuthRateLimitKey, internalsettings.DefaultAuthRateLimit)
		return Decision{Limit: limit, Scope: ScopeIP}
	case ScopeUser:
		return Decision{Limit: DefaultSettingsLimit(), Scope: ScopeUser}
	default:
		return Decision{}
	}
}
