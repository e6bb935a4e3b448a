package ratelimit

import "strings"

// KeyForDecision builds a limiter key for the resolved scope.
func KeyForDecision(subject string, decision Decision) string {
	subject = strings.TrimSpace(subject)
	if subject == "" || decision.Limit <= 0 {
		return ""
	}
	switch decision.Scope {
	case ScopeIP:
		return "ip:" + subject
	case ScopeUser:
		return "u:" + subject
	default:
		return ""
	}
}
