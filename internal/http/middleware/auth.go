// Package middleware holds gin middleware shared by the front and admin APIs.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/security"
)

// Context keys set by UserAuth.
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// UserAuth validates user JWTs and stores the user identity in the context.
func UserAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			return
		}
		token, ok := BearerToken(authHeader)
		if !ok {
			response.Unauthorized(c, "invalid authorization format")
			return
		}
		claims, errParse := security.ParseUserToken(secret, token)
		if errParse != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}

// UserID returns the authenticated user ID, or 0 outside UserAuth.
func UserID(c *gin.Context) uint64 {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0
	}
	id, _ := v.(uint64)
	return id
}
