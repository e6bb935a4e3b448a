package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/ratelimit"
	"github.com/nyanpass/panel/internal/security"
)

const testSecret = "middleware-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := BearerToken(tc.header)
		if token != tc.token || ok != tc.ok {
			t.Fatalf("BearerToken(%q) = %q, %v; want %q, %v", tc.header, token, ok, tc.token, tc.ok)
		}
	}
}

func newAuthedEngine() *gin.Engine {
	r := gin.New()
	r.GET("/me", UserAuth(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c)})
	})
	return r
}

func TestUserAuthRejectsMissingAndInvalidTokens(t *testing.T) {
	r := newAuthedEngine()
	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}

func TestUserAuthRejectsAdminToken(t *testing.T) {
	token, _, err := security.GenerateAdminToken(testSecret, 1, "root")
	if err != nil {
		t.Fatalf("GenerateAdminToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newAuthedEngine().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestUserAuthSetsUserID(t *testing.T) {
	token, _, err := security.GenerateUserToken(testSecret, time.Hour, 42, "a@example.com")
	if err != nil {
		t.Fatalf("GenerateUserToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newAuthedEngine().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"user_id":42}` {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

type stubLimiter struct {
	allowed bool
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, limit int) (ratelimit.Result, error) {
	s.keys = append(s.keys, key)
	return ratelimit.Result{Allowed: s.allowed, Remaining: 0, Reset: time.Unix(1700000000, 0)}, nil
}

func TestRateLimitBlocksByIP(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	r := gin.New()
	r.POST("/login", RateLimit(limiter, ratelimit.ScopeIP), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "ip:203.0.113.9" {
		t.Fatalf("keys = %v", limiter.keys)
	}
	if rec.Header().Get("X-RateLimit-Reset") != "1700000000" {
		t.Fatalf("reset header = %q", rec.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimitSkipsUnlimitedUserScope(t *testing.T) {
	limiter := &stubLimiter{allowed: false}
	r := gin.New()
	r.GET("/orders", RateLimit(limiter, ratelimit.ScopeUser), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(limiter.keys) != 0 {
		t.Fatalf("limiter consulted without a user: %v", limiter.keys)
	}
}
