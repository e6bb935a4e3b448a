package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(evt Event) {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, 0, len(r.events))
	for _, evt := range r.events {
		out = append(out, evt.Kind)
	}
	return out
}

func writeEnvelope(w http.ResponseWriter, status, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": msg, "data": data})
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret123" {
			writeEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "invalid email or password", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, CodeOK, "success", map[string]any{
			"token":      "tok-1",
			"expires_at": time.Now().Add(time.Hour),
			"user":       map[string]any{"id": 7, "email": body["email"], "balance": json.Number("12.50")},
		})
	})
	mux.HandleFunc("/api/v1/user/profile", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer tok-1":
			writeEnvelope(w, http.StatusOK, CodeOK, "success", map[string]any{"id": 7, "balance": json.Number("12.50")})
		default:
			writeEnvelope(w, http.StatusUnauthorized, CodeUnauthorized, "invalid or expired token", nil)
		}
	})
	mux.HandleFunc("/api/v1/user/orders", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusCreated, CodeOK, "success", map[string]any{
			"order_no": "NP1", "status": "pending", "amount": json.Number("10.00"), "paid": json.Number("8.00"),
		})
	})
	mux.HandleFunc("/api/v1/user/payment/pay", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["method"] == "balance" {
			writeEnvelope(w, http.StatusPaymentRequired, CodeInsufficientFunds, "insufficient balance", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, CodeOK, "success", map[string]any{
			"order":   map[string]any{"order_no": body["order_no"], "status": "pending"},
			"settled": false,
			"pay_url": "https://pay.example.com/x",
		})
	})
	mux.HandleFunc("/api/v1/user/coupons/verify", func(w http.ResponseWriter, _ *http.Request) {
		writeEnvelope(w, http.StatusUnprocessableEntity, CodeCouponIneligible, "coupon not applicable", map[string]any{"reason": "expired"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginStoresSessionAndAuthorizesCalls(t *testing.T) {
	srv := newTestAPI(t)
	c := New(srv.URL)
	ctx := context.Background()

	_, err := c.Profile(ctx)
	require.ErrorIs(t, err, ErrNotSignedIn)

	user, err := c.Login(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), user.ID)
	assert.True(t, c.Session().Active())

	profile, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, Money(1250), profile.Balance)

	c.Logout()
	assert.False(t, c.Session().Active())
}

func TestBusinessErrorKeepsSessionAndNotifies(t *testing.T) {
	srv := newTestAPI(t)
	events := &recorder{}
	session := NewSession()
	session.Login("tok-1", time.Time{})
	c := New(srv.URL, WithSession(session), WithNotifier(events))
	ctx := context.Background()

	order, err := c.CreateOrder(ctx, 3, "SPRING")
	require.NoError(t, err)
	assert.True(t, order.Pending())
	assert.Equal(t, Money(800), order.Paid)

	_, err = c.Pay(ctx, order.OrderNo, "balance", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.Status)
	assert.True(t, IsCode(err, CodeInsufficientFunds))
	assert.True(t, session.Active())

	redirect, err := c.Pay(ctx, order.OrderNo, "alipay", "")
	require.NoError(t, err)
	assert.False(t, redirect.Settled)
	assert.Equal(t, "https://pay.example.com/x", redirect.PayURL)

	_, err = c.VerifyCoupon(ctx, "OLD", 3)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "expired", apiErr.Reason)

	assert.Equal(t, []EventKind{EventBusiness, EventBusiness}, events.kinds())
}

func TestUnauthorizedTearsDownSession(t *testing.T) {
	srv := newTestAPI(t)
	bus := NewBus()
	var got []Event
	unsubscribe := bus.Subscribe(func(evt Event) { got = append(got, evt) })
	defer unsubscribe()

	session := NewSession()
	session.Login("stale", time.Time{})
	c := New(srv.URL, WithSession(session), WithNotifier(bus))

	_, err := c.Profile(context.Background())
	require.True(t, IsCode(err, CodeUnauthorized))
	assert.False(t, session.Active())
	require.Len(t, got, 1)
	assert.Equal(t, EventUnauthorized, got[0].Kind)
}

func TestNetworkFailureIsRetryable(t *testing.T) {
	srv := newTestAPI(t)
	url := srv.URL
	srv.Close()

	events := &recorder{}
	session := NewSession()
	session.Login("tok-1", time.Time{})
	c := New(url, WithSession(session), WithNotifier(events))

	_, err := c.Redeem(context.Background(), "CODE")
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	require.Len(t, events.events, 1)
	assert.Equal(t, EventNetwork, events.events[0].Kind)
	assert.True(t, events.events[0].Retryable)
	assert.True(t, session.Active())
}

func TestSessionExpiry(t *testing.T) {
	s := NewSession()
	s.Login("tok", time.Now().Add(-time.Second))
	assert.Equal(t, "", s.Token())
	s.Login("tok", time.Now().Add(time.Minute))
	assert.Equal(t, "tok", s.Token())
}
