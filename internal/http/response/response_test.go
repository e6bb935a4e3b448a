package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &env); errDecode != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), errDecode)
	}
	return env
}

func TestErrorMapsKinds(t *testing.T) {
	cases := []struct {
		kind   billing.Kind
		status int
		code   int
	}{
		{billing.KindValidation, http.StatusBadRequest, CodeValidation},
		{billing.KindNotFound, http.StatusNotFound, CodeNotFound},
		{billing.KindForbidden, http.StatusForbidden, CodeForbidden},
		{billing.KindStateConflict, http.StatusConflict, CodeStateConflict},
		{billing.KindInsufficientFunds, http.StatusPaymentRequired, CodeInsufficientFunds},
		{billing.KindCouponIneligible, http.StatusUnprocessableEntity, CodeCouponIneligible},
		{billing.KindExternal, http.StatusBadGateway, CodeExternal},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		wrapped := fmt.Errorf("handler: %w", &billing.Error{Kind: tc.kind, Msg: "boom"})
		Error(c, wrapped)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.kind, rec.Code, tc.status)
		}
		env := decode(t, rec)
		if env.Code != tc.code {
			t.Fatalf("%s: code = %d, want %d", tc.kind, env.Code, tc.code)
		}
		if env.Msg != "boom" {
			t.Fatalf("%s: msg = %q", tc.kind, env.Msg)
		}
	}
}

func TestErrorCarriesCouponReason(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	Error(c, &billing.Error{Kind: billing.KindCouponIneligible, Reason: "expired", Msg: "coupon has expired"})

	env := decode(t, rec)
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %#v, want object", env.Data)
	}
	if data["reason"] != "expired" {
		t.Fatalf("reason = %v, want expired", data["reason"])
	}
}

func TestErrorKeepsProviderCauseOutOfMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	Error(c, &billing.Error{Kind: billing.KindExternal, Msg: "payment provider unavailable", Err: errors.New("dial tcp 10.0.0.5:443: connection reset")})

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	env := decode(t, rec)
	if env.Msg != "payment provider unavailable" {
		t.Fatalf("msg = %q, want provider cause hidden", env.Msg)
	}
}

func TestErrorHidesUnknownFailures(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	Error(c, errors.New("pq: connection refused"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	env := decode(t, rec)
	if env.Msg != "internal error" {
		t.Fatalf("msg = %q, leaked cause", env.Msg)
	}
}

func TestUnauthorizedAborts(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	Unauthorized(c, "invalid token")

	if !c.IsAborted() {
		t.Fatalf("context not aborted")
	}
	if rec.Code != http.StatusUnauthorized || decode(t, rec).Code != CodeUnauthorized {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestOKEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	OK(c, gin.H{"n": 1})

	env := decode(t, rec)
	if rec.Code != http.StatusOK || env.Code != CodeOK || env.Msg != "success" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}
