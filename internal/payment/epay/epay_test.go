package epay

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/payment"
)

func testGateway() *Gateway {
	return New(config.EPayConfig{
		Enabled: true,
		APIURL:  "https://pay.example.com/",
		PID:     "1001",
		Key:     "k3y",
		Methods: []string{"alipay", "wxpay"},
	})
}

func TestSign_KnownVector(t *testing.T) {
	g := testGateway()
	// md5("a=1&b=2k3y")
	if got := g.Sign(map[string]string{"b": "2", "a": "1"}); got != "b8da605b325578d98123aea6451d45b6" {
		t.Fatalf("unexpected signature %q", got)
	}
	if g.Sign(map[string]string{"a": "1", "b": "2"}) != g.Sign(map[string]string{"b": "2", "a": "1"}) {
		t.Fatalf("signature must not depend on map order")
	}
}

func TestPay_BuildsSignedRedirect(t *testing.T) {
	g := testGateway()
	resp, err := g.Pay(context.Background(), &payment.PayRequest{
		OrderNo:   "NP20260101000000ABCD",
		Amount:    1999,
		Subject:   "Pro plan",
		Method:    payment.MethodAlipay,
		NotifyURL: "https://panel.example.com/api/v1/payment/notify/alipay",
	})
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if resp.ContentType != payment.ContentURL {
		t.Fatalf("expected url content type, got %q", resp.ContentType)
	}
	if !strings.HasPrefix(resp.PayURL, "https://pay.example.com/submit.php?") {
		t.Fatalf("unexpected pay url %q", resp.PayURL)
	}
	parsed, _ := url.Parse(resp.PayURL)
	q := parsed.Query()
	if q.Get("money") != "19.99" || q.Get("type") != "alipay" || q.Get("sign_type") != "MD5" {
		t.Fatalf("unexpected query %v", q)
	}

	params := map[string]string{}
	for k := range q {
		params[k] = q.Get(k)
	}
	sign := params["sign"]
	delete(params, "sign")
	delete(params, "sign_type")
	if g.Sign(params) != sign {
		t.Fatalf("redirect signature does not verify")
	}
}

func TestPay_Disabled(t *testing.T) {
	g := New(config.EPayConfig{})
	if _, err := g.Pay(context.Background(), &payment.PayRequest{}); !errors.Is(err, payment.ErrDisabled) {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func signedCallback(g *Gateway, status string) map[string]string {
	params := map[string]string{
		"pid":          "1001",
		"trade_no":     "2026010122001",
		"out_trade_no": "NP1",
		"type":         "alipay",
		"name":         "Pro plan",
		"money":        "19.99",
		"trade_status": status,
	}
	params["sign"] = g.Sign(params)
	params["sign_type"] = "MD5"
	return params
}

func TestVerify(t *testing.T) {
	g := testGateway()

	n, err := g.Verify(context.Background(), payment.MethodAlipay, signedCallback(g, "TRADE_SUCCESS"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if n.OrderNo != "NP1" || n.TradeNo != "2026010122001" || n.Amount != 1999 {
		t.Fatalf("unexpected notification %+v", n)
	}

	tampered := signedCallback(g, "TRADE_SUCCESS")
	tampered["money"] = "0.01"
	if _, err := g.Verify(context.Background(), payment.MethodAlipay, tampered); !errors.Is(err, payment.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}

	if _, err := g.Verify(context.Background(), payment.MethodAlipay, signedCallback(g, "WAIT_BUYER_PAY")); !errors.Is(err, payment.ErrIgnoredEvent) {
		t.Fatalf("expected ignored event, got %v", err)
	}
}
