// Package epay implements the EPay aggregator protocol used for alipay and wxpay.
package epay

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/payment"
)

const tradeSuccess = "TRADE_SUCCESS"

// Gateway signs redirect requests and verifies EPay callbacks.
type Gateway struct {
	cfg config.EPayConfig
}

// New constructs a Gateway.
func New(cfg config.EPayConfig) *Gateway {
	return &Gateway{cfg: cfg}
}

// Methods implements payment.Gateway.
func (g *Gateway) Methods() []payment.Method {
	out := make([]payment.Method, 0, len(g.cfg.Methods))
	for _, m := range g.cfg.Methods {
		out = append(out, payment.Method(strings.ToLower(strings.TrimSpace(m))))
	}
	return out
}

// Pay builds the signed submit.php redirect.
func (g *Gateway) Pay(_ context.Context, req *payment.PayRequest) (*payment.PayResponse, error) {
	if !g.cfg.Enabled {
		return nil, payment.ErrDisabled
	}
	if strings.TrimSpace(g.cfg.APIURL) == "" || g.cfg.PID == "" || g.cfg.Key == "" {
		return nil, fmt.Errorf("epay: incomplete configuration")
	}

	params := map[string]string{
		"pid":          g.cfg.PID,
		"type":         string(req.Method),
		"out_trade_no": req.OrderNo,
		"notify_url":   req.NotifyURL,
		"return_url":   firstNonEmpty(req.ReturnURL, g.cfg.ReturnURL),
		"name":         req.Subject,
		"money":        req.Amount.String(),
		"clientip":     req.ClientIP,
	}
	for k, v := range params {
		if v == "" {
			delete(params, k)
		}
	}
	params["sign"] = g.Sign(params)
	params["sign_type"] = "MD5"

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	base := strings.TrimRight(strings.TrimSpace(g.cfg.APIURL), "/")
	return &payment.PayResponse{
		PayURL:      base + "/submit.php?" + query.Encode(),
		ContentType: payment.ContentURL,
	}, nil
}

// Verify checks the callback signature and trade status.
func (g *Gateway) Verify(_ context.Context, _ payment.Method, params map[string]string) (*payment.Notification, error) {
	sign := strings.ToLower(strings.TrimSpace(params["sign"]))
	if sign == "" {
		return nil, payment.ErrInvalidSignature
	}
	signed := make(map[string]string, len(params))
	for k, v := range params {
		if k == "sign" || k == "sign_type" || v == "" {
			continue
		}
		signed[k] = v
	}
	expected := g.Sign(signed)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(sign)) != 1 {
		return nil, payment.ErrInvalidSignature
	}
	if params["trade_status"] != tradeSuccess {
		return nil, fmt.Errorf("%w: trade_status=%s", payment.ErrIgnoredEvent, params["trade_status"])
	}
	amount, errAmount := models.ParseMoney(params["money"])
	if errAmount != nil {
		return nil, fmt.Errorf("epay: parse money %q: %w", params["money"], errAmount)
	}
	orderNo := strings.TrimSpace(params["out_trade_no"])
	if orderNo == "" {
		return nil, fmt.Errorf("epay: missing out_trade_no")
	}
	return &payment.Notification{
		OrderNo: orderNo,
		TradeNo: params["trade_no"],
		Amount:  amount,
	}, nil
}

// Sign computes md5(k1=v1&k2=v2...key) over keys in ascending order.
func (g *Gateway) Sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	b.WriteString(g.cfg.Key)
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
