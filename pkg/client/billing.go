package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/models"
)

// Money is an amount in cents that travels as a two-decimal JSON number.
type Money = models.Money

// Order as returned by the API.
type Order struct {
	OrderNo     string     `json:"order_no"`
	Type        string     `json:"type"`
	PlanID      *uint64    `json:"plan_id"`
	Amount      Money      `json:"amount"`
	Discount    Money      `json:"discount"`
	Paid        Money      `json:"paid"`
	BonusDays   int        `json:"bonus_days"`
	Status      string     `json:"status"`
	PayMethod   string     `json:"pay_method"`
	Remark      string     `json:"remark"`
	ExpiresAt   *time.Time `json:"expires_at"`
	PaidAt      *time.Time `json:"paid_at"`
	CancelledAt *time.Time `json:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Pending reports whether the order still awaits payment.
func (o *Order) Pending() bool { return o.Status == "pending" }

// PayResult is the outcome of a pay call. Settled is true only for balance
// payments; external methods return a PayURL and settle later.
type PayResult struct {
	Order       Order  `json:"order"`
	Settled     bool   `json:"settled"`
	PayURL      string `json:"pay_url"`
	ContentType string `json:"content_type"`
}

// CouponQuote is an advisory price check; payment re-validates the coupon.
type CouponQuote struct {
	Code        string `json:"code"`
	Type        int    `json:"type"`
	Amount      Money  `json:"amount"`
	Discount    Money  `json:"discount"`
	FinalAmount Money  `json:"final_amount"`
	BonusDays   int    `json:"bonus_days"`
}

// Profile is the signed-in user's account.
type Profile struct {
	ID             uint64     `json:"id"`
	Email          string     `json:"email"`
	Balance        Money      `json:"balance"`
	Commission     Money      `json:"commission"`
	TransferEnable int64      `json:"transfer_enable"`
	GroupID        int        `json:"group_id"`
	ExpiredAt      *time.Time `json:"expired_at"`
	InviteCode     string     `json:"invite_code"`
}

// RedeemResult reports a redeemed recharge code.
type RedeemResult struct {
	Amount  Money `json:"amount"`
	Balance Money `json:"balance"`
}

type authResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

// Login signs in and stores the token in the session.
func (c *Client) Login(ctx context.Context, email, password string) (*Profile, error) {
	var out authResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", false, map[string]string{
		"email":    email,
		"password": password,
	}, &out); err != nil {
		return nil, err
	}
	c.session.Login(out.Token, out.ExpiresAt)
	return &out.User, nil
}

// Logout clears the session. The server keeps no session state.
func (c *Client) Logout() {
	c.session.Logout()
}

// Profile fetches the signed-in user.
func (c *Client) Profile(ctx context.Context) (*Profile, error) {
	var out Profile
	if err := c.do(ctx, http.MethodGet, "/api/v1/user/profile", true, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder opens a pending plan order, optionally with a coupon.
func (c *Client) CreateOrder(ctx context.Context, planID uint64, couponCode string) (*Order, error) {
	body := map[string]any{"plan_id": planID}
	if code := strings.TrimSpace(couponCode); code != "" {
		body["coupon_code"] = code
	}
	var out Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/user/orders", true, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder re-reads an order, e.g. after returning from a payment provider.
func (c *Client) GetOrder(ctx context.Context, orderNo string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodGet, "/api/v1/user/orders/"+url.PathEscape(orderNo), true, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyCoupon prices a coupon against a plan. The quote is not binding.
func (c *Client) VerifyCoupon(ctx context.Context, code string, planID uint64) (*CouponQuote, error) {
	var out CouponQuote
	if err := c.do(ctx, http.MethodPost, "/api/v1/user/coupons/verify", true, map[string]any{
		"code":    code,
		"plan_id": planID,
	}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Pay settles from the balance or returns a provider redirect.
func (c *Client) Pay(ctx context.Context, orderNo, method, returnURL string) (*PayResult, error) {
	body := map[string]string{"order_no": orderNo, "method": method}
	if returnURL != "" {
		body["return_url"] = returnURL
	}
	var out PayResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/user/payment/pay", true, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelOrder cancels a pending order.
func (c *Client) CancelOrder(ctx context.Context, orderNo string) (*Order, error) {
	var out Order
	if err := c.do(ctx, http.MethodPost, "/api/v1/user/orders/"+url.PathEscape(orderNo)+"/cancel", true, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Redeem credits a recharge code to the balance.
func (c *Client) Redeem(ctx context.Context, code string) (*RedeemResult, error) {
	var out RedeemResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/user/recharge", true, map[string]string{"code": code}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
