// Package payment defines the gateway contract used to settle orders externally.
package payment

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/nyanpass/panel/internal/models"
)

// Method identifies how an order is paid.
type Method string

// Supported methods. Balance and manual are settled internally.
const (
	MethodStripe  Method = "stripe"
	MethodAlipay  Method = "alipay"
	MethodWeChat  Method = "wxpay"
	MethodBalance Method = "balance"
	MethodManual  Method = "manual"
)

// Internal reports whether the method never leaves the billing service.
func (m Method) Internal() bool {
	return m == MethodBalance || m == MethodManual
}

// Content types for PayResponse.
const (
	ContentURL    = "url"
	ContentQRCode = "qrcode"
	ContentHTML   = "html"
)

var (
	// ErrInvalidSignature reports a callback that failed verification.
	ErrInvalidSignature = errors.New("payment: invalid signature")
	// ErrIgnoredEvent reports a callback that carries no settlement (e.g. a failed trade).
	ErrIgnoredEvent = errors.New("payment: ignored event")
	// ErrDisabled reports a gateway that is configured off.
	ErrDisabled = errors.New("payment: gateway disabled")
)

// PayRequest asks a gateway to start collecting an order amount.
type PayRequest struct {
	OrderNo   string
	Amount    models.Money
	Subject   string
	ClientIP  string
	Method    Method
	NotifyURL string
	ReturnURL string
}

// PayResponse tells the client where to go to pay.
type PayResponse struct {
	PayURL      string `json:"pay_url"`
	ContentType string `json:"content_type"`
	TradeNo     string `json:"trade_no,omitempty"`
}

// Notification is a verified settlement callback.
type Notification struct {
	OrderNo string
	TradeNo string
	Amount  models.Money
}

// Gateway is an external payment provider.
type Gateway interface {
	// Methods lists the pay methods served by this gateway.
	Methods() []Method
	Pay(ctx context.Context, req *PayRequest) (*PayResponse, error)
	// Verify authenticates callback params and extracts the settlement.
	Verify(ctx context.Context, method Method, params map[string]string) (*Notification, error)
}

// Registry maps methods to gateways.
type Registry struct {
	mu       sync.RWMutex
	gateways map[Method]Gateway
}

// NewRegistry builds a registry from gateways; later gateways win on conflicts.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[Method]Gateway)}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds g for each of its methods.
func (r *Registry) Register(g Gateway) {
	if r == nil || g == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range g.Methods() {
		m = Method(strings.ToLower(strings.TrimSpace(string(m))))
		if m == "" || m.Internal() {
			continue
		}
		r.gateways[m] = g
	}
}

// Lookup returns the gateway serving method.
func (r *Registry) Lookup(method Method) (Gateway, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[method]
	return g, ok
}

// Methods lists the registered external methods in sorted order.
func (r *Registry) Methods() []Method {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]Method, 0, len(r.gateways))
	for m := range r.gateways {
		out = append(out, m)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
