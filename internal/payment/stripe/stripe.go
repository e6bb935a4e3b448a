// Package stripe implements Stripe Checkout as a payment gateway.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/payment"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Callback param keys filled by the notify handler.
const (
	ParamPayload   = "payload"
	ParamSigHeader = "sig_header"
)

const eventCheckoutCompleted = "checkout.session.completed"

// SessionCreator opens a Checkout session.
type SessionCreator func(params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error)

// Gateway creates Checkout sessions and verifies webhooks.
type Gateway struct {
	cfg       config.StripeConfig
	newSession SessionCreator
}

// New constructs a Gateway backed by a dedicated API client.
func New(cfg config.StripeConfig) *Gateway {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Gateway{cfg: cfg, newSession: api.CheckoutSessions.New}
}

// NewWithCreator constructs a Gateway with a custom session creator.
func NewWithCreator(cfg config.StripeConfig, creator SessionCreator) *Gateway {
	return &Gateway{cfg: cfg, newSession: creator}
}

// Methods implements payment.Gateway.
func (g *Gateway) Methods() []payment.Method {
	return []payment.Method{payment.MethodStripe}
}

// Pay opens a Checkout session for the order amount.
func (g *Gateway) Pay(ctx context.Context, req *payment.PayRequest) (*payment.PayResponse, error) {
	if !g.cfg.Enabled {
		return nil, payment.ErrDisabled
	}
	if g.newSession == nil {
		return nil, fmt.Errorf("stripe: no session creator")
	}
	params := &stripeapi.CheckoutSessionParams{
		PaymentMethodTypes: stripeapi.StringSlice([]string{"card"}),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency: stripeapi.String(strings.ToLower(g.cfg.Currency)),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(req.Subject),
					},
					UnitAmount: stripeapi.Int64(int64(req.Amount)),
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(firstNonEmpty(g.cfg.SuccessURL, req.ReturnURL)),
		CancelURL:         stripeapi.String(firstNonEmpty(g.cfg.CancelURL, req.ReturnURL)),
		ClientReferenceID: stripeapi.String(req.OrderNo),
	}
	params.Context = ctx
	params.AddMetadata("order_no", req.OrderNo)

	sess, err := g.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create checkout session: %w", err)
	}
	return &payment.PayResponse{
		PayURL:      sess.URL,
		ContentType: payment.ContentURL,
		TradeNo:     sess.ID,
	}, nil
}

// Verify validates the Stripe-Signature header and extracts a completed session.
func (g *Gateway) Verify(_ context.Context, _ payment.Method, params map[string]string) (*payment.Notification, error) {
	event, err := webhook.ConstructEventWithOptions(
		[]byte(params[ParamPayload]),
		params[ParamSigHeader],
		g.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInvalidSignature, err)
	}
	if string(event.Type) != eventCheckoutCompleted {
		return nil, fmt.Errorf("%w: %s", payment.ErrIgnoredEvent, event.Type)
	}
	var sess stripeapi.CheckoutSession
	if errUnmarshal := json.Unmarshal(event.Data.Raw, &sess); errUnmarshal != nil {
		return nil, fmt.Errorf("stripe: decode session: %w", errUnmarshal)
	}
	if sess.PaymentStatus != stripeapi.CheckoutSessionPaymentStatusPaid {
		return nil, fmt.Errorf("%w: payment_status=%s", payment.ErrIgnoredEvent, sess.PaymentStatus)
	}
	if sess.ClientReferenceID == "" {
		return nil, fmt.Errorf("stripe: session %s has no client reference", sess.ID)
	}
	return &payment.Notification{
		OrderNo: sess.ClientReferenceID,
		TradeNo: sess.ID,
		Amount:  models.Money(sess.AmountTotal),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
