package app

import (
	"strings"

	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/payment"
	"github.com/nyanpass/panel/internal/payment/epay"
	"github.com/nyanpass/panel/internal/payment/stripe"
	log "github.com/sirupsen/logrus"
)

// BuildGateways registers every enabled and fully configured gateway.
func BuildGateways(cfg config.PaymentConfig) *payment.Registry {
	registry := payment.NewRegistry()
	if cfg.EPay.Enabled {
		if strings.TrimSpace(cfg.EPay.APIURL) == "" || strings.TrimSpace(cfg.EPay.PID) == "" || strings.TrimSpace(cfg.EPay.Key) == "" {
			log.Warn("epay enabled but api-url, pid or key is missing; skipped")
		} else {
			registry.Register(epay.New(cfg.EPay))
		}
	}
	if cfg.Stripe.Enabled {
		if strings.TrimSpace(cfg.Stripe.SecretKey) == "" || strings.TrimSpace(cfg.Stripe.WebhookSecret) == "" {
			log.Warn("stripe enabled but secret-key or webhook-secret is missing; skipped")
		} else {
			registry.Register(stripe.New(cfg.Stripe))
		}
	}
	return registry
}
