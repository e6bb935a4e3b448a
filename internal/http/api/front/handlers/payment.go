package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/payment"
	"github.com/nyanpass/panel/internal/payment/stripe"
	log "github.com/sirupsen/logrus"
)

const maxNotifyBody = 64 << 10

// PaymentHandler starts payments and receives provider callbacks.
type PaymentHandler struct {
	billing *billing.Service
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(svc *billing.Service) *PaymentHandler {
	return &PaymentHandler{billing: svc}
}

// payRequest selects an order and a pay method.
type payRequest struct {
	OrderNo   string `json:"order_no" binding:"required"` // Order to pay.
	Method    string `json:"method" binding:"required"`   // balance, alipay, wxpay or stripe.
	ReturnURL string `json:"return_url"`                  // Optional provider return URL.
}

// Pay settles the order from the balance or returns the provider redirect.
func (h *PaymentHandler) Pay(c *gin.Context) {
	var body payRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "order_no and method are required")
		return
	}
	result, errPay := h.billing.Pay(c.Request.Context(), billing.PayInput{
		UserID:    middleware.UserID(c),
		OrderNo:   strings.TrimSpace(body.OrderNo),
		Method:    payment.Method(body.Method),
		ClientIP:  c.ClientIP(),
		ReturnURL: strings.TrimSpace(body.ReturnURL),
	})
	if errPay != nil {
		response.Error(c, errPay)
		return
	}
	out := gin.H{
		"order":   formatOrder(result.Order),
		"settled": result.Settled,
	}
	if result.Redirect != nil {
		out["pay_url"] = result.Redirect.PayURL
		out["content_type"] = result.Redirect.ContentType
	}
	response.OK(c, out)
}

// Notify verifies a provider callback and settles the order.
// Providers expect a plain "success" body; anything else makes them retry.
func (h *PaymentHandler) Notify(c *gin.Context) {
	method := payment.Method(strings.ToLower(strings.TrimSpace(c.Param("method"))))
	params := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	if c.Request.Method == http.MethodPost {
		if method == payment.MethodStripe {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxNotifyBody)
			payload, errRead := c.GetRawData()
			if errRead != nil {
				c.String(http.StatusBadRequest, "fail")
				return
			}
			params[stripe.ParamPayload] = string(payload)
			params[stripe.ParamSigHeader] = c.GetHeader("Stripe-Signature")
		} else {
			if errParse := c.Request.ParseForm(); errParse != nil {
				c.String(http.StatusBadRequest, "fail")
				return
			}
			for k, v := range c.Request.PostForm {
				if len(v) > 0 {
					params[k] = v[0]
				}
			}
		}
	}

	order, errNotify := h.billing.HandleNotify(c.Request.Context(), method, params)
	if errNotify != nil {
		log.WithError(errNotify).WithField("method", method).Warn("payment notify rejected")
		if be, ok := billing.AsError(errNotify); ok && be.Kind == billing.KindStateConflict {
			c.String(http.StatusConflict, "fail")
			return
		}
		c.String(http.StatusBadRequest, "fail")
		return
	}
	if order != nil {
		log.WithFields(log.Fields{"order_no": order.OrderNo, "method": method}).Info("payment notify settled")
	}
	c.String(http.StatusOK, "success")
}
