package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
)

// RechargeHandler credits the balance by code or opens a top-up order.
type RechargeHandler struct {
	billing *billing.Service
}

// NewRechargeHandler constructs a RechargeHandler.
func NewRechargeHandler(svc *billing.Service) *RechargeHandler {
	return &RechargeHandler{billing: svc}
}

// redeemRequest carries a recharge code.
type redeemRequest struct {
	Code string `json:"code" binding:"required"` // Recharge code.
}

// topUpRequest carries an online top-up amount.
type topUpRequest struct {
	Amount models.Money `json:"amount" binding:"required"` // Decimal amount.
}

// Redeem consumes a recharge code.
func (h *RechargeHandler) Redeem(c *gin.Context) {
	var body redeemRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "code is required")
		return
	}
	result, errRedeem := h.billing.RedeemCode(c.Request.Context(), middleware.UserID(c), strings.TrimSpace(body.Code))
	if errRedeem != nil {
		response.Error(c, errRedeem)
		return
	}
	response.OK(c, gin.H{
		"amount":  result.Amount,
		"balance": result.Balance,
	})
}

// Online opens a pending top-up order to be paid externally.
func (h *RechargeHandler) Online(c *gin.Context) {
	var body topUpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid amount")
		return
	}
	order, errCreate := h.billing.CreateTopUpOrder(c.Request.Context(), middleware.UserID(c), body.Amount)
	if errCreate != nil {
		response.Error(c, errCreate)
		return
	}
	response.Created(c, formatOrder(order))
}
