package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
)

// CouponHandler previews coupons for the caller.
type CouponHandler struct {
	billing *billing.Service
}

// NewCouponHandler constructs a CouponHandler.
func NewCouponHandler(svc *billing.Service) *CouponHandler {
	return &CouponHandler{billing: svc}
}

// verifyCouponRequest describes the order a coupon would apply to.
type verifyCouponRequest struct {
	Code   string       `json:"code" binding:"required"` // Coupon code.
	PlanID uint64       `json:"plan_id"`                 // Plan being bought.
	Amount models.Money `json:"amount"`                  // Amount when no plan is given.
}

// Verify returns the discount the coupon would grant. The answer is advisory.
func (h *CouponHandler) Verify(c *gin.Context) {
	var body verifyCouponRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "code is required")
		return
	}
	quote, errVerify := h.billing.VerifyCoupon(c.Request.Context(), billing.VerifyCouponInput{
		UserID: middleware.UserID(c),
		Code:   strings.TrimSpace(body.Code),
		PlanID: body.PlanID,
		Amount: body.Amount,
	})
	if errVerify != nil {
		response.Error(c, errVerify)
		return
	}
	response.OK(c, gin.H{
		"code":         quote.Coupon.Code,
		"type":         quote.Coupon.Type,
		"amount":       quote.Amount,
		"discount":     quote.Discount,
		"final_amount": quote.FinalAmount,
		"bonus_days":   quote.BonusDays,
	})
}
