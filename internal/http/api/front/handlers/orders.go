package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/http/response"
)

// OrderHandler serves the caller's orders.
type OrderHandler struct {
	billing *billing.Service
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(svc *billing.Service) *OrderHandler {
	return &OrderHandler{billing: svc}
}

// createOrderRequest captures a plan purchase.
type createOrderRequest struct {
	PlanID     uint64 `json:"plan_id" binding:"required"` // Plan to buy.
	CouponCode string `json:"coupon_code"`                // Optional coupon.
	Remark     string `json:"remark"`                     // Optional note.
}

// Create opens a pending plan order.
func (h *OrderHandler) Create(c *gin.Context) {
	var body createOrderRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "plan_id is required")
		return
	}
	order, errCreate := h.billing.CreatePlanOrder(c.Request.Context(), middleware.UserID(c), billing.PlanOrderInput{
		PlanID:     body.PlanID,
		CouponCode: strings.TrimSpace(body.CouponCode),
		Remark:     strings.TrimSpace(body.Remark),
	})
	if errCreate != nil {
		response.Error(c, errCreate)
		return
	}
	response.Created(c, formatOrder(order))
}

// List returns the caller's orders, newest first.
func (h *OrderHandler) List(c *gin.Context) {
	var q pageQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		response.BadRequest(c, "invalid query")
		return
	}
	rows, total, errList := h.billing.ListUserOrders(c.Request.Context(), middleware.UserID(c), q.page())
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatOrder(&rows[i]))
	}
	response.OK(c, response.Page{Items: out, Total: total, Page: q.Page, PageSize: q.PageSize})
}

// Get returns one of the caller's orders.
func (h *OrderHandler) Get(c *gin.Context) {
	order, errGet := h.billing.GetOrder(c.Request.Context(), middleware.UserID(c), c.Param("order_no"))
	if errGet != nil {
		response.Error(c, errGet)
		return
	}
	response.OK(c, formatOrder(order))
}

// Cancel cancels one of the caller's pending orders.
func (h *OrderHandler) Cancel(c *gin.Context) {
	order, errCancel := h.billing.Cancel(c.Request.Context(), middleware.UserID(c), c.Param("order_no"))
	if errCancel != nil {
		response.Error(c, errCancel)
		return
	}
	response.OK(c, formatOrder(order))
}
