package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
)

// OrderHandler exposes order administration.
type OrderHandler struct {
	billing *billing.Service
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(svc *billing.Service) *OrderHandler {
	return &OrderHandler{billing: svc}
}

// orderListQuery filters the order list.
type orderListQuery struct {
	pageQuery
	UserID  uint64 `form:"user_id"`  // Owner filter.
	Status  string `form:"status"`   // pending, paid, cancelled or refunded.
	Type    string `form:"type"`     // plan or recharge.
	OrderNo string `form:"order_no"` // Exact order number.
}

var orderStatusByName = map[string]models.OrderStatus{
	"pending":   models.OrderStatusPending,
	"paid":      models.OrderStatusPaid,
	"cancelled": models.OrderStatusCancelled,
	"refunded":  models.OrderStatusRefunded,
}

// List returns orders matching the filters.
func (h *OrderHandler) List(c *gin.Context) {
	var q orderListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		response.BadRequest(c, "invalid query")
		return
	}
	filter := billing.OrderFilter{
		UserID:  q.UserID,
		Type:    models.OrderType(strings.TrimSpace(q.Type)),
		OrderNo: strings.TrimSpace(q.OrderNo),
		Page:    q.page(),
	}
	if statusQ := strings.ToLower(strings.TrimSpace(q.Status)); statusQ != "" {
		status, ok := orderStatusByName[statusQ]
		if !ok {
			response.BadRequest(c, "invalid status")
			return
		}
		filter.Status = &status
	}
	rows, total, errList := h.billing.ListOrders(c.Request.Context(), filter)
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

// Get returns any order by number.
func (h *OrderHandler) Get(c *gin.Context) {
	order, errGet := h.billing.AdminGetOrder(c.Request.Context(), c.Param("order_no"))
	if errGet != nil {
		response.Error(c, errGet)
		return
	}
	response.OK(c, formatOrder(order))
}

// MarkPaid settles a pending order manually.
func (h *OrderHandler) MarkPaid(c *gin.Context) {
	order, errPaid := h.billing.MarkPaid(c.Request.Context(), c.Param("order_no"))
	if errPaid != nil {
		response.Error(c, errPaid)
		return
	}
	response.OK(c, formatOrder(order))
}

// refundRequest carries an optional refund note.
type refundRequest struct {
	Remark string `json:"remark"` // Stored on the order.
}

// Refund reverses a paid plan order into the user's balance.
func (h *OrderHandler) Refund(c *gin.Context) {
	var body refundRequest
	if c.Request.ContentLength > 0 {
		if errBind := c.ShouldBindJSON(&body); errBind != nil {
			response.BadRequest(c, "invalid json")
			return
		}
	}
	order, errRefund := h.billing.Refund(c.Request.Context(), c.Param("order_no"), strings.TrimSpace(body.Remark))
	if errRefund != nil {
		response.Error(c, errRefund)
		return
	}
	response.OK(c, formatOrder(order))
}

// Delete removes a pending or cancelled order.
func (h *OrderHandler) Delete(c *gin.Context) {
	if errDelete := h.billing.DeleteOrder(c.Request.Context(), c.Param("order_no")); errDelete != nil {
		response.Error(c, errDelete)
		return
	}
	response.OK(c, gin.H{"ok": true})
}
