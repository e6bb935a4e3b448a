package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/models"
)

// pageQuery binds page and page_size query parameters.
type pageQuery struct {
	Page     int `form:"page,default=1"`       // Page number.
	PageSize int `form:"page_size,default=20"` // Page size.
}

func (q pageQuery) page() billing.Page {
	return billing.Page{Page: q.Page, PageSize: q.PageSize}
}

func formatOrder(o *models.Order) gin.H {
	return gin.H{
		"order_no":     o.OrderNo,
		"type":         o.Type,
		"plan_id":      o.PlanID,
		"coupon_id":    o.CouponID,
		"amount":       o.Amount,
		"discount":     o.Discount,
		"paid":         o.Paid,
		"bonus_days":   o.BonusDays,
		"status":       o.Status.String(),
		"pay_method":   o.PayMethod,
		"remark":       o.Remark,
		"expires_at":   o.ExpiresAt,
		"paid_at":      o.PaidAt,
		"cancelled_at": o.CancelledAt,
		"refunded_at":  o.RefundedAt,
		"created_at":   o.CreatedAt,
	}
}

func formatPlan(p *models.Plan) gin.H {
	return gin.H{
		"id":            p.ID,
		"name":          p.Name,
		"description":   p.Description,
		"price":         p.Price,
		"duration_days": p.DurationDays,
		"transfer_gb":   p.TransferGB,
		"speed_limit":   p.SpeedLimit,
		"device_limit":  p.DeviceLimit,
		"sort_order":    p.SortOrder,
	}
}

func formatBalanceLog(l *models.BalanceLog) gin.H {
	return gin.H{
		"id":            l.ID,
		"delta":         l.Delta,
		"balance_after": l.BalanceAfter,
		"kind":          l.Kind,
		"ref":           l.Ref,
		"remark":        l.Remark,
		"created_at":    l.CreatedAt,
	}
}
