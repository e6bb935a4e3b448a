package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/response"
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

// parseID reads the :id path parameter, answering 400 when it is malformed.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func formatOrder(o *models.Order) gin.H {
	return gin.H{
		"id":           o.ID,
		"order_no":     o.OrderNo,
		"type":         o.Type,
		"user_id":      o.UserID,
		"plan_id":      o.PlanID,
		"coupon_id":    o.CouponID,
		"amount":       o.Amount,
		"discount":     o.Discount,
		"paid":         o.Paid,
		"bonus_days":   o.BonusDays,
		"status":       o.Status.String(),
		"pay_method":   o.PayMethod,
		"trade_no":     o.TradeNo,
		"remark":       o.Remark,
		"expires_at":   o.ExpiresAt,
		"paid_at":      o.PaidAt,
		"cancelled_at": o.CancelledAt,
		"refunded_at":  o.RefundedAt,
		"created_at":   o.CreatedAt,
		"updated_at":   o.UpdatedAt,
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
		"group_id":      p.GroupID,
		"hidden":        p.Hidden,
		"is_enabled":    p.IsEnabled,
		"sort_order":    p.SortOrder,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	}
}

// formatCoupon renders value as money for fixed amount coupons and as an integer otherwise.
func formatCoupon(cp *models.Coupon) gin.H {
	var value any = cp.Value
	if cp.Type == models.CouponTypeFixedAmount {
		value = models.Money(cp.Value)
	}
	return gin.H{
		"id":             cp.ID,
		"code":           cp.Code,
		"type":           cp.Type,
		"value":          value,
		"min_amount":     cp.MinAmount,
		"max_discount":   cp.MaxDiscount,
		"limit_per_user": cp.LimitPerUser,
		"total_limit":    cp.TotalLimit,
		"used_count":     cp.UsedCount,
		"plan_ids":       cp.PlanIDs.Clean(),
		"start_at":       cp.StartAt,
		"expired_at":     cp.ExpiredAt,
		"is_enabled":     cp.IsEnabled,
		"created_at":     cp.CreatedAt,
	}
}

func formatRechargeCode(rc *models.RechargeCode) gin.H {
	return gin.H{
		"id":         rc.ID,
		"code":       rc.Code,
		"amount":     rc.Amount,
		"used":       rc.Used,
		"used_by":    rc.UsedBy,
		"used_at":    rc.UsedAt,
		"remark":     rc.Remark,
		"created_by": rc.CreatedBy,
		"created_at": rc.CreatedAt,
	}
}
