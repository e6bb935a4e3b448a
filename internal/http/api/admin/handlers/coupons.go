package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
)

// CouponHandler manages admin CRUD endpoints for coupons.
type CouponHandler struct {
	billing *billing.Service
}

// NewCouponHandler constructs a CouponHandler.
func NewCouponHandler(svc *billing.Service) *CouponHandler {
	return &CouponHandler{billing: svc}
}

// couponRequest captures a coupon definition.
type couponRequest struct {
	Code         string            `json:"code"`           // Redemption code.
	Type         models.CouponType `json:"type"`           // 1 fixed amount, 2 percentage, 3 bonus days.
	Value        json.Number       `json:"value"`          // Amount, percent or days depending on type.
	MinAmount    models.Money      `json:"min_amount"`     // Minimum order amount.
	MaxDiscount  models.Money      `json:"max_discount"`   // Cap for percentage coupons.
	LimitPerUser int               `json:"limit_per_user"` // Uses per user, 0 unlimited.
	TotalLimit   int               `json:"total_limit"`    // Global uses, 0 unlimited.
	PlanIDs      []uint64          `json:"plan_ids"`       // Eligible plans, empty for all.
	StartAt      *time.Time        `json:"start_at"`       // Optional activation start.
	ExpiredAt    *time.Time        `json:"expired_at"`     // Optional activation end.
	IsEnabled    *bool             `json:"is_enabled"`     // Defaults to true.
}

var errCouponValue = errors.New("invalid value")

// input converts the request, reading a fixed amount value as money.
func (r couponRequest) input() (billing.CouponInput, error) {
	raw := strings.TrimSpace(r.Value.String())
	var value int64
	if r.Type == models.CouponTypeFixedAmount {
		amount, errParse := models.ParseMoney(raw)
		if errParse != nil {
			return billing.CouponInput{}, errCouponValue
		}
		value = int64(amount)
	} else {
		parsed, errParse := strconv.ParseInt(raw, 10, 64)
		if errParse != nil {
			return billing.CouponInput{}, errCouponValue
		}
		value = parsed
	}
	enabled := true
	if r.IsEnabled != nil {
		enabled = *r.IsEnabled
	}
	return billing.CouponInput{
		Code:         strings.TrimSpace(r.Code),
		Type:         r.Type,
		Value:        value,
		MinAmount:    r.MinAmount,
		MaxDiscount:  r.MaxDiscount,
		LimitPerUser: r.LimitPerUser,
		TotalLimit:   r.TotalLimit,
		PlanIDs:      r.PlanIDs,
		StartAt:      r.StartAt,
		ExpiredAt:    r.ExpiredAt,
		IsEnabled:    enabled,
	}, nil
}

// Create validates input and inserts a coupon.
func (h *CouponHandler) Create(c *gin.Context) {
	var body couponRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid json")
		return
	}
	in, errInput := body.input()
	if errInput != nil {
		response.BadRequest(c, errInput.Error())
		return
	}
	coupon, errCreate := h.billing.CreateCoupon(c.Request.Context(), in)
	if errCreate != nil {
		response.Error(c, errCreate)
		return
	}
	response.Created(c, formatCoupon(coupon))
}

// couponListQuery filters the coupon list.
type couponListQuery struct {
	pageQuery
	Code string `form:"code"` // Code substring.
}

// List returns coupons matching the filters.
func (h *CouponHandler) List(c *gin.Context) {
	var q couponListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		response.BadRequest(c, "invalid query")
		return
	}
	rows, total, errList := h.billing.ListCoupons(c.Request.Context(), billing.CouponFilter{
		Code: strings.TrimSpace(q.Code),
		Page: q.page(),
	})
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatCoupon(&rows[i]))
	}
	response.OK(c, response.Page{Items: out, Total: total, Page: q.Page, PageSize: q.PageSize})
}

// Get fetches a coupon by ID.
func (h *CouponHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	coupon, errGet := h.billing.GetCoupon(c.Request.Context(), id)
	if errGet != nil {
		response.Error(c, errGet)
		return
	}
	response.OK(c, formatCoupon(coupon))
}

// Update replaces a coupon definition; the usage counter is kept.
func (h *CouponHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body couponRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid json")
		return
	}
	in, errInput := body.input()
	if errInput != nil {
		response.BadRequest(c, errInput.Error())
		return
	}
	coupon, errUpdate := h.billing.UpdateCoupon(c.Request.Context(), id, in)
	if errUpdate != nil {
		response.Error(c, errUpdate)
		return
	}
	response.OK(c, formatCoupon(coupon))
}

// Delete removes a coupon.
func (h *CouponHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errDelete := h.billing.DeleteCoupon(c.Request.Context(), id); errDelete != nil {
		response.Error(c, errDelete)
		return
	}
	response.OK(c, gin.H{"ok": true})
}

// generateCouponsRequest creates a batch of coupons from one template.
type generateCouponsRequest struct {
	couponRequest
	Prefix string `json:"prefix"` // Optional code prefix.
	Count  int    `json:"count"`  // Number of coupons.
}

// Generate creates coupons with random codes.
func (h *CouponHandler) Generate(c *gin.Context) {
	var body generateCouponsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid json")
		return
	}
	template, errInput := body.input()
	if errInput != nil {
		response.BadRequest(c, errInput.Error())
		return
	}
	coupons, errGenerate := h.billing.GenerateCoupons(c.Request.Context(), billing.GenerateCouponsInput{
		Template: template,
		Prefix:   body.Prefix,
		Count:    body.Count,
	})
	if errGenerate != nil {
		response.Error(c, errGenerate)
		return
	}
	out := make([]gin.H, 0, len(coupons))
	for i := range coupons {
		out = append(out, formatCoupon(&coupons[i]))
	}
	response.Created(c, gin.H{"coupons": out})
}
