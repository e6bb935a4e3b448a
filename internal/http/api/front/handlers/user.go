package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	"github.com/nyanpass/panel/internal/http/middleware"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
	"gorm.io/gorm"
)

// UserHandler serves the caller's profile, ledger history and invite summary.
type UserHandler struct {
	db      *gorm.DB
	billing *billing.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, svc *billing.Service) *UserHandler {
	return &UserHandler{db: db, billing: svc}
}

// Profile returns the caller's account and entitlement.
func (h *UserHandler) Profile(c *gin.Context) {
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, middleware.UserID(c)).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			response.Unauthorized(c, "user not found")
			return
		}
		response.Internal(c, "query user failed", errFind)
		return
	}
	response.OK(c, formatUser(&user))
}

// balanceLogQuery filters ledger history.
type balanceLogQuery struct {
	pageQuery
	Kind string `form:"kind"` // Optional entry kind.
}

// BalanceLogs returns the caller's ledger entries, newest first.
func (h *UserHandler) BalanceLogs(c *gin.Context) {
	var q balanceLogQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		response.BadRequest(c, "invalid query")
		return
	}
	rows, total, errList := h.billing.ListBalanceLogs(c.Request.Context(), billing.BalanceLogFilter{
		UserID: middleware.UserID(c),
		Kind:   models.BalanceLogKind(strings.TrimSpace(q.Kind)),
		Page:   q.page(),
	})
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatBalanceLog(&rows[i]))
	}
	response.OK(c, response.Page{Items: out, Total: total, Page: q.Page, PageSize: q.PageSize})
}

// Invite returns the caller's invite code and commission summary.
func (h *UserHandler) Invite(c *gin.Context) {
	summary, errSummary := h.billing.Invites(c.Request.Context(), middleware.UserID(c))
	if errSummary != nil {
		response.Error(c, errSummary)
		return
	}
	response.OK(c, gin.H{
		"invite_code":        summary.InviteCode,
		"invite_count":       summary.InviteCount,
		"pending_invitees":   summary.PendingInvitees,
		"total_commission":   summary.TotalCommission,
		"commission_balance": summary.CommissionBalance,
		"commission_rate":    summary.CommissionRate,
	})
}
