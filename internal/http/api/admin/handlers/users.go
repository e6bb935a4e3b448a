package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/billing"
	dbutil "github.com/nyanpass/panel/internal/db"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
	"gorm.io/gorm"
)

// UserHandler manages user accounts and balances.
type UserHandler struct {
	db      *gorm.DB
	billing *billing.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(db *gorm.DB, svc *billing.Service) *UserHandler {
	return &UserHandler{db: db, billing: svc}
}

// userListQuery filters the user list.
type userListQuery struct {
	pageQuery
	Email  string `form:"email"`  // E-mail substring.
	Search string `form:"search"` // E-mail substring or exact ID.
	Status string `form:"status"` // "active" or "banned".
}

// List returns users with paging and filters.
func (h *UserHandler) List(c *gin.Context) {
	var q userListQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		response.BadRequest(c, "invalid query")
		return
	}

	query := h.db.WithContext(c.Request.Context()).Model(&models.User{})
	if emailQ := strings.TrimSpace(q.Email); emailQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+emailQ+"%")
		query = query.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "email"), pattern)
	}
	if searchQ := strings.TrimSpace(q.Search); searchQ != "" {
		pattern := dbutil.NormalizeLikePattern(h.db, "%"+searchQ+"%")
		if id, errParse := strconv.ParseUint(searchQ, 10, 64); errParse == nil {
			query = query.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "email")+" OR id = ?", pattern, id)
		} else {
			query = query.Where(dbutil.CaseInsensitiveLikeExpr(h.db, "email"), pattern)
		}
	}
	switch strings.TrimSpace(q.Status) {
	case "active":
		query = query.Where("status = ?", models.UserStatusActive)
	case "banned":
		query = query.Where("status = ?", models.UserStatusBanned)
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		response.Internal(c, "count users failed", errCount)
		return
	}
	page := q.page()
	offset := 0
	if page.Page > 1 {
		offset = (page.Page - 1) * page.PageSize
	}
	limit := page.PageSize
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	var rows []models.User
	if errFind := query.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		response.Internal(c, "list users failed", errFind)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatUser(&rows[i]))
	}
	response.OK(c, response.Page{Items: out, Total: total, Page: q.Page, PageSize: limit})
}

// Get fetches a user by ID.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			response.NotFound(c, "user not found")
			return
		}
		response.Internal(c, "query user failed", errFind)
		return
	}
	response.OK(c, formatUser(&user))
}

// adjustBalanceRequest is a signed balance correction.
type adjustBalanceRequest struct {
	Delta  models.Money `json:"delta"`  // Positive credits, negative debits.
	Remark string       `json:"remark"` // Reason recorded in the ledger.
}

// AdjustBalance credits or debits the user's balance through the ledger.
func (h *UserHandler) AdjustBalance(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body adjustBalanceRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid delta")
		return
	}
	remark := strings.TrimSpace(body.Remark)
	if remark == "" {
		remark = "adjusted by " + c.GetString("adminUsername")
	}
	balance, errAdjust := h.billing.AdjustBalance(c.Request.Context(), billing.AdjustBalanceInput{
		UserID: id,
		Delta:  body.Delta,
		Remark: remark,
	})
	if errAdjust != nil {
		response.Error(c, errAdjust)
		return
	}
	response.OK(c, gin.H{"user_id": id, "balance": balance})
}

// Ban blocks sign in and purchases.
func (h *UserHandler) Ban(c *gin.Context) {
	h.setStatus(c, models.UserStatusBanned)
}

// Unban restores a banned account.
func (h *UserHandler) Unban(c *gin.Context) {
	h.setStatus(c, models.UserStatusActive)
}

func (h *UserHandler) setStatus(c *gin.Context, status models.UserStatus) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		response.Internal(c, "update user status failed", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, gin.H{"ok": true})
}

func formatUser(u *models.User) gin.H {
	return gin.H{
		"id":              u.ID,
		"uuid":            u.UUID,
		"email":           u.Email,
		"balance":         u.Balance,
		"commission":      u.Commission,
		"upload":          u.Upload,
		"download":        u.Download,
		"transfer_enable": u.TransferEnable,
		"group_id":        u.GroupID,
		"expired_at":      u.ExpiredAt,
		"invite_code":     u.InviteCode,
		"invited_by":      u.InvitedBy,
		"status":          u.Status,
		"last_login_at":   u.LastLoginAt,
		"created_at":      u.CreatedAt,
		"updated_at":      u.UpdatedAt,
	}
}

// balanceLogQuery filters ledger history.
type balanceLogQuery struct {
	pageQuery
	UserID uint64 `form:"user_id"` // Owner filter.
	Kind   string `form:"kind"`    // Entry kind filter.
}

// BalanceLogs returns ledger entries across users, newest first.
func (h *UserHandler) BalanceLogs(c *gin.Context) {
	var q balanceLogQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		response.BadRequest(c, "invalid query")
		return
	}
	rows, total, errList := h.billing.ListBalanceLogs(c.Request.Context(), billing.BalanceLogFilter{
		UserID: q.UserID,
		Kind:   models.BalanceLogKind(strings.TrimSpace(q.Kind)),
		Page:   q.page(),
	})
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, gin.H{
			"id":            rows[i].ID,
			"user_id":       rows[i].UserID,
			"delta":         rows[i].Delta,
			"balance_after": rows[i].BalanceAfter,
			"kind":          rows[i].Kind,
			"ref":           rows[i].Ref,
			"remark":        rows[i].Remark,
			"created_at":    rows[i].CreatedAt,
		})
	}
	response.OK(c, response.Page{Items: out, Total: total, Page: q.Page, PageSize: q.PageSize})
}
