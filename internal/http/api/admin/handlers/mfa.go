package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/security"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/gorm"
)

// MFAHandler manages TOTP for the calling admin.
type MFAHandler struct {
	db  *gorm.DB
	now func() time.Time
}

// NewMFAHandler constructs an MFAHandler.
func NewMFAHandler(db *gorm.DB) *MFAHandler {
	return &MFAHandler{db: db, now: time.Now}
}

// totpCodeRequest carries a six digit TOTP code.
type totpCodeRequest struct {
	Code string `json:"code" binding:"required"` // Current TOTP code.
}

func (h *MFAHandler) currentAdmin(c *gin.Context) (*models.Admin, bool) {
	var admin models.Admin
	if errFind := h.db.WithContext(c.Request.Context()).First(&admin, c.GetUint64("adminID")).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			response.Unauthorized(c, "admin not found")
			return nil, false
		}
		response.Internal(c, "query admin failed", errFind)
		return nil, false
	}
	return &admin, true
}

// Status reports whether TOTP is enabled.
func (h *MFAHandler) Status(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	response.OK(c, gin.H{
		"totp_enabled": admin.TOTPEnabled,
		"totp_pending": admin.TOTPPending != "",
	})
}

// SetupTOTP stores a pending secret and returns its provisioning URL.
func (h *MFAHandler) SetupTOTP(c *gin.Context) {
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPEnabled {
		response.Conflict(c, "totp already enabled")
		return
	}
	issuer := internalsettings.String(internalsettings.SiteNameKey, internalsettings.DefaultSiteName)
	key, errGenerate := security.GenerateTOTP(issuer, admin.Username)
	if errGenerate != nil {
		response.Internal(c, "generate totp failed", errGenerate)
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Update("totp_pending", key.Secret).Error; errUpdate != nil {
		response.Internal(c, "store totp failed", errUpdate)
		return
	}
	response.OK(c, gin.H{
		"secret": key.Secret,
		"url":    key.URL,
	})
}

// ConfirmTOTP enables TOTP once the pending secret produces a valid code.
func (h *MFAHandler) ConfirmTOTP(c *gin.Context) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "code is required")
		return
	}
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if admin.TOTPPending == "" {
		response.Conflict(c, "no pending totp setup")
		return
	}
	if !security.ValidateTOTP(admin.TOTPPending, strings.TrimSpace(body.Code), h.now()) {
		response.BadRequest(c, "invalid totp code")
		return
	}
	res := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ? AND totp_pending = ?", admin.ID, admin.TOTPPending).
		Updates(map[string]any{
			"totp_secret":  admin.TOTPPending,
			"totp_pending": "",
			"totp_enabled": true,
		})
	if res.Error != nil {
		response.Internal(c, "enable totp failed", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		response.Conflict(c, "totp setup changed, start again")
		return
	}
	response.OK(c, gin.H{"totp_enabled": true})
}

// DisableTOTP turns TOTP off after checking a current code.
func (h *MFAHandler) DisableTOTP(c *gin.Context) {
	var body totpCodeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "code is required")
		return
	}
	admin, ok := h.currentAdmin(c)
	if !ok {
		return
	}
	if !admin.TOTPEnabled {
		response.Conflict(c, "totp not enabled")
		return
	}
	if !security.ValidateTOTP(admin.TOTPSecret, strings.TrimSpace(body.Code), h.now()) {
		response.BadRequest(c, "invalid totp code")
		return
	}
	if errUpdate := h.db.WithContext(c.Request.Context()).Model(&models.Admin{}).
		Where("id = ?", admin.ID).
		Updates(map[string]any{
			"totp_secret":  "",
			"totp_pending": "",
			"totp_enabled": false,
		}).Error; errUpdate != nil {
		response.Internal(c, "disable totp failed", errUpdate)
		return
	}
	response.OK(c, gin.H{"totp_enabled": false})
}
