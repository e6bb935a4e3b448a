package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/security"
	"gorm.io/gorm"
)

// AuthHandler signs admins in.
type AuthHandler struct {
	db     *gorm.DB         // Database handle for admin records.
	jwtCfg config.JWTConfig // Signing secret.
	now    func() time.Time
}

// NewAuthHandler constructs an admin auth handler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg, now: time.Now}
}

// loginRequest captures admin credentials.
type loginRequest struct {
	Username string `json:"username" binding:"required"` // Admin login name.
	Password string `json:"password" binding:"required"` // Plaintext password.
	TOTPCode string `json:"totp_code"`                   // Required once TOTP is enabled.
}

// Login verifies credentials, and the TOTP code when enabled, then issues an admin token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "username and password are required")
		return
	}

	var admin models.Admin
	errFind := h.db.WithContext(c.Request.Context()).
		Where(&models.Admin{Username: strings.TrimSpace(body.Username)}).
		First(&admin).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			response.Unauthorized(c, "invalid username or password")
			return
		}
		response.Internal(c, "query admin failed", errFind)
		return
	}
	if errCheck := security.CheckPassword(admin.Password, body.Password); errCheck != nil {
		response.Unauthorized(c, "invalid username or password")
		return
	}
	if !admin.Active {
		response.Forbidden(c, "admin disabled")
		return
	}
	if admin.TOTPEnabled {
		code := strings.TrimSpace(body.TOTPCode)
		if code == "" {
			response.Result(c, http.StatusUnauthorized, response.CodeUnauthorized, "totp code required", gin.H{"totp_required": true})
			return
		}
		if !security.ValidateTOTP(admin.TOTPSecret, code, h.now()) {
			response.Unauthorized(c, "invalid totp code")
			return
		}
	}

	token, expiresAt, errToken := security.GenerateAdminToken(h.jwtCfg.Secret, admin.ID, admin.Username)
	if errToken != nil {
		response.Internal(c, "issue token failed", errToken)
		return
	}
	response.OK(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"admin":      formatAdmin(&admin),
	})
}

func formatAdmin(a *models.Admin) gin.H {
	return gin.H{
		"id":             a.ID,
		"username":       a.Username,
		"is_super_admin": a.IsSuperAdmin,
		"active":         a.Active,
		"totp_enabled":   a.TOTPEnabled,
		"created_at":     a.CreatedAt,
	}
}
