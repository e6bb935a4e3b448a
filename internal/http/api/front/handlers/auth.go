package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/security"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const inviteCodeLength = 8

// AuthHandler handles user registration and login.
type AuthHandler struct {
	db     *gorm.DB         // Database handle for user records.
	jwtCfg config.JWTConfig // Signing secret and token lifetime.
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// registerRequest captures the registration payload.
type registerRequest struct {
	Email      string `json:"email" binding:"required,email,max=191"`   // Login e-mail.
	Password   string `json:"password" binding:"required,min=6,max=72"` // Plaintext password.
	InviteCode string `json:"invite_code"`                              // Optional inviter code.
}

// loginRequest captures the login payload.
type loginRequest struct {
	Email    string `json:"email" binding:"required,email"` // Login e-mail.
	Password string `json:"password" binding:"required"`    // Plaintext password.
}

// Register creates an account and binds the inviter when a valid invite code is given.
// An unknown invite code does not fail registration.
func (h *AuthHandler) Register(c *gin.Context) {
	if !internalsettings.Bool(internalsettings.RegisterEnabledKey, internalsettings.DefaultRegisterEnabled) {
		response.Forbidden(c, "registration is closed")
		return
	}
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	ctx := c.Request.Context()
	var count int64
	if errCount := h.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; errCount != nil {
		response.Internal(c, "query user failed", errCount)
		return
	}
	if count > 0 {
		response.Conflict(c, "email already registered")
		return
	}

	hashed, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		response.Internal(c, "hash password failed", errHash)
		return
	}
	inviteCode, errCode := security.GenerateRandomString(inviteCodeLength)
	if errCode != nil {
		response.Internal(c, "generate invite code failed", errCode)
		return
	}

	user := models.User{
		UUID:       uuid.NewString(),
		Email:      email,
		Password:   hashed,
		InviteCode: inviteCode,
		Status:     models.UserStatusActive,
	}
	errTx := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}
		return bindInviter(tx, &user, strings.TrimSpace(body.InviteCode))
	})
	if errTx != nil {
		if errors.Is(errTx, gorm.ErrDuplicatedKey) {
			response.Conflict(c, "email already registered")
			return
		}
		response.Internal(c, "create user failed", errTx)
		return
	}

	token, expiresAt, errToken := security.GenerateUserToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, user.ID, user.Email)
	if errToken != nil {
		response.Internal(c, "issue token failed", errToken)
		return
	}
	response.Created(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       formatUser(&user),
	})
}

// bindInviter links user to the owner of inviteCode and opens a pending invite record.
func bindInviter(tx *gorm.DB, user *models.User, inviteCode string) error {
	if inviteCode == "" {
		return nil
	}
	var inviter models.User
	if errFind := tx.Where(&models.User{InviteCode: inviteCode}).First(&inviter).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			log.WithField("invite_code", inviteCode).Warn("register: unknown invite code ignored")
			return nil
		}
		return errFind
	}
	if inviter.ID == user.ID {
		return nil
	}
	if errUpdate := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("invited_by", inviter.ID).Error; errUpdate != nil {
		return errUpdate
	}
	user.InvitedBy = inviter.ID
	return tx.Create(&models.InviteRecord{
		InviterID: inviter.ID,
		InviteeID: user.ID,
		Status:    models.InviteRecordPending,
	}).Error
}

// Login verifies credentials and issues a user token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))

	ctx := c.Request.Context()
	var user models.User
	if errFind := h.db.WithContext(ctx).Where(&models.User{Email: email}).First(&user).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		response.Internal(c, "query user failed", errFind)
		return
	}
	if errCheck := security.CheckPassword(user.Password, body.Password); errCheck != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if user.Status != models.UserStatusActive {
		response.Forbidden(c, "user is banned")
		return
	}

	token, expiresAt, errToken := security.GenerateUserToken(h.jwtCfg.Secret, h.jwtCfg.Expiry, user.ID, user.Email)
	if errToken != nil {
		response.Internal(c, "issue token failed", errToken)
		return
	}
	now := time.Now().UTC()
	if errUpdate := h.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).
		Update("last_login_at", now).Error; errUpdate != nil {
		log.WithError(errUpdate).Warn("login: update last_login_at failed")
	}
	user.LastLoginAt = &now

	response.OK(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user":       formatUser(&user),
	})
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
		"status":          u.Status,
		"last_login_at":   u.LastLoginAt,
		"created_at":      u.CreatedAt,
	}
}
