package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nyanpass/panel/internal/http/response"
	"github.com/nyanpass/panel/internal/models"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingHandler manages runtime settings stored in the database.
type SettingHandler struct {
	db *gorm.DB // Database handle for settings.
}

// NewSettingHandler constructs a settings handler.
func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

var nonNegativeIntSettingKeys = map[string]struct{}{
	internalsettings.OrderTTLMinutesKey:  {},
	internalsettings.AuthRateLimitKey:    {},
	internalsettings.RateLimitKey:        {},
	internalsettings.RateLimitRedisDBKey: {},
}

var boolSettingKeys = map[string]struct{}{
	internalsettings.RegisterEnabledKey:       {},
	internalsettings.RateLimitRedisEnabledKey: {},
}

var moneySettingKeys = map[string]struct{}{
	internalsettings.TopUpMinAmountKey: {},
	internalsettings.TopUpMaxAmountKey: {},
}

var (
	errNonNegativeIntegerValue = errors.New("value must be a non-negative integer")
	errBoolValue               = errors.New("value must be a boolean")
	errMoneyValue              = errors.New("value must be a non-negative amount with at most two decimals")
	errPercentValue            = errors.New("value must be an integer between 0 and 100")
)

// List returns all settings sorted by key.
func (h *SettingHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; errFind != nil {
		response.Internal(c, "list settings failed", errFind)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatSetting(&rows[i]))
	}
	response.OK(c, gin.H{"settings": out})
}

// Get returns a setting by key.
func (h *SettingHandler) Get(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		response.BadRequest(c, "invalid key")
		return
	}
	var setting models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).Where(&models.Setting{Key: key}).First(&setting).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			response.NotFound(c, "setting not found")
			return
		}
		response.Internal(c, "query setting failed", errFind)
		return
	}
	response.OK(c, formatSetting(&setting))
}

// putSettingRequest captures the payload for writing a setting.
type putSettingRequest struct {
	Value json.RawMessage `json:"value"` // New JSON value.
}

// Put creates or replaces a setting value and refreshes the snapshot.
func (h *SettingHandler) Put(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" || len(key) > 128 {
		response.BadRequest(c, "invalid key")
		return
	}
	var body putSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || len(body.Value) == 0 {
		response.BadRequest(c, "value is required")
		return
	}
	if errValidate := validateSettingValue(key, body.Value); errValidate != nil {
		response.BadRequest(c, errValidate.Error())
		return
	}

	setting := models.Setting{
		Key:       key,
		Value:     []byte(body.Value),
		UpdatedAt: time.Now().UTC(),
	}
	errSave := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if errSave != nil {
		response.Internal(c, "save setting failed", errSave)
		return
	}
	if errRefresh := RefreshSettings(c.Request.Context(), h.db); errRefresh != nil {
		response.Internal(c, "refresh settings snapshot failed", errRefresh)
		return
	}
	response.OK(c, formatSetting(&setting))
}

// RefreshSettings rebuilds the in-memory settings snapshot from the DB.
func RefreshSettings(ctx context.Context, db *gorm.DB) error {
	var rows []models.Setting
	if errFind := db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return fmt.Errorf("load settings: %w", errFind)
	}
	internalsettings.StoreRows(rows)
	return nil
}

func validateSettingValue(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return errors.New("value must be valid json")
	}
	if _, ok := nonNegativeIntSettingKeys[key]; ok {
		if v, okParse := internalsettings.ParseInt(value); !okParse || v < 0 {
			return errNonNegativeIntegerValue
		}
		return nil
	}
	if _, ok := boolSettingKeys[key]; ok {
		if _, okParse := internalsettings.ParseBool(value); !okParse {
			return errBoolValue
		}
		return nil
	}
	if _, ok := moneySettingKeys[key]; ok {
		var amount models.Money
		if errUnmarshal := json.Unmarshal(value, &amount); errUnmarshal != nil || amount < 0 {
			return errMoneyValue
		}
		return nil
	}
	if key == internalsettings.InviteCommissionRateKey {
		if v, okParse := internalsettings.ParseInt(value); !okParse || v < 0 || v > 100 {
			return errPercentValue
		}
	}
	return nil
}

// formatSetting formats a setting row into response JSON.
func formatSetting(s *models.Setting) gin.H {
	return gin.H{
		"key":        s.Key,
		"value":      json.RawMessage(s.Value),
		"updated_at": s.UpdatedAt,
	}
}
