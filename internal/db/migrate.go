package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/models"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/gorm"
)

// Migrate creates or updates the schema and seeds default settings.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres, DialectMySQL, "":
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.Admin{},
		&models.User{},
		&models.Plan{},
		&models.Order{},
		&models.Coupon{},
		&models.RechargeCode{},
		&models.BalanceLog{},
		&models.InviteRecord{},
		&models.Setting{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	if errIndex := ensurePendingExpiryIndex(conn); errIndex != nil {
		return errIndex
	}

	defaults := []struct {
		key   string
		value any
	}{
		{internalsettings.SiteNameKey, internalsettings.DefaultSiteName},
		{internalsettings.RegisterEnabledKey, internalsettings.DefaultRegisterEnabled},
		{internalsettings.OrderTTLMinutesKey, internalsettings.DefaultOrderTTLMinutes},
		{internalsettings.TopUpMinAmountKey, models.Money(internalsettings.DefaultTopUpMinAmount)},
		{internalsettings.TopUpMaxAmountKey, models.Money(internalsettings.DefaultTopUpMaxAmount)},
		{internalsettings.AuthRateLimitKey, internalsettings.DefaultAuthRateLimit},
		{internalsettings.RateLimitKey, internalsettings.DefaultRateLimit},
	}
	for _, d := range defaults {
		if errSeed := ensureSetting(conn, d.key, d.value); errSeed != nil {
			return errSeed
		}
	}
	return nil
}

// ensurePendingExpiryIndex backs the expiry sweep query.
func ensurePendingExpiryIndex(conn *gorm.DB) error {
	migrator := conn.Migrator()
	if migrator.HasIndex(&models.Order{}, "idx_orders_status_expires") {
		return nil
	}
	if errIndex := conn.Exec(`CREATE INDEX idx_orders_status_expires ON orders (status, expires_at)`).Error; errIndex != nil {
		return fmt.Errorf("db: create orders expiry index: %w", errIndex)
	}
	return nil
}

// ensureSetting creates key with value, or fills it when the stored value is empty.
func ensureSetting(conn *gorm.DB, key string, value any) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal %s setting: %w", key, errMarshal)
	}
	rawValue := json.RawMessage(payload)

	var existing models.Setting
	if errFind := conn.Where(&models.Setting{Key: key}).First(&existing).Error; errFind == nil {
		trimmed := strings.TrimSpace(string(existing.Value))
		if len(existing.Value) == 0 || trimmed == "" || trimmed == "null" {
			if errUpdate := conn.Model(&existing).Updates(map[string]any{
				"value":      rawValue,
				"updated_at": time.Now().UTC(),
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: update %s setting: %w", key, errUpdate)
			}
		}
		return nil
	} else if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return fmt.Errorf("db: query %s setting: %w", key, errFind)
	}

	setting := models.Setting{
		Key:       key,
		Value:     []byte(rawValue),
		UpdatedAt: time.Now().UTC(),
	}
	if errCreate := conn.Create(&setting).Error; errCreate != nil {
		return fmt.Errorf("db: create %s setting: %w", key, errCreate)
	}
	return nil
}
