package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/config"
	"github.com/nyanpass/panel/internal/db"
	"github.com/nyanpass/panel/internal/http/api/admin/permissions"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/security"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAdminExists reports a username that is already taken.
var ErrAdminExists = errors.New("admin already exists")

// AdminParams describes an admin account to create.
type AdminParams struct {
	Username    string
	Password    string
	SiteName    string
	Permissions []string
	// SuperAdmin is forced on for the first admin.
	SuperAdmin bool
}

// CreateAdminUser opens the configured database, migrates it and creates the admin.
func CreateAdminUser(cfg config.Config, params AdminParams) (*models.Admin, error) {
	conn, errOpen := OpenDatabase(cfg)
	if errOpen != nil {
		return nil, fmt.Errorf("open database: %w", errOpen)
	}
	defer closeDB(conn)

	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return nil, fmt.Errorf("migrate database: %w", errMigrate)
	}
	return CreateAdminUserWithConn(conn, params)
}

// CreateAdminUserWithConn creates an admin; the first admin is always a super admin
// and also seeds the site name.
func CreateAdminUserWithConn(conn *gorm.DB, params AdminParams) (*models.Admin, error) {
	if conn == nil {
		return nil, fmt.Errorf("open database: nil connection")
	}
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if len(params.Password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters")
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return nil, errInit
	}

	if errPerms := permissions.ValidatePermissions(params.Permissions); errPerms != nil {
		return nil, errPerms
	}
	rawPerms, errMarshal := permissions.MarshalPermissions(params.Permissions)
	if errMarshal != nil {
		return nil, fmt.Errorf("marshal permissions: %w", errMarshal)
	}

	hashedPassword, errHash := security.HashPassword(params.Password)
	if errHash != nil {
		return nil, fmt.Errorf("hash password: %w", errHash)
	}

	now := time.Now().UTC()
	admin := models.Admin{
		Username:     username,
		Password:     hashedPassword,
		Permissions:  datatypes.JSON(rawPerms),
		Active:       true,
		IsSuperAdmin: params.SuperAdmin || !initialized,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		if errors.Is(errCreate, gorm.ErrDuplicatedKey) {
			return nil, ErrAdminExists
		}
		return nil, fmt.Errorf("create admin: %w", errCreate)
	}

	if !initialized || strings.TrimSpace(params.SiteName) != "" {
		if errSite := upsertSiteNameSetting(conn, params.SiteName); errSite != nil {
			return nil, errSite
		}
	}
	return &admin, nil
}

// upsertSiteNameSetting stores the SITE_NAME setting in the database.
func upsertSiteNameSetting(conn *gorm.DB, siteName string) error {
	normalized := strings.TrimSpace(siteName)
	if normalized == "" {
		normalized = internalsettings.DefaultSiteName
	}
	payload, errMarshal := json.Marshal(normalized)
	if errMarshal != nil {
		return fmt.Errorf("db: marshal SITE_NAME setting: %w", errMarshal)
	}

	setting := models.Setting{
		Key:       internalsettings.SiteNameKey,
		Value:     datatypes.JSON(payload),
		UpdatedAt: time.Now().UTC(),
	}
	if errUpsert := conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error; errUpsert != nil {
		return fmt.Errorf("db: upsert SITE_NAME setting: %w", errUpsert)
	}
	return nil
}
