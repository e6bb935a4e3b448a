package app

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nyanpass/panel/internal/db"
	"github.com/nyanpass/panel/internal/models"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/gorm"
)

func openMigrated(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "panel-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() { closeDB(conn) })
	return conn
}

func TestCreateAdminUserWithConn_FirstIsSuperAdmin(t *testing.T) {
	conn := openMigrated(t)

	first, err := CreateAdminUserWithConn(conn, AdminParams{Username: "admin", Password: "password", SiteName: "Nyan"})
	if err != nil {
		t.Fatalf("CreateAdminUserWithConn: %v", err)
	}
	if !first.IsSuperAdmin {
		t.Fatalf("expected first admin to be super admin")
	}

	second, err := CreateAdminUserWithConn(conn, AdminParams{
		Username:    "support",
		Password:    "password",
		Permissions: []string{"GET /api/v1/admin/orders"},
	})
	if err != nil {
		t.Fatalf("create second admin: %v", err)
	}
	if second.IsSuperAdmin {
		t.Fatalf("expected second admin to be limited")
	}

	var setting models.Setting
	if errFind := conn.Where(&models.Setting{Key: internalsettings.SiteNameKey}).First(&setting).Error; errFind != nil {
		t.Fatalf("find site name: %v", errFind)
	}
	if string(setting.Value) != `"Nyan"` {
		t.Fatalf("site name = %s", setting.Value)
	}
}

func TestCreateAdminUserWithConn_Rejects(t *testing.T) {
	conn := openMigrated(t)

	if _, err := CreateAdminUserWithConn(conn, AdminParams{Username: "admin", Password: "short"}); err == nil {
		t.Fatalf("expected short password error")
	}
	if _, err := CreateAdminUserWithConn(conn, AdminParams{Username: "admin", Password: "password", Permissions: []string{"GET /nope"}}); err == nil {
		t.Fatalf("expected unknown permission error")
	}
	if _, err := CreateAdminUserWithConn(conn, AdminParams{Username: "admin", Password: "password"}); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if _, err := CreateAdminUserWithConn(conn, AdminParams{Username: "admin", Password: "password"}); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("duplicate admin error = %v", err)
	}
}
