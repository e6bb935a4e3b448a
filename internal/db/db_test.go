package db

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/nyanpass/panel/internal/models"
	internalsettings "github.com/nyanpass/panel/internal/settings"
)

func TestOpenAndMigrate_SQLite(t *testing.T) {
	conn, err := Open("file:" + filepath.Join(t.TempDir(), "panel.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if DialectName(conn) != DialectSQLite {
		t.Fatalf("expected sqlite dialect, got %q", DialectName(conn))
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate should be idempotent: %v", err)
	}

	var setting models.Setting
	if err := conn.Where(&models.Setting{Key: internalsettings.TopUpMinAmountKey}).First(&setting).Error; err != nil {
		t.Fatalf("load seeded setting: %v", err)
	}
	var amount models.Money
	if err := json.Unmarshal(setting.Value, &amount); err != nil {
		t.Fatalf("decode setting: %v", err)
	}
	if amount != internalsettings.DefaultTopUpMinAmount {
		t.Fatalf("expected %d, got %d", internalsettings.DefaultTopUpMinAmount, amount)
	}

	for _, table := range []any{&models.Order{}, &models.Coupon{}, &models.RechargeCode{}, &models.BalanceLog{}} {
		if !conn.Migrator().HasTable(table) {
			t.Fatalf("expected table for %T", table)
		}
	}
}

func TestMigrate_NumericSettingsScanAfterReopen(t *testing.T) {
	path := "file:" + filepath.Join(t.TempDir(), "panel.db")
	conn, err := Open(path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen db: %v", err)
	}
	if err := Migrate(reopened); err != nil {
		t.Fatalf("migrate after reopen: %v", err)
	}
	var rows []models.Setting
	if err := reopened.Find(&rows).Error; err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if len(rows) == 0 {
		t.Fatalf("expected seeded settings")
	}
	for _, row := range rows {
		if row.Key != internalsettings.OrderTTLMinutesKey {
			continue
		}
		var minutes int
		if err := json.Unmarshal(row.Value, &minutes); err != nil {
			t.Fatalf("decode %s: %v", row.Key, err)
		}
		if minutes != internalsettings.DefaultOrderTTLMinutes {
			t.Fatalf("expected %d minutes, got %d", internalsettings.DefaultOrderTTLMinutes, minutes)
		}
		return
	}
	t.Fatalf("missing %s setting", internalsettings.OrderTTLMinutesKey)
}

func TestDSNKind(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/db":          DialectPostgres,
		"host=localhost user=u dbname=panel":        DialectPostgres,
		"mysql://u:p@tcp(127.0.0.1:3306)/panel":     DialectMySQL,
		"u:p@tcp(127.0.0.1:3306)/panel?parseTime=1": DialectMySQL,
		"file:panel.db":                             DialectSQLite,
		"./data/panel.db":                           DialectSQLite,
	}
	for dsn, want := range cases {
		if got := dsnKind(dsn); got != want {
			t.Fatalf("dsnKind(%q) = %q, want %q", dsn, got, want)
		}
	}
}

func TestMySQLDSN_AddsParseTime(t *testing.T) {
	got := mysqlDSN("mysql://u:p@tcp(127.0.0.1:3306)/panel")
	if got != "u:p@tcp(127.0.0.1:3306)/panel?parseTime=true&loc=UTC&charset=utf8mb4" {
		t.Fatalf("unexpected dsn %q", got)
	}
}
