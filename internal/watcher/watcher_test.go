package watcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nyanpass/panel/internal/db"
	"github.com/nyanpass/panel/internal/models"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	"gorm.io/gorm"
)

type countingCache struct {
	purges int
}

func (c *countingCache) Invalidate(id uint64) {
	if id == 0 {
		c.purges++
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := db.Open("file:" + filepath.Join(t.TempDir(), "watcher.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestPollReloadsChangedSettings(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	w := New(conn, nil, time.Hour)

	if errPoll := w.Poll(ctx, true); errPoll != nil {
		t.Fatalf("initial poll: %v", errPoll)
	}
	if got := internalsettings.Int(internalsettings.OrderTTLMinutesKey, -1); got != internalsettings.DefaultOrderTTLMinutes {
		t.Fatalf("order ttl = %d, want seeded default", got)
	}

	later := time.Now().UTC().Add(time.Minute)
	if errUpdate := conn.Model(&models.Setting{}).
		Where(&models.Setting{Key: internalsettings.OrderTTLMinutesKey}).
		Updates(map[string]any{"value": []byte("45"), "updated_at": later}).Error; errUpdate != nil {
		t.Fatalf("update setting: %v", errUpdate)
	}
	if errPoll := w.Poll(ctx, false); errPoll != nil {
		t.Fatalf("poll: %v", errPoll)
	}
	if got := internalsettings.Int(internalsettings.OrderTTLMinutesKey, -1); got != 45 {
		t.Fatalf("order ttl = %d, want 45", got)
	}
}

func TestPollPurgesPlanCacheOnlyOnChange(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	cache := &countingCache{}
	w := New(conn, cache, time.Hour)

	if errPoll := w.Poll(ctx, true); errPoll != nil {
		t.Fatalf("initial poll: %v", errPoll)
	}
	if errPoll := w.Poll(ctx, false); errPoll != nil {
		t.Fatalf("idle poll: %v", errPoll)
	}
	if cache.purges != 1 {
		t.Fatalf("purges after idle poll = %d, want 1", cache.purges)
	}

	plan := models.Plan{Name: "Basic", Price: 500, DurationDays: 30, IsEnabled: true}
	if errCreate := conn.Create(&plan).Error; errCreate != nil {
		t.Fatalf("create plan: %v", errCreate)
	}
	if errPoll := w.Poll(ctx, false); errPoll != nil {
		t.Fatalf("poll: %v", errPoll)
	}
	if cache.purges != 2 {
		t.Fatalf("purges after plan insert = %d, want 2", cache.purges)
	}
}

func TestStartAndStop(t *testing.T) {
	conn := openTestDB(t)
	w := New(conn, &countingCache{}, 10*time.Millisecond)
	if errStart := w.Start(context.Background()); errStart != nil {
		t.Fatalf("start: %v", errStart)
	}
	time.Sleep(30 * time.Millisecond)
	w.Stop()
	w.Stop()
}
