// Package watcher polls the database for settings and plan edits made by
// other instances and refreshes the in-memory snapshots.
package watcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/nyanpass/panel/internal/models"
	internalsettings "github.com/nyanpass/panel/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultQueryTimeout = 5 * time.Second
)

// PlanCache is the part of the plan catalog the watcher invalidates.
type PlanCache interface {
	Invalidate(id uint64)
}

// marker identifies the newest row of a table for change detection.
type marker struct {
	at    time.Time
	key   string
	count int64
	valid bool
}

func (m marker) equal(o marker) bool {
	return m.valid == o.valid && m.at.Equal(o.at) && m.key == o.key && m.count == o.count
}

// Watcher reloads settings and purges the plan cache when rows change.
type Watcher struct {
	db           *gorm.DB
	plans        PlanCache
	pollInterval time.Duration

	mu       sync.Mutex
	settings marker
	planMark marker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Watcher; interval <= 0 uses the default.
func New(db *gorm.DB, plans PlanCache, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{db: db, plans: plans, pollInterval: interval}
}

// Start performs a forced load and then polls until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil || w.db == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if errLoad := w.Poll(ctx, true); errLoad != nil {
		return errLoad
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(runCtx)
	}()
	log.Infof("settings watcher started (poll_interval=%s)", w.pollInterval)
	return nil
}

// Stop cancels polling and waits for the loop to exit.
func (w *Watcher) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Watcher) run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if errPoll := w.Poll(ctx, false); errPoll != nil && !errors.Is(errPoll, context.Canceled) {
				log.WithError(errPoll).Warn("settings watcher: poll failed")
			}
		}
	}
}

// Poll checks both tables once. With force the settings snapshot is
// reloaded and the plan cache purged regardless of markers.
func (w *Watcher) Poll(ctx context.Context, force bool) error {
	if errSettings := w.pollSettings(ctx, force); errSettings != nil {
		return errSettings
	}
	return w.pollPlans(ctx, force)
}

func (w *Watcher) pollSettings(ctx context.Context, force bool) error {
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	// latestRow captures the newest setting timestamp for change detection.
	type latestRow struct {
		Key       string     `gorm:"column:key"`        // Latest settings key.
		UpdatedAt *time.Time `gorm:"column:updated_at"` // Latest settings update time.
	}
	var latest latestRow
	next := marker{}
	errLatest := w.db.WithContext(qctx).
		Model(&models.Setting{}).
		Select("key", "updated_at").
		Order("updated_at DESC, key DESC").
		Limit(1).
		Take(&latest).Error
	switch {
	case errLatest == nil:
		next.valid = true
		next.key = strings.TrimSpace(latest.Key)
		if latest.UpdatedAt != nil {
			next.at = latest.UpdatedAt.UTC()
		}
	case errors.Is(errLatest, gorm.ErrRecordNotFound):
	default:
		return errLatest
	}
	if errCount := w.db.WithContext(qctx).Model(&models.Setting{}).Count(&next.count).Error; errCount != nil {
		return errCount
	}

	w.mu.Lock()
	unchanged := next.equal(w.settings)
	w.mu.Unlock()
	if unchanged && !force {
		return nil
	}

	var rows []models.Setting
	if errFind := w.db.WithContext(qctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}
	internalsettings.StoreRows(rows)
	if !force {
		log.Infof("settings watcher: settings changed, reloaded (latest_updated_at=%s latest_key=%s)", next.at.Format(time.RFC3339Nano), next.key)
	}

	w.mu.Lock()
	w.settings = next
	w.mu.Unlock()
	return nil
}

func (w *Watcher) pollPlans(ctx context.Context, force bool) error {
	if w.plans == nil {
		return nil
	}
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	var latest models.Plan
	next := marker{}
	errLatest := w.db.WithContext(qctx).
		Select("id", "updated_at").
		Order("updated_at DESC, id DESC").
		Limit(1).
		Take(&latest).Error
	switch {
	case errLatest == nil:
		next.valid = true
		next.at = latest.UpdatedAt.UTC()
	case errors.Is(errLatest, gorm.ErrRecordNotFound):
	default:
		return errLatest
	}
	if errCount := w.db.WithContext(qctx).Model(&models.Plan{}).Count(&next.count).Error; errCount != nil {
		return errCount
	}

	w.mu.Lock()
	changed := !next.equal(w.planMark)
	w.planMark = next
	w.mu.Unlock()
	if changed || force {
		w.plans.Invalidate(0)
	}
	return nil
}
