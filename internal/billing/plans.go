package billing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/nyanpass/panel/internal/models"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const (
	planCacheSize = 256
	planCacheTTL  = time.Minute
)

// PlanCatalog caches plan rows by ID; concurrent misses share one query.
type PlanCatalog struct {
	db    *gorm.DB
	cache *expirable.LRU[uint64, models.Plan]
	group singleflight.Group
}

// NewPlanCatalog constructs a catalog; ttl <= 0 uses the default.
func NewPlanCatalog(db *gorm.DB, ttl time.Duration) *PlanCatalog {
	if ttl <= 0 {
		ttl = planCacheTTL
	}
	return &PlanCatalog{
		db:    db,
		cache: expirable.NewLRU[uint64, models.Plan](planCacheSize, nil, ttl),
	}
}

// Get returns the plan with id or a not-found error.
func (c *PlanCatalog) Get(ctx context.Context, id uint64) (models.Plan, error) {
	if plan, ok := c.cache.Get(id); ok {
		return plan, nil
	}
	v, err, _ := c.group.Do(strconv.FormatUint(id, 10), func() (any, error) {
		var plan models.Plan
		if errFind := c.db.WithContext(ctx).First(&plan, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, notFoundError("plan")
			}
			return nil, dbError("load plan", errFind)
		}
		c.cache.Add(id, plan)
		return plan, nil
	})
	if err != nil {
		return models.Plan{}, err
	}
	return v.(models.Plan), nil
}

// Invalidate drops one plan, or every plan when id is 0.
func (c *PlanCatalog) Invalidate(id uint64) {
	if c == nil {
		return
	}
	if id == 0 {
		c.cache.Purge()
		return
	}
	c.cache.Remove(id)
}

// Orderable returns the plan if it can be purchased.
func (c *PlanCatalog) Orderable(ctx context.Context, id uint64) (models.Plan, error) {
	plan, err := c.Get(ctx, id)
	if err != nil {
		return models.Plan{}, err
	}
	if !plan.IsEnabled || plan.Hidden {
		return models.Plan{}, notFoundError("plan")
	}
	return plan, nil
}

// PlanInput is the editable part of a plan.
type PlanInput struct {
	Name         string       `validate:"required,max=255"`
	Description  string       `validate:"max=4000"`
	Price        models.Money `validate:"gte=0"`
	DurationDays int          `validate:"min=1,max=3650"`
	TransferGB   int64        `validate:"gte=0"`
	SpeedLimit   int          `validate:"gte=0"`
	DeviceLimit  int          `validate:"gte=0"`
	GroupID      int          `validate:"gte=0"`
	Hidden       bool
	IsEnabled    bool
	SortOrder    int
}

func (in PlanInput) fields() map[string]any {
	return map[string]any{
		"name":          in.Name,
		"description":   in.Description,
		"price":         in.Price,
		"duration_days": in.DurationDays,
		"transfer_gb":   in.TransferGB,
		"speed_limit":   in.SpeedLimit,
		"device_limit":  in.DeviceLimit,
		"group_id":      in.GroupID,
		"hidden":        in.Hidden,
		"is_enabled":    in.IsEnabled,
		"sort_order":    in.SortOrder,
	}
}

// ListPlans returns plans ordered by sort weight; onlyOrderable hides disabled and hidden plans.
func (s *Service) ListPlans(ctx context.Context, onlyOrderable bool) ([]models.Plan, error) {
	q := s.db.WithContext(ctx).Model(&models.Plan{})
	if onlyOrderable {
		q = q.Where("is_enabled = ? AND hidden = ?", true, false)
	}
	var plans []models.Plan
	if errFind := q.Order("sort_order ASC, id ASC").Find(&plans).Error; errFind != nil {
		return nil, dbError("list plans", errFind)
	}
	return plans, nil
}

// CreatePlan stores a new plan.
func (s *Service) CreatePlan(ctx context.Context, in PlanInput) (*models.Plan, error) {
	if errValidate := s.validateStruct(in); errValidate != nil {
		return nil, errValidate
	}
	plan := models.Plan{
		Name:         in.Name,
		Description:  in.Description,
		Price:        in.Price,
		DurationDays: in.DurationDays,
		TransferGB:   in.TransferGB,
		SpeedLimit:   in.SpeedLimit,
		DeviceLimit:  in.DeviceLimit,
		GroupID:      in.GroupID,
		Hidden:       in.Hidden,
		IsEnabled:    in.IsEnabled,
		SortOrder:    in.SortOrder,
	}
	if errCreate := s.db.WithContext(ctx).Create(&plan).Error; errCreate != nil {
		return nil, dbError("create plan", errCreate)
	}
	return &plan, nil
}

// UpdatePlan replaces a plan's fields. Existing orders keep their recorded amounts.
func (s *Service) UpdatePlan(ctx context.Context, id uint64, in PlanInput) (*models.Plan, error) {
	if errValidate := s.validateStruct(in); errValidate != nil {
		return nil, errValidate
	}
	res := s.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", id).Updates(in.fields())
	if res.Error != nil {
		return nil, dbError("update plan", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFoundError("plan")
	}
	s.plans.Invalidate(id)
	plan, errGet := s.plans.Get(ctx, id)
	if errGet != nil {
		return nil, errGet
	}
	return &plan, nil
}

// DeletePlan removes a plan that no pending order references.
func (s *Service) DeletePlan(ctx context.Context, id uint64) error {
	var pending int64
	errCount := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("plan_id = ? AND status = ?", id, models.OrderStatusPending).
		Count(&pending).Error
	if errCount != nil {
		return dbError("count plan orders", errCount)
	}
	if pending > 0 {
		return stateConflictError("plan has pending orders")
	}
	res := s.db.WithContext(ctx).Delete(&models.Plan{}, id)
	if res.Error != nil {
		return dbError("delete plan", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("plan")
	}
	s.plans.Invalidate(id)
	return nil
}
