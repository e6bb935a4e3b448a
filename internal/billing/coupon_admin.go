package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/security"
	"gorm.io/gorm"
)

// CouponInput is the editable part of a coupon.
type CouponInput struct {
	Code         string            `validate:"required,max=64"`
	Type         models.CouponType `validate:"oneof=1 2 3"`
	Value        int64             `validate:"gt=0"`
	MinAmount    models.Money      `validate:"gte=0"`
	MaxDiscount  models.Money      `validate:"gte=0"`
	LimitPerUser int               `validate:"gte=0"`
	TotalLimit   int               `validate:"gte=0"`
	PlanIDs      []uint64
	StartAt      *time.Time
	ExpiredAt    *time.Time
	IsEnabled    bool
}

func (s *Service) checkCouponInput(in *CouponInput) error {
	in.Code = strings.TrimSpace(in.Code)
	if errValidate := s.validateStruct(*in); errValidate != nil {
		return errValidate
	}
	if in.Type == models.CouponTypePercentage && in.Value > 100 {
		return validationError("percentage must be between 1 and 100")
	}
	if in.StartAt != nil && in.ExpiredAt != nil && !in.StartAt.Before(*in.ExpiredAt) {
		return validationError("start_at must be before expired_at")
	}
	return nil
}

func (in CouponInput) apply(c *models.Coupon) {
	c.Code = in.Code
	c.Type = in.Type
	c.Value = in.Value
	c.MinAmount = in.MinAmount
	c.MaxDiscount = in.MaxDiscount
	c.LimitPerUser = in.LimitPerUser
	c.TotalLimit = in.TotalLimit
	c.PlanIDs = models.PlanIDs(in.PlanIDs).Clean()
	c.StartAt = in.StartAt
	c.ExpiredAt = in.ExpiredAt
	c.IsEnabled = in.IsEnabled
}

func (s *Service) codeTaken(tx *gorm.DB, code string, exceptID uint64) (bool, error) {
	var n int64
	q := tx.Model(&models.Coupon{}).Where("code = ?", code)
	if exceptID > 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if errCount := q.Count(&n).Error; errCount != nil {
		return false, dbError("check coupon code", errCount)
	}
	return n > 0, nil
}

// CreateCoupon stores a new coupon; duplicate codes are a state conflict.
func (s *Service) CreateCoupon(ctx context.Context, in CouponInput) (*models.Coupon, error) {
	if errCheck := s.checkCouponInput(&in); errCheck != nil {
		return nil, errCheck
	}
	taken, errTaken := s.codeTaken(s.db.WithContext(ctx), in.Code, 0)
	if errTaken != nil {
		return nil, errTaken
	}
	if taken {
		return nil, stateConflictError("coupon code already exists")
	}
	var c models.Coupon
	in.apply(&c)
	if errCreate := s.db.WithContext(ctx).Create(&c).Error; errCreate != nil {
		return nil, dbError("create coupon", errCreate)
	}
	return &c, nil
}

// UpdateCoupon replaces the editable fields; UsedCount is preserved.
func (s *Service) UpdateCoupon(ctx context.Context, id uint64, in CouponInput) (*models.Coupon, error) {
	if errCheck := s.checkCouponInput(&in); errCheck != nil {
		return nil, errCheck
	}
	c, errGet := s.GetCoupon(ctx, id)
	if errGet != nil {
		return nil, errGet
	}
	taken, errTaken := s.codeTaken(s.db.WithContext(ctx), in.Code, id)
	if errTaken != nil {
		return nil, errTaken
	}
	if taken {
		return nil, stateConflictError("coupon code already exists")
	}
	in.apply(c)
	errSave := s.db.WithContext(ctx).Model(&models.Coupon{}).Where("id = ?", id).Updates(map[string]any{
		"code":           c.Code,
		"type":           c.Type,
		"value":          c.Value,
		"min_amount":     c.MinAmount,
		"max_discount":   c.MaxDiscount,
		"limit_per_user": c.LimitPerUser,
		"total_limit":    c.TotalLimit,
		"plan_ids":       c.PlanIDs,
		"start_at":       c.StartAt,
		"expired_at":     c.ExpiredAt,
		"is_enabled":     c.IsEnabled,
		"updated_at":     s.now(),
	}).Error
	if errSave != nil {
		return nil, dbError("update coupon", errSave)
	}
	return s.GetCoupon(ctx, id)
}

// GetCoupon loads a coupon by id.
func (s *Service) GetCoupon(ctx context.Context, id uint64) (*models.Coupon, error) {
	var c models.Coupon
	if errFind := s.db.WithContext(ctx).First(&c, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, notFoundError("coupon")
		}
		return nil, dbError("load coupon", errFind)
	}
	return &c, nil
}

// DeleteCoupon removes a coupon. Orders keep their recorded discount.
func (s *Service) DeleteCoupon(ctx context.Context, id uint64) error {
	res := s.db.WithContext(ctx).Delete(&models.Coupon{}, id)
	if res.Error != nil {
		return dbError("delete coupon", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("coupon")
	}
	return nil
}

// CouponFilter narrows coupon listings.
type CouponFilter struct {
	Code string
	Page
}

// ListCoupons returns coupons newest first.
func (s *Service) ListCoupons(ctx context.Context, f CouponFilter) ([]models.Coupon, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Coupon{})
	if code := strings.TrimSpace(f.Code); code != "" {
		q = q.Where("code LIKE ?", "%"+code+"%")
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, dbError("count coupons", errCount)
	}
	offset, limit := f.normalize()
	var rows []models.Coupon
	if errFind := q.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, 0, dbError("list coupons", errFind)
	}
	return rows, total, nil
}

// GenerateCouponsInput creates Count coupons sharing a template with random codes.
type GenerateCouponsInput struct {
	Template CouponInput
	Prefix   string
	Count    int
}

const generatedCouponSuffixLen = 10

// GenerateCoupons creates coupons with random codes from a template.
func (s *Service) GenerateCoupons(ctx context.Context, in GenerateCouponsInput) (coupons []models.Coupon, err error) {
	defer func(start time.Time) { s.observe("generate_coupons", start, err) }(time.Now())

	if in.Count < 1 || in.Count > 500 {
		return nil, validationError("count must be between 1 and 500")
	}
	prefix := strings.ToUpper(strings.TrimSpace(in.Prefix))
	if len(prefix) > 16 || strings.ContainsFunc(prefix, func(r rune) bool {
		return (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '-' && r != '_'
	}) {
		return nil, validationError("prefix must be up to 16 letters, digits, '-' or '_'")
	}
	tmpl := in.Template
	tmpl.Code = "placeholder"
	if errCheck := s.checkCouponInput(&tmpl); errCheck != nil {
		return nil, errCheck
	}
	coupons = make([]models.Coupon, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		suffix, errRandom := security.GenerateRandomString(generatedCouponSuffixLen)
		if errRandom != nil {
			return nil, errRandom
		}
		var c models.Coupon
		tmpl.Code = prefix + suffix
		tmpl.apply(&c)
		coupons = append(coupons, c)
	}
	if errCreate := s.db.WithContext(ctx).CreateInBatches(&coupons, 100).Error; errCreate != nil {
		return nil, dbError("create coupons", errCreate)
	}
	return coupons, nil
}
