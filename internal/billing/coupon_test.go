package billing

import (
	"context"
	"testing"
	"time"

	"github.com/nyanpass/panel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDiscount(t *testing.T) {
	cases := []struct {
		name      string
		coupon    models.Coupon
		amount    models.Money
		discount  models.Money
		bonusDays int
	}{
		{"flat", models.Coupon{Type: models.CouponTypeFixedAmount, Value: 500}, 1000, 500, 0},
		{"flat clamped to amount", models.Coupon{Type: models.CouponTypeFixedAmount, Value: 1500}, 1000, 1000, 0},
		{"percentage floors", models.Coupon{Type: models.CouponTypePercentage, Value: 15}, 999, 149, 0},
		{"percentage capped", models.Coupon{Type: models.CouponTypePercentage, Value: 50, MaxDiscount: 300}, 1000, 300, 0},
		{"percentage full", models.Coupon{Type: models.CouponTypePercentage, Value: 100}, 1234, 1234, 0},
		{"bonus days", models.Coupon{Type: models.CouponTypeBonusDays, Value: 7}, 1000, 0, 7},
		{"zero amount", models.Coupon{Type: models.CouponTypeFixedAmount, Value: 500}, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			discount, bonus := ComputeDiscount(tc.coupon, tc.amount)
			assert.Equal(t, tc.discount, discount)
			assert.Equal(t, tc.bonusDays, bonus)
			assert.LessOrEqual(t, int64(discount), int64(tc.amount))
		})
	}
}

func TestCheckCoupon_Reasons(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	base := models.Coupon{Type: models.CouponTypeFixedAmount, Value: 100, IsEnabled: true}

	cases := []struct {
		name   string
		mutate func(c *models.Coupon)
		planID uint64
		amount models.Money
		uses   int64
		want   CouponReason
	}{
		{"usable", func(*models.Coupon) {}, 1, 1000, 0, ""},
		{"disabled", func(c *models.Coupon) { c.IsEnabled = false }, 1, 1000, 0, ReasonDisabled},
		{"not started", func(c *models.Coupon) { c.StartAt = &future }, 1, 1000, 0, ReasonNotStarted},
		{"expired", func(c *models.Coupon) { c.ExpiredAt = &past }, 1, 1000, 0, ReasonExpired},
		{"expires exactly now", func(c *models.Coupon) { c.ExpiredAt = &now }, 1, 1000, 0, ReasonExpired},
		{"exhausted", func(c *models.Coupon) { c.TotalLimit = 2; c.UsedCount = 2 }, 1, 1000, 0, ReasonUsageExhausted},
		{"user limit", func(c *models.Coupon) { c.LimitPerUser = 1 }, 1, 1000, 1, ReasonUserLimitReached},
		{"amount too low", func(c *models.Coupon) { c.MinAmount = 5000 }, 1, 1000, 0, ReasonAmountTooLow},
		{"plan not eligible", func(c *models.Coupon) { c.PlanIDs = models.PlanIDs{2, 3} }, 1, 1000, 0, ReasonPlanNotEligible},
		{"plan eligible", func(c *models.Coupon) { c.PlanIDs = models.PlanIDs{1} }, 1, 1000, 0, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			assert.Equal(t, tc.want, checkCoupon(c, tc.planID, tc.amount, tc.uses, now))
		})
	}
}

func TestVerifyCoupon_IsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 0)
	p := f.plan(t, 2000)
	c := f.coupon(t, models.Coupon{Code: "SPRING25", Type: models.CouponTypePercentage, Value: 25, TotalLimit: 1})

	for i := 0; i < 3; i++ {
		quote, err := f.svc.VerifyCoupon(ctx, VerifyCouponInput{UserID: u.ID, Code: "SPRING25", PlanID: p.ID})
		require.NoError(t, err)
		assert.Equal(t, models.Money(500), quote.Discount)
		assert.Equal(t, models.Money(1500), quote.FinalAmount)
	}
	assert.Equal(t, 0, f.reloadCoupon(t, c.ID).UsedCount)

	_, err := f.svc.VerifyCoupon(ctx, VerifyCouponInput{UserID: u.ID, Code: "spring25", PlanID: p.ID})
	requireCouponReason(t, err, ReasonNotFound)

	_, err = f.svc.VerifyCoupon(ctx, VerifyCouponInput{UserID: u.ID, Code: "SPRING25"})
	requireKind(t, err, KindValidation)

	quote, err := f.svc.VerifyCoupon(ctx, VerifyCouponInput{UserID: u.ID, Code: "SPRING25", Amount: 400})
	require.NoError(t, err)
	assert.Equal(t, models.Money(100), quote.Discount)
}

func TestCouponAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := CouponInput{Code: "WELCOME", Type: models.CouponTypeFixedAmount, Value: 300, IsEnabled: true, PlanIDs: []uint64{3, 0, 3}}
	c, err := f.svc.CreateCoupon(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, models.PlanIDs{3}, c.PlanIDs)

	_, err = f.svc.CreateCoupon(ctx, in)
	requireKind(t, err, KindStateConflict)

	_, err = f.svc.CreateCoupon(ctx, CouponInput{Code: "BAD", Type: models.CouponTypePercentage, Value: 150})
	requireKind(t, err, KindValidation)

	_, err = f.svc.CreateCoupon(ctx, CouponInput{Code: "BAD", Type: 9, Value: 1})
	requireKind(t, err, KindValidation)

	in.IsEnabled = false
	in.Value = 400
	updated, err := f.svc.UpdateCoupon(ctx, c.ID, in)
	require.NoError(t, err)
	assert.False(t, updated.IsEnabled)
	assert.EqualValues(t, 400, updated.Value)

	generated, err := f.svc.GenerateCoupons(ctx, GenerateCouponsInput{
		Template: CouponInput{Type: models.CouponTypeBonusDays, Value: 3, IsEnabled: true, TotalLimit: 1},
		Prefix:   "vip",
		Count:    5,
	})
	require.NoError(t, err)
	require.Len(t, generated, 5)
	seen := map[string]bool{}
	for _, g := range generated {
		assert.Regexp(t, `^VIP[A-Z2-9]{10}$`, g.Code)
		assert.False(t, seen[g.Code])
		seen[g.Code] = true
	}

	_, err = f.svc.GenerateCoupons(ctx, GenerateCouponsInput{Template: in, Count: 0})
	requireKind(t, err, KindValidation)

	list, total, err := f.svc.ListCoupons(ctx, CouponFilter{Code: "VIP"})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, list, 5)

	require.NoError(t, f.svc.DeleteCoupon(ctx, c.ID))
	requireKind(t, f.svc.DeleteCoupon(ctx, c.ID), KindNotFound)
}
