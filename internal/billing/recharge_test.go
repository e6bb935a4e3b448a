package billing

import (
	"context"
	"sync"
	"testing"

	"github.com/nyanpass/panel/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeemCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 0)

	codes, err := f.svc.GenerateCodes(ctx, GenerateCodesInput{Amount: 2500, Count: 2, Remark: "promo", CreatedBy: 1})
	require.NoError(t, err)
	require.Len(t, codes, 2)
	assert.Regexp(t, `^[0-9A-F]{32}$`, codes[0].Code)
	assert.NotEqual(t, codes[0].Code, codes[1].Code)

	res, err := f.svc.RedeemCode(ctx, u.ID, " "+codes[0].Code+" ")
	require.NoError(t, err)
	assert.Equal(t, models.Money(2500), res.Amount)
	assert.Equal(t, models.Money(2500), res.Balance)

	_, err = f.svc.RedeemCode(ctx, u.ID, codes[0].Code)
	requireKind(t, err, KindStateConflict)
	_, err = f.svc.RedeemCode(ctx, u.ID, "DOESNOTEXIST")
	requireKind(t, err, KindNotFound)
	_, err = f.svc.RedeemCode(ctx, u.ID, "")
	requireKind(t, err, KindValidation)

	var stored models.RechargeCode
	require.NoError(t, f.conn.Where("code = ?", codes[0].Code).First(&stored).Error)
	assert.True(t, stored.Used)
	require.NotNil(t, stored.UsedBy)
	assert.Equal(t, u.ID, *stored.UsedBy)
	assert.NotNil(t, stored.UsedAt)

	var log models.BalanceLog
	require.NoError(t, f.conn.Where("user_id = ? AND kind = ?", u.ID, models.BalanceLogRechargeCode).First(&log).Error)
	assert.Equal(t, codes[0].Code, log.Ref)
	assert.Equal(t, "promo", log.Remark)
	f.requireLedgerConsistent(t, u.ID)
}

func TestRedeemCode_RequiresExactCaseUnderCaseInsensitiveCollation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 0)

	require.NoError(t, f.conn.Exec(`DROP TABLE recharge_codes`).Error)
	require.NoError(t, f.conn.Exec(`CREATE TABLE recharge_codes (
		id integer PRIMARY KEY AUTOINCREMENT,
		code text NOT NULL UNIQUE COLLATE NOCASE,
		amount integer NOT NULL,
		used numeric NOT NULL DEFAULT false,
		used_by integer,
		used_at datetime,
		remark text,
		created_by integer NOT NULL DEFAULT 0,
		created_at datetime
	)`).Error)
	rc := models.RechargeCode{Code: "ABCDEF0123456789ABCDEF0123456789", Amount: 1000, CreatedAt: f.now}
	require.NoError(t, f.conn.Create(&rc).Error)

	_, err := f.svc.RedeemCode(ctx, u.ID, "abcdef0123456789abcdef0123456789")
	requireKind(t, err, KindNotFound)

	var stored models.RechargeCode
	require.NoError(t, f.conn.First(&stored, rc.ID).Error)
	assert.False(t, stored.Used)
	assert.Equal(t, models.Money(0), f.reloadUser(t, u.ID).Balance)

	res, err := f.svc.RedeemCode(ctx, u.ID, rc.Code)
	require.NoError(t, err)
	assert.Equal(t, models.Money(1000), res.Balance)
}

func TestRedeemCode_ConcurrentExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	codes, err := f.svc.GenerateCodes(ctx, GenerateCodesInput{Amount: 1000, Count: 1})
	require.NoError(t, err)
	code := codes[0].Code

	const racers = 12
	users := make([]models.User, racers)
	for i := range users {
		users[i] = f.user(t, 0)
	}

	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RedeemCode(ctx, users[i].ID, code)
		}(i)
	}
	wg.Wait()

	winners := 0
	var credited models.Money
	for i, err := range errs {
		balance := f.reloadUser(t, users[i].ID).Balance
		credited += balance
		if err == nil {
			winners++
			assert.Equal(t, models.Money(1000), balance)
			continue
		}
		requireKind(t, err, KindStateConflict)
		assert.Equal(t, models.Money(0), balance)
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, models.Money(1000), credited)

	var logs int64
	require.NoError(t, f.conn.Model(&models.BalanceLog{}).Where("ref = ?", code).Count(&logs).Error)
	assert.EqualValues(t, 1, logs)
}

func TestGenerateListRevokeCodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 0)

	_, err := f.svc.GenerateCodes(ctx, GenerateCodesInput{Amount: 100, Count: 0})
	requireKind(t, err, KindValidation)
	_, err = f.svc.GenerateCodes(ctx, GenerateCodesInput{Amount: 100, Count: 501})
	requireKind(t, err, KindValidation)
	_, err = f.svc.GenerateCodes(ctx, GenerateCodesInput{Amount: 0, Count: 1})
	requireKind(t, err, KindValidation)

	codes, err := f.svc.GenerateCodes(ctx, GenerateCodesInput{Amount: 300, Count: 3})
	require.NoError(t, err)
	_, err = f.svc.RedeemCode(ctx, u.ID, codes[0].Code)
	require.NoError(t, err)

	used := true
	list, total, err := f.svc.ListCodes(ctx, CodeFilter{Used: &used})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, codes[0].Code, list[0].Code)

	unused := false
	_, total, err = f.svc.ListCodes(ctx, CodeFilter{Used: &unused})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	requireKind(t, f.svc.RevokeCode(ctx, codes[0].ID), KindStateConflict)
	require.NoError(t, f.svc.RevokeCode(ctx, codes[1].ID))
	requireKind(t, f.svc.RevokeCode(ctx, codes[1].ID), KindNotFound)

	_, total, err = f.svc.ListCodes(ctx, CodeFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
}

func TestAdjustBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, 0)

	balance, err := f.svc.AdjustBalance(ctx, AdjustBalanceInput{UserID: u.ID, Delta: 800, Remark: "goodwill"})
	require.NoError(t, err)
	assert.Equal(t, models.Money(800), balance)

	_, err = f.svc.AdjustBalance(ctx, AdjustBalanceInput{UserID: u.ID, Delta: -801})
	requireKind(t, err, KindInsufficientFunds)

	balance, err = f.svc.AdjustBalance(ctx, AdjustBalanceInput{UserID: u.ID, Delta: -800})
	require.NoError(t, err)
	assert.Equal(t, models.Money(0), balance)

	_, err = f.svc.AdjustBalance(ctx, AdjustBalanceInput{UserID: u.ID})
	requireKind(t, err, KindValidation)
	_, err = f.svc.AdjustBalance(ctx, AdjustBalanceInput{UserID: 4242, Delta: 5})
	requireKind(t, err, KindNotFound)

	logs, total, err := f.svc.ListBalanceLogs(ctx, BalanceLogFilter{UserID: u.ID, Kind: models.BalanceLogAdminAdjust})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, models.Money(-800), logs[0].Delta)
	f.requireLedgerConsistent(t, u.ID)
}
