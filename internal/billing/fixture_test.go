package billing

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nyanpass/panel/internal/db"
	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/payment"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeGateway struct {
	methods   []payment.Method
	tradeNo   string
	payErr    error
	verifyErr error
}

func (g *fakeGateway) Methods() []payment.Method { return g.methods }

func (g *fakeGateway) Pay(_ context.Context, req *payment.PayRequest) (*payment.PayResponse, error) {
	if g.payErr != nil {
		return nil, g.payErr
	}
	return &payment.PayResponse{
		PayURL:      "https://pay.example.com/submit?out_trade_no=" + req.OrderNo,
		ContentType: payment.ContentURL,
		TradeNo:     g.tradeNo,
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, _ payment.Method, params map[string]string) (*payment.Notification, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	amount, errParse := models.ParseMoney(params["money"])
	if errParse != nil {
		return nil, payment.ErrInvalidSignature
	}
	return &payment.Notification{
		OrderNo: params["out_trade_no"],
		TradeNo: params["trade_no"],
		Amount:  amount,
	}, nil
}

type fixture struct {
	svc  *Service
	conn *gorm.DB
	gw   *fakeGateway
	bus  *events.Bus
	now  time.Time
	seq  int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	})

	f := &fixture{
		conn: conn,
		gw:   &fakeGateway{methods: []payment.Method{payment.MethodAlipay, payment.MethodWeChat}},
		bus:  events.NewBus(),
		now:  time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	f.svc = New(conn, Options{
		NotifyBaseURL:  "https://panel.example.com",
		Gateways:       payment.NewRegistry(f.gw),
		Publisher:      f.bus,
		InviteEnabled:  true,
		CommissionRate: 10,
		Now:            func() time.Time { return f.now },
	})
	f.bus.Subscribe(events.OrderPaid, f.svc.HandleOrderPaid)
	return f
}

func (f *fixture) user(t *testing.T, balance models.Money) models.User {
	t.Helper()
	f.seq++
	u := models.User{
		UUID:       uuid.NewString(),
		Email:      fmt.Sprintf("user%d@example.com", f.seq),
		Password:   "hash",
		InviteCode: fmt.Sprintf("INV%d", f.seq),
		Status:     models.UserStatusActive,
		GroupID:    1,
	}
	require.NoError(t, f.conn.Create(&u).Error)
	if balance > 0 {
		_, err := f.svc.AdjustBalance(context.Background(), AdjustBalanceInput{UserID: u.ID, Delta: balance, Remark: "seed"})
		require.NoError(t, err)
	}
	return u
}

func (f *fixture) plan(t *testing.T, price models.Money) models.Plan {
	t.Helper()
	p := models.Plan{
		Name:         fmt.Sprintf("Plan %d", price),
		Price:        price,
		DurationDays: 30,
		TransferGB:   100,
		GroupID:      2,
		IsEnabled:    true,
	}
	require.NoError(t, f.conn.Create(&p).Error)
	return p
}

func (f *fixture) coupon(t *testing.T, c models.Coupon) models.Coupon {
	t.Helper()
	c.IsEnabled = true
	require.NoError(t, f.conn.Create(&c).Error)
	return c
}

func (f *fixture) reloadUser(t *testing.T, id uint64) models.User {
	t.Helper()
	var u models.User
	require.NoError(t, f.conn.First(&u, id).Error)
	return u
}

func (f *fixture) reloadOrder(t *testing.T, orderNo string) models.Order {
	t.Helper()
	var o models.Order
	require.NoError(t, f.conn.Where("order_no = ?", orderNo).First(&o).Error)
	return o
}

func (f *fixture) reloadCoupon(t *testing.T, id uint64) models.Coupon {
	t.Helper()
	var c models.Coupon
	require.NoError(t, f.conn.First(&c, id).Error)
	return c
}

// requireLedgerConsistent checks that the balance equals the sum of logged deltas
// and that the last log row records the current balance.
func (f *fixture) requireLedgerConsistent(t *testing.T, userID uint64) {
	t.Helper()
	u := f.reloadUser(t, userID)
	require.GreaterOrEqual(t, int64(u.Balance), int64(0))

	var logs []models.BalanceLog
	require.NoError(t, f.conn.Where("user_id = ?", userID).Order("id").Find(&logs).Error)
	var sum models.Money
	for _, l := range logs {
		sum += l.Delta
		require.Equal(t, sum, l.BalanceAfter, "balance_after of log %d", l.ID)
	}
	require.Equal(t, u.Balance, sum)
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	be, ok := AsError(err)
	require.True(t, ok, "expected billing error, got %v", err)
	require.Equal(t, kind, be.Kind, "error: %v", err)
}

func requireCouponReason(t *testing.T, err error, reason CouponReason) {
	t.Helper()
	requireKind(t, err, KindCouponIneligible)
	var be *Error
	require.True(t, errors.As(err, &be))
	require.Equal(t, string(reason), be.Reason)
}
