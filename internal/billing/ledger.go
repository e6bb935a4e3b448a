package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/models"
	"gorm.io/gorm"
)

// ledgerEntry describes one balance mutation.
type ledgerEntry struct {
	userID uint64
	delta  models.Money
	kind   models.BalanceLogKind
	ref    string
	remark string
	at     time.Time
}

// applyLedger changes the user's balance by e.delta and appends a log row.
// Debits are conditional on sufficient balance; no partial debit happens.
func applyLedger(tx *gorm.DB, e ledgerEntry) (models.Money, error) {
	if e.delta == 0 {
		var user models.User
		if errFind := tx.Select("id", "balance").First(&user, e.userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return 0, notFoundError("user")
			}
			return 0, dbError("load balance", errFind)
		}
		return user.Balance, nil
	}

	q := tx.Model(&models.User{}).Where("id = ?", e.userID)
	if e.delta < 0 {
		q = q.Where("balance >= ?", -e.delta)
	}
	res := q.Updates(map[string]any{
		"balance":    gorm.Expr("balance + ?", e.delta),
		"updated_at": e.at,
	})
	if res.Error != nil {
		return 0, dbError("update balance", res.Error)
	}
	if res.RowsAffected == 0 {
		var exists int64
		if errCount := tx.Model(&models.User{}).Where("id = ?", e.userID).Count(&exists).Error; errCount != nil {
			return 0, dbError("load user", errCount)
		}
		if exists == 0 {
			return 0, notFoundError("user")
		}
		return 0, &Error{Kind: KindInsufficientFunds, Msg: "insufficient balance"}
	}

	var user models.User
	if errFind := tx.Select("id", "balance").First(&user, e.userID).Error; errFind != nil {
		return 0, dbError("load balance", errFind)
	}
	entry := models.BalanceLog{
		UserID:       e.userID,
		Delta:        e.delta,
		BalanceAfter: user.Balance,
		Kind:         e.kind,
		Ref:          e.ref,
		Remark:       e.remark,
		CreatedAt:    e.at,
	}
	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return 0, dbError("append balance log", errCreate)
	}
	return user.Balance, nil
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID uint64) (models.Money, error) {
	return applyLedger(s.db.WithContext(ctx), ledgerEntry{userID: userID})
}

// AdjustBalanceInput is an administrative ledger correction.
type AdjustBalanceInput struct {
	UserID uint64       `validate:"required"`
	Delta  models.Money `validate:"required"`
	Remark string       `validate:"max=255"`
}

// AdjustBalance credits or debits a user; the balance cannot go negative.
func (s *Service) AdjustBalance(ctx context.Context, in AdjustBalanceInput) (balance models.Money, err error) {
	defer func(start time.Time) { s.observe("adjust_balance", start, err) }(time.Now())

	if errValidate := s.validateStruct(in); errValidate != nil {
		return 0, errValidate
	}
	now := s.now()
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var errLedger error
		balance, errLedger = applyLedger(tx, ledgerEntry{
			userID: in.UserID,
			delta:  in.Delta,
			kind:   models.BalanceLogAdminAdjust,
			remark: strings.TrimSpace(in.Remark),
			at:     now,
		})
		return errLedger
	})
	if errTx != nil {
		return 0, dbError("adjust balance", errTx)
	}
	s.publish(ctx, events.BalanceChanged, in.UserID, "", "", "", int64(in.Delta))
	return balance, nil
}

// BalanceLogFilter narrows ledger history queries.
type BalanceLogFilter struct {
	UserID uint64
	Kind   models.BalanceLogKind
	Page
}

// ListBalanceLogs returns ledger history newest first.
func (s *Service) ListBalanceLogs(ctx context.Context, f BalanceLogFilter) ([]models.BalanceLog, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.BalanceLog{})
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, dbError("count balance logs", errCount)
	}
	offset, limit := f.normalize()
	var rows []models.BalanceLog
	if errFind := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, 0, dbError("list balance logs", errFind)
	}
	return rows, total, nil
}
