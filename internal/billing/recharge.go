package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nyanpass/panel/internal/events"
	"github.com/nyanpass/panel/internal/models"
	"github.com/nyanpass/panel/internal/security"
	"gorm.io/gorm"
)

// RedeemResult reports a successful recharge code redemption.
type RedeemResult struct {
	Amount  models.Money
	Balance models.Money
}

// RedeemCode marks an unused code as used and credits its face value.
// Concurrent redemptions of one code have exactly one winner.
func (s *Service) RedeemCode(ctx context.Context, userID uint64, code string) (result RedeemResult, err error) {
	defer func(start time.Time) { s.observe("redeem_code", start, err) }(time.Now())

	code = strings.TrimSpace(code)
	if code == "" {
		return RedeemResult{}, validationError("recharge code is required")
	}
	if errUser := s.activeUser(ctx, userID); errUser != nil {
		return RedeemResult{}, errUser
	}
	now := s.now()
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rc models.RechargeCode
		if errFind := tx.Where("code = ?", code).First(&rc).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return notFoundError("recharge code")
			}
			return errFind
		}
		// Collations may match case-insensitively.
		if rc.Code != code {
			return notFoundError("recharge code")
		}
		res := tx.Model(&models.RechargeCode{}).
			Where("id = ? AND used = ?", rc.ID, false).
			Updates(map[string]any{
				"used":    true,
				"used_by": userID,
				"used_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &Error{Kind: KindStateConflict, Reason: "already_used", Msg: "recharge code already used"}
		}
		balance, errCredit := applyLedger(tx, ledgerEntry{
			userID: userID,
			delta:  rc.Amount,
			kind:   models.BalanceLogRechargeCode,
			ref:    rc.Code,
			remark: rc.Remark,
			at:     now,
		})
		if errCredit != nil {
			return errCredit
		}
		result = RedeemResult{Amount: rc.Amount, Balance: balance}
		return nil
	})
	if errTx != nil {
		return RedeemResult{}, dbError("redeem code", errTx)
	}
	s.publish(ctx, events.CodeRedeemed, userID, "", "", "", int64(result.Amount))
	s.publish(ctx, events.BalanceChanged, userID, "", "", "", int64(result.Amount))
	return result, nil
}

// GenerateCodesInput requests a batch of recharge codes.
type GenerateCodesInput struct {
	Amount    models.Money `validate:"gt=0"`
	Count     int          `validate:"min=1,max=500"`
	Remark    string       `validate:"max=200"`
	CreatedBy uint64
}

// GenerateCodes creates Count unused codes of the same face value.
func (s *Service) GenerateCodes(ctx context.Context, in GenerateCodesInput) (codes []models.RechargeCode, err error) {
	defer func(start time.Time) { s.observe("generate_codes", start, err) }(time.Now())

	if errValidate := s.validateStruct(in); errValidate != nil {
		return nil, errValidate
	}
	now := s.now()
	remark := strings.TrimSpace(in.Remark)
	codes = make([]models.RechargeCode, 0, in.Count)
	for i := 0; i < in.Count; i++ {
		code, errCode := security.GenerateCode()
		if errCode != nil {
			return nil, errCode
		}
		codes = append(codes, models.RechargeCode{
			Code:      code,
			Amount:    in.Amount,
			Remark:    remark,
			CreatedBy: in.CreatedBy,
			CreatedAt: now,
		})
	}
	if errCreate := s.db.WithContext(ctx).CreateInBatches(&codes, 100).Error; errCreate != nil {
		return nil, dbError("create recharge codes", errCreate)
	}
	return codes, nil
}

// CodeFilter narrows recharge code listings.
type CodeFilter struct {
	Used *bool
	Page
}

// ListCodes returns recharge codes newest first.
func (s *Service) ListCodes(ctx context.Context, f CodeFilter) ([]models.RechargeCode, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.RechargeCode{})
	if f.Used != nil {
		q = q.Where("used = ?", *f.Used)
	}
	var total int64
	if errCount := q.Count(&total).Error; errCount != nil {
		return nil, 0, dbError("count recharge codes", errCount)
	}
	offset, limit := f.normalize()
	var rows []models.RechargeCode
	if errFind := q.Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; errFind != nil {
		return nil, 0, dbError("list recharge codes", errFind)
	}
	return rows, total, nil
}

// RevokeCode deletes an unused code.
func (s *Service) RevokeCode(ctx context.Context, id uint64) (err error) {
	defer func(start time.Time) { s.observe("revoke_code", start, err) }(time.Now())

	res := s.db.WithContext(ctx).Where("id = ? AND used = ?", id, false).Delete(&models.RechargeCode{})
	if res.Error != nil {
		return dbError("revoke recharge code", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if errCount := s.db.WithContext(ctx).Model(&models.RechargeCode{}).Where("id = ?", id).Count(&n).Error; errCount != nil {
		return dbError("load recharge code", errCount)
	}
	if n == 0 {
		return notFoundError("recharge code")
	}
	return stateConflictError("recharge code already used")
}
