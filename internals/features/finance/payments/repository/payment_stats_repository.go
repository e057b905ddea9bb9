package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	model "lafaom_backend/internals/features/finance/payments/model"
)

type StatusCount struct {
	Status model.PaymentStatus `gorm:"column:status"`
	Total  int64               `gorm:"column:total"`
}

type CurrencyAmount struct {
	Currency string          `gorm:"column:currency"`
	Amount   decimal.Decimal `gorm:"column:amount"`
}

type PaymentStats struct {
	ByStatus       []StatusCount
	AcceptedAmount []CurrencyAmount
}

// Stats: jumlah per status + total nominal ACCEPTED per mata uang.
func (r *PaymentRepository) Stats(ctx context.Context) (*PaymentStats, error) {
	out := &PaymentStats{}

	if err := r.DB.WithContext(ctx).Model(&model.PaymentRecord{}).
		Select("payment_status AS status, COUNT(*) AS total").
		Group("payment_status").
		Order("payment_status").
		Scan(&out.ByStatus).Error; err != nil {
		return nil, fmt.Errorf("count payments by status: %w", err)
	}

	if err := r.DB.WithContext(ctx).Model(&model.PaymentRecord{}).
		Select("payment_currency AS currency, COALESCE(SUM(payment_amount), 0) AS amount").
		Where("payment_status = ?", model.PaymentStatusAccepted).
		Group("payment_currency").
		Order("payment_currency").
		Scan(&out.AcceptedAmount).Error; err != nil {
		return nil, fmt.Errorf("sum accepted payments: %w", err)
	}

	return out, nil
}
