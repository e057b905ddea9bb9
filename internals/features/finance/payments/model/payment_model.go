package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

/*
  payments = satu baris per pembayaran yang dimulai lewat gateway.
  - payment_transaction_id unik seumur sistem (order_id di Midtrans)
  - payment_status hanya berubah lewat transisi PENDING -> terminal
*/

type PaymentRecord struct {
	PaymentID            uuid.UUID `gorm:"column:payment_id;type:uuid;primaryKey" json:"payment_id"`
	PaymentTransactionID string    `gorm:"column:payment_transaction_id;type:varchar(120);not null;uniqueIndex:uq_payments_transaction_id" json:"payment_transaction_id"`
	PaymentUserID        uuid.UUID `gorm:"column:payment_user_id;type:uuid;not null;index:idx_payments_user_created,priority:1" json:"payment_user_id"`

	// Nominal & mata uang
	PaymentAmount   decimal.Decimal `gorm:"column:payment_amount;type:numeric(12,2);not null" json:"payment_amount"`
	PaymentCurrency string          `gorm:"column:payment_currency;type:varchar(8);not null" json:"payment_currency"`
	PaymentType     PaymentType     `gorm:"column:payment_type;type:varchar(16);not null" json:"payment_type"`

	PaymentStatus      PaymentStatus `gorm:"column:payment_status;type:varchar(16);not null;index:idx_payments_status" json:"payment_status"`
	PaymentDescription *string       `gorm:"column:payment_description;type:text" json:"payment_description,omitempty"`

	// URL diturunkan dari transaction id saat dibuat, tidak pernah diubah
	PaymentNotifyURL string `gorm:"column:payment_notify_url;type:text;not null" json:"payment_notify_url"`
	PaymentReturnURL string `gorm:"column:payment_return_url;type:text;not null" json:"payment_return_url"`

	// Respons gateway saat initiate
	PaymentCheckoutURL   *string `gorm:"column:payment_checkout_url;type:text" json:"payment_checkout_url,omitempty"`
	PaymentCheckoutToken *string `gorm:"column:payment_checkout_token;type:text" json:"payment_checkout_token,omitempty"`

	PaymentCreatedAt  time.Time  `gorm:"column:payment_created_at;not null;index:idx_payments_user_created,priority:2" json:"payment_created_at"`
	PaymentUpdatedAt  time.Time  `gorm:"column:payment_updated_at;not null" json:"payment_updated_at"`
	PaymentResolvedAt *time.Time `gorm:"column:payment_resolved_at" json:"payment_resolved_at,omitempty"`
}

func (PaymentRecord) TableName() string {
	return "payments"
}
