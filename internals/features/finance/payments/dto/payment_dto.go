package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	model "lafaom_backend/internals/features/finance/payments/model"
)

/* =========================================================
   Request
========================================================= */

type CreatePaymentRequest struct {
	Amount      decimal.Decimal `json:"amount" validate:"gt=0,lt=10000000000"`
	Currency    string          `json:"currency" validate:"required,len=3,alpha"`
	Type        string          `json:"type" validate:"required,oneof=FORMATION INSCRIPTION OTHER"`
	UserID      uuid.UUID       `json:"user_id" validate:"required"`
	Description string          `json:"description" validate:"omitempty,max=255"`
}

// Normalize: currency & type case-insensitive dari client.
func (r *CreatePaymentRequest) Normalize() {
	r.Currency = strings.ToUpper(strings.TrimSpace(r.Currency))
	r.Type = strings.ToUpper(strings.TrimSpace(r.Type))
	r.Description = strings.TrimSpace(r.Description)
}

/* =========================================================
   Response
========================================================= */

type PaymentResponse struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	TransactionID string              `json:"transaction_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Type          model.PaymentType   `json:"type"`
	Status        model.PaymentStatus `json:"status"`
	Description   *string             `json:"description,omitempty"`
	CheckoutURL   *string             `json:"checkout_url,omitempty"`
	CheckoutToken *string             `json:"checkout_token,omitempty"`
	ReturnURL     string              `json:"return_url"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ResolvedAt    *time.Time          `json:"resolved_at,omitempty"`
}

func FromModel(m *model.PaymentRecord) PaymentResponse {
	return PaymentResponse{
		PaymentID:     m.PaymentID,
		TransactionID: m.PaymentTransactionID,
		UserID:        m.PaymentUserID,
		Amount:        m.PaymentAmount,
		Currency:      m.PaymentCurrency,
		Type:          m.PaymentType,
		Status:        m.PaymentStatus,
		Description:   m.PaymentDescription,
		CheckoutURL:   m.PaymentCheckoutURL,
		CheckoutToken: m.PaymentCheckoutToken,
		ReturnURL:     m.PaymentReturnURL,
		CreatedAt:     m.PaymentCreatedAt,
		UpdatedAt:     m.PaymentUpdatedAt,
		ResolvedAt:    m.PaymentResolvedAt,
	}
}

func FromModels(rows []model.PaymentRecord) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out
}

// ReturnResponse: yang dilihat user setelah redirect dari halaman pembayaran.
type ReturnResponse struct {
	TransactionID string              `json:"transaction_id"`
	Status        model.PaymentStatus `json:"status"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	Description   *string             `json:"description,omitempty"`
}

func ReturnFromModel(m *model.PaymentRecord) ReturnResponse {
	return ReturnResponse{
		TransactionID: m.PaymentTransactionID,
		Status:        m.PaymentStatus,
		Amount:        m.PaymentAmount,
		Currency:      m.PaymentCurrency,
		Description:   m.PaymentDescription,
	}
}

type PaymentStatsResponse struct {
	Total          int64                         `json:"total"`
	ByStatus       map[model.PaymentStatus]int64 `json:"by_status"`
	AcceptedAmount map[string]decimal.Decimal    `json:"accepted_amount"`
}
