package service

import (
	"context"

	"github.com/shopspring/decimal"

	model "lafaom_backend/internals/features/finance/payments/model"
)

// GatewayStatus adalah apa yang dilaporkan gateway. Gateway tidak pernah melaporkan EXPIRED;
// EXPIRED hanya dipaksa oleh timeout di sisi kita.
type GatewayStatus string

const (
	GatewayAccepted GatewayStatus = "ACCEPTED"
	GatewayRefused  GatewayStatus = "REFUSED"
	GatewayPending  GatewayStatus = "PENDING"
)

func (g GatewayStatus) Observed() model.PaymentStatus {
	switch g {
	case GatewayAccepted:
		return model.PaymentStatusAccepted
	case GatewayRefused:
		return model.PaymentStatusRefused
	}
	return model.PaymentStatusPending
}

type InitiateRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Type          model.PaymentType
	Description   string
	NotifyURL     string
	ReturnURL     string
}

type Checkout struct {
	TransactionID string
	PaymentURL    string
	Token         string
}

type Notification struct {
	TransactionID string
	Status        GatewayStatus
	EventType     string // status mentah dari gateway
	ExternalRef   string // id transaksi di sisi gateway
}

// Gateway dipakai oleh create, notification, return dan worker.
// Initiate: ProviderError / TransportError. CheckStatus: TransportError saja.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*Checkout, error)
	CheckStatus(ctx context.Context, transactionID string) (GatewayStatus, error)
	VerifyNotification(payload []byte, proof string) bool
	ParseNotification(payload []byte) (*Notification, error)
}
