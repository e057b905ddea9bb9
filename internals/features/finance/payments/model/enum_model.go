package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

type PaymentStatus string
type PaymentType string
type PaymentGatewayProvider string
type GatewayEventStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusAccepted PaymentStatus = "ACCEPTED"
	PaymentStatusRefused  PaymentStatus = "REFUSED"
	PaymentStatusExpired  PaymentStatus = "EXPIRED"
)

const (
	PaymentTypeFormation   PaymentType = "FORMATION"
	PaymentTypeInscription PaymentType = "INSCRIPTION"
	PaymentTypeOther       PaymentType = "OTHER"
)

const (
	GatewayProviderMidtrans PaymentGatewayProvider = "midtrans"
)

const (
	GatewayEventStatusReceived  GatewayEventStatus = "received"
	GatewayEventStatusProcessed GatewayEventStatus = "processed"
	GatewayEventStatusIgnored   GatewayEventStatus = "ignored"
	GatewayEventStatusFailed    GatewayEventStatus = "failed"
)

/* ===================== PaymentStatus ===================== */

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusAccepted, PaymentStatusRefused, PaymentStatusExpired:
		return true
	}
	return false
}

// IsTerminal: ACCEPTED, REFUSED dan EXPIRED tidak pernah berubah lagi.
func (s PaymentStatus) IsTerminal() bool {
	return s.Valid() && s != PaymentStatusPending
}

// Value menolak status di luar himpunan tertutup, jadi string liar tidak pernah sampai ke DB.
func (s PaymentStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid payment status %q", string(s))
	}
	return string(s), nil
}

func (s *PaymentStatus) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return fmt.Errorf("payment status: %w", err)
	}
	st := PaymentStatus(v)
	if !st.Valid() {
		return fmt.Errorf("invalid payment status %q", v)
	}
	*s = st
	return nil
}

/* ===================== PaymentType ===================== */

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeFormation, PaymentTypeInscription, PaymentTypeOther:
		return true
	}
	return false
}

// ParsePaymentType menerima "formation", "Formation", dst.
func ParsePaymentType(s string) (PaymentType, bool) {
	t := PaymentType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

func (t PaymentType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid payment type %q", string(t))
	}
	return string(t), nil
}

func (t *PaymentType) Scan(src any) error {
	v, err := scanString(src)
	if err != nil {
		return fmt.Errorf("payment type: %w", err)
	}
	pt := PaymentType(v)
	if !pt.Valid() {
		return fmt.Errorf("invalid payment type %q", v)
	}
	*t = pt
	return nil
}

func scanString(src any) (string, error) {
	switch v := src.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case nil:
		return "", fmt.Errorf("null value")
	default:
		return "", fmt.Errorf("unsupported type %T", src)
	}
}
