package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lafaom_backend/internals/features/finance/payments/service"
	"lafaom_backend/internals/testutil"
)

const testServerKey = "SB-Mid-server-abc123"

func signedPayload(orderID, statusCode, gross, status string) ([]byte, string) {
	sig := service.MidtransSignature(orderID, statusCode, gross, testServerKey)
	body := `{"order_id":"` + orderID + `","status_code":"` + statusCode + `","gross_amount":"` + gross +
		`","transaction_status":"` + status + `","signature_key":"` + sig + `"}`
	return []byte(body), sig
}

func TestVerifyMidtransSignature(t *testing.T) {
	payload, sig := signedPayload("LAFAOM-1", "200", "150000.00", "settlement")

	assert.True(t, service.VerifyMidtransSignature(testServerKey, payload, sig))
	assert.True(t, service.VerifyMidtransSignature(testServerKey, payload, strings.ToUpper(sig)))

	assert.False(t, service.VerifyMidtransSignature("other-key", payload, sig))
	assert.False(t, service.VerifyMidtransSignature("", payload, sig))
	assert.False(t, service.VerifyMidtransSignature(testServerKey, payload, ""))
	assert.False(t, service.VerifyMidtransSignature(testServerKey, []byte("{not json"), sig))

	// nominal diubah setelah ditandatangani
	tampered := []byte(strings.Replace(string(payload), "150000.00", "1.00", 1))
	assert.False(t, service.VerifyMidtransSignature(testServerKey, tampered, sig))
}

func TestMapMidtransStatus(t *testing.T) {
	tests := []struct {
		status, fraud string
		want          service.GatewayStatus
	}{
		{"settlement", "", service.GatewayAccepted},
		{"capture", "accept", service.GatewayAccepted},
		{"capture", "challenge", service.GatewayPending},
		{"capture", "deny", service.GatewayRefused},
		{"pending", "", service.GatewayPending},
		{"authorize", "", service.GatewayPending},
		{"deny", "", service.GatewayRefused},
		{"cancel", "", service.GatewayRefused},
		{"expire", "", service.GatewayRefused},
		{"failure", "", service.GatewayRefused},
		{"refund", "", service.GatewayPending},
		{"partial_refund", "", service.GatewayPending},
		{"  SETTLEMENT ", "", service.GatewayAccepted},
		{"", "", service.GatewayPending},
	}
	for _, tt := range tests {
		t.Run(tt.status+"/"+tt.fraud, func(t *testing.T) {
			assert.Equal(t, tt.want, service.MapMidtransStatus(tt.status, tt.fraud))
		})
	}
}

func TestMidtransGateway_ParseNotification(t *testing.T) {
	g := service.NewMidtransGateway(testServerKey, false, zap.NewNop())
	payload, sig := signedPayload("LAFAOM-9", "201", "99000.00", "pending")

	assert.True(t, g.VerifyNotification(payload, sig))

	n, err := g.ParseNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, "LAFAOM-9", n.TransactionID)
	assert.Equal(t, service.GatewayPending, n.Status)
	assert.Equal(t, "pending", n.EventType)

	_, err = g.ParseNotification([]byte(`{"transaction_status":"settlement"}`))
	assert.Error(t, err)
}

func TestMidtransGateway_ParseNotificationRejectsStatusMismatch(t *testing.T) {
	g := service.NewMidtransGateway(testServerKey, false, zap.NewNop())

	// signature 201 tetap sah, status settlement tidak cocok dengan 201
	payload, sig := signedPayload("LAFAOM-9", "201", "99000.00", "settlement")
	require.True(t, g.VerifyNotification(payload, sig))

	_, err := g.ParseNotification(payload)
	assert.ErrorIs(t, err, service.ErrAuthentication)

	payload, _ = signedPayload("LAFAOM-9", "200", "99000.00", "settlement")
	n, err := g.ParseNotification(payload)
	require.NoError(t, err)
	assert.Equal(t, service.GatewayAccepted, n.Status)
}

func TestCreatePayment_CurrencyFollowsMidtrans(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Svc.Gateway = service.NewMidtransGateway(testServerKey, false, zap.NewNop())

	assert.Equal(t, []string{"IDR"}, env.Svc.EffectiveCurrencies())

	rec, err := env.Svc.CreatePayment(context.Background(), formationRequest())
	assert.Nil(t, rec)
	var ve *service.ValidationError
	require.True(t, errors.As(err, &ve), "got %T: %v", err, err)
	assert.Equal(t, "unsupported", ve.Fields["currency"])
}

func TestMidtransGateway_InitiateRejectsBeforeNetwork(t *testing.T) {
	g := service.NewMidtransGateway(testServerKey, false, zap.NewNop())

	tests := []struct {
		name     string
		currency string
		amount   string
		code     string
	}{
		{"euro", "EUR", "1200", "unsupported_currency"},
		{"fractional rupiah", "IDR", "15000.50", "invalid_amount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Initiate(context.Background(), service.InitiateRequest{
				TransactionID: "LAFAOM-X",
				Amount:        decimal.RequireFromString(tt.amount),
				Currency:      tt.currency,
				Type:          "FORMATION",
			})
			var pe *service.ProviderError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.code, pe.Code)
		})
	}
}

func TestTransportErrorUnwraps(t *testing.T) {
	base := errors.New("dial tcp: timeout")
	err := error(&service.TransportError{Op: "check_status", Err: base})

	assert.ErrorIs(t, err, base)
	assert.Contains(t, err.Error(), "check_status")
}
