package service

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	midtrans "github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"

	dto "lafaom_backend/internals/features/finance/payments/dto"
)

/* =========================================================
   Midtrans Client
========================================================= */

// MidtransGateway: Snap untuk initiate, Core API untuk cek status,
// SHA512(order_id+status_code+gross_amount+server_key) untuk notifikasi.
type MidtransGateway struct {
	serverKey string
	snap      snap.Client
	core      coreapi.Client
	log       *zap.Logger
}

// useProduction=true untuk Production, false untuk Sandbox.
func NewMidtransGateway(serverKey string, useProduction bool, logger *zap.Logger) *MidtransGateway {
	env := midtrans.Sandbox
	if useProduction {
		env = midtrans.Production
	}
	g := &MidtransGateway{serverKey: serverKey, log: logger.Named("midtrans")}
	g.snap.New(serverKey, env)
	g.core.New(serverKey, env)
	return g
}

// SupportedCurrencies: Snap hanya menerima IDR.
func (g *MidtransGateway) SupportedCurrencies() []string {
	return []string{"IDR"}
}

func (g *MidtransGateway) Initiate(ctx context.Context, req InitiateRequest) (*Checkout, error) {
	// Snap hanya menerima IDR tanpa pecahan
	if !strings.EqualFold(req.Currency, "IDR") {
		return nil, &ProviderError{Code: "unsupported_currency", Message: "midtrans only accepts IDR, got " + req.Currency}
	}
	if !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, &ProviderError{Code: "invalid_amount", Message: "IDR amount must not have decimals"}
	}
	gross := req.Amount.IntPart()

	name := req.Description
	if name == "" {
		name = string(req.Type)
	}
	sreq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.TransactionID,
			GrossAmt: gross,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:       req.TransactionID,
				Price:    gross,
				Qty:      1,
				Name:     truncate(name, 50),
				Category: string(req.Type),
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: req.ReturnURL,
		},
		CustomField1: truncate(req.Description, 40),
	}

	resp, merr, err := callMidtrans(ctx, func() (*snap.Response, *midtrans.Error) {
		return g.snap.CreateTransaction(sreq)
	})
	if err != nil {
		return nil, &TransportError{Op: "initiate", Err: err}
	}
	if merr != nil {
		return nil, classifyInitiateError(merr)
	}
	if resp == nil || resp.Token == "" {
		return nil, &TransportError{Op: "initiate", Err: errors.New("empty snap response")}
	}

	return &Checkout{
		TransactionID: req.TransactionID,
		PaymentURL:    resp.RedirectURL,
		Token:         resp.Token,
	}, nil
}

func (g *MidtransGateway) CheckStatus(ctx context.Context, transactionID string) (GatewayStatus, error) {
	resp, merr, err := callMidtrans(ctx, func() (*coreapi.TransactionStatusResponse, *midtrans.Error) {
		return g.core.CheckTransaction(transactionID)
	})
	if err != nil {
		return "", &TransportError{Op: "check_status", Err: err}
	}
	if merr != nil {
		// 404 = user belum memilih metode bayar di Snap
		if merr.StatusCode == http.StatusNotFound {
			return GatewayPending, nil
		}
		return "", &TransportError{Op: "check_status", Err: fmt.Errorf("midtrans %d: %s", merr.StatusCode, merr.Message)}
	}
	if resp == nil {
		return "", &TransportError{Op: "check_status", Err: errors.New("empty status response")}
	}
	if resp.StatusCode == "404" {
		return GatewayPending, nil
	}
	return MapMidtransStatus(resp.TransactionStatus, resp.FraudStatus), nil
}

func (g *MidtransGateway) VerifyNotification(payload []byte, proof string) bool {
	return VerifyMidtransSignature(g.serverKey, payload, proof)
}

func (g *MidtransGateway) ParseNotification(payload []byte) (*Notification, error) {
	var n dto.MidtransNotification
	if err := sonic.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("invalid midtrans payload: %w", err)
	}
	if strings.TrimSpace(n.OrderID) == "" {
		return nil, errors.New("midtrans payload without order_id")
	}
	st := MapMidtransStatus(n.TransactionStatus, n.FraudStatus)
	// status_code ikut ditandatangani, transaction_status tidak
	if st == GatewayAccepted && strings.TrimSpace(n.StatusCode) != "200" {
		return nil, fmt.Errorf("%w: transaction_status %q with status_code %q", ErrAuthentication, n.TransactionStatus, n.StatusCode)
	}
	return &Notification{
		TransactionID: n.OrderID,
		Status:        st,
		EventType:     n.TransactionStatus,
		ExternalRef:   n.TransactionID,
	}, nil
}

/* =========================================================
   Helpers
========================================================= */

// VerifyMidtransSignature: tanpa server key semua notifikasi ditolak.
func VerifyMidtransSignature(serverKey string, payload []byte, proof string) bool {
	if serverKey == "" || proof == "" {
		return false
	}
	var n dto.MidtransNotification
	if err := sonic.Unmarshal(payload, &n); err != nil {
		return false
	}
	want := MidtransSignature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	got := strings.ToLower(strings.TrimSpace(proof))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}

func MidtransSignature(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

// MapMidtransStatus memetakan transaction_status (+ fraud_status) ke status gateway.
// refund / partial_refund / status tak dikenal tidak mengubah apa pun (PENDING).
func MapMidtransStatus(transactionStatus, fraudStatus string) GatewayStatus {
	ts := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))
	switch ts {
	case "capture":
		// kartu kredit: accept -> lunas, challenge -> tunggu review
		switch fraud {
		case "accept":
			return GatewayAccepted
		case "challenge":
			return GatewayPending
		}
		return GatewayRefused
	case "settlement":
		return GatewayAccepted
	case "pending", "authorize":
		return GatewayPending
	case "deny", "cancel", "expire", "failure":
		return GatewayRefused
	}
	return GatewayPending
}

type midtransResult[T any] struct {
	resp T
	merr *midtrans.Error
}

// callMidtrans: SDK tidak menerima context, jadi panggilan dibungkus goroutine
// dan ditinggal kalau ctx habis duluan.
func callMidtrans[T any](ctx context.Context, fn func() (T, *midtrans.Error)) (T, *midtrans.Error, error) {
	ch := make(chan midtransResult[T], 1)
	go func() {
		resp, merr := fn()
		ch <- midtransResult[T]{resp: resp, merr: merr}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, nil, ctx.Err()
	case r := <-ch:
		return r.resp, r.merr, nil
	}
}

func classifyInitiateError(merr *midtrans.Error) error {
	code := merr.StatusCode
	if code == 0 || code >= 500 {
		return &TransportError{Op: "initiate", Err: fmt.Errorf("midtrans %d: %s", code, merr.Message)}
	}
	return &ProviderError{Code: fmt.Sprintf("http_%d", code), Message: merr.Message}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
