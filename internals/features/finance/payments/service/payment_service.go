package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lafaom_backend/internals/configs"
	dto "lafaom_backend/internals/features/finance/payments/dto"
	model "lafaom_backend/internals/features/finance/payments/model"
	"lafaom_backend/internals/features/finance/payments/repository"
)

// PaymentStore adalah bagian repository yang dipakai service dan worker.
type PaymentStore interface {
	CreateWithTask(ctx context.Context, rec *model.PaymentRecord, task *model.VerificationTask) error
	FindByTransactionID(ctx context.Context, transactionID string) (*model.PaymentRecord, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.PaymentRecord, error)
	TransitionFromPending(ctx context.Context, paymentID uuid.UUID, to model.PaymentStatus, now time.Time) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PaymentRecord, int64, error)
	Stats(ctx context.Context) (*repository.PaymentStats, error)

	ClaimDue(ctx context.Context, owner string, now time.Time, leaseTTL time.Duration, limit int) ([]model.VerificationTask, error)
	Reschedule(ctx context.Context, taskID uuid.UUID, owner string, nextCheckAt, now time.Time, lastErr *string) error
	Retire(ctx context.Context, taskID uuid.UUID, now time.Time) error

	LogGatewayEvent(ctx context.Context, ev *model.PaymentGatewayEventModel) error
	MarkGatewayEvent(ctx context.Context, id uuid.UUID, status model.GatewayEventStatus, errMsg string, now time.Time) error
}

type PaymentService struct {
	Store    PaymentStore
	Gateway  Gateway
	Config   configs.PaymentConfig
	Log      *zap.Logger
	Validate *validator.Validate
	// Now bisa diganti di test
	Now func() time.Time
}

func NewPaymentService(store PaymentStore, gw Gateway, cfg configs.PaymentConfig, logger *zap.Logger) *PaymentService {
	return &PaymentService{
		Store:    store,
		Gateway:  gw,
		Config:   cfg,
		Log:      logger.Named("payments"),
		Validate: NewValidator(),
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewValidator: nama field pakai tag json, decimal.Decimal divalidasi sebagai float.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

/* =========================================================
   CreatePayment
========================================================= */

func (s *PaymentService) CreatePayment(ctx context.Context, req dto.CreatePaymentRequest) (*model.PaymentRecord, error) {
	req.Normalize()
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	now := s.Now()
	txID := GenTransactionID(s.Config.TransactionPrefix, now)
	notifyURL, returnURL := s.callbackURLs(txID)

	checkout, err := s.Gateway.Initiate(ctx, InitiateRequest{
		TransactionID: txID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Type:          model.PaymentType(req.Type),
		Description:   req.Description,
		NotifyURL:     notifyURL,
		ReturnURL:     returnURL,
	})
	if err != nil {
		s.Log.Warn("initiate failed", zap.String("transaction_id", txID), zap.Error(err))
		return nil, err
	}

	rec := &model.PaymentRecord{
		PaymentID:            uuid.New(),
		PaymentTransactionID: txID,
		PaymentUserID:        req.UserID,
		PaymentAmount:        req.Amount,
		PaymentCurrency:      req.Currency,
		PaymentType:          model.PaymentType(req.Type),
		PaymentStatus:        model.PaymentStatusPending,
		PaymentNotifyURL:     notifyURL,
		PaymentReturnURL:     returnURL,
		PaymentCreatedAt:     now,
		PaymentUpdatedAt:     now,
	}
	if req.Description != "" {
		d := req.Description
		rec.PaymentDescription = &d
	}
	if checkout != nil {
		if checkout.PaymentURL != "" {
			u := checkout.PaymentURL
			rec.PaymentCheckoutURL = &u
		}
		if checkout.Token != "" {
			t := checkout.Token
			rec.PaymentCheckoutToken = &t
		}
	}

	task := &model.VerificationTask{
		VerificationTaskID:          uuid.New(),
		VerificationTaskAttempts:    0,
		VerificationTaskNextCheckAt: now.Add(s.Config.PollInterval),
		VerificationTaskCreatedAt:   now,
		VerificationTaskUpdatedAt:   now,
	}

	if err := s.Store.CreateWithTask(ctx, rec, task); err != nil {
		// transaksi di gateway sudah ada tapi tanpa record; tidak akan pernah di-rekonsiliasi
		s.Log.Error("persist payment failed after initiate",
			zap.String("transaction_id", txID), zap.Error(err))
		return nil, err
	}

	s.Log.Info("payment created",
		zap.String("transaction_id", txID),
		zap.String("amount", rec.PaymentAmount.StringFixed(2)),
		zap.String("currency", rec.PaymentCurrency),
		zap.String("type", string(rec.PaymentType)),
	)
	return rec, nil
}

func (s *PaymentService) validateCreate(req dto.CreatePaymentRequest) error {
	fields := map[string]string{}

	if err := s.Validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return fmt.Errorf("validate create payment: %w", err)
		}
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
	}
	if _, ok := fields["amount"]; !ok && !req.Amount.Equal(req.Amount.Round(2)) {
		fields["amount"] = "max_2_decimals"
	}
	if _, ok := fields["currency"]; !ok && !s.currencyAllowed(req.Currency) {
		fields["currency"] = "unsupported"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// currencyLimiter diimplementasi gateway yang hanya menerima sebagian mata uang.
type currencyLimiter interface {
	SupportedCurrencies() []string
}

// currencyAllowed: harus ada di config dan, kalau gateway membatasi, juga didukung gateway.
func (s *PaymentService) currencyAllowed(c string) bool {
	if !containsFold(s.Config.Currencies, c) {
		return false
	}
	if cl, ok := s.Gateway.(currencyLimiter); ok {
		return containsFold(cl.SupportedCurrencies(), c)
	}
	return true
}

// EffectiveCurrencies: mata uang yang benar-benar bisa dibuat dengan gateway terpasang.
func (s *PaymentService) EffectiveCurrencies() []string {
	out := make([]string, 0, len(s.Config.Currencies))
	for _, c := range s.Config.Currencies {
		if s.currencyAllowed(c) {
			out = append(out, c)
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

// callbackURLs diturunkan dari transaction id, dipanggil sekali saat create.
func (s *PaymentService) callbackURLs(txID string) (notifyURL, returnURL string) {
	base := strings.TrimRight(s.Config.PublicBaseURL, "/")
	notifyURL = base + "/api/v1/payments/notification?ref=" + url.QueryEscape(txID)
	returnURL = base + "/api/v1/payments/return/" + url.PathEscape(txID)
	return notifyURL, returnURL
}

// GenTransactionID: PREFIX-YYYYMMDD-HHMMSS-XXXXXXXXXXXX
func GenTransactionID(prefix string, now time.Time) string {
	p := strings.ToUpper(strings.TrimSpace(prefix))
	if p == "" {
		p = "PAY"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]
	return fmt.Sprintf("%s-%s-%s", p, now.UTC().Format("20060102-150405"), suffix)
}

/* =========================================================
   Reads
========================================================= */

// GetStatus hanya membaca store, tidak pernah memanggil gateway.
func (s *PaymentService) GetStatus(ctx context.Context, transactionID string) (*model.PaymentRecord, error) {
	rec, err := s.Store.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, s.mapNotFound(err, transactionID)
	}
	return rec, nil
}

func (s *PaymentService) ListUserPayments(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PaymentRecord, int64, error) {
	return s.Store.ListByUser(ctx, userID, limit, offset)
}

func (s *PaymentService) Stats(ctx context.Context) (*dto.PaymentStatsResponse, error) {
	st, err := s.Store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := &dto.PaymentStatsResponse{
		ByStatus:       map[model.PaymentStatus]int64{},
		AcceptedAmount: map[string]decimal.Decimal{},
	}
	for _, sc := range []model.PaymentStatus{
		model.PaymentStatusPending, model.PaymentStatusAccepted,
		model.PaymentStatusRefused, model.PaymentStatusExpired,
	} {
		out.ByStatus[sc] = 0
	}
	for _, row := range st.ByStatus {
		out.ByStatus[row.Status] = row.Total
		out.Total += row.Total
	}
	for _, row := range st.AcceptedAmount {
		out.AcceptedAmount[row.Currency] = row.Amount
	}
	return out, nil
}

/* =========================================================
   Transition (satu-satunya jalur mutasi status)
========================================================= */

// commit menerapkan observed lewat state machine lalu CAS di store.
// Kalau penulis lain menang duluan, record terbaru dibaca ulang dan transitioned=false.
func (s *PaymentService) commit(ctx context.Context, rec *model.PaymentRecord, observed model.PaymentStatus, source string) (*model.PaymentRecord, bool, error) {
	now := s.Now()
	next, ok := Apply(*rec, observed, now)
	if !ok {
		return rec, false, nil
	}

	moved, err := s.Store.TransitionFromPending(ctx, rec.PaymentID, next.PaymentStatus, now)
	if err != nil {
		return rec, false, err
	}
	if !moved {
		cur, err := s.Store.FindByID(ctx, rec.PaymentID)
		if err != nil {
			return rec, false, err
		}
		s.Log.Info("transition lost to concurrent writer",
			zap.String("transaction_id", rec.PaymentTransactionID),
			zap.String("source", source),
			zap.String("wanted", string(observed)),
			zap.String("status", string(cur.PaymentStatus)),
		)
		return cur, false, nil
	}

	s.Log.Info("payment resolved",
		zap.String("transaction_id", rec.PaymentTransactionID),
		zap.String("source", source),
		zap.String("status", string(next.PaymentStatus)),
	)
	return &next, true, nil
}

// checkStatus membatasi satu panggilan gateway dengan GatewayTimeout.
// Error apa pun dari gateway diperlakukan sebagai TransportError.
func (s *PaymentService) checkStatus(ctx context.Context, transactionID string) (GatewayStatus, error) {
	cctx, cancel := context.WithTimeout(ctx, s.Config.GatewayTimeout)
	defer cancel()

	st, err := s.Gateway.CheckStatus(cctx, transactionID)
	if err != nil {
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Op: "check_status", Err: err}
		}
		return "", err
	}
	return st, nil
}

func (s *PaymentService) mapNotFound(err error, transactionID string) error {
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, transactionID)
	}
	return err
}
