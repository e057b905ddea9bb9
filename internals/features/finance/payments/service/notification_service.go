package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	model "lafaom_backend/internals/features/finance/payments/model"
	"lafaom_backend/internals/features/finance/payments/repository"
)

const (
	ReasonApplied          = "applied"
	ReasonAlreadyTerminal  = "already_terminal"
	ReasonStillPending     = "still_pending"
	ReasonNotFound         = "not_found"
	ReasonInvalidSignature = "invalid_signature"
)

type NotificationOutcome struct {
	Applied       bool
	Reason        string
	TransactionID string
	Status        model.PaymentStatus
}

/* =========================================================
   Notification (webhook)
========================================================= */

// HandleNotification: verifikasi proof, cari record, cek ulang status ke gateway,
// lalu terapkan lewat state machine. Status di payload tidak pernah dipakai langsung.
// Duplikat / notifikasi telat untuk record terminal adalah no-op, bukan error.
func (s *PaymentService) HandleNotification(ctx context.Context, payload []byte, proof string) (NotificationOutcome, error) {
	if !s.Gateway.VerifyNotification(payload, proof) {
		s.Log.Warn("notification rejected", zap.String("reason", ReasonInvalidSignature))
		return NotificationOutcome{Reason: ReasonInvalidSignature}, ErrAuthentication
	}

	n, err := s.Gateway.ParseNotification(payload)
	if err != nil {
		if errors.Is(err, ErrAuthentication) {
			s.Log.Warn("notification rejected", zap.String("reason", ReasonInvalidSignature), zap.Error(err))
			return NotificationOutcome{Reason: ReasonInvalidSignature}, err
		}
		return NotificationOutcome{}, fmt.Errorf("parse notification: %w", err)
	}
	out := NotificationOutcome{TransactionID: n.TransactionID}
	log := s.Log.With(
		zap.String("transaction_id", n.TransactionID),
		zap.String("event", n.EventType),
		zap.String("observed", string(n.Status)),
	)

	rec, err := s.Store.FindByTransactionID(ctx, n.TransactionID)
	var paymentID *uuid.UUID
	if err == nil {
		paymentID = &rec.PaymentID
	}
	evID := s.logEvent(ctx, n, payload, proof, paymentID)

	if err != nil {
		if errors.Is(err, repository.ErrPaymentNotFound) {
			log.Warn("notification for unknown transaction")
			s.markEvent(ctx, evID, model.GatewayEventStatusIgnored, "payment not found")
			out.Reason = ReasonNotFound
			return out, fmt.Errorf("%w: %s", ErrNotFound, n.TransactionID)
		}
		s.markEvent(ctx, evID, model.GatewayEventStatusFailed, err.Error())
		return out, err
	}

	if rec.PaymentStatus.IsTerminal() {
		out.Status = rec.PaymentStatus
		out.Reason = ReasonAlreadyTerminal
		log.Info("notification handled", zap.String("reason", out.Reason), zap.String("status", string(rec.PaymentStatus)))
		s.markEvent(ctx, evID, model.GatewayEventStatusIgnored, "")
		return out, nil
	}

	// signature hanya menutup order_id+status_code+gross_amount, status diambil dari gateway
	st, err := s.checkStatus(ctx, n.TransactionID)
	if err != nil {
		log.Warn("notification re-check failed, left for worker", zap.Error(err))
		out.Status = rec.PaymentStatus
		out.Reason = ReasonStillPending
		s.markEvent(ctx, evID, model.GatewayEventStatusReceived, err.Error())
		return out, nil
	}
	if st != n.Status {
		log.Warn("notification status differs from gateway", zap.String("gateway", string(st)))
	}

	cur, moved, err := s.commit(ctx, rec, st.Observed(), "notification")
	if err != nil {
		s.markEvent(ctx, evID, model.GatewayEventStatusFailed, err.Error())
		return out, err
	}

	out.Applied = moved
	out.Status = cur.PaymentStatus
	switch {
	case moved:
		out.Reason = ReasonApplied
	case cur.PaymentStatus.IsTerminal():
		out.Reason = ReasonAlreadyTerminal
	default:
		out.Reason = ReasonStillPending
	}
	log.Info("notification handled", zap.String("reason", out.Reason), zap.String("status", string(cur.PaymentStatus)))

	evStatus := model.GatewayEventStatusProcessed
	if !moved {
		evStatus = model.GatewayEventStatusIgnored
	}
	s.markEvent(ctx, evID, evStatus, "")
	return out, nil
}

// logEvent: audit log gagal tidak boleh menghalangi rekonsiliasi.
func (s *PaymentService) logEvent(ctx context.Context, n *Notification, payload []byte, proof string, paymentID *uuid.UUID) uuid.UUID {
	ev := &model.PaymentGatewayEventModel{
		GatewayEventID:          uuid.New(),
		GatewayEventPaymentID:   paymentID,
		GatewayEventProvider:    model.GatewayProviderMidtrans,
		GatewayEventType:        strPtr(n.EventType),
		GatewayEventExternalID:  strPtr(n.TransactionID),
		GatewayEventExternalRef: strPtr(n.ExternalRef),
		GatewayEventPayload:     datatypes.JSON(payload),
		GatewayEventSignature:   strPtr(proof),
		GatewayEventStatus:      model.GatewayEventStatusReceived,
		GatewayEventReceivedAt:  s.Now(),
	}
	if err := s.Store.LogGatewayEvent(ctx, ev); err != nil {
		s.Log.Warn("log gateway event failed", zap.String("transaction_id", n.TransactionID), zap.Error(err))
		return uuid.Nil
	}
	return ev.GatewayEventID
}

func (s *PaymentService) markEvent(ctx context.Context, id uuid.UUID, status model.GatewayEventStatus, errMsg string) {
	if id == uuid.Nil {
		return
	}
	if err := s.Store.MarkGatewayEvent(ctx, id, status, errMsg, s.Now()); err != nil {
		s.Log.Warn("mark gateway event failed", zap.String("event_id", id.String()), zap.Error(err))
	}
}

/* =========================================================
   Return (redirect user dari halaman pembayaran)
========================================================= */

// HandleReturn mengecek gateway secara sinkron. Gangguan gateway tidak dilempar ke user:
// status tersimpan yang dikembalikan dan task di antrian dibiarkan untuk worker.
func (s *PaymentService) HandleReturn(ctx context.Context, transactionID string) (*model.PaymentRecord, error) {
	rec, err := s.Store.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, s.mapNotFound(err, transactionID)
	}
	if rec.PaymentStatus.IsTerminal() {
		return rec, nil
	}

	st, err := s.checkStatus(ctx, transactionID)
	if err != nil {
		s.Log.Warn("return check failed, keeping stored status",
			zap.String("transaction_id", transactionID), zap.Error(err))
		return rec, nil
	}

	cur, _, err := s.commit(ctx, rec, st.Observed(), "return")
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
