package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "lafaom_backend/internals/features/finance/payments/model"
)

var ErrGatewayEventNotFound = errors.New("gateway event not found")

type GatewayEventFilter struct {
	Provider  string
	Status    string
	PaymentID *uuid.UUID
	Query     string
	Start     *time.Time
	End       *time.Time
	Limit     int
	Offset    int
}

// LogGatewayEvent tidak pernah menimpa event yang sudah ada (id sama = replay).
func (r *PaymentRepository) LogGatewayEvent(ctx context.Context, ev *model.PaymentGatewayEventModel) error {
	if ev.GatewayEventID == uuid.Nil {
		ev.GatewayEventID = uuid.New()
	}
	if err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(ev).Error; err != nil {
		return fmt.Errorf("log gateway event: %w", err)
	}
	return nil
}

func (r *PaymentRepository) MarkGatewayEvent(ctx context.Context, id uuid.UUID, status model.GatewayEventStatus, errMsg string, now time.Time) error {
	var errCol *string
	if errMsg != "" {
		errCol = &errMsg
	}
	if err := r.DB.WithContext(ctx).Model(&model.PaymentGatewayEventModel{}).
		Where("gateway_event_id = ?", id).
		Updates(map[string]any{
			"gateway_event_status":       status,
			"gateway_event_error":        errCol,
			"gateway_event_processed_at": now,
		}).Error; err != nil {
		return fmt.Errorf("mark gateway event %s: %w", id, err)
	}
	return nil
}

func (r *PaymentRepository) ListGatewayEvents(ctx context.Context, f GatewayEventFilter) ([]model.PaymentGatewayEventModel, int64, error) {
	db := r.DB.WithContext(ctx).Model(&model.PaymentGatewayEventModel{})

	if p := strings.TrimSpace(f.Provider); p != "" {
		db = db.Where("gateway_event_provider = ?", strings.ToLower(p))
	}
	if s := strings.TrimSpace(f.Status); s != "" {
		db = db.Where("gateway_event_status = ?", strings.ToLower(s))
	}
	if f.PaymentID != nil {
		db = db.Where("gateway_event_payment_id = ?", *f.PaymentID)
	}
	// cari di external_id / external_ref
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where(
			"(LOWER(COALESCE(gateway_event_external_id,'')) LIKE ? OR LOWER(COALESCE(gateway_event_external_ref,'')) LIKE ?)",
			like, like,
		)
	}
	if f.Start != nil {
		db = db.Where("gateway_event_received_at >= ?", *f.Start)
	}
	if f.End != nil {
		db = db.Where("gateway_event_received_at < ?", *f.End)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count gateway events: %w", err)
	}

	var rows []model.PaymentGatewayEventModel
	if err := db.Order("gateway_event_received_at DESC").
		Limit(f.Limit).Offset(f.Offset).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list gateway events: %w", err)
	}
	return rows, total, nil
}

func (r *PaymentRepository) FindGatewayEvent(ctx context.Context, id uuid.UUID) (*model.PaymentGatewayEventModel, error) {
	var m model.PaymentGatewayEventModel
	if err := r.DB.WithContext(ctx).First(&m, "gateway_event_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGatewayEventNotFound
		}
		return nil, fmt.Errorf("find gateway event %s: %w", id, err)
	}
	return &m, nil
}
