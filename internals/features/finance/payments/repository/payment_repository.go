package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	model "lafaom_backend/internals/features/finance/payments/model"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrDuplicateTransaction = errors.New("transaction id already exists")
	// ErrLeaseLost: task sudah di-claim ulang atau sudah retired oleh penulis lain.
	ErrLeaseLost = errors.New("verification task lease lost")
)

type PaymentRepository struct {
	DB *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{DB: db}
}

/* =======================================================================
   Payment records
======================================================================= */

// CreateWithTask menyimpan record + task verifikasinya dalam satu transaksi.
func (r *PaymentRepository) CreateWithTask(ctx context.Context, rec *model.PaymentRecord, task *model.VerificationTask) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}
		task.VerificationTaskPaymentID = rec.PaymentID
		return tx.Create(task).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, rec.PaymentTransactionID)
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*model.PaymentRecord, error) {
	var rec model.PaymentRecord
	if err := r.DB.WithContext(ctx).
		First(&rec, "payment_transaction_id = ?", transactionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment %s: %w", transactionID, err)
	}
	return &rec, nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.PaymentRecord, error) {
	var rec model.PaymentRecord
	if err := r.DB.WithContext(ctx).First(&rec, "payment_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find payment %s: %w", id, err)
	}
	return &rec, nil
}

// TransitionFromPending adalah compare-and-set PENDING -> to.
// Hanya satu penulis yang mendapat true; task milik payment ikut di-retire di transaksi yang sama.
func (r *PaymentRepository) TransitionFromPending(ctx context.Context, paymentID uuid.UUID, to model.PaymentStatus, now time.Time) (bool, error) {
	if !to.IsTerminal() {
		return false, fmt.Errorf("transition to non-terminal status %q", to)
	}

	moved := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PaymentRecord{}).
			Where("payment_id = ? AND payment_status = ?", paymentID, model.PaymentStatusPending).
			Updates(map[string]any{
				"payment_status":      to,
				"payment_updated_at":  now,
				"payment_resolved_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		moved = true

		return tx.Model(&model.VerificationTask{}).
			Where("verification_task_payment_id = ? AND verification_task_retired = ?", paymentID, false).
			Updates(retireColumns(now)).Error
	})
	if err != nil {
		return false, fmt.Errorf("transition payment %s to %s: %w", paymentID, to, err)
	}
	return moved, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.PaymentRecord, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.PaymentRecord{}).Where("payment_user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count user payments: %w", err)
	}

	var rows []model.PaymentRecord
	if err := q.Order("payment_created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list user payments: %w", err)
	}
	return rows, total, nil
}

/* =======================================================================
   Verification queue
======================================================================= */

// ClaimDue mengambil sampai limit task yang jatuh tempo dan memasang lease milik owner.
// Owner harus unik per pass supaya hasil claim bisa dibaca ulang tanpa membandingkan timestamp.
func (r *PaymentRepository) ClaimDue(ctx context.Context, owner string, now time.Time, leaseTTL time.Duration, limit int) ([]model.VerificationTask, error) {
	var claimed []model.VerificationTask

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.VerificationTask{}).
			Where("verification_task_retired = ? AND verification_task_next_check_at <= ?", false, now).
			Where("(verification_task_lease_until IS NULL OR verification_task_lease_until < ?)", now).
			Order("verification_task_next_check_at ASC").
			Limit(limit)
		// Postgres: lewati baris yang sedang di-claim instance lain
		if tx.Dialector.Name() == "postgres" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var ids []uuid.UUID
		if err := q.Pluck("verification_task_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		// Update bersyarat: baris yang diambil penulis lain di antara select dan update tidak ikut
		if err := tx.Model(&model.VerificationTask{}).
			Where("verification_task_id IN ? AND verification_task_retired = ?", ids, false).
			Where("(verification_task_lease_until IS NULL OR verification_task_lease_until < ?)", now).
			Updates(map[string]any{
				"verification_task_lease_owner": owner,
				"verification_task_lease_until": now.Add(leaseTTL),
				"verification_task_updated_at":  now,
			}).Error; err != nil {
			return err
		}

		return tx.Where("verification_task_lease_owner = ? AND verification_task_retired = ?", owner, false).
			Order("verification_task_next_check_at ASC").
			Find(&claimed).Error
	})
	if err != nil {
		return nil, fmt.Errorf("claim due tasks: %w", err)
	}
	return claimed, nil
}

// Reschedule menaikkan attempts, mendorong next check, dan melepas lease.
func (r *PaymentRepository) Reschedule(ctx context.Context, taskID uuid.UUID, owner string, nextCheckAt, now time.Time, lastErr *string) error {
	res := r.DB.WithContext(ctx).Model(&model.VerificationTask{}).
		Where("verification_task_id = ? AND verification_task_lease_owner = ? AND verification_task_retired = ?", taskID, owner, false).
		Updates(map[string]any{
			"verification_task_attempts":        gorm.Expr("verification_task_attempts + 1"),
			"verification_task_next_check_at":   nextCheckAt,
			"verification_task_last_checked_at": now,
			"verification_task_last_error":      lastErr,
			"verification_task_lease_owner":     nil,
			"verification_task_lease_until":     nil,
			"verification_task_updated_at":      now,
		})
	if res.Error != nil {
		return fmt.Errorf("reschedule task %s: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Retire dipakai untuk bersih-bersih task yang record-nya ternyata sudah terminal.
func (r *PaymentRepository) Retire(ctx context.Context, taskID uuid.UUID, now time.Time) error {
	if err := r.DB.WithContext(ctx).Model(&model.VerificationTask{}).
		Where("verification_task_id = ? AND verification_task_retired = ?", taskID, false).
		Updates(retireColumns(now)).Error; err != nil {
		return fmt.Errorf("retire task %s: %w", taskID, err)
	}
	return nil
}

func (r *PaymentRepository) FindTaskByPaymentID(ctx context.Context, paymentID uuid.UUID) (*model.VerificationTask, error) {
	var t model.VerificationTask
	if err := r.DB.WithContext(ctx).
		First(&t, "verification_task_payment_id = ?", paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("find task for payment %s: %w", paymentID, err)
	}
	return &t, nil
}

func retireColumns(now time.Time) map[string]any {
	return map[string]any{
		"verification_task_retired":     true,
		"verification_task_retired_at":  now,
		"verification_task_lease_owner": nil,
		"verification_task_lease_until": nil,
		"verification_task_updated_at":  now,
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
