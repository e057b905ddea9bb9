package model

import (
	"time"

	"github.com/google/uuid"
)

/*
  payment_verification_tasks = antrian verifikasi yang tahan restart.
  - Satu task per payment (unique payment_id), dibuat bersama record-nya
  - Worker meng-claim task lewat lease (owner + until); lease kadaluarsa = task bisa diambil lagi
  - Retired = sudah terminal, tidak pernah di-claim lagi
*/

type VerificationTask struct {
	VerificationTaskID        uuid.UUID `gorm:"column:verification_task_id;type:uuid;primaryKey" json:"verification_task_id"`
	VerificationTaskPaymentID uuid.UUID `gorm:"column:verification_task_payment_id;type:uuid;not null;uniqueIndex:uq_verification_tasks_payment" json:"verification_task_payment_id"`

	VerificationTaskAttempts    int       `gorm:"column:verification_task_attempts;not null;default:0" json:"verification_task_attempts"`
	VerificationTaskNextCheckAt time.Time `gorm:"column:verification_task_next_check_at;not null;index:idx_verification_tasks_due,priority:2" json:"verification_task_next_check_at"`

	VerificationTaskRetired   bool       `gorm:"column:verification_task_retired;not null;default:false;index:idx_verification_tasks_due,priority:1" json:"verification_task_retired"`
	VerificationTaskRetiredAt *time.Time `gorm:"column:verification_task_retired_at" json:"verification_task_retired_at,omitempty"`

	// Lease / claim
	VerificationTaskLeaseOwner *string    `gorm:"column:verification_task_lease_owner;type:varchar(120)" json:"verification_task_lease_owner,omitempty"`
	VerificationTaskLeaseUntil *time.Time `gorm:"column:verification_task_lease_until" json:"verification_task_lease_until,omitempty"`

	VerificationTaskLastCheckedAt *time.Time `gorm:"column:verification_task_last_checked_at" json:"verification_task_last_checked_at,omitempty"`
	VerificationTaskLastError     *string    `gorm:"column:verification_task_last_error;type:text" json:"verification_task_last_error,omitempty"`

	// Jangkar untuk hitung umur (timeout 5 menit)
	VerificationTaskCreatedAt time.Time `gorm:"column:verification_task_created_at;not null" json:"verification_task_created_at"`
	VerificationTaskUpdatedAt time.Time `gorm:"column:verification_task_updated_at;not null" json:"verification_task_updated_at"`
}

func (VerificationTask) TableName() string {
	return "payment_verification_tasks"
}

// Age dihitung dari pembuatan task, bukan dari percobaan terakhir.
func (t VerificationTask) Age(now time.Time) time.Duration {
	return now.Sub(t.VerificationTaskCreatedAt)
}
