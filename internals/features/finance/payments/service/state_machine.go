package service

import (
	"time"

	model "lafaom_backend/internals/features/finance/payments/model"
)

/* =========================================================
   State machine
   PENDING -> ACCEPTED | REFUSED | EXPIRED, tidak ada jalan balik.
========================================================= */

// Apply mengembalikan record setelah status observed diterapkan.
// transitioned=false berarti tidak ada yang perlu disimpan: record sudah terminal
// atau observasi masih PENDING.
func Apply(rec model.PaymentRecord, observed model.PaymentStatus, now time.Time) (model.PaymentRecord, bool) {
	if rec.PaymentStatus.IsTerminal() || !observed.IsTerminal() {
		return rec, false
	}
	rec.PaymentStatus = observed
	rec.PaymentUpdatedAt = now
	resolved := now
	rec.PaymentResolvedAt = &resolved
	return rec, true
}

// Expire adalah transisi paksa ketika umur task sudah melewati timeout.
func Expire(rec model.PaymentRecord, now time.Time) (model.PaymentRecord, bool) {
	return Apply(rec, model.PaymentStatusExpired, now)
}
