package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "lafaom_backend/internals/features/finance/payments/model"
	"lafaom_backend/internals/features/finance/payments/service"
	"lafaom_backend/internals/testutil"
)

func TestReconciler_AcceptedOnFirstPoll(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := createPending(t, env)
	env.Gateway.CheckStatusFn = func(ctx context.Context, id string) (service.GatewayStatus, error) {
		return service.GatewayAccepted, nil
	}
	r := service.NewReconciler(env.Svc)

	// belum jatuh tempo
	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Claimed)

	env.Clock.Advance(15 * time.Second)
	sum, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.PassSummary{Claimed: 1, Resolved: 1}, sum)

	stored, err := env.Svc.GetStatus(ctx, rec.PaymentTransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusAccepted, stored.PaymentStatus)

	env.Clock.Advance(15 * time.Second)
	sum, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Claimed)
	assert.Equal(t, 1, env.Gateway.CheckCalls(rec.PaymentTransactionID))
}

func TestReconciler_ExpiresAfterTimeout(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := createPending(t, env)
	r := service.NewReconciler(env.Svc)

	for i := 1; i <= 4; i++ {
		env.Clock.Advance(60 * time.Second)
		sum, err := r.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, service.PassSummary{Claimed: 1, Rescheduled: 1}, sum, "poll %d", i)

		task, err := env.Repo.FindTaskByPaymentID(ctx, rec.PaymentID)
		require.NoError(t, err)
		assert.Equal(t, i, task.VerificationTaskAttempts)
		assert.Nil(t, task.VerificationTaskLeaseOwner)
	}

	// jadwal terakhir dipotong di batas 5 menit
	task, err := env.Repo.FindTaskByPaymentID(ctx, rec.PaymentID)
	require.NoError(t, err)
	deadline := task.VerificationTaskCreatedAt.Add(5 * time.Minute)
	assert.False(t, task.VerificationTaskNextCheckAt.After(deadline))

	env.Clock.Advance(60 * time.Second)
	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.PassSummary{Claimed: 1, Expired: 1}, sum)

	stored, err := env.Svc.GetStatus(ctx, rec.PaymentTransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusExpired, stored.PaymentStatus)
	assert.Equal(t, 5, env.Gateway.CheckCalls(rec.PaymentTransactionID))

	task, err = env.Repo.FindTaskByPaymentID(ctx, rec.PaymentID)
	require.NoError(t, err)
	assert.True(t, task.VerificationTaskRetired)
}

func TestReconciler_TransportErrorsDoNotExpireEarly(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := createPending(t, env)
	env.Gateway.CheckStatusFn = func(ctx context.Context, id string) (service.GatewayStatus, error) {
		return "", testutil.ErrGatewayDown
	}
	r := service.NewReconciler(env.Svc)

	for i := 0; i < 19; i++ {
		env.Clock.Advance(15 * time.Second)
		sum, err := r.RunOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, sum.Rescheduled, "poll %d", i+1)
	}

	stored, err := env.Svc.GetStatus(ctx, rec.PaymentTransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, stored.PaymentStatus)

	task, err := env.Repo.FindTaskByPaymentID(ctx, rec.PaymentID)
	require.NoError(t, err)
	require.NotNil(t, task.VerificationTaskLastError)
	assert.Contains(t, *task.VerificationTaskLastError, "connection refused")

	// menit ke-5
	env.Clock.Advance(15 * time.Second)
	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Expired)
}

func TestReconciler_LateAcceptanceBeatsExpiry(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := createPending(t, env)
	env.Gateway.CheckStatusFn = func(ctx context.Context, id string) (service.GatewayStatus, error) {
		return service.GatewayAccepted, nil
	}

	// worker mati selama 10 menit, task baru diambil setelah timeout
	env.Clock.Advance(10 * time.Minute)
	sum, err := service.NewReconciler(env.Svc).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Resolved)

	stored, err := env.Svc.GetStatus(ctx, rec.PaymentTransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusAccepted, stored.PaymentStatus)
}

func TestReconciler_MaxAttempts(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := createPending(t, env)
	env.Svc.Config.MaxAttempts = 3
	r := service.NewReconciler(env.Svc)

	for i := 0; i < 2; i++ {
		env.Clock.Advance(15 * time.Second)
		sum, err := r.RunOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, sum.Rescheduled)
	}

	env.Clock.Advance(15 * time.Second)
	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Expired)

	stored, err := env.Svc.GetStatus(ctx, rec.PaymentTransactionID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusExpired, stored.PaymentStatus)
}

func TestReconciler_ConcurrentPassesClaimOnce(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()

	var recs []*model.PaymentRecord
	for i := 0; i < 8; i++ {
		recs = append(recs, createPending(t, env))
	}
	env.Clock.Advance(15 * time.Second)

	var (
		mu      sync.Mutex
		claimed int
		wg      sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sum, err := service.NewReconciler(env.Svc).RunOnce(ctx)
			assert.NoError(t, err)
			mu.Lock()
			claimed += sum.Claimed
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(recs), claimed)
	for _, rec := range recs {
		assert.Equal(t, 1, env.Gateway.CheckCalls(rec.PaymentTransactionID), rec.PaymentTransactionID)
	}
}

func TestReconciler_ReclaimsAfterLeaseExpiry(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := createPending(t, env)
	env.Clock.Advance(15 * time.Second)

	// worker lain claim lalu crash tanpa reschedule
	tasks, err := env.Repo.ClaimDue(ctx, "crashed-worker:0001", env.Clock.Now(), env.Svc.Config.LeaseTTL, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	r := service.NewReconciler(env.Svc)
	sum, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sum.Claimed)

	env.Clock.Advance(env.Svc.Config.LeaseTTL + time.Second)
	sum, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Claimed)
	assert.Equal(t, 1, sum.Rescheduled)
	assert.Equal(t, 1, env.Gateway.CheckCalls(rec.PaymentTransactionID))
}

func TestReconciler_RetiresTaskOfTerminalRecord(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	rec := createPending(t, env)

	// record diubah di luar jalur transisi, task masih aktif
	require.NoError(t, env.DB.Model(&model.PaymentRecord{}).
		Where("payment_id = ?", rec.PaymentID).
		Update("payment_status", model.PaymentStatusRefused).Error)

	env.Clock.Advance(15 * time.Second)
	sum, err := service.NewReconciler(env.Svc).RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, service.PassSummary{Claimed: 1, Retired: 1}, sum)
	assert.Zero(t, env.Gateway.CheckCalls(rec.PaymentTransactionID))

	task, err := env.Repo.FindTaskByPaymentID(ctx, rec.PaymentID)
	require.NoError(t, err)
	assert.True(t, task.VerificationTaskRetired)
}

func TestReconciler_StartRejectsBadSchedule(t *testing.T) {
	env := testutil.NewEnv(t)

	_, err := service.NewReconciler(env.Svc).Start(context.Background(), "every now and then")
	assert.Error(t, err)

	c, err := service.NewReconciler(env.Svc).Start(context.Background(), "@every 1h")
	require.NoError(t, err)
	<-c.Stop().Done()
}
