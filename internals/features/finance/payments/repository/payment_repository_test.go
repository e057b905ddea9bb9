package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	model "lafaom_backend/internals/features/finance/payments/model"
	"lafaom_backend/internals/features/finance/payments/repository"
	"lafaom_backend/internals/testutil"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, repo *repository.PaymentRepository, txID string) (*model.PaymentRecord, *model.VerificationTask) {
	t.Helper()
	rec := &model.PaymentRecord{
		PaymentID:            uuid.New(),
		PaymentTransactionID: txID,
		PaymentUserID:        uuid.New(),
		PaymentAmount:        decimal.RequireFromString("75000"),
		PaymentCurrency:      "XAF",
		PaymentType:          model.PaymentTypeInscription,
		PaymentStatus:        model.PaymentStatusPending,
		PaymentNotifyURL:     "https://api.example.test/n",
		PaymentReturnURL:     "https://api.example.test/r/" + txID,
		PaymentCreatedAt:     t0,
		PaymentUpdatedAt:     t0,
	}
	task := &model.VerificationTask{
		VerificationTaskID:          uuid.New(),
		VerificationTaskNextCheckAt: t0.Add(15 * time.Second),
		VerificationTaskCreatedAt:   t0,
		VerificationTaskUpdatedAt:   t0,
	}
	require.NoError(t, repo.CreateWithTask(context.Background(), rec, task))
	return rec, task
}

func TestCreateWithTask_DuplicateTransactionID(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	seed(t, repo, "TX-1")

	rec := &model.PaymentRecord{
		PaymentID:            uuid.New(),
		PaymentTransactionID: "TX-1",
		PaymentUserID:        uuid.New(),
		PaymentAmount:        decimal.NewFromInt(1),
		PaymentCurrency:      "EUR",
		PaymentType:          model.PaymentTypeOther,
		PaymentStatus:        model.PaymentStatusPending,
		PaymentCreatedAt:     t0,
		PaymentUpdatedAt:     t0,
	}
	task := &model.VerificationTask{VerificationTaskID: uuid.New(), VerificationTaskNextCheckAt: t0, VerificationTaskCreatedAt: t0, VerificationTaskUpdatedAt: t0}

	err := repo.CreateWithTask(context.Background(), rec, task)
	assert.ErrorIs(t, err, repository.ErrDuplicateTransaction)

	// task tidak ikut tersimpan
	_, err = repo.FindTaskByPaymentID(context.Background(), rec.PaymentID)
	assert.ErrorIs(t, err, repository.ErrPaymentNotFound)
}

func TestFindByTransactionID(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	rec, _ := seed(t, repo, "TX-FIND")

	got, err := repo.FindByTransactionID(context.Background(), "TX-FIND")
	require.NoError(t, err)
	assert.Equal(t, rec.PaymentID, got.PaymentID)
	assert.True(t, got.PaymentAmount.Equal(decimal.NewFromInt(75000)))
	assert.Equal(t, model.PaymentTypeInscription, got.PaymentType)

	_, err = repo.FindByTransactionID(context.Background(), "TX-NONE")
	assert.ErrorIs(t, err, repository.ErrPaymentNotFound)
}

func TestTransitionFromPending_CompareAndSet(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	rec, task := seed(t, repo, "TX-CAS")
	now := t0.Add(time.Minute)

	moved, err := repo.TransitionFromPending(ctx, rec.PaymentID, model.PaymentStatusAccepted, now)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.TransitionFromPending(ctx, rec.PaymentID, model.PaymentStatusRefused, now.Add(time.Second))
	require.NoError(t, err)
	assert.False(t, moved)

	got, err := repo.FindByID(ctx, rec.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusAccepted, got.PaymentStatus)
	require.NotNil(t, got.PaymentResolvedAt)
	assert.True(t, now.Equal(*got.PaymentResolvedAt))

	gotTask, err := repo.FindTaskByPaymentID(ctx, rec.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, task.VerificationTaskID, gotTask.VerificationTaskID)
	assert.True(t, gotTask.VerificationTaskRetired)
	require.NotNil(t, gotTask.VerificationTaskRetiredAt)
	assert.True(t, now.Equal(*gotTask.VerificationTaskRetiredAt))
}

func TestTransitionFromPending_RejectsPendingTarget(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	rec, _ := seed(t, repo, "TX-P")

	_, err := repo.TransitionFromPending(context.Background(), rec.PaymentID, model.PaymentStatusPending, t0)
	assert.Error(t, err)
}

func TestClaimDue_LeaseAndOrdering(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	_, a := seed(t, repo, "TX-A")
	_, b := seed(t, repo, "TX-B")

	// B lebih dulu jatuh tempo
	require.NoError(t, repo.DB.Model(&model.VerificationTask{}).
		Where("verification_task_id = ?", b.VerificationTaskID).
		Update("verification_task_next_check_at", t0.Add(5*time.Second)).Error)

	tasks, err := repo.ClaimDue(ctx, "w1:aaaa", t0.Add(10*time.Second), 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, b.VerificationTaskID, tasks[0].VerificationTaskID)

	now := t0.Add(20 * time.Second)
	tasks, err = repo.ClaimDue(ctx, "w2:bbbb", now, 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1, "B masih di-lease w1")
	assert.Equal(t, a.VerificationTaskID, tasks[0].VerificationTaskID)
	require.NotNil(t, tasks[0].VerificationTaskLeaseOwner)
	assert.Equal(t, "w2:bbbb", *tasks[0].VerificationTaskLeaseOwner)

	// lease w1 habis di t0+40s
	tasks, err = repo.ClaimDue(ctx, "w3:cccc", t0.Add(41*time.Second), 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, b.VerificationTaskID, tasks[0].VerificationTaskID)
}

func TestClaimDue_RespectsLimitAndRetired(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	for _, id := range []string{"TX-1", "TX-2", "TX-3"} {
		seed(t, repo, id)
	}
	retiredRec, _ := seed(t, repo, "TX-4")
	_, err := repo.TransitionFromPending(ctx, retiredRec.PaymentID, model.PaymentStatusExpired, t0)
	require.NoError(t, err)

	now := t0.Add(time.Minute)
	first, err := repo.ClaimDue(ctx, "w1:0001", now, 30*time.Second, 2)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	rest, err := repo.ClaimDue(ctx, "w2:0002", now, 30*time.Second, 10)
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestReschedule(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	_, task := seed(t, repo, "TX-R")
	now := t0.Add(15 * time.Second)

	_, err := repo.ClaimDue(ctx, "w1:0001", now, 30*time.Second, 10)
	require.NoError(t, err)

	// owner lain tidak boleh reschedule
	err = repo.Reschedule(ctx, task.VerificationTaskID, "w9:9999", now.Add(15*time.Second), now, nil)
	assert.ErrorIs(t, err, repository.ErrLeaseLost)

	msg := "gateway check_status: timeout"
	require.NoError(t, repo.Reschedule(ctx, task.VerificationTaskID, "w1:0001", now.Add(15*time.Second), now, &msg))

	got, err := repo.FindTaskByPaymentID(ctx, task.VerificationTaskPaymentID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.VerificationTaskAttempts)
	assert.True(t, now.Add(15*time.Second).Equal(got.VerificationTaskNextCheckAt))
	assert.Nil(t, got.VerificationTaskLeaseOwner)
	assert.Nil(t, got.VerificationTaskLeaseUntil)
	require.NotNil(t, got.VerificationTaskLastError)
	assert.Equal(t, msg, *got.VerificationTaskLastError)

	// lease sudah dilepas
	err = repo.Reschedule(ctx, task.VerificationTaskID, "w1:0001", now.Add(30*time.Second), now, nil)
	assert.ErrorIs(t, err, repository.ErrLeaseLost)
}

func TestListByUser(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	rec, _ := seed(t, repo, "TX-U1")
	seed(t, repo, "TX-U2")

	rows, total, err := repo.ListByUser(context.Background(), rec.PaymentUserID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, "TX-U1", rows[0].PaymentTransactionID)
}

func TestStats(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	a, _ := seed(t, repo, "TX-S1")
	b, _ := seed(t, repo, "TX-S2")
	seed(t, repo, "TX-S3")

	for _, id := range []uuid.UUID{a.PaymentID, b.PaymentID} {
		_, err := repo.TransitionFromPending(ctx, id, model.PaymentStatusAccepted, t0)
		require.NoError(t, err)
	}

	st, err := repo.Stats(ctx)
	require.NoError(t, err)

	counts := map[model.PaymentStatus]int64{}
	for _, row := range st.ByStatus {
		counts[row.Status] = row.Total
	}
	assert.Equal(t, map[model.PaymentStatus]int64{
		model.PaymentStatusAccepted: 2,
		model.PaymentStatusPending:  1,
	}, counts)

	require.Len(t, st.AcceptedAmount, 1)
	assert.Equal(t, "XAF", st.AcceptedAmount[0].Currency)
	assert.True(t, st.AcceptedAmount[0].Amount.Equal(decimal.NewFromInt(150000)))
}

func TestGatewayEvents(t *testing.T) {
	repo := repository.NewPaymentRepository(testutil.NewTestDB(t))
	ctx := context.Background()
	rec, _ := seed(t, repo, "TX-EV")
	ext := "TX-EV"

	ev := &model.PaymentGatewayEventModel{
		GatewayEventID:         uuid.New(),
		GatewayEventPaymentID:  &rec.PaymentID,
		GatewayEventProvider:   model.GatewayProviderMidtrans,
		GatewayEventExternalID: &ext,
		GatewayEventPayload:    datatypes.JSON(`{"order_id":"TX-EV"}`),
		GatewayEventStatus:     model.GatewayEventStatusReceived,
		GatewayEventReceivedAt: t0,
	}
	require.NoError(t, repo.LogGatewayEvent(ctx, ev))
	// replay dengan id sama diabaikan
	require.NoError(t, repo.LogGatewayEvent(ctx, ev))

	require.NoError(t, repo.MarkGatewayEvent(ctx, ev.GatewayEventID, model.GatewayEventStatusProcessed, "", t0.Add(time.Second)))

	got, err := repo.FindGatewayEvent(ctx, ev.GatewayEventID)
	require.NoError(t, err)
	assert.Equal(t, model.GatewayEventStatusProcessed, got.GatewayEventStatus)
	assert.Nil(t, got.GatewayEventError)
	require.NotNil(t, got.GatewayEventProcessedAt)

	rows, total, err := repo.ListGatewayEvents(ctx, repository.GatewayEventFilter{Query: "tx-ev", Status: "PROCESSED", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)

	_, total, err = repo.ListGatewayEvents(ctx, repository.GatewayEventFilter{Status: "failed", Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = repo.FindGatewayEvent(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrGatewayEventNotFound)
}
