package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	model "lafaom_backend/internals/features/finance/payments/model"
	"lafaom_backend/internals/features/finance/payments/repository"
)

type taskOutcome int

const (
	outcomeRescheduled taskOutcome = iota
	outcomeResolved
	outcomeExpired
	outcomeRetired
	outcomeLeaseLost
	outcomeFailed
)

// PassSummary: ringkasan satu putaran worker.
type PassSummary struct {
	Claimed     int
	Resolved    int
	Expired     int
	Rescheduled int
	Retired     int
	LeaseLost   int
	Failed      int
}

func (p *PassSummary) add(o taskOutcome) {
	switch o {
	case outcomeResolved:
		p.Resolved++
	case outcomeExpired:
		p.Expired++
	case outcomeRescheduled:
		p.Rescheduled++
	case outcomeRetired:
		p.Retired++
	case outcomeLeaseLost:
		p.LeaseLost++
	default:
		p.Failed++
	}
}

// Reconciler mengambil task yang jatuh tempo, cek gateway, lalu
// menyelesaikan (terminal / EXPIRED) atau menjadwalkan ulang.
type Reconciler struct {
	svc      *PaymentService
	log      *zap.Logger
	workerID string
}

func NewReconciler(svc *PaymentService) *Reconciler {
	host, _ := os.Hostname()
	if host == "" {
		host = "worker"
	}
	return &Reconciler{
		svc:      svc,
		log:      svc.Log.Named("reconciler"),
		workerID: fmt.Sprintf("%s-%d", host, os.Getpid()),
	}
}

// RunOnce menjalankan satu pass. Error per task hanya di-log; task yang gagal
// tetap memegang lease sampai kadaluarsa lalu jatuh tempo lagi.
func (r *Reconciler) RunOnce(ctx context.Context) (PassSummary, error) {
	cfg := r.svc.Config
	owner := r.workerID + ":" + uuid.NewString()[:8]

	tasks, err := r.svc.Store.ClaimDue(ctx, owner, r.svc.Now(), cfg.LeaseTTL, cfg.BatchSize)
	if err != nil {
		return PassSummary{}, err
	}
	summary := PassSummary{Claimed: len(tasks)}
	if len(tasks) == 0 {
		return summary, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(cfg.Concurrency)
	for _, t := range tasks {
		g.Go(func() error {
			o := r.process(ctx, owner, t)
			mu.Lock()
			summary.add(o)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	r.log.Info("[RECONCILE] pass done",
		zap.Int("claimed", summary.Claimed),
		zap.Int("resolved", summary.Resolved),
		zap.Int("expired", summary.Expired),
		zap.Int("rescheduled", summary.Rescheduled),
		zap.Int("retired", summary.Retired),
		zap.Int("lease_lost", summary.LeaseLost),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func (r *Reconciler) process(ctx context.Context, owner string, task model.VerificationTask) taskOutcome {
	cfg := r.svc.Config
	log := r.log.With(
		zap.String("task_id", task.VerificationTaskID.String()),
		zap.Int("attempt", task.VerificationTaskAttempts+1),
	)

	rec, err := r.svc.Store.FindByID(ctx, task.VerificationTaskPaymentID)
	if err != nil {
		log.Error("load payment for task failed", zap.Error(err))
		return outcomeFailed
	}
	log = log.With(zap.String("transaction_id", rec.PaymentTransactionID))

	// record sudah terminal tapi task belum retired: bersihkan saja
	if rec.PaymentStatus.IsTerminal() {
		if err := r.svc.Store.Retire(ctx, task.VerificationTaskID, r.svc.Now()); err != nil {
			log.Error("retire task failed", zap.Error(err))
			return outcomeFailed
		}
		return outcomeRetired
	}

	st, checkErr := r.svc.checkStatus(ctx, rec.PaymentTransactionID)
	if checkErr == nil && st != GatewayPending {
		_, moved, err := r.svc.commit(ctx, rec, st.Observed(), "worker")
		if err != nil {
			log.Error("apply gateway status failed", zap.String("observed", string(st)), zap.Error(err))
			return outcomeFailed
		}
		if !moved {
			return outcomeRetired
		}
		return outcomeResolved
	}

	now := r.svc.Now()
	attempt := task.VerificationTaskAttempts + 1
	timedOut := task.Age(now) >= cfg.Timeout
	exhausted := cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts

	if timedOut || exhausted {
		_, moved, err := r.svc.commit(ctx, rec, model.PaymentStatusExpired, "worker")
		if err != nil {
			log.Error("expire payment failed", zap.Error(err))
			return outcomeFailed
		}
		log.Info("payment expired",
			zap.Duration("age", task.Age(now)),
			zap.Bool("max_attempts_reached", exhausted),
			zap.Bool("changed", moved))
		if !moved {
			return outcomeRetired
		}
		return outcomeExpired
	}

	var lastErr *string
	if checkErr != nil {
		msg := checkErr.Error()
		lastErr = &msg
		log.Warn("status check failed, will retry", zap.Error(checkErr))
	}

	// jadwal berikutnya tidak melewati batas timeout
	next := now.Add(cfg.PollInterval)
	if deadline := task.VerificationTaskCreatedAt.Add(cfg.Timeout); next.After(deadline) {
		next = deadline
	}
	if err := r.svc.Store.Reschedule(ctx, task.VerificationTaskID, owner, next, now, lastErr); err != nil {
		if errors.Is(err, repository.ErrLeaseLost) {
			log.Info("task taken over before reschedule")
			return outcomeLeaseLost
		}
		log.Error("reschedule failed, task returns after lease expiry", zap.Error(err))
		return outcomeFailed
	}
	return outcomeRescheduled
}

/* =========================================================
   Cron
========================================================= */

// Start menjadwalkan RunOnce dengan cron. Pass yang masih jalan tidak ditumpuk.
// Stop() pada cron yang dikembalikan menunggu pass terakhir selesai.
func (r *Reconciler) Start(ctx context.Context, spec string) (*cron.Cron, error) {
	clog := cronLogger{r.log.Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	if _, err := c.AddFunc(spec, func() {
		// satu pass tidak boleh lebih lama dari lease yang dipegang
		pctx, cancel := context.WithTimeout(ctx, r.svc.Config.LeaseTTL)
		defer cancel()
		if _, err := r.RunOnce(pctx); err != nil {
			r.log.Error("[RECONCILE] pass failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule reconciler %q: %w", spec, err)
	}

	c.Start()
	r.log.Info("[RECONCILE] worker started", zap.String("schedule", spec), zap.String("worker_id", r.workerID))
	return c, nil
}

// cronLogger meneruskan log robfig/cron ke zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
