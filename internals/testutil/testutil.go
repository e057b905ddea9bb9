// Package testutil berisi DB SQLite in-memory, jam palsu dan gateway palsu untuk test.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lafaom_backend/internals/configs"
	database "lafaom_backend/internals/databases"
	"lafaom_backend/internals/features/finance/payments/repository"
	"lafaom_backend/internals/features/finance/payments/service"
)

// NewTestDB: satu koneksi supaya database :memory: dipakai bersama semua goroutine.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

/* =========================================================
   Clock
========================================================= */

type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

/* =========================================================
   Gateway palsu
   Notifikasi: {"order_id": "...", "status": "ACCEPTED"}, proof valid = "valid-proof".
   CheckStatus menjawab status dari SetRemoteStatus (default PENDING).
========================================================= */

const ValidProof = "valid-proof"

var ErrGatewayDown = errors.New("connection refused")

type FakeNotification struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func NotificationPayload(t *testing.T, orderID string, status service.GatewayStatus) []byte {
	t.Helper()
	b, err := json.Marshal(FakeNotification{OrderID: orderID, Status: string(status)})
	require.NoError(t, err)
	return b
}

type FakeGateway struct {
	InitiateFn    func(ctx context.Context, req service.InitiateRequest) (*service.Checkout, error)
	CheckStatusFn func(ctx context.Context, transactionID string) (service.GatewayStatus, error)

	mu         sync.Mutex
	initiated  []service.InitiateRequest
	checkCalls map[string]int
	remote     map[string]service.GatewayStatus
}

// SetRemoteStatus mengatur status yang dijawab CheckStatus untuk satu transaksi.
func (g *FakeGateway) SetRemoteStatus(transactionID string, st service.GatewayStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.remote == nil {
		g.remote = map[string]service.GatewayStatus{}
	}
	g.remote[transactionID] = st
}

func (g *FakeGateway) Initiate(ctx context.Context, req service.InitiateRequest) (*service.Checkout, error) {
	g.mu.Lock()
	g.initiated = append(g.initiated, req)
	g.mu.Unlock()
	if g.InitiateFn != nil {
		return g.InitiateFn(ctx, req)
	}
	return &service.Checkout{
		TransactionID: req.TransactionID,
		PaymentURL:    "https://pay.example.test/" + req.TransactionID,
		Token:         "tok-" + req.TransactionID,
	}, nil
}

func (g *FakeGateway) CheckStatus(ctx context.Context, transactionID string) (service.GatewayStatus, error) {
	g.mu.Lock()
	if g.checkCalls == nil {
		g.checkCalls = map[string]int{}
	}
	g.checkCalls[transactionID]++
	st, ok := g.remote[transactionID]
	g.mu.Unlock()
	if g.CheckStatusFn != nil {
		return g.CheckStatusFn(ctx, transactionID)
	}
	if ok {
		return st, nil
	}
	return service.GatewayPending, nil
}

func (g *FakeGateway) VerifyNotification(payload []byte, proof string) bool {
	var n FakeNotification
	return proof == ValidProof && json.Unmarshal(payload, &n) == nil && n.OrderID != ""
}

func (g *FakeGateway) ParseNotification(payload []byte) (*service.Notification, error) {
	var n FakeNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, err
	}
	return &service.Notification{
		TransactionID: n.OrderID,
		Status:        service.GatewayStatus(n.Status),
		EventType:     n.Status,
	}, nil
}

func (g *FakeGateway) CheckCalls(transactionID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkCalls[transactionID]
}

func (g *FakeGateway) Initiated() []service.InitiateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]service.InitiateRequest(nil), g.initiated...)
}

/* =========================================================
   Service lengkap di atas SQLite
========================================================= */

type Env struct {
	DB      *gorm.DB
	Repo    *repository.PaymentRepository
	Gateway *FakeGateway
	Clock   *Clock
	Svc     *service.PaymentService
}

func TestConfig() configs.PaymentConfig {
	cfg := configs.DefaultPaymentConfig()
	cfg.PublicBaseURL = "https://api.example.test"
	cfg.TransactionPrefix = "TEST"
	cfg.GatewayTimeout = 2 * time.Second
	return cfg
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	db := NewTestDB(t)
	repo := repository.NewPaymentRepository(db)
	gw := &FakeGateway{}
	clock := NewClock()

	svc := service.NewPaymentService(repo, gw, TestConfig(), zap.NewNop())
	svc.Now = clock.Now

	return &Env{DB: db, Repo: repo, Gateway: gw, Clock: clock, Svc: svc}
}

// Notify: gateway melaporkan st untuk transaksi ini lalu mengirim notifikasi yang sah.
func (e *Env) Notify(t *testing.T, transactionID string, st service.GatewayStatus) (service.NotificationOutcome, error) {
	t.Helper()
	e.Gateway.SetRemoteStatus(transactionID, st)
	return e.Svc.HandleNotification(context.Background(), NotificationPayload(t, transactionID, st), ValidProof)
}
