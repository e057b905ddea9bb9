package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"go.uber.org/zap"

	"lafaom_backend/internals/configs"
	database "lafaom_backend/internals/databases"
	"lafaom_backend/internals/features/finance/payments/repository"
	"lafaom_backend/internals/features/finance/payments/service"
	helper "lafaom_backend/internals/helpers"
	middlewares "lafaom_backend/internals/middlewares"
	routes "lafaom_backend/internals/route"
)

func main() {
	envSource, envErr := configs.LoadEnv()

	log := configs.NewLogger()
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Warn("⚠️ Tidak menemukan .env file, menggunakan ENV dari sistem", zap.Error(envErr))
	} else {
		log.Info("✅ ENV dimuat", zap.String("source", envSource))
	}

	paymentCfg := configs.LoadPaymentConfig(log)

	app := fiber.New(fiber.Config{
		// 🚀 JSON super cepat
		JSONEncoder:             sonic.Marshal,
		JSONDecoder:             sonic.Unmarshal,
		DisableStartupMessage:   true,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          []string{"0.0.0.0/0"},
		ErrorHandler:            helper.FromFiberError,
	})

	// ⚙️ middleware dasar + performa
	app.Use(compress.New(compress.Config{Level: compress.LevelDefault}))
	// request ctx harus cukup untuk satu panggilan gateway di return handler
	app.Use(middlewares.RequestID(log, paymentCfg.GatewayTimeout+5*time.Second))
	middlewares.SetupMiddlewares(app, log)

	// 🔌 DB connect + pool + warm-up
	if err := database.ConnectDB(log); err != nil {
		log.Fatal("❌ Gagal konek DB", zap.Error(err))
	}
	database.TunePool(log)
	if configs.GetEnv("DB_AUTO_MIGRATE") == "true" {
		if err := database.Migrate(database.DB); err != nil {
			log.Fatal("❌ Migrasi gagal", zap.Error(err))
		}
	}
	database.WarmUpQueries(log)

	// ✅ Payments: store + gateway + service
	repo := repository.NewPaymentRepository(database.DB)
	gateway := service.NewMidtransGateway(paymentCfg.MidtransServerKey, paymentCfg.MidtransUseProd, log)
	paymentSvc := service.NewPaymentService(repo, gateway, paymentCfg, log)
	if eff := paymentSvc.EffectiveCurrencies(); len(eff) < len(paymentCfg.Currencies) {
		log.Warn("sebagian PAYMENT_CURRENCIES tidak didukung gateway, akan ditolak saat create",
			zap.Strings("configured", paymentCfg.Currencies), zap.Strings("effective", eff))
	}

	// ⏱ worker rekonsiliasi setelah DB siap
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	var stopCron func() context.Context
	if paymentCfg.WorkerEnabled {
		c, err := service.NewReconciler(paymentSvc).Start(workerCtx, paymentCfg.WorkerSchedule)
		if err != nil {
			log.Fatal("❌ Gagal start worker", zap.Error(err))
		}
		stopCron = c.Stop
	}

	// ✅ Routes
	routes.SetupRoutes(app, paymentSvc, repo, log)

	// 🔒 Keep-Alive & timeout koneksi server
	app.Server().ReadTimeout = 15 * time.Second
	app.Server().WriteTimeout = 30 * time.Second
	app.Server().IdleTimeout = 90 * time.Second

	port := configs.GetEnv("PORT", "3000")

	go func() {
		log.Info("✅ Listening", zap.String("port", port))
		if err := app.Listen("0.0.0.0:" + port); err != nil {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown: worker dulu (tunggu pass berjalan), lalu HTTP, lalu pool DB
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	if stopCron != nil {
		done := stopCron()
		select {
		case <-done.Done():
		case <-time.After(paymentCfg.LeaseTTL):
			log.Warn("worker pass still running, cancelling")
		}
	}
	stopWorker()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)

	if err := database.Close(); err != nil {
		log.Warn("close db", zap.Error(err))
	}
}
