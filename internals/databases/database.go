package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"lafaom_backend/internals/configs"
	model "lafaom_backend/internals/features/finance/payments/model"
)

var DB *gorm.DB

func ConnectDB(logger *zap.Logger) error {
	logger.Info("🔌 Koneksi ke PostgreSQL...")

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  DSN(),
		PreferSimpleProtocol: true, // 👍 cocok untuk PgBouncer (transaction pooling)
	}), &gorm.Config{
		Logger:         configs.NewGormLogger(logger),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	DB = db
	logger.Info("✅ DB connected.")
	return nil
}

// DSN dari env DB_*; semua query di sini pendek, statement_timeout 3s.
func DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&application_name=lafaom_payments&options=-c statement_timeout=3000",
		configs.GetEnv("DB_USER"),
		configs.GetEnv("DB_PASSWORD"),
		configs.GetEnv("DB_HOST"),
		configs.GetEnv("DB_PORT"),
		configs.GetEnv("DB_NAME"),
		configs.GetEnv("DB_SSLMODE", "require"),
	)
}

func TunePool(logger *zap.Logger) {
	sqlDB, err := DB.DB()
	if err != nil {
		logger.Warn("pool tune err", zap.Error(err))
		return
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(60 * time.Second)
	sqlDB.SetConnMaxLifetime(10 * time.Minute)
}

func WarmUpQueries(logger *zap.Logger) {
	go func() {
		time.Sleep(500 * time.Millisecond) // beri waktu server naik
		if err := Ping(); err != nil {
			logger.Warn("warm-up ping err", zap.Error(err))
			return
		}
		// query due-set worker paling sering jalan
		var n int64
		DB.Model(&model.VerificationTask{}).Where("verification_task_retired = ?", false).Count(&n)
		logger.Info("warm-up done", zap.Int64("open_verification_tasks", n))
	}()
}

// Migrate hanya untuk dev/test (DB_AUTO_MIGRATE=true); skema production dikelola terpisah.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.PaymentRecord{},
		&model.VerificationTask{},
		&model.PaymentGatewayEventModel{},
	)
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
