package configs

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// =======================
// ENV LOADER
// =======================

// LoadEnv memuat .env kecuali di Railway. Dipanggil sebelum logger ada,
// jadi hasilnya dikembalikan dan di-log oleh caller.
func LoadEnv() (source string, err error) {
	if os.Getenv("RAILWAY_ENVIRONMENT") != "" {
		return "railway", nil
	}
	if err := godotenv.Load(); err != nil {
		return "system", err
	}
	return ".env", nil
}

func GetEnv(key string, defaultValue ...string) string {
	value, exists := os.LookupEnv(key)
	if !exists && len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return value
}

// =======================
// PAYMENT CONFIG
// =======================

type PaymentConfig struct {
	// Jeda antar pengecekan task yang masih PENDING
	PollInterval time.Duration
	// Umur maksimal task sebelum payment dipaksa EXPIRED
	Timeout time.Duration
	// Batas waktu satu panggilan ke gateway
	GatewayTimeout time.Duration
	// 0 = nonaktif; kalau diisi, EXPIRED juga dipaksa setelah sekian percobaan
	MaxAttempts int
	LeaseTTL    time.Duration
	BatchSize   int
	Concurrency int

	WorkerEnabled  bool
	WorkerSchedule string

	PublicBaseURL     string
	TransactionPrefix string
	Currencies        []string

	MidtransServerKey string
	MidtransUseProd   bool
}

func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		PollInterval:      15 * time.Second,
		Timeout:           5 * time.Minute,
		GatewayTimeout:    10 * time.Second,
		MaxAttempts:       0,
		LeaseTTL:          30 * time.Second,
		BatchSize:         10,
		Concurrency:       4,
		WorkerEnabled:     true,
		WorkerSchedule:    "@every 15s",
		PublicBaseURL:     "http://localhost:3000",
		TransactionPrefix: "LAFAOM",
		Currencies:        []string{"EUR", "XAF", "XOF", "USD", "IDR"},
	}
}

// LoadPaymentConfig membaca PAYMENT_* dan MIDTRANS_*; nilai invalid jatuh ke default.
func LoadPaymentConfig(logger *zap.Logger) PaymentConfig {
	cfg := DefaultPaymentConfig()

	cfg.PollInterval = envDuration(logger, "PAYMENT_POLL_INTERVAL", cfg.PollInterval)
	cfg.Timeout = envDuration(logger, "PAYMENT_TIMEOUT", cfg.Timeout)
	cfg.GatewayTimeout = envDuration(logger, "PAYMENT_GATEWAY_TIMEOUT", cfg.GatewayTimeout)
	cfg.LeaseTTL = envDuration(logger, "PAYMENT_LEASE_TTL", cfg.LeaseTTL)
	cfg.MaxAttempts = envInt(logger, "PAYMENT_MAX_ATTEMPTS", cfg.MaxAttempts, 0)
	cfg.BatchSize = envInt(logger, "PAYMENT_BATCH_SIZE", cfg.BatchSize, 1)
	cfg.Concurrency = envInt(logger, "PAYMENT_WORKER_CONCURRENCY", cfg.Concurrency, 1)
	cfg.WorkerEnabled = envBool(logger, "PAYMENT_WORKER_ENABLED", cfg.WorkerEnabled)
	cfg.WorkerSchedule = strings.TrimSpace(GetEnv("PAYMENT_WORKER_SCHEDULE", cfg.WorkerSchedule))
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(GetEnv("PAYMENT_PUBLIC_BASE_URL", cfg.PublicBaseURL)), "/")
	cfg.TransactionPrefix = strings.TrimSpace(GetEnv("PAYMENT_TX_PREFIX", cfg.TransactionPrefix))

	if raw := strings.TrimSpace(GetEnv("PAYMENT_CURRENCIES")); raw != "" {
		var cs []string
		for _, c := range strings.Split(raw, ",") {
			if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
				cs = append(cs, c)
			}
		}
		if len(cs) > 0 {
			cfg.Currencies = cs
		}
	}

	cfg.MidtransServerKey = GetEnv("MIDTRANS_SERVER_KEY")
	cfg.MidtransUseProd = envBool(logger, "MIDTRANS_USE_PROD", false)
	if cfg.MidtransServerKey == "" {
		logger.Warn("MIDTRANS_SERVER_KEY belum diset, semua notifikasi akan ditolak")
	}

	// lease harus lebih panjang dari satu panggilan gateway
	if cfg.LeaseTTL <= cfg.GatewayTimeout {
		fixed := 3 * cfg.GatewayTimeout
		logger.Warn("PAYMENT_LEASE_TTL terlalu pendek, disesuaikan",
			zap.Duration("lease_ttl", cfg.LeaseTTL), zap.Duration("adjusted", fixed))
		cfg.LeaseTTL = fixed
	}

	logger.Info("payment config loaded",
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.Duration("timeout", cfg.Timeout),
		zap.Duration("gateway_timeout", cfg.GatewayTimeout),
		zap.Int("max_attempts", cfg.MaxAttempts),
		zap.Duration("lease_ttl", cfg.LeaseTTL),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Int("concurrency", cfg.Concurrency),
		zap.Bool("worker_enabled", cfg.WorkerEnabled),
		zap.Bool("midtrans_prod", cfg.MidtransUseProd),
	)
	return cfg
}

func envDuration(logger *zap.Logger, key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(GetEnv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.Warn("invalid duration, pakai default", zap.String("key", key), zap.String("value", raw), zap.Duration("default", def))
		return def
	}
	return d
}

func envInt(logger *zap.Logger, key string, def, min int) int {
	raw := strings.TrimSpace(GetEnv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		logger.Warn("invalid integer, pakai default", zap.String("key", key), zap.String("value", raw), zap.Int("default", def))
		return def
	}
	return n
}

func envBool(logger *zap.Logger, key string, def bool) bool {
	raw := strings.TrimSpace(GetEnv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logger.Warn("invalid bool, pakai default", zap.String("key", key), zap.String("value", raw), zap.Bool("default", def))
		return def
	}
	return b
}
