package middlewares

import (
	"runtime/debug"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

// RecoveryMiddleware menangkap panic dan mengembalikan error 500; stack trace ke zap.
func RecoveryMiddleware(logger *zap.Logger) fiber.Handler {
	log := logger.Named("recover")
	return recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			log.Error("panic recovered",
				zap.Any("panic", e),
				zap.String("path", c.Path()),
				zap.Any("reqid", c.Locals("reqid")),
				zap.ByteString("stack", debug.Stack()),
			)
		},
	})
}
