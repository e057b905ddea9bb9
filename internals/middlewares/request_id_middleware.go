package middlewares

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/utils"
	"go.uber.org/zap"
)

// RequestID + timing + timeout di user context.
// timeout harus lebih panjang dari PAYMENT_GATEWAY_TIMEOUT supaya return handler sempat cek gateway.
func RequestID(logger *zap.Logger, timeout time.Duration) fiber.Handler {
	log := logger.Named("http")
	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()

		ctx, cancel := context.WithTimeout(c.Context(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		err := c.Next()
		log.Debug("[REQ]",
			zap.String("id", id),
			zap.String("method", c.Method()),
			zap.String("url", c.OriginalURL()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("dur", time.Since(start)),
		)
		return err
	}
}
