package middlewares

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lafaom_backend/internals/middlewares/logger"
)

func SetupMiddlewares(app *fiber.App, log *zap.Logger) {
	app.Use(RecoveryMiddleware(log))
	app.Use(logger.LoggerMiddleware())
	app.Use(CorsMiddleware())
}
