// file: internals/route/index.go
package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lafaom_backend/internals/features/finance/payments/repository"
	"lafaom_backend/internals/features/finance/payments/service"
	routeDetails "lafaom_backend/internals/route/details"
)

var startTime time.Time

func SetupRoutes(app *fiber.App, svc *service.PaymentService, repo *repository.PaymentRepository, log *zap.Logger) {
	startTime = time.Now()

	log.Info("Setting up BaseRoutes...")
	BaseRoutes(app)

	api := app.Group("/api/v1")

	log.Info("Mounting Finance routes...")
	routeDetails.FinanceRoutes(api, svc, repo, log)
}
