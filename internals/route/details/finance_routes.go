// file: internals/route/details/finance_routes.go
package details

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	paymentController "lafaom_backend/internals/features/finance/payments/controller"
	"lafaom_backend/internals/features/finance/payments/repository"
	paymentRoute "lafaom_backend/internals/features/finance/payments/route"
	"lafaom_backend/internals/features/finance/payments/service"
)

func FinanceRoutes(r fiber.Router, svc *service.PaymentService, repo *repository.PaymentRepository, log *zap.Logger) {
	paymentRoute.PaymentRoutes(r, paymentController.NewPaymentController(svc, log))
	paymentRoute.PaymentGatewayEventRoutes(r, paymentController.NewPaymentGatewayEventController(repo))
}
