// file: internals/features/finance/payments/route/payment_route.go
package route

import (
	"github.com/gofiber/fiber/v2"

	paymentController "lafaom_backend/internals/features/finance/payments/controller"
	middlewares "lafaom_backend/internals/middlewares"
)

// Base path di caller: /api/v1
func PaymentRoutes(r fiber.Router, h *paymentController.PaymentController) {
	payments := r.Group("/payments")

	// webhook gateway, dibatasi terpisah dari trafik user
	payments.Post("/notification", middlewares.NotificationRateLimiter(), h.Notification) // POST /api/v1/payments/notification

	payments.Get("/return/:transaction_id", h.Return) // GET  /api/v1/payments/return/:transaction_id
	payments.Get("/return", h.Return)                 // GET  /api/v1/payments/return?order_id=
	payments.Post("/return", h.Return)                // POST /api/v1/payments/return

	payments.Get("/stats", h.Stats)              // GET /api/v1/payments/stats
	payments.Get("/user/:user_id", h.ListByUser) // GET /api/v1/payments/user/:user_id

	payments.Post("/", middlewares.GlobalRateLimiter(), h.CreatePayment) // POST /api/v1/payments
	payments.Get("/:transaction_id", h.GetStatus)                        // GET  /api/v1/payments/:transaction_id
}

func PaymentGatewayEventRoutes(r fiber.Router, h *paymentController.PaymentGatewayEventController) {
	gr := r.Group("/payment-gateway-events")
	gr.Get("/", h.ListEvents) // GET /api/v1/payment-gateway-events?provider=&status=&payment_id=&q=&start=&end=&page=&per_page=
	gr.Get("/:id", h.GetByID) // GET /api/v1/payment-gateway-events/:id
}
