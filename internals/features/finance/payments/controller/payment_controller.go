package controller

import (
	"errors"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	dto "lafaom_backend/internals/features/finance/payments/dto"
	"lafaom_backend/internals/features/finance/payments/service"
	helper "lafaom_backend/internals/helpers"
)

type PaymentController struct {
	Svc *service.PaymentService
	Log *zap.Logger
}

func NewPaymentController(svc *service.PaymentService, logger *zap.Logger) *PaymentController {
	return &PaymentController{Svc: svc, Log: logger.Named("payment_controller")}
}

/* =======================================================================
   Create
   POST /api/v1/payments
======================================================================= */

func (h *PaymentController) CreatePayment(c *fiber.Ctx) error {
	var req dto.CreatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "invalid payload: "+err.Error())
	}

	rec, err := h.Svc.CreatePayment(c.UserContext(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.SuccessWithCode(c, fiber.StatusCreated, "Pembayaran dibuat", dto.FromModel(rec))
}

/* =======================================================================
   Status (baca store saja)
   GET /api/v1/payments/:transaction_id
======================================================================= */

func (h *PaymentController) GetStatus(c *fiber.Ctx) error {
	txID := strings.TrimSpace(c.Params("transaction_id"))
	if txID == "" {
		return helper.Error(c, fiber.StatusBadRequest, "transaction_id wajib diisi")
	}
	rec, err := h.Svc.GetStatus(c.UserContext(), txID)
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.Success(c, "OK", dto.FromModel(rec))
}

/* =======================================================================
   Webhook Midtrans
   POST /api/v1/payments/notification
======================================================================= */

func (h *PaymentController) Notification(c *fiber.Ctx) error {
	// body fasthttp dipakai ulang setelah handler selesai
	body := append([]byte(nil), c.Body()...)

	var notif dto.MidtransNotification
	if err := sonic.Unmarshal(body, &notif); err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "invalid payload: "+err.Error())
	}

	out, err := h.Svc.HandleNotification(c.UserContext(), body, notif.SignatureKey)
	switch {
	case errors.Is(err, service.ErrAuthentication):
		return helper.Error(c, fiber.StatusUnauthorized, "invalid signature")
	case errors.Is(err, service.ErrNotFound):
		// Balas 200 agar Midtrans tidak retry terus
		return c.JSON(dto.NotificationResponse{
			Status:        "ignored",
			Reason:        out.Reason,
			TransactionID: out.TransactionID,
		})
	case err != nil:
		h.Log.Error("notification failed", zap.String("order_id", notif.OrderID), zap.Error(err))
		return helper.Error(c, fiber.StatusInternalServerError, "notification processing failed")
	}

	return c.JSON(dto.NotificationResponse{
		Status:        "ok",
		Reason:        out.Reason,
		Applied:       out.Applied,
		TransactionID: out.TransactionID,
		PaymentStatus: string(out.Status),
	})
}

/* =======================================================================
   Return (redirect user)
   GET  /api/v1/payments/return/:transaction_id
   GET  /api/v1/payments/return?order_id=...      (finish redirect Snap)
   POST /api/v1/payments/return  transaction_id=... (form)
======================================================================= */

func (h *PaymentController) Return(c *fiber.Ctx) error {
	txID := firstNonEmpty(
		c.Params("transaction_id"),
		c.Query("order_id"),
		c.Query("transaction_id"),
		c.FormValue("transaction_id"),
	)
	if txID == "" {
		return helper.Error(c, fiber.StatusBadRequest, "transaction_id wajib diisi")
	}

	rec, err := h.Svc.HandleReturn(c.UserContext(), txID)
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.Success(c, "OK", dto.ReturnFromModel(rec))
}

/* =======================================================================
   List per user & statistik
======================================================================= */

// GET /api/v1/payments/user/:user_id?page=&per_page=
func (h *PaymentController) ListByUser(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return helper.Error(c, fiber.StatusBadRequest, "invalid user_id")
	}
	pg := helper.ResolvePaging(c, 20, 100)

	rows, total, err := h.Svc.ListUserPayments(c.UserContext(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.SuccessList(c, "OK", dto.FromModels(rows), helper.BuildPagination(pg, total, len(rows)))
}

// GET /api/v1/payments/stats
func (h *PaymentController) Stats(c *fiber.Ctx) error {
	st, err := h.Svc.Stats(c.UserContext())
	if err != nil {
		return h.writeError(c, err)
	}
	return helper.Success(c, "OK", st)
}

/* =======================================================================
   Helpers
======================================================================= */

func (h *PaymentController) writeError(c *fiber.Ctx, err error) error {
	var (
		ve *service.ValidationError
		pe *service.ProviderError
		te *service.TransportError
	)
	switch {
	case errors.As(err, &ve):
		return helper.ErrorWithDetails(c, fiber.StatusBadRequest, "Validasi gagal", ve.Fields)
	case errors.As(err, &pe):
		return helper.ErrorWithDetails(c, fiber.StatusUnprocessableEntity, "Pembayaran ditolak gateway", fiber.Map{
			"code":   pe.Code,
			"reason": pe.Message,
		})
	case errors.As(err, &te):
		return helper.Error(c, fiber.StatusServiceUnavailable, "Payment gateway tidak tersedia, coba lagi")
	case errors.Is(err, service.ErrNotFound):
		return helper.Error(c, fiber.StatusNotFound, "Pembayaran tidak ditemukan")
	}
	h.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return helper.Error(c, fiber.StatusInternalServerError, "internal server error")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
