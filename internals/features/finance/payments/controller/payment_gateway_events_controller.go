// file: internals/features/finance/payments/controller/payment_gateway_events_controller.go
package controller

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	dto "lafaom_backend/internals/features/finance/payments/dto"
	model "lafaom_backend/internals/features/finance/payments/model"
	"lafaom_backend/internals/features/finance/payments/repository"
	helper "lafaom_backend/internals/helpers"
)

type GatewayEventReader interface {
	ListGatewayEvents(ctx context.Context, f repository.GatewayEventFilter) ([]model.PaymentGatewayEventModel, int64, error)
	FindGatewayEvent(ctx context.Context, id uuid.UUID) (*model.PaymentGatewayEventModel, error)
}

type PaymentGatewayEventController struct {
	Repo GatewayEventReader
}

func NewPaymentGatewayEventController(repo GatewayEventReader) *PaymentGatewayEventController {
	return &PaymentGatewayEventController{Repo: repo}
}

/* =======================================================================
   List (filter + pagination)
   Query params:
     - provider: midtrans
     - status: received|processed|ignored|failed
     - payment_id: uuid
     - q: cari di external_id / external_ref
     - start, end: RFC3339 (filter received_at)
     - page (default 1), per_page/limit (default 20, max 200)
======================================================================= */

func (h *PaymentGatewayEventController) ListEvents(c *fiber.Ctx) error {
	f := repository.GatewayEventFilter{
		Provider: c.Query("provider"),
		Status:   c.Query("status"),
		Query:    c.Query("q"),
	}

	if pid := strings.TrimSpace(c.Query("payment_id")); pid != "" {
		id, err := uuid.Parse(pid)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payment_id")
		}
		f.PaymentID = &id
	}
	if start := strings.TrimSpace(c.Query("start")); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid start (use RFC3339)")
		}
		f.Start = &t
	}
	if end := strings.TrimSpace(c.Query("end")); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid end (use RFC3339)")
		}
		f.End = &t
	}

	pg := helper.ResolvePaging(c, 20, 200)
	f.Limit, f.Offset = pg.Limit, pg.Offset

	rows, total, err := h.Repo.ListGatewayEvents(c.UserContext(), f)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "list gateway events failed")
	}

	out := make([]*dto.PaymentGatewayEventResponse, 0, len(rows))
	for i := range rows {
		out = append(out, dto.FromModelPGW(&rows[i]))
	}
	return helper.SuccessList(c, "OK", out, helper.BuildPagination(pg, total, len(out)))
}

/* =======================================================================
   Detail
======================================================================= */

func (h *PaymentGatewayEventController) GetByID(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}

	m, err := h.Repo.FindGatewayEvent(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, repository.ErrGatewayEventNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "event not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "get gateway event failed")
	}
	return helper.Success(c, "OK", dto.FromModelPGW(m))
}
