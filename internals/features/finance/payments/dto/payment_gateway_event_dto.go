package dto

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	model "lafaom_backend/internals/features/finance/payments/model"
)

type PaymentGatewayEventResponse struct {
	GatewayEventID        uuid.UUID  `json:"gateway_event_id"`
	GatewayEventPaymentID *uuid.UUID `json:"gateway_event_payment_id,omitempty"`

	GatewayEventProvider    model.PaymentGatewayProvider `json:"gateway_event_provider"`
	GatewayEventType        *string                      `json:"gateway_event_type,omitempty"`
	GatewayEventExternalID  *string                      `json:"gateway_event_external_id,omitempty"`
	GatewayEventExternalRef *string                      `json:"gateway_event_external_ref,omitempty"`

	GatewayEventPayload datatypes.JSON `json:"gateway_event_payload,omitempty"`

	GatewayEventStatus model.GatewayEventStatus `json:"gateway_event_status"`
	GatewayEventError  *string                  `json:"gateway_event_error,omitempty"`

	GatewayEventReceivedAt  time.Time  `json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `json:"gateway_event_processed_at,omitempty"`
}

// Signature sengaja tidak ikut dikirim ke client.
func FromModelPGW(m *model.PaymentGatewayEventModel) *PaymentGatewayEventResponse {
	if m == nil {
		return nil
	}
	return &PaymentGatewayEventResponse{
		GatewayEventID:          m.GatewayEventID,
		GatewayEventPaymentID:   m.GatewayEventPaymentID,
		GatewayEventProvider:    m.GatewayEventProvider,
		GatewayEventType:        m.GatewayEventType,
		GatewayEventExternalID:  m.GatewayEventExternalID,
		GatewayEventExternalRef: m.GatewayEventExternalRef,
		GatewayEventPayload:     m.GatewayEventPayload,
		GatewayEventStatus:      m.GatewayEventStatus,
		GatewayEventError:       m.GatewayEventError,
		GatewayEventReceivedAt:  m.GatewayEventReceivedAt,
		GatewayEventProcessedAt: m.GatewayEventProcessedAt,
	}
}
