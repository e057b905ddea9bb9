// file: internals/features/finance/payments/model/payment_gateway_events_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

/*
  payment_gateway_events = LOG NOTIFIKASI dari payment gateway
  - Bisa banyak row per 1 payment (gateway boleh kirim ulang)
  - Hanya notifikasi yang lolos verifikasi signature yang disimpan
*/

type PaymentGatewayEventModel struct {
	GatewayEventID        uuid.UUID  `gorm:"column:gateway_event_id;type:uuid;primaryKey" json:"gateway_event_id"`
	GatewayEventPaymentID *uuid.UUID `gorm:"column:gateway_event_payment_id;type:uuid;index" json:"gateway_event_payment_id"`

	// Provider & identitas event
	GatewayEventProvider    PaymentGatewayProvider `gorm:"column:gateway_event_provider;type:varchar(32);not null" json:"gateway_event_provider"`
	GatewayEventType        *string                `gorm:"column:gateway_event_type;type:varchar(64)" json:"gateway_event_type"`
	GatewayEventExternalID  *string                `gorm:"column:gateway_event_external_id;type:varchar(120);index" json:"gateway_event_external_id"`
	GatewayEventExternalRef *string                `gorm:"column:gateway_event_external_ref;type:varchar(120)" json:"gateway_event_external_ref"`

	// Raw data (buat debug / replay)
	GatewayEventPayload   datatypes.JSON `gorm:"column:gateway_event_payload" json:"gateway_event_payload"`
	GatewayEventSignature *string        `gorm:"column:gateway_event_signature;type:text" json:"gateway_event_signature"`

	// Status processing internal
	GatewayEventStatus GatewayEventStatus `gorm:"column:gateway_event_status;type:varchar(16);not null" json:"gateway_event_status"`
	GatewayEventError  *string            `gorm:"column:gateway_event_error;type:text" json:"gateway_event_error"`

	GatewayEventReceivedAt  time.Time  `gorm:"column:gateway_event_received_at;not null" json:"gateway_event_received_at"`
	GatewayEventProcessedAt *time.Time `gorm:"column:gateway_event_processed_at" json:"gateway_event_processed_at"`
}

func (PaymentGatewayEventModel) TableName() string {
	return "payment_gateway_events"
}
