package dto

// MidtransNotification: body HTTP notification dari Midtrans.
type MidtransNotification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"` // capture, settlement, pending, deny, cancel, expire, refund, partial_refund, failure
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"` // string dari Midtrans
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"` // accept / challenge / deny
	TransactionID     string `json:"transaction_id"`
	SettlementTime    string `json:"settlement_time"`
	// tambahan field lain aman diabaikan
}

type NotificationResponse struct {
	Status        string `json:"status"` // ok | ignored
	Reason        string `json:"reason"`
	Applied       bool   `json:"applied"`
	TransactionID string `json:"transaction_id,omitempty"`
	PaymentStatus string `json:"payment_status,omitempty"`
}
