package models

import (
	"time"
)

// PaymentEvent is the durable checkpoint of the reconciliation layer. One
// row exists per (rail, external reference); the unique index makes webhook
// retries and double-submitted confirmations collapse onto the same row.
type PaymentEvent struct {
	BaseModel
	AccountID string      `gorm:"not null;index" json:"account_id"`
	Rail      PaymentRail `gorm:"not null;uniqueIndex:idx_payment_rail_ref" json:"rail"`

	// ExternalRef is the processor's reference id: gateway event id, wallet
	// order id, or the operator's idempotency token for manual transfers.
	ExternalRef string `gorm:"not null;uniqueIndex:idx_payment_rail_ref" json:"external_ref"`

	PlanCode PlanCode      `gorm:"not null" json:"plan_code"`
	Amount   float64       `gorm:"not null" json:"amount"`
	Currency string        `gorm:"default:'PEN'" json:"currency"`
	Status   PaymentStatus `gorm:"not null;default:'pending'" json:"status"`

	// Checksum of the raw payload, for replay detection on the gateway rail.
	Checksum string `json:"checksum,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`

	// CommissionSettledAt marks a fully committed commission pass. Confirmed
	// payments without it are re-settled after a crash.
	CommissionSettledAt *time.Time `gorm:"index" json:"commission_settled_at,omitempty"`
}
