package models

// CommissionEvent credits one ancestor for one confirmed payment at one
// level. The composite unique index is what makes settlement idempotent:
// re-delivery of the same payment confirmation can never double-credit.
type CommissionEvent struct {
	BaseModel
	BeneficiaryID   string `gorm:"not null;index;uniqueIndex:idx_commission_settlement" json:"beneficiary_id"`
	SourceAccountID string `gorm:"not null;index" json:"source_account_id"`
	PaymentEventID  string `gorm:"not null;index;uniqueIndex:idx_commission_settlement" json:"payment_event_id"`
	Level           int    `gorm:"not null;uniqueIndex:idx_commission_settlement" json:"level"`

	Rate   float64 `gorm:"not null" json:"rate"`
	Amount float64 `gorm:"not null" json:"amount"`

	// Payable is false when the beneficiary was disabled at settlement time.
	// The event is still recorded for audit.
	Payable bool `gorm:"default:true" json:"payable"`
}
