package models

import (
	"time"
)

// Subscription is one billing lifetime of an account. Canceled is terminal:
// re-subscribing creates a fresh record so commission provenance stays tied
// to the subscription that produced it.
type Subscription struct {
	BaseModel
	AccountID string             `gorm:"not null;index" json:"account_id"`
	PlanCode  PlanCode           `gorm:"not null;default:'basic'" json:"plan_code"`
	Status    SubscriptionStatus `gorm:"not null;default:'none'" json:"status"`
	Source    BillingSource      `gorm:"not null;default:'none'" json:"billing_source"`

	// CycleEnd is when the current paid cycle runs out. Wallet/manual cycles
	// never auto-extend; the sweep reverts them to none.
	CycleEnd  *time.Time `json:"cycle_end,omitempty"`
	AutoRenew bool       `gorm:"default:false" json:"auto_renew"`

	// ExternalSubID is the recurring gateway's subscription id, when the
	// billing source is the gateway.
	ExternalSubID string `gorm:"index" json:"external_sub_id,omitempty"`

	PastDueSince *time.Time `json:"past_due_since,omitempty"`
	CanceledAt   *time.Time `json:"canceled_at,omitempty"`
}

// IsCurrent reports whether this record still drives the account's plan.
func (s *Subscription) IsCurrent() bool {
	return s.Status != SubscriptionStatusCanceled
}
