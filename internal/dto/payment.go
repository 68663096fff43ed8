package dto

import "time"

// --- Recurring gateway (PayPal) ---

type CreateGatewaySubscriptionRequest struct {
	PlanCode string `json:"planCode" validate:"required,is-plan-code"`
}

type CreateGatewaySubscriptionResponse struct {
	ApprovalURL string `json:"approvalUrl"`
}

// GatewayWebhookEvent is the normalized shape of a gateway webhook delivery.
// EventID doubles as the external reference id for deduplication.
type GatewayWebhookEvent struct {
	EventID        string    `json:"event_id" validate:"required"`
	EventType      string    `json:"event_type" validate:"required"`
	SubscriptionID string    `json:"subscription_id"`
	AccountID      string    `json:"account_id"`
	PlanCode       string    `json:"plan_code" validate:"omitempty,is-plan-code"`
	Amount         float64   `json:"amount"`
	CycleEnd       time.Time `json:"cycle_end"`
}

// --- Wallet QR (Culqi) ---

type CreateWalletOrderRequest struct {
	Plan          string `json:"plan" validate:"required,is-plan-code"`
	Phone         string `json:"phone" validate:"required,min=6,max=20"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof=yape plin qr"`
}

type CreateWalletOrderResponse struct {
	PublicKey    string  `json:"publicKey"`
	Amount       float64 `json:"amount"`
	OrderID      string  `json:"orderId"`
	CurrencyCode string  `json:"currencyCode"`
}

// WalletConfirmRequest is the processor's asynchronous confirmation
// callback. ExternalRef must match the order's reference exactly.
type WalletConfirmRequest struct {
	OrderID     string `json:"order_id" validate:"required"`
	ExternalRef string `json:"external_ref" validate:"required"`
}

// --- Manual transfer ---

type ManualConfirmRequest struct {
	AccountID string  `json:"account_id" validate:"required,uuid"`
	PlanCode  string  `json:"plan_code" validate:"required,is-plan-code"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`

	// IdempotencyToken guards against double-processing of a resubmitted
	// confirmation. The operator action itself is the payment's proof.
	IdempotencyToken string `json:"idempotency_token" validate:"required,min=8"`
}
