package models

type UserRole string
type PlanCode string
type SubscriptionStatus string
type BillingSource string
type PaymentRail string
type PaymentStatus string

const (
	UserRoleAffiliate UserRole = "affiliate"
	UserRoleAdmin     UserRole = "admin"

	PlanNone  PlanCode = "none"
	PlanBasic PlanCode = "basic"
	PlanPro   PlanCode = "pro"
	PlanElite PlanCode = "elite"

	SubscriptionStatusNone     SubscriptionStatus = "none"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"

	BillingSourceGateway BillingSource = "gateway_recurring"
	BillingSourceWallet  BillingSource = "wallet_manual"
	BillingSourceNone    BillingSource = "none"

	RailGatewayRecurring PaymentRail = "gateway_recurring"
	RailWalletQR         PaymentRail = "wallet_qr"
	RailManualTransfer   PaymentRail = "manual_transfer"

	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusDisputed  PaymentStatus = "disputed"
)
