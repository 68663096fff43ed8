package services

import (
	"afiliados_backend/internal/email"
)

// ServiceContainer holds every service of the application.
type ServiceContainer struct {
	AuthService           AuthService
	ReferralService       ReferralService
	SubscriptionService   SubscriptionService
	CommissionService     CommissionService
	ReconciliationService ReconciliationService
	DashboardService      DashboardService
	AdminService          AdminService
	EmailService          email.Provider
}
