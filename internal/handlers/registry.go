package handlers

// AppHandlers holds every HTTP handler of the application.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	AccountHandler      *AccountHandler
	DashboardHandler    *DashboardHandler
	SubscriptionHandler *SubscriptionHandler
	PaymentHandler      *PaymentHandler
	AdminHandler        *AdminHandler
}
