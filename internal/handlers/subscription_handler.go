package handlers

import (
	"net/http"

	"afiliados_backend/internal/config"
	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/middleware"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/internal/services"
	"afiliados_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type SubscriptionHandler struct {
	*BaseHandler
	subscriptionService services.SubscriptionService
}

func NewSubscriptionHandler(base *BaseHandler, subscriptionService services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{
		BaseHandler:         base,
		subscriptionService: subscriptionService,
	}
}

func (h *SubscriptionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	// The plan catalog is public: the pricing page renders before login.
	rg.GET("/plans", h.ListPlans)

	sub := rg.Group("/subscription")
	sub.Use(middleware.AuthMiddleware())
	{
		sub.GET("", h.GetSubscription)
	}
}

func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	response := dto.SubscriptionResponse{
		CurrentPlan: string(models.PlanNone),
		Status:      string(models.SubscriptionStatusNone),
		Source:      string(models.BillingSourceNone),
		Plans:       planItems(),
	}

	sub, err := h.subscriptionService.Current(userID)
	if err != nil && !apperrors.Is(err, repositories.ErrSubscriptionNotFound) {
		h.HandleServiceError(c, err)
		return
	}
	if sub != nil {
		response.CurrentPlan = string(sub.PlanCode)
		response.Status = string(sub.Status)
		response.Source = string(sub.Source)
		response.CycleEnd = sub.CycleEnd
	}

	c.JSON(http.StatusOK, response)
}

func (h *SubscriptionHandler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": planItems()})
}

func planItems() []dto.PlanItem {
	currency := config.GetConfig().Billing.Currency
	specs := models.PlanSpecs()
	items := make([]dto.PlanItem, 0, len(specs))
	for _, spec := range specs {
		items = append(items, dto.PlanItem{
			Code:          string(spec.Code),
			Name:          spec.Name,
			Price:         spec.Price,
			Currency:      currency,
			UnlockedDepth: spec.UnlockedDepth,
			Features:      spec.Features,
		})
	}
	return items
}
