package handlers

import (
	"io"
	"net/http"

	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/middleware"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/services"
	"afiliados_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

// Signature headers the payment processors send with their callbacks.
const (
	gatewaySignatureHeader = "X-Webhook-Signature"
	walletSignatureHeader  = "X-Callback-Signature"
)

type PaymentHandler struct {
	*BaseHandler
	reconciliationService services.ReconciliationService
}

func NewPaymentHandler(base *BaseHandler, reconciliationService services.ReconciliationService) *PaymentHandler {
	return &PaymentHandler{
		BaseHandler:           base,
		reconciliationService: reconciliationService,
	}
}

func (h *PaymentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	paypal := rg.Group("/paypal")
	{
		// The webhook is authenticated by its HMAC signature, not a session.
		paypal.POST("/webhook", h.GatewayWebhook)

		authed := paypal.Group("")
		authed.Use(middleware.AuthMiddleware())
		authed.POST("/create-subscription", h.CreateGatewaySubscription)
	}

	culqi := rg.Group("/culqi")
	{
		culqi.POST("/confirm", h.ConfirmWalletOrder)

		authed := culqi.Group("")
		authed.Use(middleware.AuthMiddleware())
		authed.POST("/orders", h.CreateWalletOrder)
	}
}

func (h *PaymentHandler) CreateGatewaySubscription(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateGatewaySubscriptionRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	response, err := h.reconciliationService.CreateGatewaySubscription(userID, models.PlanCode(req.PlanCode))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *PaymentHandler) GatewayWebhook(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Failed to read request body"))
		return
	}

	err = h.reconciliationService.ProcessGatewayWebhook(rawBody, c.GetHeader(gatewaySignatureHeader))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *PaymentHandler) CreateWalletOrder(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.CreateWalletOrderRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	response, err := h.reconciliationService.CreateWalletOrder(userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

func (h *PaymentHandler) ConfirmWalletOrder(c *gin.Context) {
	var req dto.WalletConfirmRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	err := h.reconciliationService.ConfirmWalletOrder(&req, c.GetHeader(walletSignatureHeader))
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"confirmed": true})
}
