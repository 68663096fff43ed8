package handlers

import (
	"net/http"

	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/middleware"
	"afiliados_backend/internal/services"
	"afiliados_backend/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type AccountHandler struct {
	*BaseHandler
	authService     services.AuthService
	referralService services.ReferralService
}

func NewAccountHandler(base *BaseHandler, authService services.AuthService, referralService services.ReferralService) *AccountHandler {
	return &AccountHandler{
		BaseHandler:     base,
		authService:     authService,
		referralService: referralService,
	}
}

func (h *AccountHandler) RegisterRoutes(rg *gin.RouterGroup) {
	// Code validation is public: the signup form checks it before the
	// account exists.
	rg.GET("/referrals/validate", h.ValidateReferralCode)

	me := rg.Group("/me")
	me.Use(middleware.AuthMiddleware())
	{
		me.GET("", h.GetProfile)
	}
}

func (h *AccountHandler) GetProfile(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	profile, err := h.authService.Profile(userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h *AccountHandler) ValidateReferralCode(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		apperrors.HandleError(c, apperrors.NewBadRequestError("Missing required query parameter: code"))
		return
	}

	valid, err := h.referralService.ValidateCode(code)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ValidateCodeResponse{Valid: valid})
}
