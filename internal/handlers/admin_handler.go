package handlers

import (
	"net/http"

	"afiliados_backend/internal/dto"
	"afiliados_backend/internal/middleware"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	*BaseHandler
	adminService          services.AdminService
	reconciliationService services.ReconciliationService
}

func NewAdminHandler(base *BaseHandler, adminService services.AdminService, reconciliationService services.ReconciliationService) *AdminHandler {
	return &AdminHandler{
		BaseHandler:           base,
		adminService:          adminService,
		reconciliationService: reconciliationService,
	}
}

func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.RequireRoles(string(models.UserRoleAdmin)))
	{
		admin.GET("/users", h.ListUsers)
		admin.PATCH("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)
		admin.POST("/payments/manual", h.ConfirmManualPayment)
	}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	limit, offset := ParsePagination(c)

	response, err := h.adminService.ListUsers(limit, offset)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req dto.AdminUpdateUserRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.adminService.SetDisabled(c.Param("id"), *req.Disabled); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true})
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.adminService.DeleteAccount(c.Param("id")); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *AdminHandler) ConfirmManualPayment(c *gin.Context) {
	var req dto.ManualConfirmRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	if err := h.reconciliationService.ConfirmManualTransfer(&req); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"confirmed": true})
}
