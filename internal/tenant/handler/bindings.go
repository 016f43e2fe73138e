package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/store"
)

// CreateBindingRequest represents the HTTP request for creating a binding
type CreateBindingRequest struct {
	Type     string `json:"type" binding:"required,oneof=APP WEB app web"`
	Key      string `json:"key" binding:"required,max=255"`
	Priority int    `json:"priority"`
	IsActive *bool  `json:"isActive,omitempty"`
}

// HandleCreateBinding handles POST /api/admin/customers/:code/bindings
func (h *Handler) HandleCreateBinding(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateBindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	binding, err := h.tenantProcessor.CreateBinding(ctx, store.CreateBindingParams{
		CustomerCode: c.Param("code"),
		Type:         req.Type,
		Key:          req.Key,
		Priority:     req.Priority,
		IsActive:     active,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, binding)
}

// HandleListBindings handles GET /api/admin/customers/:code/bindings
func (h *Handler) HandleListBindings(c *gin.Context) {
	bindings, err := h.tenantProcessor.ListBindings(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, bindings)
}

// HandleDeleteBinding handles DELETE /api/admin/bindings/:id
func (h *Handler) HandleDeleteBinding(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid binding id"))
		return
	}
	if err := h.tenantProcessor.DeleteBinding(c.Request.Context(), id); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
