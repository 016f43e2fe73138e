package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/observability"
	"portal-server/internal/tenant/processor"
)

type Handler struct {
	tenantProcessor *processor.TenantProcessor
	logger          *observability.Logger
}

func New(tenantProcessor *processor.TenantProcessor, logger *observability.Logger) Handler {
	return Handler{tenantProcessor: tenantProcessor, logger: logger}
}

type ResolveRequest struct {
	Package string `json:"package"`
	Domain  string `json:"domain"`
}

// HandleResolve handles POST /api/tenant/resolve
func (h *Handler) HandleResolve(c *gin.Context) {
	ctx := c.Request.Context()
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	tenant, err := h.tenantProcessor.Resolve(ctx, req.Package, req.Domain)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}
