package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"portal-server/internal/apierrors"
	authprocessor "portal-server/internal/auth/processor"
	"portal-server/internal/customers/processor"
	"portal-server/internal/observability"
	"portal-server/internal/store"
)

type Handler struct {
	processor processor.CustomerProcessor
	logger    *observability.Logger
}

func New(processor processor.CustomerProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

// CreateCustomerRequest represents the HTTP request for creating a customer
type CreateCustomerRequest struct {
	Code            string           `json:"code" binding:"required,max=64"`
	Name            string           `json:"name" binding:"required,max=255"`
	Domain          *string          `json:"domain,omitempty"`
	IntegrationType *string          `json:"integrationType,omitempty"`
	RsPercent       *decimal.Decimal `json:"rsPercent,omitempty"`
	CpiValue        *decimal.Decimal `json:"cpiValue,omitempty"`
	Note            *string          `json:"note,omitempty"`
}

// UpdateCustomerRequest represents the HTTP request for updating a customer
type UpdateCustomerRequest struct {
	Name            *string          `json:"name,omitempty"`
	Domain          *string          `json:"domain,omitempty"`
	IntegrationType *string          `json:"integrationType,omitempty"`
	RsPercent       *decimal.Decimal `json:"rsPercent,omitempty"`
	CpiValue        *decimal.Decimal `json:"cpiValue,omitempty"`
	Note            *string          `json:"note,omitempty"`
}

// UpsertSettlementRequest represents the HTTP request for writing a settlement row
type UpsertSettlementRequest struct {
	Month       string           `json:"month" binding:"required,len=7"`
	Downloads   *int64           `json:"downloads,omitempty"`
	Deletes     *int64           `json:"deletes,omitempty"`
	TotalAmount *decimal.Decimal `json:"totalAmount,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
}

func actorFromContext(c *gin.Context) string {
	if claims, ok := authprocessor.ClaimsFromContext(c.Request.Context()); ok {
		return claims.UserType + ":" + claims.Subject
	}
	return "anonymous"
}

// HandleCreateCustomer handles POST /api/admin/customers
func (h *Handler) HandleCreateCustomer(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	createReq := processor.CreateCustomerRequest{
		Code:            req.Code,
		Name:            req.Name,
		Domain:          req.Domain,
		IntegrationType: req.IntegrationType,
		Note:            req.Note,
	}
	if req.RsPercent != nil {
		createReq.RsPercent = *req.RsPercent
	}
	if req.CpiValue != nil {
		createReq.CpiValue = *req.CpiValue
	}

	customer, err := h.processor.CreateCustomer(ctx, createReq, actorFromContext(c))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Header("Location", "/api/admin/customers/"+customer.Code)
	c.JSON(http.StatusCreated, customer)
}

// HandleGetCustomer handles GET /api/admin/customers/:code
func (h *Handler) HandleGetCustomer(c *gin.Context) {
	customer, err := h.processor.GetCustomer(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// HandleCustomerExists handles GET /api/admin/customers/exists?code=
func (h *Handler) HandleCustomerExists(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "code is required"))
		return
	}
	exists, err := h.processor.CustomerExists(c.Request.Context(), code)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code, "exists": exists})
}

// HandleListCustomers handles GET /api/admin/customers?q=
func (h *Handler) HandleListCustomers(c *gin.Context) {
	customers, err := h.processor.ListCustomers(c.Request.Context(), c.Query("q"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// HandleUpdateCustomer handles PATCH /api/admin/customers/:code
func (h *Handler) HandleUpdateCustomer(c *gin.Context) {
	ctx := c.Request.Context()
	var req UpdateCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	customer, err := h.processor.UpdateCustomer(ctx, c.Param("code"), store.UpdateCustomerParams{
		Name:            req.Name,
		Domain:          req.Domain,
		IntegrationType: req.IntegrationType,
		RsPercent:       req.RsPercent,
		CpiValue:        req.CpiValue,
		Note:            req.Note,
	}, actorFromContext(c))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// HandleDeleteCustomer handles DELETE /api/admin/customers/:code
func (h *Handler) HandleDeleteCustomer(c *gin.Context) {
	if err := h.processor.DeleteCustomer(c.Request.Context(), c.Param("code"), actorFromContext(c)); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetStats handles GET /api/admin/customers/:code/stats
func (h *Handler) HandleGetStats(c *gin.Context) {
	stats, err := h.processor.GetSettlementStats(
		c.Request.Context(), c.Param("code"), c.Query("fromMonth"), c.Query("toMonth"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// HandleUpsertSettlement handles PUT /api/admin/customers/:code/settlements
func (h *Handler) HandleUpsertSettlement(c *gin.Context) {
	ctx := c.Request.Context()
	var req UpsertSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	settlement, err := h.processor.UpsertSettlement(ctx, store.UpsertSettlementParams{
		CustomerCode: c.Param("code"),
		Month:        req.Month,
		Downloads:    req.Downloads,
		Deletes:      req.Deletes,
		TotalAmount:  req.TotalAmount,
		Currency:     req.Currency,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, settlement)
}
