package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	authprocessor "portal-server/internal/auth/processor"
	"portal-server/internal/contacts/processor"
	"portal-server/internal/observability"
	"portal-server/internal/store"
)

type Handler struct {
	processor processor.ContactProcessor
	logger    *observability.Logger
}

func New(processor processor.ContactProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

// UpsertContactRequest represents the HTTP request for upserting a contact
type UpsertContactRequest struct {
	CustomerCode  string  `json:"customerCode" binding:"required,max=64"`
	Name          string  `json:"name" binding:"required,max=255"`
	Email         string  `json:"email" binding:"required,email"`
	Phone         *string `json:"phone,omitempty"`
	Position      *string `json:"position,omitempty"`
	IsPrimary     bool    `json:"isPrimary"`
	Note          *string `json:"note,omitempty"`
	CreateAccount bool    `json:"createAccount"`
}

// UpdateOwnContactRequest represents the HTTP request for a customer user
// editing their own contact record
type UpdateOwnContactRequest struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Position *string `json:"position,omitempty"`
	Note     *string `json:"note,omitempty"`
}

// HandleUpsert handles POST /api/contacts/upsert
func (h *Handler) HandleUpsert(c *gin.Context) {
	ctx := c.Request.Context()
	var req UpsertContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	result, err := h.processor.Upsert(ctx, processor.UpsertContactRequest{
		CustomerCode:  req.CustomerCode,
		Name:          req.Name,
		Email:         req.Email,
		Phone:         req.Phone,
		Position:      req.Position,
		IsPrimary:     req.IsPrimary,
		Note:          req.Note,
		CreateAccount: req.CreateAccount,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleList handles GET /api/contacts
func (h *Handler) HandleList(c *gin.Context) {
	contacts, err := h.processor.ListContacts(c.Request.Context(), c.Query("customerCode"), c.Query("q"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// HandleGet handles GET /api/contacts/:id
func (h *Handler) HandleGet(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid contact id"))
		return
	}
	contact, err := h.processor.GetContact(c.Request.Context(), id)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// HandleDelete handles DELETE /api/contacts/:id
func (h *Handler) HandleDelete(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "invalid contact id"))
		return
	}
	if err := h.processor.DeleteContact(c.Request.Context(), id); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleDeleteByCustomer handles DELETE /api/contacts/by-customer/:code
func (h *Handler) HandleDeleteByCustomer(c *gin.Context) {
	deleted, err := h.processor.DeleteByCustomer(c.Request.Context(), c.Param("code"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// HandleGetMe handles GET /api/contacts/me
func (h *Handler) HandleGetMe(c *gin.Context) {
	ctx := c.Request.Context()
	claims, ok := authprocessor.ClaimsFromContext(ctx)
	if !ok {
		apierrors.RespondWithError(c, apierrors.Unauthorized("not authenticated"))
		return
	}
	contact, err := h.processor.GetOwnContact(ctx, claims.UserID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}

// HandleUpdateMe handles PUT /api/contacts/me
func (h *Handler) HandleUpdateMe(c *gin.Context) {
	ctx := c.Request.Context()
	claims, ok := authprocessor.ClaimsFromContext(ctx)
	if !ok {
		apierrors.RespondWithError(c, apierrors.Unauthorized("not authenticated"))
		return
	}
	var req UpdateOwnContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	contact, err := h.processor.UpdateOwnContact(ctx, claims.UserID, store.UpdateContactParams{
		Name:     req.Name,
		Phone:    req.Phone,
		Position: req.Position,
		Note:     req.Note,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, contact)
}
