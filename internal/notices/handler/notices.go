package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/notices/processor"
	"portal-server/internal/observability"
)

type Handler struct {
	processor processor.NoticeProcessor
	logger    *observability.Logger
}

func New(processor processor.NoticeProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

// CreateNoticeRequest represents the HTTP request for publishing a notice
type CreateNoticeRequest struct {
	Category string `json:"category" binding:"required"`
	Title    string `json:"title" binding:"required,max=255"`
	Body     string `json:"body"`
	LinkURL  string `json:"linkUrl" binding:"omitempty,url"`
	ImageURL string `json:"imageUrl" binding:"omitempty,url"`
	SendPush bool   `json:"sendPush"`
}

// HandleCreateNotice handles POST /api/notices
func (h *Handler) HandleCreateNotice(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	notice, err := h.processor.CreateNotice(ctx, processor.CreateNoticeRequest{
		Category: req.Category,
		Title:    req.Title,
		Body:     req.Body,
		LinkURL:  req.LinkURL,
		ImageURL: req.ImageURL,
		SendPush: req.SendPush,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, notice)
}

// HandleGetNotice handles GET /api/notices/:id
func (h *Handler) HandleGetNotice(c *gin.Context) {
	notice, err := h.processor.GetNotice(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

// HandleUpdateNotice handles PUT /api/notices/:id
func (h *Handler) HandleUpdateNotice(c *gin.Context) {
	ctx := c.Request.Context()
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	notice, err := h.processor.UpdateNotice(ctx, c.Param("id"), fields)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, notice)
}

// HandleListNotices handles GET /api/notices
func (h *Handler) HandleListNotices(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	notices, err := h.processor.ListLatest(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, notices)
}

// HandleDeleteNotice handles DELETE /api/notices/:id
func (h *Handler) HandleDeleteNotice(c *gin.Context) {
	if err := h.processor.DeleteNotice(c.Request.Context(), c.Param("id")); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePing handles GET /api/notices/_ping
func (h *Handler) HandlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
