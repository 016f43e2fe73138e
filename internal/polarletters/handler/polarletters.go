package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/docstore"
	"portal-server/internal/observability"
	"portal-server/internal/polarletters/processor"
)

type Handler struct {
	processor processor.PolarLetterProcessor
	logger    *observability.Logger
}

func New(processor processor.PolarLetterProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

// CreateLetterRequest represents the HTTP request for adding a polar letter
type CreateLetterRequest struct {
	Author     string `json:"author"`
	Title      string `json:"title" binding:"required,max=255"`
	Content    string `json:"content"`
	URL        string `json:"url" binding:"omitempty,url"`
	Thumbnail  string `json:"thumbnail" binding:"omitempty,url"`
	CreateTime string `json:"create_time"`
}

// HandleCreateLetter handles POST /api/polarletters
func (h *Handler) HandleCreateLetter(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	letter, err := h.processor.CreateLetter(ctx, docstore.PolarLetter{
		Author:     req.Author,
		Title:      req.Title,
		Content:    req.Content,
		URL:        req.URL,
		Thumbnail:  req.Thumbnail,
		CreateTime: req.CreateTime,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, letter)
}

// HandleGetLetter handles GET /api/polarletters/:id
func (h *Handler) HandleGetLetter(c *gin.Context) {
	letter, err := h.processor.GetLetter(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, letter)
}

// HandleUpdateLetter handles PUT /api/polarletters/:id
func (h *Handler) HandleUpdateLetter(c *gin.Context) {
	ctx := c.Request.Context()
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	letter, err := h.processor.UpdateLetter(ctx, c.Param("id"), fields)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, letter)
}

// HandleListLetters handles GET /api/polarletters
func (h *Handler) HandleListLetters(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	letters, err := h.processor.ListLetters(c.Request.Context(), c.Query("author"), limit)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, letters)
}

// HandleDeleteLetter handles DELETE /api/polarletters/:id
func (h *Handler) HandleDeleteLetter(c *gin.Context) {
	if err := h.processor.DeleteLetter(c.Request.Context(), c.Param("id")); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePing handles GET /api/polarletters/_ping
func (h *Handler) HandlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
