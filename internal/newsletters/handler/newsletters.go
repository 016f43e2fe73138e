package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/docstore"
	"portal-server/internal/newsletters/processor"
	"portal-server/internal/observability"
)

type Handler struct {
	processor processor.NewsletterProcessor
	logger    *observability.Logger
}

func New(processor processor.NewsletterProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

// CreateNewsletterRequest represents the HTTP request for adding a newsletter
type CreateNewsletterRequest struct {
	Category  string `json:"category"`
	Date      string `json:"date" binding:"omitempty,len=10"`
	Title     string `json:"title" binding:"required,max=255"`
	URL       string `json:"url" binding:"omitempty,url"`
	Thumbnail string `json:"thumbnail" binding:"omitempty,url"`
}

// HandleCreateNewsletter handles POST /newsletters
func (h *Handler) HandleCreateNewsletter(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateNewsletterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	newsletter, err := h.processor.CreateNewsletter(ctx, docstore.Newsletter{
		Category:  req.Category,
		Date:      req.Date,
		Title:     req.Title,
		URL:       req.URL,
		Thumbnail: req.Thumbnail,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newsletter)
}

// HandleGetNewsletter handles GET /newsletters/:id
func (h *Handler) HandleGetNewsletter(c *gin.Context) {
	newsletter, err := h.processor.GetNewsletter(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newsletter)
}

// HandleUpdateNewsletter handles PUT /newsletters/:id
func (h *Handler) HandleUpdateNewsletter(c *gin.Context) {
	ctx := c.Request.Context()
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	newsletter, err := h.processor.UpdateNewsletter(ctx, c.Param("id"), fields)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newsletter)
}

// HandleListNewsletters handles GET /newsletters
func (h *Handler) HandleListNewsletters(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	newsletters, err := h.processor.ListNewsletters(c.Request.Context(), c.Query("category"), limit)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newsletters)
}

// HandleDeleteNewsletter handles DELETE /newsletters/:id
func (h *Handler) HandleDeleteNewsletter(c *gin.Context) {
	if err := h.processor.DeleteNewsletter(c.Request.Context(), c.Param("id")); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandlePing handles GET /newsletters/_ping
func (h *Handler) HandlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
