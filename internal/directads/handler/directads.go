package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/directads/processor"
	"portal-server/internal/docstore"
	"portal-server/internal/observability"
)

type Handler struct {
	processor processor.DirectAdProcessor
	logger    *observability.Logger
}

func New(processor processor.DirectAdProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

// CreateAdRequest represents the HTTP request for creating a direct ad
type CreateAdRequest struct {
	AdType          string         `json:"adType"`
	AdvertiserName  string         `json:"advertiserName" binding:"required,max=255"`
	BackgroundColor string         `json:"backgroundColor"`
	ImageURL        string         `json:"imageUrl" binding:"omitempty,url"`
	TargetURL       string         `json:"targetUrl" binding:"omitempty,url"`
	Status          string         `json:"status"`
	Locales         []string       `json:"locales"`
	MinAppVersion   string         `json:"minAppVersion"`
	MaxAppVersion   string         `json:"maxAppVersion"`
	PublishedAt     *time.Time     `json:"publishedAt,omitempty"`
	StartAt         *time.Time     `json:"startAt,omitempty"`
	EndAt           *time.Time     `json:"endAt,omitempty"`
	Meta            map[string]any `json:"meta,omitempty"`
}

// HandleCreateAd handles POST /api/directads
func (h *Handler) HandleCreateAd(c *gin.Context) {
	ctx := c.Request.Context()
	var req CreateAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	id, err := h.processor.CreateAd(ctx, processor.CreateAdRequest{
		AdType:          req.AdType,
		AdvertiserName:  req.AdvertiserName,
		BackgroundColor: req.BackgroundColor,
		ImageURL:        req.ImageURL,
		TargetURL:       req.TargetURL,
		Status:          req.Status,
		Locales:         req.Locales,
		MinAppVersion:   req.MinAppVersion,
		MaxAppVersion:   req.MaxAppVersion,
		PublishedAt:     req.PublishedAt,
		StartAt:         req.StartAt,
		EndAt:           req.EndAt,
		Meta:            req.Meta,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// HandleGetAd handles GET /api/directads/:id
func (h *Handler) HandleGetAd(c *gin.Context) {
	ad, err := h.processor.GetAd(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// HandleUpdateAd handles PUT /api/directads/:id
func (h *Handler) HandleUpdateAd(c *gin.Context) {
	ctx := c.Request.Context()
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	ad, err := h.processor.UpdateAd(ctx, c.Param("id"), fields)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ad)
}

// HandleListAds handles GET /api/directads
func (h *Handler) HandleListAds(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	ads, err := h.processor.ListAds(c.Request.Context(), c.Query("status"), c.Query("adType"), limit)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ads)
}

// HandleDeleteAd handles DELETE /api/directads/:id
func (h *Handler) HandleDeleteAd(c *gin.Context) {
	if err := h.processor.DeleteAd(c.Request.Context(), c.Param("id")); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetMetrics handles GET /api/directads/:id/metrics
func (h *Handler) HandleGetMetrics(c *gin.Context) {
	metrics, err := h.processor.GetMetrics(c.Request.Context(), c.Param("id"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// HandleImpression handles POST /api/directads/:id/impression and its
// /track/impression form, which accepts a detail body.
func (h *Handler) HandleImpression(c *gin.Context) {
	h.track(c, h.processor.TrackImpression)
}

// HandleClick handles POST /api/directads/:id/click and /track/click.
func (h *Handler) HandleClick(c *gin.Context) {
	h.track(c, h.processor.TrackClick)
}

func (h *Handler) track(c *gin.Context, fn func(ctx context.Context, id string, detail *docstore.TrackDetail) error) {
	ctx := c.Request.Context()
	var detail *docstore.TrackDetail
	if c.Request.ContentLength > 0 {
		detail = &docstore.TrackDetail{}
		if err := c.ShouldBindJSON(detail); err != nil {
			// A malformed detail body still counts the event.
			detail = nil
		}
	}
	if err := fn(ctx, c.Param("id"), detail); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandlePing handles GET /api/directads/_ping
func (h *Handler) HandlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
