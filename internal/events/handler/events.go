package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/docstore"
	"portal-server/internal/events/processor"
	"portal-server/internal/observability"
	"portal-server/internal/store"
	tenantprocessor "portal-server/internal/tenant/processor"
)

type Handler struct {
	processor       processor.EventProcessor
	tenantProcessor *tenantprocessor.TenantProcessor
	logger          *observability.Logger
}

func New(processor processor.EventProcessor, tenantProcessor *tenantprocessor.TenantProcessor, logger *observability.Logger) Handler {
	return Handler{
		processor:       processor,
		tenantProcessor: tenantProcessor,
		logger:          logger,
	}
}

// ReportRequest represents a device security report
type ReportRequest struct {
	Package   string `json:"package"`
	Domain    string `json:"domain"`
	DeviceID  string `json:"deviceId"`
	EventType string `json:"eventType" binding:"required,oneof=MALWARES_APP ROOTING_DETECTED REMOTE_CONTROL_APP"`
	Data      string `json:"data"`
}

// TrackRequest represents a generic client tracking event
type TrackRequest struct {
	CustomerCode string                `json:"customerCode"`
	Action       string                `json:"action" binding:"required,max=64"`
	ObjectType   string                `json:"objectType"`
	ObjectID     string                `json:"objectId"`
	Actor        string                `json:"actor"`
	Data         string                `json:"data"`
	Detail       *docstore.TrackDetail `json:"detail,omitempty"`
}

// HandleReport handles POST /api/events/report
func (h *Handler) HandleReport(c *gin.Context) {
	ctx := c.Request.Context()
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	if req.Package == "" && req.Domain == "" {
		// Fall back to transport-level hints when the body names no source.
		req.Domain = firstNonEmpty(
			c.GetHeader("X-Customer-Domain"),
			c.GetHeader("X-Forwarded-Host"),
			c.Request.Host,
		)
	}
	event, err := h.processor.Report(ctx, processor.ReportRequest{
		Package:   req.Package,
		Domain:    req.Domain,
		DeviceID:  req.DeviceID,
		EventType: req.EventType,
		Data:      req.Data,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": event.ID, "customerCode": event.CustomerCode})
}

// HandleListSecurity handles GET /api/events/security
func (h *Handler) HandleListSecurity(c *gin.Context) {
	ctx := c.Request.Context()

	code, err := h.tenantProcessor.ResolveRequestCode(ctx, c.Request.URL.Query(), c.Request.Header, c.Request.Host)
	if err != nil {
		if errors.Is(err, tenantprocessor.ErrCodeUnresolved) {
			apierrors.RespondWithError(c, apierrors.Forbidden("customer could not be determined"))
			return
		}
		apierrors.RespondWithError(c, err)
		return
	}

	filter := store.SecurityEventFilter{
		CustomerCode: code,
		EventType:    normalizeTypeFilter(c.Query("type")),
	}
	if from, ok := parseDate(c.Query("from")); ok {
		filter.From = from
	}
	if to, ok := parseDate(c.Query("to")); ok {
		filter.To = to.AddDate(0, 0, 1)
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	sortAsc := strings.EqualFold(c.Query("sort"), "asc")

	result, err := h.processor.ListSecurityEvents(ctx, filter, page, size, sortAsc)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleDailyReport handles GET /api/events/report/daily
func (h *Handler) HandleDailyReport(c *gin.Context) {
	ctx := c.Request.Context()

	code, err := h.tenantProcessor.ResolveRequestCode(ctx, c.Request.URL.Query(), c.Request.Header, c.Request.Host)
	if err != nil {
		if errors.Is(err, tenantprocessor.ErrCodeUnresolved) {
			apierrors.RespondWithError(c, apierrors.Forbidden("customer could not be determined"))
			return
		}
		apierrors.RespondWithError(c, err)
		return
	}

	var from, to time.Time
	if parsed, ok := parseDate(c.Query("from")); ok {
		from = parsed
	}
	if parsed, ok := parseDate(c.Query("to")); ok {
		to = parsed
	}

	report, err := h.processor.GetDailyReport(ctx, code, from, to, c.Query("tz"))
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandlePing handles GET /api/events/report/_ping
func (h *Handler) HandlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleTrack handles POST /api/track/events
func (h *Handler) HandleTrack(c *gin.Context) {
	ctx := c.Request.Context()
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}

	code := strings.ToLower(strings.TrimSpace(req.CustomerCode))
	if code == "" {
		// Customer attribution is best effort for tracking rows.
		resolved, err := h.tenantProcessor.ResolveRequestCode(ctx, c.Request.URL.Query(), c.Request.Header, c.Request.Host)
		if err == nil {
			code = resolved
		} else if !errors.Is(err, tenantprocessor.ErrCodeUnresolved) {
			apierrors.RespondWithError(c, err)
			return
		}
	}

	logRow, err := h.processor.Track(ctx, processor.TrackRequest{
		CustomerCode: code,
		Action:       req.Action,
		ObjectType:   req.ObjectType,
		ObjectID:     req.ObjectID,
		Actor:        req.Actor,
		IP:           observability.ClientIP(c),
		UserAgent:    c.Request.UserAgent(),
		Data:         req.Data,
		Detail:       req.Detail,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": logRow.ID})
}

// HandleListEventLogs handles GET /api/admin/eventlogs
func (h *Handler) HandleListEventLogs(c *gin.Context) {
	ctx := c.Request.Context()
	filter := store.EventLogFilter{
		CustomerCode: c.Query("customerCode"),
		Action:       c.Query("action"),
		ObjectType:   c.Query("objectType"),
	}
	if from, ok := parseDate(c.Query("from")); ok {
		filter.From = from
	}
	if to, ok := parseDate(c.Query("to")); ok {
		filter.To = to.AddDate(0, 0, 1)
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "50"))

	logs, total, err := h.processor.ListEventLogs(ctx, filter, page, size)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": logs, "total": total, "page": page, "size": size})
}

func parseDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeTypeFilter treats "all" and "*" as no filter.
func normalizeTypeFilter(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "all") || raw == "*" {
		return ""
	}
	return strings.ToUpper(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
