package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/clients/fcm"
	"portal-server/internal/observability"
	"portal-server/internal/push/processor"
)

type Handler struct {
	processor processor.PushProcessor
	logger    *observability.Logger
}

func New(processor processor.PushProcessor, logger *observability.Logger) Handler {
	return Handler{processor: processor, logger: logger}
}

// NotificationBody is the shared notification payload of push requests.
type NotificationBody struct {
	Title    string            `json:"title" binding:"required,max=255"`
	Body     string            `json:"body" binding:"max=1024"`
	ImageURL string            `json:"imageUrl" binding:"omitempty,url"`
	Data     map[string]string `json:"data,omitempty"`
}

func (b NotificationBody) toNotification() fcm.Notification {
	return fcm.Notification{
		Title:    b.Title,
		Body:     b.Body,
		ImageURL: b.ImageURL,
		Data:     b.Data,
	}
}

// TokenPushRequest represents the HTTP request for a single-device push
type TokenPushRequest struct {
	Token string `json:"token" binding:"required"`
	NotificationBody
}

// TokensPushRequest represents the HTTP request for a multi-device push
type TokensPushRequest struct {
	Tokens []string `json:"tokens" binding:"required,min=1,max=500"`
	NotificationBody
}

// TopicPushRequest represents the HTTP request for a topic push
type TopicPushRequest struct {
	Topic string `json:"topic" binding:"required,max=255"`
	NotificationBody
}

// HandleSendToToken handles POST /api/push/token
func (h *Handler) HandleSendToToken(c *gin.Context) {
	ctx := c.Request.Context()
	var req TokenPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	result, err := h.processor.SendToToken(ctx, req.Token, req.toNotification())
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleSendToTokens handles POST /api/push/tokens
func (h *Handler) HandleSendToTokens(c *gin.Context) {
	ctx := c.Request.Context()
	var req TokensPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	result, err := h.processor.SendToTokens(ctx, req.Tokens, req.toNotification())
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// HandleSendToTopic handles POST /api/push/topic
func (h *Handler) HandleSendToTopic(c *gin.Context) {
	ctx := c.Request.Context()
	var req TopicPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	result, err := h.processor.SendToTopic(ctx, req.Topic, req.toNotification())
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
