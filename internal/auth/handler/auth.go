package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"portal-server/internal/apierrors"
	"portal-server/internal/auth/processor"
	"portal-server/internal/observability"
)

type Handler struct {
	authProcessor processor.AuthProcessor
	logger        *observability.Logger
}

func New(authProcessor processor.AuthProcessor, logger *observability.Logger) Handler {
	return Handler{authProcessor: authProcessor, logger: logger}
}

type AdminSignupRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=64"`
	Password     string `json:"password" binding:"required,min=8,max=72"`
	Name         string `json:"name" binding:"required,max=128"`
	SignupSecret string `json:"signupSecret"`
}

type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CustomerLoginRequest struct {
	CustomerCode string `json:"customerCode" binding:"required"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

// UnifiedLoginRequest routes a login to the admin or customer flow by type.
type UnifiedLoginRequest struct {
	Type         string `json:"type" binding:"required,oneof=admin customer"`
	CustomerCode string `json:"customerCode"`
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// HandleAdminSignup handles POST /api/admin/auth/signup
func (h *Handler) HandleAdminSignup(c *gin.Context) {
	ctx := c.Request.Context()
	var req AdminSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	user, err := h.authProcessor.AdminSignup(ctx, processor.AdminSignupRequest{
		Username:     req.Username,
		Password:     req.Password,
		Name:         req.Name,
		SignupSecret: req.SignupSecret,
	})
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// HandleAdminLogin handles POST /api/admin/auth/login
func (h *Handler) HandleAdminLogin(c *gin.Context) {
	ctx := c.Request.Context()
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	user, err := h.authProcessor.AdminLogin(ctx, req.Username, req.Password)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// HandleUnifiedLogin handles POST /api/auth/login
func (h *Handler) HandleUnifiedLogin(c *gin.Context) {
	ctx := c.Request.Context()
	var req UnifiedLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	var (
		user processor.LoggedInUser
		err  error
	)
	switch req.Type {
	case "admin":
		user, err = h.authProcessor.AdminLogin(ctx, req.Username, req.Password)
	case "customer":
		if req.CustomerCode == "" {
			apierrors.RespondWithError(c, apierrors.BadRequest(apierrors.CodeInvalidInput, "customerCode is required for customer login"))
			return
		}
		user, err = h.authProcessor.CustomerLogin(ctx, req.CustomerCode, req.Username, req.Password)
	}
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// HandleCustomerLogin handles POST /api/customer/auth/login
func (h *Handler) HandleCustomerLogin(c *gin.Context) {
	ctx := c.Request.Context()
	var req CustomerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	user, err := h.authProcessor.CustomerLogin(ctx, req.CustomerCode, req.Username, req.Password)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// HandleAdminMe handles GET /api/admin/auth/me
func (h *Handler) HandleAdminMe(c *gin.Context) {
	ctx := c.Request.Context()
	claims, ok := processor.ClaimsFromContext(ctx)
	if !ok {
		apierrors.RespondWithError(c, apierrors.Unauthorized("not authenticated"))
		return
	}
	user, err := h.authProcessor.GetAdminProfile(ctx, claims.UserID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// HandleCustomerMe handles GET /api/customer/auth/me
func (h *Handler) HandleCustomerMe(c *gin.Context) {
	ctx := c.Request.Context()
	claims, ok := processor.ClaimsFromContext(ctx)
	if !ok {
		apierrors.RespondWithError(c, apierrors.Unauthorized("not authenticated"))
		return
	}
	profile, err := h.authProcessor.GetCustomerProfile(ctx, claims.UserID)
	if err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// HandleChangePassword handles POST /api/customer/auth/change-password
func (h *Handler) HandleChangePassword(c *gin.Context) {
	ctx := c.Request.Context()
	claims, ok := processor.ClaimsFromContext(ctx)
	if !ok {
		apierrors.RespondWithError(c, apierrors.Unauthorized("not authenticated"))
		return
	}
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.RespondWithValidationError(c, err)
		return
	}
	if err := h.authProcessor.ChangeCustomerPassword(ctx, claims.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		apierrors.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// HandleLogout handles POST .../auth/logout. Tokens are stateless; the
// endpoint exists so clients have a uniform logout call.
func (h *Handler) HandleLogout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) bearerClaims(c *gin.Context) (processor.Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return processor.Claims{}, false
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	claims, err := h.authProcessor.ValidateToken(c.Request.Context(), tokenString)
	if err != nil {
		return processor.Claims{}, false
	}
	return claims, true
}

// OptionalAuthMiddleware attaches claims to the request context when a
// valid bearer token is present and lets the request through either way.
func (h *Handler) OptionalAuthMiddleware(c *gin.Context) {
	if claims, ok := h.bearerClaims(c); ok {
		c.Request = c.Request.WithContext(processor.WithClaims(c.Request.Context(), claims))
	}
	c.Next()
}

// RequireAuthMiddleware rejects requests without a valid bearer token for
// one of the given user types.
func (h *Handler) RequireAuthMiddleware(userTypes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := h.bearerClaims(c)
		if !ok {
			apierrors.RespondWithError(c, apierrors.Unauthorized("authorization token is missing or invalid"))
			c.Abort()
			return
		}
		allowed := len(userTypes) == 0
		for _, t := range userTypes {
			if claims.UserType == t {
				allowed = true
				break
			}
		}
		if !allowed {
			apierrors.RespondWithError(c, apierrors.Forbidden("insufficient permissions"))
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(processor.WithClaims(c.Request.Context(), claims))
		c.Next()
	}
}
