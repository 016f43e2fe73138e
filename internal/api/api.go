package api

import (
	"net/http"

	authHandler "portal-server/internal/auth/handler"
	authProcessor "portal-server/internal/auth/processor"
	contactsHandler "portal-server/internal/contacts/handler"
	customersHandler "portal-server/internal/customers/handler"
	directadsHandler "portal-server/internal/directads/handler"
	eventsHandler "portal-server/internal/events/handler"
	"portal-server/internal/imageproxy"
	newslettersHandler "portal-server/internal/newsletters/handler"
	noticesHandler "portal-server/internal/notices/handler"
	polarlettersHandler "portal-server/internal/polarletters/handler"
	pushHandler "portal-server/internal/push/handler"
	tenantHandler "portal-server/internal/tenant/handler"

	"github.com/gin-gonic/gin"
)

type API struct {
	router              *gin.RouterGroup
	authHandler         authHandler.Handler
	tenantHandler       tenantHandler.Handler
	customersHandler    customersHandler.Handler
	contactsHandler     contactsHandler.Handler
	eventsHandler       eventsHandler.Handler
	directadsHandler    directadsHandler.Handler
	noticesHandler      noticesHandler.Handler
	newslettersHandler  newslettersHandler.Handler
	polarlettersHandler polarlettersHandler.Handler
	pushHandler         pushHandler.Handler
	imageProxyHandler   imageproxy.Handler
}

func New(
	router *gin.RouterGroup,
	auth authHandler.Handler,
	tenant tenantHandler.Handler,
	customers customersHandler.Handler,
	contacts contactsHandler.Handler,
	events eventsHandler.Handler,
	directads directadsHandler.Handler,
	notices noticesHandler.Handler,
	newsletters newslettersHandler.Handler,
	polarletters polarlettersHandler.Handler,
	push pushHandler.Handler,
	imageProxy imageproxy.Handler,
) API {
	return API{
		router:              router,
		authHandler:         auth,
		tenantHandler:       tenant,
		customersHandler:    customers,
		contactsHandler:     contacts,
		eventsHandler:       events,
		directadsHandler:    directads,
		noticesHandler:      notices,
		newslettersHandler:  newsletters,
		polarlettersHandler: polarletters,
		pushHandler:         push,
		imageProxyHandler:   imageProxy,
	}
}

func (a *API) RegisterRoutes() {
	a.Health()
	a.router.GET("/img-proxy", a.imageProxyHandler.HandleProxy)

	apiGroup := a.router.Group("/api")

	// Public endpoints. Tokens are honored when present so event queries
	// can fall back to the caller's claims for code resolution.
	publicGroup := apiGroup.Group("", a.authHandler.OptionalAuthMiddleware)
	{
		publicGroup.POST("/tenant/resolve", a.tenantHandler.HandleResolve)

		publicGroup.POST("/events/report", a.eventsHandler.HandleReport)
		publicGroup.GET("/events/report/daily", a.eventsHandler.HandleDailyReport)
		publicGroup.GET("/events/report/_ping", a.eventsHandler.HandlePing)
		publicGroup.GET("/events/security", a.eventsHandler.HandleListSecurity)
		publicGroup.POST("/track/events", a.eventsHandler.HandleTrack)

		publicGroup.GET("/directads", a.directadsHandler.HandleListAds)
		publicGroup.GET("/directads/_ping", a.directadsHandler.HandlePing)
		publicGroup.GET("/directads/:id", a.directadsHandler.HandleGetAd)
		publicGroup.POST("/directads/:id/impression", a.directadsHandler.HandleImpression)
		publicGroup.POST("/directads/:id/click", a.directadsHandler.HandleClick)
		publicGroup.POST("/directads/:id/track/impression", a.directadsHandler.HandleImpression)
		publicGroup.POST("/directads/:id/track/click", a.directadsHandler.HandleClick)

		publicGroup.GET("/notices", a.noticesHandler.HandleListNotices)
		publicGroup.GET("/notices/_ping", a.noticesHandler.HandlePing)
		publicGroup.GET("/notices/:id", a.noticesHandler.HandleGetNotice)
		publicGroup.GET("/newsletters", a.newslettersHandler.HandleListNewsletters)
		publicGroup.GET("/newsletters/_ping", a.newslettersHandler.HandlePing)
		publicGroup.GET("/newsletters/:id", a.newslettersHandler.HandleGetNewsletter)
		publicGroup.GET("/polarletters", a.polarlettersHandler.HandleListLetters)
		publicGroup.GET("/polarletters/_ping", a.polarlettersHandler.HandlePing)
		publicGroup.GET("/polarletters/:id", a.polarlettersHandler.HandleGetLetter)

		publicGroup.POST("/auth/login", a.authHandler.HandleUnifiedLogin)
		publicGroup.POST("/auth/logout", a.authHandler.HandleLogout)
	}

	// Admin console authentication.
	adminAuthGroup := apiGroup.Group("/admin/auth")
	{
		adminAuthGroup.POST("/signup", a.authHandler.HandleAdminSignup)
		adminAuthGroup.POST("/login", a.authHandler.HandleAdminLogin)
		adminAuthGroup.POST("/logout", a.authHandler.HandleLogout)
		adminAuthGroup.GET("/me",
			a.authHandler.RequireAuthMiddleware(authProcessor.UserTypeAdmin), a.authHandler.HandleAdminMe)
	}

	// Customer portal authentication.
	customerAuthGroup := apiGroup.Group("/customer/auth")
	{
		customerAuthGroup.POST("/login", a.authHandler.HandleCustomerLogin)
		customerAuthGroup.POST("/logout", a.authHandler.HandleLogout)
		customerAuthGroup.GET("/me",
			a.authHandler.RequireAuthMiddleware(authProcessor.UserTypeCustomer), a.authHandler.HandleCustomerMe)
		customerAuthGroup.POST("/change-password",
			a.authHandler.RequireAuthMiddleware(authProcessor.UserTypeCustomer), a.authHandler.HandleChangePassword)
	}

	// Customer portal self-service.
	customerGroup := apiGroup.Group("/customer",
		a.authHandler.RequireAuthMiddleware(authProcessor.UserTypeCustomer))
	{
		customerGroup.GET("/contacts/me", a.contactsHandler.HandleGetMe)
		customerGroup.PUT("/contacts/me", a.contactsHandler.HandleUpdateMe)
	}

	// Admin console management.
	adminGroup := apiGroup.Group("/admin",
		a.authHandler.RequireAuthMiddleware(authProcessor.UserTypeAdmin))
	{
		adminGroup.POST("/customers", a.customersHandler.HandleCreateCustomer)
		adminGroup.GET("/customers", a.customersHandler.HandleListCustomers)
		adminGroup.GET("/customers/exists", a.customersHandler.HandleCustomerExists)
		adminGroup.GET("/customers/:code", a.customersHandler.HandleGetCustomer)
		adminGroup.PATCH("/customers/:code", a.customersHandler.HandleUpdateCustomer)
		adminGroup.DELETE("/customers/:code", a.customersHandler.HandleDeleteCustomer)
		adminGroup.GET("/customers/:code/stats", a.customersHandler.HandleGetStats)
		adminGroup.PUT("/customers/:code/settlements", a.customersHandler.HandleUpsertSettlement)

		adminGroup.POST("/customers/:code/bindings", a.tenantHandler.HandleCreateBinding)
		adminGroup.GET("/customers/:code/bindings", a.tenantHandler.HandleListBindings)
		adminGroup.DELETE("/bindings/:id", a.tenantHandler.HandleDeleteBinding)

		adminGroup.POST("/contacts", a.contactsHandler.HandleUpsert)
		adminGroup.GET("/contacts", a.contactsHandler.HandleList)
		adminGroup.GET("/contacts/:id", a.contactsHandler.HandleGet)
		adminGroup.DELETE("/contacts/:id", a.contactsHandler.HandleDelete)
		adminGroup.DELETE("/contacts/by-customer/:code", a.contactsHandler.HandleDeleteByCustomer)

		adminGroup.GET("/eventlogs", a.eventsHandler.HandleListEventLogs)
	}

	// Console write surface. These live at their public paths but require an
	// admin token.
	consoleGroup := apiGroup.Group("",
		a.authHandler.RequireAuthMiddleware(authProcessor.UserTypeAdmin))
	{
		consoleGroup.POST("/directads", a.directadsHandler.HandleCreateAd)
		consoleGroup.PUT("/directads/:id", a.directadsHandler.HandleUpdateAd)
		consoleGroup.DELETE("/directads/:id", a.directadsHandler.HandleDeleteAd)
		consoleGroup.GET("/directads/:id/metrics", a.directadsHandler.HandleGetMetrics)

		consoleGroup.POST("/notices", a.noticesHandler.HandleCreateNotice)
		consoleGroup.PUT("/notices/:id", a.noticesHandler.HandleUpdateNotice)
		consoleGroup.DELETE("/notices/:id", a.noticesHandler.HandleDeleteNotice)

		consoleGroup.POST("/newsletters", a.newslettersHandler.HandleCreateNewsletter)
		consoleGroup.PUT("/newsletters/:id", a.newslettersHandler.HandleUpdateNewsletter)
		consoleGroup.DELETE("/newsletters/:id", a.newslettersHandler.HandleDeleteNewsletter)

		consoleGroup.POST("/polarletters", a.polarlettersHandler.HandleCreateLetter)
		consoleGroup.PUT("/polarletters/:id", a.polarlettersHandler.HandleUpdateLetter)
		consoleGroup.DELETE("/polarletters/:id", a.polarlettersHandler.HandleDeleteLetter)

		consoleGroup.POST("/push/token", a.pushHandler.HandleSendToToken)
		consoleGroup.POST("/push/tokens", a.pushHandler.HandleSendToTokens)
		consoleGroup.POST("/push/topic", a.pushHandler.HandleSendToTopic)
	}
}

func (a *API) Health() {
	a.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
}
