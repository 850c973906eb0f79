package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/knowwhyhq/knowwhy/internal/infrastructure/http/middleware"
	"github.com/knowwhyhq/knowwhy/internal/usecase/auth"
	"github.com/knowwhyhq/knowwhy/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg                *config.Config
	oauthService       *auth.OAuthService
	authHandler        *Auth
	decisionHandler    *Decision
	meetingHandler     *Meeting
	integrationHandler *Integration
	syncHandler        *Sync
	slackWebhook       *SlackWebhook
	gitlabWebhook      *GitLabWebhook
}

// NewRouter creates a new router with all handlers
func NewRouter(
	cfg *config.Config,
	oauthService *auth.OAuthService,
	authHandler *Auth,
	decisionHandler *Decision,
	meetingHandler *Meeting,
	integrationHandler *Integration,
	syncHandler *Sync,
	slackWebhook *SlackWebhook,
	gitlabWebhook *GitLabWebhook,
) *Router {
	return &Router{
		cfg:                cfg,
		oauthService:       oauthService,
		authHandler:        authHandler,
		decisionHandler:    decisionHandler,
		meetingHandler:     meetingHandler,
		integrationHandler: integrationHandler,
		syncHandler:        syncHandler,
		slackWebhook:       slackWebhook,
		gitlabWebhook:      gitlabWebhook,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)

	v1 := e.Group("/v1")

	rt.setupAuthRoutes(v1)
	rt.setupWebhookRoutes(v1)

	// Everything below requires a session
	authed := v1.Group("", middleware.EchoAuth(rt.oauthService))
	rt.setupDecisionRoutes(authed)
	rt.setupMeetingRoutes(authed)
	rt.setupIntegrationRoutes(authed)

	authed.POST("/sync", rt.syncHandler.SyncMe)

	// Scheduler entry point, guarded by a shared token instead of a session
	v1.POST("/sync/run", rt.syncHandler.SyncAll)
}

func (rt *Router) setupAuthRoutes(g *echo.Group) {
	authGroup := g.Group("/auth")

	authGroup.GET("/google/login", rt.authHandler.GoogleLogin)
	authGroup.GET("/google/callback", rt.authHandler.GoogleCallback)
	authGroup.POST("/refresh", rt.authHandler.RefreshToken)
	authGroup.POST("/logout", rt.authHandler.Logout)
	authGroup.GET("/me", rt.authHandler.Me, middleware.EchoAuth(rt.oauthService))
}

func (rt *Router) setupDecisionRoutes(g *echo.Group) {
	decisionGroup := g.Group("/decisions")

	decisionGroup.GET("", rt.decisionHandler.List)
	decisionGroup.POST("", rt.decisionHandler.Create)
	decisionGroup.GET("/search", rt.decisionHandler.Search)
	decisionGroup.POST("/ask", rt.decisionHandler.Ask)
	decisionGroup.GET("/:id", rt.decisionHandler.Get)
	decisionGroup.DELETE("/:id", rt.decisionHandler.Delete)
	decisionGroup.POST("/:id/feedback", rt.decisionHandler.Feedback)
}

func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetingGroup := g.Group("/meetings")

	meetingGroup.GET("", rt.meetingHandler.List)
	meetingGroup.POST("", rt.meetingHandler.Create)
	meetingGroup.GET("/events", rt.meetingHandler.ListEvents)
	meetingGroup.POST("/events", rt.meetingHandler.ScheduleEvent)
	meetingGroup.DELETE("/events/:eventId", rt.meetingHandler.DeleteEvent)
	meetingGroup.GET("/:id", rt.meetingHandler.Get)
	meetingGroup.DELETE("/:id", rt.meetingHandler.Delete)
	meetingGroup.PUT("/:id/transcript", rt.meetingHandler.UpdateTranscript)
	meetingGroup.POST("/:id/analyze", rt.meetingHandler.Analyze)
}

func (rt *Router) setupIntegrationRoutes(g *echo.Group) {
	integrationGroup := g.Group("/integrations")

	integrationGroup.GET("", rt.integrationHandler.List)
	integrationGroup.POST("/slack", rt.integrationHandler.ConnectSlack)
	integrationGroup.POST("/gitlab", rt.integrationHandler.ConnectGitLab)
	integrationGroup.DELETE("/:source", rt.integrationHandler.Disconnect)
}

func (rt *Router) setupWebhookRoutes(g *echo.Group) {
	webhookGroup := g.Group("/webhooks")

	webhookGroup.POST("/slack", rt.slackWebhook.Handle)
	webhookGroup.POST("/gitlab", rt.gitlabWebhook.Handle)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
