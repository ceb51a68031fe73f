package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/meetpoll-team/meetpoll/internal/infrastructure/http/middleware"
	"github.com/meetpoll-team/meetpoll/pkg/config"
)

// Router holds all handlers
type Router struct {
	cfg          *config.Config
	pollHandler  *Poll
	eventHandler *Event
}

// NewRouter creates a new router with all handlers
func NewRouter(cfg *config.Config, pollHandler *Poll, eventHandler *Event) *Router {
	return &Router{
		cfg:          cfg,
		pollHandler:  pollHandler,
		eventHandler: eventHandler,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", rt.healthCheck)

	// API v1 group; every route below needs a caller identity
	v1 := e.Group("/v1", middleware.Identity())

	rt.setupPollRoutes(v1)
	rt.setupEventRoutes(v1)
}

// setupPollRoutes configures poll lifecycle routes
func (rt *Router) setupPollRoutes(g *echo.Group) {
	pollGroup := g.Group("/polls")

	pollGroup.POST("", rt.pollHandler.CreatePoll)
	pollGroup.GET("", rt.pollHandler.ListPolls)
	pollGroup.GET("/:id", rt.pollHandler.GetPoll)
	pollGroup.POST("/:id/responses", rt.pollHandler.SubmitResponse)
	pollGroup.POST("/:id/close", rt.pollHandler.ClosePoll)
	pollGroup.POST("/:id/cancel", rt.pollHandler.CancelPoll)
	pollGroup.POST("/:id/finalize", rt.pollHandler.Finalize)
	pollGroup.POST("/:id/reopen", rt.pollHandler.Reopen)
	pollGroup.GET("/:id/results", rt.pollHandler.Results)
}

// setupEventRoutes configures calendar event routes
func (rt *Router) setupEventRoutes(g *echo.Group) {
	eventGroup := g.Group("/events")

	eventGroup.GET("/:id", rt.eventHandler.GetEvent)
	eventGroup.POST("/:id/resend", rt.eventHandler.ResendFailed)
	eventGroup.POST("/:id/rsvp", rt.eventHandler.RSVP)
}

// healthCheck returns health status
func (rt *Router) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": rt.cfg.Server.Environment,
	})
}
