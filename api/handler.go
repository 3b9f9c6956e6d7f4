// Package api provides HTTP handlers for the master.
package api

import (
	"net/http"

	"github.com/jameskwon07/deploymaster/config"
	"github.com/jameskwon07/deploymaster/github"
	"github.com/jameskwon07/deploymaster/policy"
	"github.com/jameskwon07/deploymaster/store"
	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests.
type Handler struct {
	store  store.Store
	github *github.Client
	config *config.Config
	policy *policy.Engine
}

// NewHandler creates a new handler.
func NewHandler(store store.Store, github *github.Client, config *config.Config, policy *policy.Engine) *Handler {
	return &Handler{
		store:  store,
		github: github,
		config: config,
		policy: policy,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Agent registry. /agents/register doubles as the heartbeat endpoint.
	e.POST("/agents/register", h.RegisterAgent)
	e.GET("/agents", h.ListAgents)
	e.GET("/agents/:id", h.GetAgent)
	e.PUT("/agents/:id", h.UpdateAgent)
	e.DELETE("/agents/:id", h.DeleteAgent)

	// Release catalog
	e.GET("/releases", h.ListReleases)
	e.GET("/releases/:id", h.GetRelease)
	e.POST("/releases", h.CreateRelease)
	e.PUT("/releases/:id", h.UpdateRelease)
	e.DELETE("/releases/:id", h.DeleteRelease)
	e.GET("/releases/:id/versions", h.GetReleaseVersions)

	// Deployment ledger
	e.POST("/deployments", h.CreateDeployment)
	e.GET("/deployments", h.ListDeployments)
	e.GET("/deployments/history", h.GetDeploymentHistory)
	e.GET("/deployments/pending/:agent_id", h.GetPendingDeployment)
	e.GET("/deployments/:id", h.GetDeployment)
	e.POST("/deployments/:id/complete", h.CompleteDeployment)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
