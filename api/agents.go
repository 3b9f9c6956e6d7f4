package api

import (
	"log"
	"net/http"
	"time"

	"github.com/jameskwon07/deploymaster/domain"
	"github.com/labstack/echo/v4"
)

// AgentRegisterRequest is the request to register an agent. Heartbeats use
// the same endpoint with the same payload.
type AgentRegisterRequest struct {
	Name      string `json:"name"`
	Platform  string `json:"platform"`
	Version   string `json:"version"`
	IPAddress string `json:"ip_address,omitempty"`
}

// RegisterAgent registers an agent or refreshes its heartbeat.
// POST /agents/register
func (h *Handler) RegisterAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req AgentRegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	agent, err := h.store.RegisterAgent(ctx, req.Name, domain.ParsePlatform(req.Platform), req.Version, req.IPAddress)
	if err != nil {
		log.Printf("ERROR: failed to register agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to register agent"})
	}

	agent.Status = agent.StatusAt(time.Now(), h.config.LivenessWindow)
	return c.JSON(http.StatusOK, agent)
}

// ListAgents lists all agents with derived liveness status.
// GET /agents
func (h *Handler) ListAgents(c echo.Context) error {
	ctx := c.Request().Context()

	agents, err := h.store.ListAgents(ctx)
	if err != nil {
		log.Printf("ERROR: failed to list agents: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list agents"})
	}

	now := time.Now()
	for i := range agents {
		agents[i].Status = agents[i].StatusAt(now, h.config.LivenessWindow)
	}

	return c.JSON(http.StatusOK, agents)
}

// GetAgent gets a specific agent by ID.
// GET /agents/:id
func (h *Handler) GetAgent(c echo.Context) error {
	ctx := c.Request().Context()

	agent, err := h.store.GetAgent(ctx, c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get agent"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	agent.Status = agent.StatusAt(time.Now(), h.config.LivenessWindow)
	return c.JSON(http.StatusOK, agent)
}

// AgentUpdateRequest is the request to rename an agent.
type AgentUpdateRequest struct {
	Name string `json:"name"`
}

// UpdateAgent renames an agent.
// PUT /agents/:id
func (h *Handler) UpdateAgent(c echo.Context) error {
	ctx := c.Request().Context()

	var req AgentUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	if err := h.store.RenameAgent(ctx, c.Param("id"), req.Name); err != nil {
		return h.storeError(c, err, "failed to update agent", "agent not found")
	}

	return h.GetAgent(c)
}

// DeleteAgent unregisters an agent. Idempotent: deleting an unknown id
// succeeds.
// DELETE /agents/:id
func (h *Handler) DeleteAgent(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.store.DeleteAgent(ctx, c.Param("id")); err != nil {
		log.Printf("ERROR: failed to delete agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete agent"})
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "agent deleted"})
}
