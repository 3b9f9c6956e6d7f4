package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jameskwon07/deploymaster/domain"
	"github.com/jameskwon07/deploymaster/policy"
	"github.com/labstack/echo/v4"
)

// DeploymentCreateRequest is the request to queue a deployment. The two
// lists are positionally paired: release_versions[i] is the tag selected for
// release_ids[i]. They are zipped into ordered pairs at the boundary so the
// equal-length invariant cannot be violated further in.
type DeploymentCreateRequest struct {
	AgentID         string   `json:"agent_id"`
	ReleaseIDs      []string `json:"release_ids"`
	ReleaseVersions []string `json:"release_versions"`
}

// DeploymentCompleteRequest is the completion report sent by an agent.
type DeploymentCompleteRequest struct {
	Status       domain.DeploymentStatus `json:"status"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

// CreateDeployment queues a multi-release deployment for one agent.
// POST /deployments
func (h *Handler) CreateDeployment(c echo.Context) error {
	ctx := c.Request().Context()

	var req DeploymentCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if len(req.ReleaseIDs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "release_ids must not be empty"})
	}
	if len(req.ReleaseIDs) != len(req.ReleaseVersions) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "release_ids and release_versions must have equal length"})
	}

	agent, err := h.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		log.Printf("ERROR: failed to get agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create deployment"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	selections := make([]domain.ReleaseSelection, len(req.ReleaseIDs))
	for i, releaseID := range req.ReleaseIDs {
		rel, err := h.store.GetRelease(ctx, releaseID)
		if err != nil {
			log.Printf("ERROR: failed to get release: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create deployment"})
		}
		if rel == nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "release " + releaseID + " not found"})
		}
		selections[i] = domain.ReleaseSelection{ReleaseID: releaseID, Version: req.ReleaseVersions[i]}
	}

	decision, err := h.policy.Evaluate(ctx, policy.Input{
		Platform:     string(agent.Platform),
		ReleaseCount: len(selections),
	})
	if err != nil {
		log.Printf("ERROR: failed to evaluate deployment policy: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create deployment"})
	}
	if decision != "allow" {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "deployment blocked by policy"})
	}

	dep := &domain.Deployment{
		ID:        "deploy-" + uuid.New().String(),
		AgentID:   req.AgentID,
		Releases:  selections,
		Status:    domain.DeploymentPending,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateDeployment(ctx, dep); err != nil {
		log.Printf("ERROR: failed to create deployment: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create deployment"})
	}

	return c.JSON(http.StatusOK, dep)
}

// ListDeployments lists deployments, newest first, with optional agent_id
// and status filters.
// GET /deployments
func (h *Handler) ListDeployments(c echo.Context) error {
	deployments, err := h.store.ListDeployments(c.Request().Context(),
		c.QueryParam("agent_id"), domain.DeploymentStatus(c.QueryParam("status")), 0)
	if err != nil {
		log.Printf("ERROR: failed to list deployments: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list deployments"})
	}
	return c.JSON(http.StatusOK, deployments)
}

// GetDeploymentHistory returns the most recent deployments.
// GET /deployments/history
func (h *Handler) GetDeploymentHistory(c echo.Context) error {
	limit := 50
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	deployments, err := h.store.ListDeployments(c.Request().Context(), "", "", limit)
	if err != nil {
		log.Printf("ERROR: failed to get deployment history: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get deployment history"})
	}
	return c.JSON(http.StatusOK, deployments)
}

// GetPendingDeployment is the agent polling endpoint. It returns the oldest
// pending deployment for the agent, or a JSON null when none is pending.
// The deployment stays pending until the agent reports completion, so an
// agent that crashes mid-install will receive it again on the next poll.
// GET /deployments/pending/:agent_id
func (h *Handler) GetPendingDeployment(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("agent_id")

	agent, err := h.store.GetAgent(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to get agent: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get pending deployment"})
	}
	if agent == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
	}

	dep, err := h.store.NextPendingDeployment(ctx, agentID)
	if err != nil {
		log.Printf("ERROR: failed to get pending deployment: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get pending deployment"})
	}
	if dep == nil {
		return c.JSON(http.StatusOK, nil)
	}

	// Best-effort start timestamp; delivery itself is not recorded as a
	// state transition.
	if dep.StartedAt == nil {
		now := time.Now()
		if err := h.store.MarkDeploymentStarted(ctx, dep.ID, now); err != nil {
			log.Printf("WARN: failed to mark deployment started: %v", err)
		} else {
			dep.StartedAt = &now
		}
	}

	return c.JSON(http.StatusOK, dep)
}

// GetDeployment gets a specific deployment.
// GET /deployments/:id
func (h *Handler) GetDeployment(c echo.Context) error {
	dep, err := h.store.GetDeployment(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get deployment: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get deployment"})
	}
	if dep == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "deployment not found"})
	}
	return c.JSON(http.StatusOK, dep)
}

// CompleteDeployment records a deployment's outcome. Reporting is idempotent
// by deployment id: a second report overwrites the first.
// POST /deployments/:id/complete
func (h *Handler) CompleteDeployment(c echo.Context) error {
	ctx := c.Request().Context()

	var req DeploymentCompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if !req.Status.IsTerminal() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "status must be either 'success' or 'failed'"})
	}

	id := c.Param("id")
	if err := h.store.CompleteDeployment(ctx, id, req.Status, req.ErrorMessage, time.Now()); err != nil {
		return h.storeError(c, err, "failed to complete deployment", "deployment not found")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message":       "deployment status updated",
		"deployment_id": id,
		"status":        string(req.Status),
	})
}
