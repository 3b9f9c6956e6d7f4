// Package masterclient provides an HTTP client for the master API, used by
// the agent runtime loop and the deployment executor.
package masterclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jameskwon07/deploymaster/domain"
)

// ErrNotFound is returned when the master reports an unknown id.
var ErrNotFound = errors.New("not found")

// Client is an HTTP client for the master API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new master client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// RegisterRequest is the registration/heartbeat payload.
type RegisterRequest struct {
	Name      string `json:"name"`
	Platform  string `json:"platform"`
	Version   string `json:"version"`
	IPAddress string `json:"ip_address,omitempty"`
}

// Register registers the agent, or refreshes its heartbeat; the two are the
// same call. Returns the registry's view of the agent, including the
// persistent id.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*domain.Agent, error) {
	var agent domain.Agent
	if err := c.doJSON(ctx, http.MethodPost, "/agents/register", req, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// Unregister removes the agent from the registry. Idempotent on the master.
func (c *Client) Unregister(ctx context.Context, agentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/agents/"+agentID, nil, nil)
}

// PendingDeployment polls for the next deployment queued for this agent.
// Returns nil when none is pending.
func (c *Client) PendingDeployment(ctx context.Context, agentID string) (*domain.Deployment, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/deployments/pending/"+agentID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to poll pending deployment: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// An empty or null body means nothing is pending.
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var dep domain.Deployment
	if err := json.Unmarshal(body, &dep); err != nil {
		return nil, fmt.Errorf("failed to decode deployment: %w", err)
	}
	return &dep, nil
}

// GetRelease fetches release metadata by id.
func (c *Client) GetRelease(ctx context.Context, releaseID string) (*domain.Release, error) {
	var rel domain.Release
	if err := c.doJSON(ctx, http.MethodGet, "/releases/"+releaseID, nil, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// CompleteDeployment reports a deployment's outcome. The master treats this
// as idempotent by deployment id.
func (c *Client) CompleteDeployment(ctx context.Context, deploymentID string, status domain.DeploymentStatus, errorMessage string) error {
	body := map[string]string{
		"status":        string(status),
		"error_message": errorMessage,
	}
	return c.doJSON(ctx, http.MethodPost, "/deployments/"+deploymentID+"/complete", body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call master: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("master returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
