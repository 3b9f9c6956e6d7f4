package domain

import "time"

// HeartbeatInterval is how often an agent re-registers itself.
const HeartbeatInterval = 10 * time.Second

// LivenessWindow is the maximum age of last_seen before an agent is
// reported offline. Three missed heartbeats.
const LivenessWindow = 30 * time.Second

// Agent represents a registered agent. Status is not stored; it is derived
// from LastSeen at read time via StatusAt.
type Agent struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Platform  Platform    `json:"platform"`
	Version   string      `json:"version"`
	Status    AgentStatus `json:"status"`
	LastSeen  time.Time   `json:"last_seen"`
	IPAddress string      `json:"ip_address,omitempty"`
}

// StatusAt derives the agent's liveness at the given instant.
func (a *Agent) StatusAt(now time.Time, window time.Duration) AgentStatus {
	if a.LastSeen.IsZero() || now.Sub(a.LastSeen) > window {
		return AgentOffline
	}
	return AgentOnline
}

// Release describes a deployable unit hosted at an external artifact host.
// DownloadURL references the repository whose releases are addressable by tag.
type Release struct {
	ID          string    `json:"id"`
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	DownloadURL string    `json:"download_url"`
	Description string    `json:"description,omitempty"`
	Assets      []string  `json:"assets"`
	ReleaseDate time.Time `json:"release_date"`
}

// ReleaseSelection pins one release of a deployment to a specific tag.
// Version may be empty, in which case the release's own tag_name is used.
type ReleaseSelection struct {
	ReleaseID string `json:"release_id"`
	Version   string `json:"version,omitempty"`
}

// Deployment is a batch request to install one or more releases, at specific
// versions, on one agent. Releases is ordered; execution is fail-fast in
// list order.
type Deployment struct {
	ID           string             `json:"id"`
	AgentID      string             `json:"agent_id"`
	Releases     []ReleaseSelection `json:"releases"`
	Status       DeploymentStatus   `json:"status"`
	CreatedAt    time.Time          `json:"created_at"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
	ErrorMessage string             `json:"error_message,omitempty"`
}
