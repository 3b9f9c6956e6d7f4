// Package domain defines the core domain models for the deployment master.
package domain

// Platform identifies the operating system an agent runs on.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformMacOS   Platform = "macos"
	PlatformLinux   Platform = "linux"
	PlatformUnknown Platform = "unknown"
)

// ParsePlatform normalizes a platform string. Unrecognized values map to
// PlatformUnknown rather than failing, so a mislabeled agent can still
// register and be inspected.
func ParsePlatform(s string) Platform {
	switch Platform(s) {
	case PlatformWindows, PlatformMacOS, PlatformLinux:
		return Platform(s)
	case "darwin":
		return PlatformMacOS
	default:
		return PlatformUnknown
	}
}

// AgentStatus represents the derived liveness of an agent.
type AgentStatus string

const (
	AgentOnline  AgentStatus = "online"
	AgentOffline AgentStatus = "offline"
)

// DeploymentStatus represents the status of a deployment.
type DeploymentStatus string

const (
	DeploymentPending    DeploymentStatus = "pending"
	DeploymentInProgress DeploymentStatus = "in_progress"
	DeploymentSuccess    DeploymentStatus = "success"
	DeploymentFailed     DeploymentStatus = "failed"
)

// IsTerminal reports whether the status is a valid completion report.
func (s DeploymentStatus) IsTerminal() bool {
	return s == DeploymentSuccess || s == DeploymentFailed
}
