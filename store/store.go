// Package store provides persistence for agents, releases and deployments.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jameskwon07/deploymaster/domain"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for the master.
type Store interface {
	// Agent registry. RegisterAgent upserts by agent name: the same identity
	// always yields the same record, with last_seen refreshed. Registration
	// and heartbeat are the same call on the wire.
	RegisterAgent(ctx context.Context, name string, platform domain.Platform, version, ip string) (*domain.Agent, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	ListAgents(ctx context.Context) ([]domain.Agent, error)
	RenameAgent(ctx context.Context, id, name string) error
	// DeleteAgent is idempotent: deleting an unknown id is a no-op.
	DeleteAgent(ctx context.Context, id string) error

	// Release catalog.
	CreateRelease(ctx context.Context, rel *domain.Release) error
	GetRelease(ctx context.Context, id string) (*domain.Release, error)
	ListReleases(ctx context.Context) ([]domain.Release, error)
	UpdateRelease(ctx context.Context, rel *domain.Release) error
	DeleteRelease(ctx context.Context, id string) error

	// Deployment ledger.
	CreateDeployment(ctx context.Context, dep *domain.Deployment) error
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)
	ListDeployments(ctx context.Context, agentID string, status domain.DeploymentStatus, limit int) ([]domain.Deployment, error)
	// NextPendingDeployment returns the oldest pending deployment for the
	// agent, or nil when none. It never changes the deployment status:
	// delivery is at-least-once and redelivery continues until a completion
	// report lands.
	NextPendingDeployment(ctx context.Context, agentID string) (*domain.Deployment, error)
	// MarkDeploymentStarted records started_at once, best-effort.
	MarkDeploymentStarted(ctx context.Context, id string, at time.Time) error
	// CompleteDeployment is idempotent by deployment id: a second report
	// overwrites the first.
	CompleteDeployment(ctx context.Context, id string, status domain.DeploymentStatus, errorMessage string, at time.Time) error

	Close() error
}
