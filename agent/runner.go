package agent

import (
	"context"
	"log"
	"time"

	"github.com/jameskwon07/deploymaster/deploy"
	"github.com/jameskwon07/deploymaster/masterclient"
)

// Runner is the agent runtime loop: a single worker driven by a fixed-period
// ticker. Each tick sends a heartbeat, polls for a pending deployment, and
// executes it synchronously before the next tick can begin, so two
// deployments never run concurrently on one agent.
type Runner struct {
	identity Identity
	session  *Session
	master   *masterclient.Client
	executor *deploy.Executor
	interval time.Duration
}

// NewRunner creates a runner for the given identity. The session is shared
// with the caller so the assigned agent id stays observable.
func NewRunner(identity Identity, session *Session, master *masterclient.Client, executor *deploy.Executor, interval time.Duration) *Runner {
	return &Runner{
		identity: identity,
		session:  session,
		master:   master,
		executor: executor,
		interval: interval,
	}
}

// Run registers once, then ticks until ctx is cancelled. Cancellation is
// observed at tick boundaries only: an in-flight tick, including any
// deployment execution, always finishes before the loop unregisters and
// returns. Registration failures are never fatal; the next tick's heartbeat
// retries through the same code path.
func (r *Runner) Run(ctx context.Context) {
	r.register(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.unregister()
			return
		case <-ticker.C:
			// The tick runs detached from the shutdown signal: cancellation
			// stops scheduling new ticks, but an in-flight pipeline must
			// finish and report rather than be abandoned mid-install.
			r.tick(context.WithoutCancel(ctx))
		}
	}
}

// tick performs one heartbeat/poll/execute cycle. Heartbeat always precedes
// the poll, so an agent about to receive a deployment has just refreshed its
// liveness.
func (r *Runner) tick(ctx context.Context) {
	r.register(ctx)

	if r.session.ID == "" {
		// Never registered successfully; nothing to poll for yet.
		return
	}

	dep, err := r.master.PendingDeployment(ctx, r.session.ID)
	if err != nil {
		log.Printf("WARN: failed to poll pending deployment: %v", err)
		return
	}
	if dep == nil {
		return
	}

	log.Printf("Received deployment %s (%d releases)", dep.ID, len(dep.Releases))
	if err := r.executor.Execute(ctx, dep); err != nil {
		log.Printf("ERROR: deployment %s failed: %v", dep.ID, err)
	}
}

// register registers the agent, or refreshes its heartbeat; the wire call is
// the same. The registry-issued id is stored in the session on success.
func (r *Runner) register(ctx context.Context) {
	agent, err := r.master.Register(ctx, masterclient.RegisterRequest{
		Name:      r.identity.Name,
		Platform:  string(r.identity.Platform),
		Version:   r.identity.Version,
		IPAddress: r.identity.IPAddress,
	})
	if err != nil {
		log.Printf("WARN: registration failed, will retry on next tick: %v", err)
		return
	}
	if r.session.ID == "" {
		log.Printf("Registered as agent %s", agent.ID)
	}
	r.session.ID = agent.ID
}

// unregister removes the agent from the registry using the id issued at
// registration. Called after the loop has stopped, so it gets its own
// deadline rather than the cancelled loop context.
func (r *Runner) unregister() {
	if r.session.ID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := r.master.Unregister(ctx, r.session.ID); err != nil {
		log.Printf("WARN: failed to unregister agent %s: %v", r.session.ID, err)
		return
	}
	log.Printf("Unregistered agent %s", r.session.ID)
}
