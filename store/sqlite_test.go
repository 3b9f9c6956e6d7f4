package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jameskwon07/deploymaster/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRegisterAgentUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.RegisterAgent(ctx, "build-01", domain.PlatformLinux, "1.0.0", "10.0.0.5")
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected an assigned id")
	}

	second, err := s.RegisterAgent(ctx, "build-01", domain.PlatformLinux, "1.1.0", "10.0.0.6")
	if err != nil {
		t.Fatalf("RegisterAgent (heartbeat) failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("id changed across registrations: %s vs %s", first.ID, second.ID)
	}

	agents, err := s.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected exactly one agent record, got %d", len(agents))
	}
	if agents[0].Version != "1.1.0" || agents[0].IPAddress != "10.0.0.6" {
		t.Fatalf("mutable fields not updated: %+v", agents[0])
	}
	if agents[0].LastSeen.Before(first.LastSeen) {
		t.Fatalf("last_seen not refreshed: %v < %v", agents[0].LastSeen, first.LastSeen)
	}
}

func TestRegisterAgentConcurrentFirstRegistration(t *testing.T) {
	ctx := context.Background()

	// A file-backed store so the connection pool can actually hand racing
	// registrations to different connections.
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "agents.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	const n = 8
	ids := make([]string, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agent, err := s.RegisterAgent(ctx, "build-01", domain.PlatformLinux, "1.0.0", "")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = agent.ID
		}(i)
	}
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("concurrent registration %d failed: %v", i, errs[i])
		}
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("racing registrations yielded different ids: %v", ids)
		}
	}

	agents, err := s.ListAgents(ctx)
	if err != nil {
		t.Fatalf("ListAgents failed: %v", err)
	}
	if len(agents) != 1 {
		t.Fatalf("expected exactly one agent record, got %d", len(agents))
	}
}

func TestDeleteAgentIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.DeleteAgent(ctx, "no-such-id"); err != nil {
		t.Fatalf("deleting unknown agent should be a no-op, got %v", err)
	}

	agent, err := s.RegisterAgent(ctx, "build-01", domain.PlatformMacOS, "1.0.0", "")
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if err := s.DeleteAgent(ctx, agent.ID); err != nil {
		t.Fatalf("DeleteAgent failed: %v", err)
	}
	if err := s.DeleteAgent(ctx, agent.ID); err != nil {
		t.Fatalf("repeated DeleteAgent should be a no-op, got %v", err)
	}

	got, err := s.GetAgent(ctx, agent.ID)
	if err != nil {
		t.Fatalf("GetAgent failed: %v", err)
	}
	if got != nil {
		t.Fatalf("agent still present after delete: %+v", got)
	}
}

func TestNextPendingDeploymentFIFO(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a1, err := s.RegisterAgent(ctx, "build-01", domain.PlatformLinux, "1.0.0", "")
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	a2, err := s.RegisterAgent(ctx, "build-02", domain.PlatformLinux, "1.0.0", "")
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}

	base := time.Now()
	mk := func(id, agentID string, createdAt time.Time) {
		dep := &domain.Deployment{
			ID:        id,
			AgentID:   agentID,
			Releases:  []domain.ReleaseSelection{{ReleaseID: "updater", Version: "v1.0.0"}},
			Status:    domain.DeploymentPending,
			CreatedAt: createdAt,
		}
		if err := s.CreateDeployment(ctx, dep); err != nil {
			t.Fatalf("CreateDeployment %s failed: %v", id, err)
		}
	}
	// Inserted out of order on purpose.
	mk("d-newer", a1.ID, base.Add(2*time.Second))
	mk("d-older", a1.ID, base.Add(1*time.Second))
	mk("d-other", a2.ID, base)

	got, err := s.NextPendingDeployment(ctx, a1.ID)
	if err != nil {
		t.Fatalf("NextPendingDeployment failed: %v", err)
	}
	if got == nil || got.ID != "d-older" {
		t.Fatalf("expected oldest pending d-older, got %+v", got)
	}
	if got.AgentID != a1.ID {
		t.Fatalf("deployment belongs to a different agent: %+v", got)
	}

	// Polling does not change status; the same deployment is redelivered.
	again, err := s.NextPendingDeployment(ctx, a1.ID)
	if err != nil {
		t.Fatalf("NextPendingDeployment failed: %v", err)
	}
	if again == nil || again.ID != "d-older" || again.Status != domain.DeploymentPending {
		t.Fatalf("expected d-older still pending, got %+v", again)
	}

	// Completing the older one surfaces the newer one.
	if err := s.CompleteDeployment(ctx, "d-older", domain.DeploymentSuccess, "", time.Now()); err != nil {
		t.Fatalf("CompleteDeployment failed: %v", err)
	}
	next, err := s.NextPendingDeployment(ctx, a1.ID)
	if err != nil {
		t.Fatalf("NextPendingDeployment failed: %v", err)
	}
	if next == nil || next.ID != "d-newer" {
		t.Fatalf("expected d-newer, got %+v", next)
	}
}

func TestCompleteDeployment(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.CompleteDeployment(ctx, "no-such-id", domain.DeploymentSuccess, "", time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	agent, err := s.RegisterAgent(ctx, "build-01", domain.PlatformWindows, "1.0.0", "")
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	dep := &domain.Deployment{
		ID:        "d1",
		AgentID:   agent.ID,
		Releases:  []domain.ReleaseSelection{{ReleaseID: "updater"}},
		Status:    domain.DeploymentPending,
		CreatedAt: time.Now(),
	}
	if err := s.CreateDeployment(ctx, dep); err != nil {
		t.Fatalf("CreateDeployment failed: %v", err)
	}

	if err := s.CompleteDeployment(ctx, "d1", domain.DeploymentSuccess, "", time.Now()); err != nil {
		t.Fatalf("CompleteDeployment failed: %v", err)
	}

	// A second report overwrites the first: last write wins.
	if err := s.CompleteDeployment(ctx, "d1", domain.DeploymentFailed, "release updater: no installable assets", time.Now()); err != nil {
		t.Fatalf("repeated CompleteDeployment failed: %v", err)
	}

	got, err := s.GetDeployment(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDeployment failed: %v", err)
	}
	if got.Status != domain.DeploymentFailed {
		t.Fatalf("expected failed after second report, got %s", got.Status)
	}
	if got.ErrorMessage == "" || got.CompletedAt == nil {
		t.Fatalf("completion fields missing: %+v", got)
	}
}

func TestMarkDeploymentStartedOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	agent, err := s.RegisterAgent(ctx, "build-01", domain.PlatformLinux, "1.0.0", "")
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	dep := &domain.Deployment{
		ID:        "d1",
		AgentID:   agent.ID,
		Releases:  []domain.ReleaseSelection{{ReleaseID: "updater"}},
		Status:    domain.DeploymentPending,
		CreatedAt: time.Now(),
	}
	if err := s.CreateDeployment(ctx, dep); err != nil {
		t.Fatalf("CreateDeployment failed: %v", err)
	}

	first := time.Now()
	if err := s.MarkDeploymentStarted(ctx, "d1", first); err != nil {
		t.Fatalf("MarkDeploymentStarted failed: %v", err)
	}
	if err := s.MarkDeploymentStarted(ctx, "d1", first.Add(time.Hour)); err != nil {
		t.Fatalf("repeated MarkDeploymentStarted failed: %v", err)
	}

	got, err := s.GetDeployment(ctx, "d1")
	if err != nil {
		t.Fatalf("GetDeployment failed: %v", err)
	}
	if got.StartedAt == nil {
		t.Fatal("started_at not set")
	}
	if got.StartedAt.Sub(first).Abs() > time.Second {
		t.Fatalf("started_at overwritten: %v", got.StartedAt)
	}
}

func TestReleaseCatalog(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rel := &domain.Release{
		ID:          "updater",
		TagName:     "v1.2.0",
		Name:        "updater",
		DownloadURL: "https://github.com/acme/updater",
		Assets:      []string{"updater-linux.tar.gz"},
		ReleaseDate: time.Now(),
	}
	if err := s.CreateRelease(ctx, rel); err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}

	got, err := s.GetRelease(ctx, "updater")
	if err != nil {
		t.Fatalf("GetRelease failed: %v", err)
	}
	if got == nil || got.TagName != "v1.2.0" || len(got.Assets) != 1 {
		t.Fatalf("unexpected release: %+v", got)
	}

	got.Description = "internal updater"
	if err := s.UpdateRelease(ctx, got); err != nil {
		t.Fatalf("UpdateRelease failed: %v", err)
	}

	if err := s.DeleteRelease(ctx, "updater"); err != nil {
		t.Fatalf("DeleteRelease failed: %v", err)
	}
	if err := s.DeleteRelease(ctx, "updater"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
