// Package deploy executes deployments on an agent: it resolves each release
// into a downloadable asset at the artifact host, downloads, installs and
// verifies it, then reports the outcome to the master.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jameskwon07/deploymaster/domain"
	"github.com/jameskwon07/deploymaster/github"
	"github.com/jameskwon07/deploymaster/masterclient"
)

// Executor runs deployment pipelines for one agent.
type Executor struct {
	master     *masterclient.Client
	host       *github.Client
	platform   domain.Platform
	stagingDir string
}

// NewExecutor creates an executor. Downloaded artifacts are staged under
// stagingDir, one file per (repo, tag) pair; nothing is ever cleaned up.
func NewExecutor(master *masterclient.Client, host *github.Client, platform domain.Platform, stagingDir string) *Executor {
	return &Executor{
		master:     master,
		host:       host,
		platform:   platform,
		stagingDir: stagingDir,
	}
}

// Execute runs every release of the deployment in list order, fail-fast,
// and reports the outcome to the master. Releases installed before a
// failure are not rolled back. The pipeline error, if any, is returned for
// logging; reporting failures are logged and discarded.
func (e *Executor) Execute(ctx context.Context, dep *domain.Deployment) error {
	runErr := e.run(ctx, dep)

	status := domain.DeploymentSuccess
	message := ""
	if runErr != nil {
		status = domain.DeploymentFailed
		message = runErr.Error()
	}

	if err := e.master.CompleteDeployment(ctx, dep.ID, status, message); err != nil {
		if errors.Is(err, masterclient.ErrNotFound) {
			log.Printf("WARN: deployment %s unknown to master, discarding report: %v", dep.ID, err)
		} else {
			log.Printf("ERROR: failed to report deployment %s completion: %v", dep.ID, err)
		}
	}

	return runErr
}

func (e *Executor) run(ctx context.Context, dep *domain.Deployment) error {
	log.Printf("[Deploy] Starting deployment %s (%d releases)", dep.ID, len(dep.Releases))
	for _, sel := range dep.Releases {
		if err := e.deployRelease(ctx, sel); err != nil {
			return fmt.Errorf("release %s: %w", sel.ReleaseID, err)
		}
	}
	log.Printf("[Deploy] Deployment %s completed", dep.ID)
	return nil
}

func (e *Executor) deployRelease(ctx context.Context, sel domain.ReleaseSelection) error {
	rel, err := e.master.GetRelease(ctx, sel.ReleaseID)
	if err != nil {
		return fmt.Errorf("failed to fetch release metadata: %w", err)
	}

	ref, err := github.ParseRepoRef(rel.DownloadURL)
	if err != nil {
		return err
	}

	tag := sel.Version
	if tag == "" {
		tag = rel.TagName
	}
	log.Printf("[Deploy] Resolving %s/%s at tag %s", ref.Owner, ref.Repo, tag)

	hosted, err := e.host.ReleaseByTag(ctx, ref.Owner, ref.Repo, tag)
	if err != nil {
		return fmt.Errorf("failed to resolve tag %s: %w", tag, err)
	}

	candidates := excludeSourceAssets(hosted.Assets)
	asset, err := selectAsset(candidates, e.platform)
	if err != nil {
		return fmt.Errorf("%w for %s at tag %s", ErrNoAssets, ref.Repo, tag)
	}
	log.Printf("[Deploy] Selected asset %s (%d bytes)", asset.Name, asset.Size)

	ext := assetExtension(asset.Name, asset.ContentType)
	destPath := filepath.Join(e.stagingDir, ref.Repo+"-"+tag+ext)
	if err := e.host.DownloadAsset(ctx, asset.BrowserDownloadURL, destPath); err != nil {
		return fmt.Errorf("failed to download %s: %w", asset.Name, err)
	}

	if err := installArtifact(destPath, e.platform); err != nil {
		return fmt.Errorf("failed to install %s: %w", asset.Name, err)
	}
	if err := verifyArtifact(destPath, e.platform); err != nil {
		return fmt.Errorf("verification failed for %s: %w", asset.Name, err)
	}

	log.Printf("[Deploy] Installed %s -> %s", asset.Name, destPath)
	return nil
}

// installArtifact makes the staged file ready to run. On macos and linux
// that means granting execute permission; windows needs no extra step.
func installArtifact(path string, platform domain.Platform) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("artifact missing after download: %w", err)
	}
	if platform == domain.PlatformWindows {
		return nil
	}
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("failed to grant execute permission: %w", err)
	}
	return nil
}

// verifyArtifact checks the staged file: it must exist and be non-empty,
// and on windows it must carry a .exe extension.
func verifyArtifact(path string, platform domain.Platform) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact missing: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact %s is empty", filepath.Base(path))
	}
	if platform == domain.PlatformWindows && !strings.EqualFold(filepath.Ext(path), ".exe") {
		return fmt.Errorf("artifact %s is not an executable", filepath.Base(path))
	}
	return nil
}
