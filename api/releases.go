package api

import (
	"log"
	"net/http"
	"time"

	"github.com/jameskwon07/deploymaster/domain"
	"github.com/jameskwon07/deploymaster/github"
	"github.com/labstack/echo/v4"
)

// ReleaseCreateRequest registers a release from a repository URL at the
// artifact host, e.g. https://github.com/acme/updater.
type ReleaseCreateRequest struct {
	RepositoryURL string `json:"repository_url"`
}

// ReleaseUpdateRequest updates a release's mutable metadata.
type ReleaseUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	DownloadURL *string `json:"download_url"`
}

// ListReleases lists all releases.
// GET /releases
func (h *Handler) ListReleases(c echo.Context) error {
	releases, err := h.store.ListReleases(c.Request().Context())
	if err != nil {
		log.Printf("ERROR: failed to list releases: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list releases"})
	}
	return c.JSON(http.StatusOK, releases)
}

// GetRelease gets a specific release.
// GET /releases/:id
func (h *Handler) GetRelease(c echo.Context) error {
	rel, err := h.store.GetRelease(c.Request().Context(), c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get release: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get release"})
	}
	if rel == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "release not found"})
	}
	return c.JSON(http.StatusOK, rel)
}

// CreateRelease adds a release from a repository URL. The repository name
// becomes the release id and display name; tag and assets are resolved
// lazily when deployments run or versions are listed.
// POST /releases
func (h *Handler) CreateRelease(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReleaseCreateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ref, err := github.ParseRepoRef(req.RepositoryURL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid repository URL format"})
	}

	existing, err := h.store.GetRelease(ctx, ref.Repo)
	if err != nil {
		log.Printf("ERROR: failed to check release: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create release"})
	}
	if existing != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "release for repository '" + ref.Repo + "' already exists"})
	}

	rel := &domain.Release{
		ID:          ref.Repo,
		TagName:     ref.Repo,
		Name:        ref.Repo,
		DownloadURL: req.RepositoryURL,
		Description: "GitHub: " + ref.Owner + "/" + ref.Repo,
		Assets:      []string{},
		ReleaseDate: time.Now(),
	}
	if err := h.store.CreateRelease(ctx, rel); err != nil {
		log.Printf("ERROR: failed to create release: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create release"})
	}

	return c.JSON(http.StatusOK, rel)
}

// UpdateRelease updates a release's metadata.
// PUT /releases/:id
func (h *Handler) UpdateRelease(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReleaseUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	rel, err := h.store.GetRelease(ctx, c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get release: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update release"})
	}
	if rel == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "release not found"})
	}

	if req.Name != nil {
		rel.Name = *req.Name
	}
	if req.Description != nil {
		rel.Description = *req.Description
	}
	if req.DownloadURL != nil {
		rel.DownloadURL = *req.DownloadURL
	}

	if err := h.store.UpdateRelease(ctx, rel); err != nil {
		return h.storeError(c, err, "failed to update release", "release not found")
	}
	return c.JSON(http.StatusOK, rel)
}

// DeleteRelease removes a release.
// DELETE /releases/:id
func (h *Handler) DeleteRelease(c echo.Context) error {
	if err := h.store.DeleteRelease(c.Request().Context(), c.Param("id")); err != nil {
		return h.storeError(c, err, "failed to delete release", "release not found")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "release deleted"})
}

// GetReleaseVersions lists the tags available at the artifact host for a
// release, newest first.
// GET /releases/:id/versions
func (h *Handler) GetReleaseVersions(c echo.Context) error {
	ctx := c.Request().Context()

	rel, err := h.store.GetRelease(ctx, c.Param("id"))
	if err != nil {
		log.Printf("ERROR: failed to get release: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get release"})
	}
	if rel == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "release not found"})
	}

	ref, err := github.ParseRepoRef(rel.DownloadURL)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid repository URL format"})
	}

	versions, err := h.github.ListReleases(ctx, ref.Owner, ref.Repo, 50)
	if err != nil {
		log.Printf("ERROR: failed to list github releases: %v", err)
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to fetch releases from artifact host"})
	}

	return c.JSON(http.StatusOK, versions)
}
