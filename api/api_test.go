package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/jameskwon07/deploymaster/config"
	"github.com/jameskwon07/deploymaster/domain"
	"github.com/jameskwon07/deploymaster/github"
	"github.com/jameskwon07/deploymaster/policy"
	"github.com/jameskwon07/deploymaster/tests/helpers"
)

// newTestServer wires a handler against an in-memory store and the default
// admission policy.
func newTestServer(t *testing.T) (*echo.Echo, *Handler) {
	t.Helper()

	st := helpers.NewTestSQLiteStore(t)

	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	require.NoError(t, err)

	cfg := &config.Config{LivenessWindow: domain.LivenessWindow}
	h := NewHandler(st, github.NewClient(""), cfg, engine)

	e := echo.New()
	h.RegisterRoutes(e)
	return e, h
}

func doJSON(t *testing.T, e *echo.Echo, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// registerAgent creates (or heartbeats) an agent and returns its record.
func registerAgent(t *testing.T, e *echo.Echo, name, platform string) domain.Agent {
	t.Helper()

	rec := doJSON(t, e, http.MethodPost, "/agents/register", AgentRegisterRequest{
		Name:     name,
		Platform: platform,
		Version:  "1.0.0",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var agent domain.Agent
	decode(t, rec, &agent)
	return agent
}

// createRelease registers a release from a repository URL and returns it.
func createRelease(t *testing.T, e *echo.Echo, repoURL string) domain.Release {
	t.Helper()

	rec := doJSON(t, e, http.MethodPost, "/releases", ReleaseCreateRequest{RepositoryURL: repoURL})
	require.Equal(t, http.StatusOK, rec.Code)

	var rel domain.Release
	decode(t, rec, &rel)
	return rel
}
