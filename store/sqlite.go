package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jameskwon07/deploymaster/domain"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS agents (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			platform TEXT NOT NULL,
			version TEXT NOT NULL,
			ip_address TEXT,
			last_seen DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS releases (
			id TEXT PRIMARY KEY,
			tag_name TEXT NOT NULL,
			name TEXT NOT NULL,
			version TEXT,
			download_url TEXT,
			description TEXT,
			assets TEXT,
			release_date DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS deployments (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			releases TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			started_at DATETIME,
			completed_at DATETIME,
			error_message TEXT,
			FOREIGN KEY (agent_id) REFERENCES agents(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deployments_agent_status_created
			ON deployments(agent_id, status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_deployments_created ON deployments(created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RegisterAgent upserts an agent by name and refreshes last_seen. The id is
// assigned once, on first registration, and survives every heartbeat after.
// The upsert is a single statement, so two racing first registrations for the
// same name cannot both insert.
func (s *SQLiteStore) RegisterAgent(ctx context.Context, name string, platform domain.Platform, version, ip string) (*domain.Agent, error) {
	now := time.Now()

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO agents (id, name, platform, version, ip_address, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			platform = excluded.platform,
			version = excluded.version,
			ip_address = excluded.ip_address,
			last_seen = excluded.last_seen
		 RETURNING id`,
		uuid.New().String(), name, platform, version, nullString(ip), now).Scan(&id)
	if err != nil {
		return nil, err
	}

	return &domain.Agent{
		ID:        id,
		Name:      name,
		Platform:  platform,
		Version:   version,
		IPAddress: ip,
		LastSeen:  now,
	}, nil
}

// GetAgent retrieves an agent by ID. Returns nil when absent.
func (s *SQLiteStore) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, platform, version, ip_address, last_seen FROM agents WHERE id = ?`, id)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return agent, nil
}

// ListAgents lists all agents ordered by name.
func (s *SQLiteStore) ListAgents(ctx context.Context) ([]domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, platform, version, ip_address, last_seen FROM agents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []domain.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *agent)
	}
	return agents, rows.Err()
}

// RenameAgent updates an agent's display name.
func (s *SQLiteStore) RenameAgent(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE agents SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAgent removes an agent. Deleting an unknown id is a no-op.
func (s *SQLiteStore) DeleteAgent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	return err
}

// CreateRelease creates a new release.
func (s *SQLiteStore) CreateRelease(ctx context.Context, rel *domain.Release) error {
	assets, _ := json.Marshal(rel.Assets)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO releases (id, tag_name, name, version, download_url, description, assets, release_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rel.ID, rel.TagName, rel.Name, rel.Version, rel.DownloadURL, rel.Description, string(assets), rel.ReleaseDate)
	return err
}

// GetRelease retrieves a release by ID. Returns nil when absent.
func (s *SQLiteStore) GetRelease(ctx context.Context, id string) (*domain.Release, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tag_name, name, version, download_url, description, assets, release_date FROM releases WHERE id = ?`, id)
	rel, err := scanRelease(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// ListReleases lists all releases ordered by name.
func (s *SQLiteStore) ListReleases(ctx context.Context) ([]domain.Release, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tag_name, name, version, download_url, description, assets, release_date FROM releases ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []domain.Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, *rel)
	}
	return releases, rows.Err()
}

// UpdateRelease replaces a release's mutable fields.
func (s *SQLiteStore) UpdateRelease(ctx context.Context, rel *domain.Release) error {
	assets, _ := json.Marshal(rel.Assets)
	res, err := s.db.ExecContext(ctx,
		`UPDATE releases SET tag_name = ?, name = ?, version = ?, download_url = ?, description = ?, assets = ? WHERE id = ?`,
		rel.TagName, rel.Name, rel.Version, rel.DownloadURL, rel.Description, string(assets), rel.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRelease removes a release.
func (s *SQLiteStore) DeleteRelease(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM releases WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateDeployment creates a new deployment.
func (s *SQLiteStore) CreateDeployment(ctx context.Context, dep *domain.Deployment) error {
	releases, err := json.Marshal(dep.Releases)
	if err != nil {
		return fmt.Errorf("failed to marshal releases: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deployments (id, agent_id, releases, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		dep.ID, dep.AgentID, string(releases), dep.Status, dep.CreatedAt)
	return err
}

// GetDeployment retrieves a deployment by ID. Returns nil when absent.
func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, releases, status, created_at, started_at, completed_at, error_message
		 FROM deployments WHERE id = ?`, id)
	dep, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// ListDeployments lists deployments newest first, optionally filtered by
// agent and status.
func (s *SQLiteStore) ListDeployments(ctx context.Context, agentID string, status domain.DeploymentStatus, limit int) ([]domain.Deployment, error) {
	query := `SELECT id, agent_id, releases, status, created_at, started_at, completed_at, error_message FROM deployments`
	var args []interface{}
	var where []string

	if agentID != "" {
		where = append(where, "agent_id = ?")
		args = append(args, agentID)
	}
	if status != "" {
		where = append(where, "status = ?")
		args = append(args, status)
	}
	for i, w := range where {
		if i == 0 {
			query += " WHERE " + w
		} else {
			query += " AND " + w
		}
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		dep, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *dep)
	}
	return deployments, rows.Err()
}

// NextPendingDeployment returns the oldest pending deployment for the agent,
// or nil when none is pending. Status is left untouched: there is no
// dispatch lease, so a deployment stays pending until a completion report.
func (s *SQLiteStore) NextPendingDeployment(ctx context.Context, agentID string) (*domain.Deployment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, agent_id, releases, status, created_at, started_at, completed_at, error_message
		 FROM deployments WHERE agent_id = ? AND status = ? ORDER BY created_at ASC LIMIT 1`,
		agentID, domain.DeploymentPending)
	dep, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// MarkDeploymentStarted sets started_at once; later calls are no-ops.
func (s *SQLiteStore) MarkDeploymentStarted(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET started_at = ? WHERE id = ? AND started_at IS NULL`, at, id)
	return err
}

// CompleteDeployment records the final status of a deployment. A repeated
// report for the same id overwrites the previous one (last write wins).
func (s *SQLiteStore) CompleteDeployment(ctx context.Context, id string, status domain.DeploymentStatus, errorMessage string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE deployments SET status = ?, completed_at = ?, error_message = ? WHERE id = ?`,
		status, at, nullString(errorMessage), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAgent(row scanner) (*domain.Agent, error) {
	var agent domain.Agent
	var ip sql.NullString
	if err := row.Scan(&agent.ID, &agent.Name, &agent.Platform, &agent.Version, &ip, &agent.LastSeen); err != nil {
		return nil, err
	}
	if ip.Valid {
		agent.IPAddress = ip.String
	}
	return &agent, nil
}

func scanRelease(row scanner) (*domain.Release, error) {
	var rel domain.Release
	var assets sql.NullString
	if err := row.Scan(&rel.ID, &rel.TagName, &rel.Name, &rel.Version, &rel.DownloadURL, &rel.Description, &assets, &rel.ReleaseDate); err != nil {
		return nil, err
	}
	if assets.Valid && assets.String != "" {
		if err := json.Unmarshal([]byte(assets.String), &rel.Assets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal assets: %w", err)
		}
	}
	return &rel, nil
}

func scanDeployment(row scanner) (*domain.Deployment, error) {
	var dep domain.Deployment
	var releases string
	var startedAt, completedAt sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&dep.ID, &dep.AgentID, &releases, &dep.Status, &dep.CreatedAt, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(releases), &dep.Releases); err != nil {
		return nil, fmt.Errorf("failed to unmarshal releases: %w", err)
	}
	if startedAt.Valid {
		dep.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		dep.CompletedAt = &completedAt.Time
	}
	if errMsg.Valid {
		dep.ErrorMessage = errMsg.String
	}
	return &dep, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
