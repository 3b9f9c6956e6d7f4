package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jameskwon07/deploymaster/domain"
	"gopkg.in/yaml.v3"
)

// AgentConfig holds the agent configuration, loaded from a YAML file.
type AgentConfig struct {
	// MasterURL is the base URL of the master API.
	MasterURL string `yaml:"master_url"`

	// Name identifies this agent to the registry. Defaults to the hostname.
	Name string `yaml:"name"`

	// Platform overrides the platform derived from the build target.
	Platform string `yaml:"platform"`

	// Version reported on registration.
	Version string `yaml:"version"`

	// Interval between heartbeat/poll ticks.
	Interval time.Duration `yaml:"interval"`

	// StagingDir is where downloaded artifacts are kept.
	StagingDir string `yaml:"staging_dir"`

	// GitHubToken for the artifact host. Usually left empty here and taken
	// from the GITHUB_TOKEN environment variable instead.
	GitHubToken string `yaml:"github_token"`
}

// LoadAgent loads the agent configuration from a YAML file.
func LoadAgent(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (cfg *AgentConfig) setDefaults() error {
	if cfg.Name == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to resolve hostname: %w", err)
		}
		cfg.Name = hostname
	}
	if cfg.Platform == "" {
		cfg.Platform = string(domain.ParsePlatform(runtime.GOOS))
	}
	if cfg.Interval == 0 {
		cfg.Interval = domain.HeartbeatInterval
	}
	if cfg.StagingDir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return fmt.Errorf("failed to resolve user cache dir: %w", err)
		}
		cfg.StagingDir = filepath.Join(cacheDir, "deploymaster", "downloads")
	}
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}
	return nil
}

func (cfg *AgentConfig) validate() error {
	if cfg.MasterURL == "" {
		return fmt.Errorf("master_url is required")
	}
	if cfg.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s")
	}
	return nil
}
