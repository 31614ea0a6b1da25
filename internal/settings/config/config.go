package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/maxsxu/settings-repository-plus/internal/utils"
)

var (
	home, _           = os.UserHomeDir()
	DefaultDataDir    = filepath.Join(home, ".setsync")
	DefaultConfigPath = filepath.Join(home, ".setsync", "config.json")
)

// Config is the persisted daemon configuration.
type Config struct {
	// DataDir is the workspace root holding the settings working copy,
	// read-only sources and daemon metadata.
	DataDir string `json:"data_dir"`

	// RepositoryURL is the upstream settings repository.
	RepositoryURL string `json:"repository_url"`

	// Branch tracked for sync. Empty means the repository default.
	Branch string `json:"branch,omitempty"`

	// Username and Token authenticate against the upstream over HTTP.
	Username string `json:"username,omitempty"`
	Token    string `json:"token,omitempty"`

	// AutoSync enables background syncing in daemon mode.
	AutoSync bool `json:"auto_sync"`

	// AutoSyncInterval between periodic background syncs.
	AutoSyncInterval time.Duration `json:"auto_sync_interval,omitempty"`

	// ReadOnlySourcesPath points at the sources.yaml manifest. Empty means
	// <DataDir>/sources.yaml.
	ReadOnlySourcesPath string `json:"read_only_sources_path,omitempty"`

	Path string `json:"-"`
}

func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.RepositoryURL == "" {
		return fmt.Errorf("repository_url is required")
	}
	if c.AutoSyncInterval < 0 {
		return fmt.Errorf("auto_sync_interval cannot be negative")
	}
	return nil
}

func (c *Config) SourcesManifestPath() string {
	if c.ReadOnlySourcesPath != "" {
		return c.ReadOnlySourcesPath
	}
	return filepath.Join(c.DataDir, "sources.yaml")
}

func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.Path = path
	return &cfg, nil
}
