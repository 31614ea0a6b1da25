package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		DataDir:       "/tmp/setsync",
		RepositoryURL: "https://example.com/settings.git",
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	t.Run("data dir required", func(t *testing.T) {
		cfg := validConfig()
		cfg.DataDir = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("repository url required", func(t *testing.T) {
		cfg := validConfig()
		cfg.RepositoryURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative interval rejected", func(t *testing.T) {
		cfg := validConfig()
		cfg.AutoSyncInterval = -time.Minute
		assert.Error(t, cfg.Validate())
	})
}

func TestSourcesManifestPath(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, filepath.Join(cfg.DataDir, "sources.yaml"), cfg.SourcesManifestPath())

	cfg.ReadOnlySourcesPath = "/etc/setsync/sources.yaml"
	assert.Equal(t, "/etc/setsync/sources.yaml", cfg.SourcesManifestPath())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := validConfig()
	cfg.Branch = "main"
	cfg.Username = "dev"
	cfg.Token = "secret"
	cfg.AutoSync = true
	cfg.AutoSyncInterval = 10 * time.Minute
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, cfg.RepositoryURL, loaded.RepositoryURL)
	assert.Equal(t, "main", loaded.Branch)
	assert.Equal(t, "secret", loaded.Token)
	assert.True(t, loaded.AutoSync)
	assert.Equal(t, 10*time.Minute, loaded.AutoSyncInterval)
	assert.Equal(t, path, loaded.Path)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.json"))
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
