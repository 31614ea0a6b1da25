package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/maxsxu/settings-repository-plus/internal/settings/app"
	"github.com/maxsxu/settings-repository-plus/internal/settings/config"
	syncpkg "github.com/maxsxu/settings-repository-plus/internal/settings/sync"
	"github.com/maxsxu/settings-repository-plus/internal/utils"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var (
		repoURL   string
		dataDir   string
		overwrite bool
	)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Attach a settings repository and seed it with local content",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			if repoURL == "" {
				return fmt.Errorf("--repo is required")
			}

			cfg := &config.Config{
				DataDir:       dataDir,
				RepositoryURL: repoURL,
				AutoSync:      true,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			// First sync layers any seed content on top of the pulled
			// baseline, or replaces the remote when asked to.
			syncType := syncpkg.SyncTypeMerge
			if overwrite {
				syncType = syncpkg.SyncTypeOverwriteRemote
			}
			_, err = a.Sync(cmd.Context(), syncpkg.SyncOptions{
				Type:             syncType,
				LocalInitializer: seedWorkspace(filepath.Join(cfg.DataDir, "repository")),
			})
			if err != nil {
				return err
			}

			path, _ := cmd.Flags().GetString("config")
			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s initialized, config written to %s\n", green("setsync"), path)
			return nil
		},
	}

	initCmd.Flags().StringVarP(&repoURL, "repo", "r", "", "settings repository URL")
	initCmd.Flags().StringVarP(&dataDir, "datadir", "d", config.DefaultDataDir, "workspace data directory")
	initCmd.Flags().BoolVar(&overwrite, "overwrite-remote", false, "replace remote content with local state")
	return initCmd
}

// seedWorkspace writes the initial marker file so a fresh repository has
// committable content.
func seedWorkspace(repoDir string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		marker := filepath.Join(repoDir, "README.md")
		if utils.FileExists(marker) {
			return nil
		}
		if err := utils.EnsureParent(marker); err != nil {
			return err
		}
		return os.WriteFile(marker, []byte("# Settings repository\n\nManaged by setsync.\n"), 0o644)
	}
}
