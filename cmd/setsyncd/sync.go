package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/maxsxu/settings-repository-plus/internal/settings/app"
	syncpkg "github.com/maxsxu/settings-repository-plus/internal/settings/sync"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	var strategy string

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass now",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			syncType, err := syncpkg.ParseSyncType(strategy)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			updated, err := a.Sync(cmd.Context(), syncpkg.SyncOptions{Type: syncType})
			if err != nil {
				return err
			}
			if updated {
				slog.Info("settings updated")
			} else {
				slog.Info("already up to date")
			}
			fmt.Fprintln(cmd.OutOrStdout(), green("sync complete"))
			return nil
		},
	}

	syncCmd.Flags().StringVarP(&strategy, "strategy", "s", "merge",
		"sync strategy: merge, overwrite-local or overwrite-remote")
	return syncCmd
}
