// Package app wires the settings-sync daemon together: workspace, git-backed
// repository manager, configuration store, read-only sources, orchestrator and
// the auto-sync coordinator.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"golang.org/x/sync/errgroup"

	"github.com/maxsxu/settings-repository-plus/internal/settings/config"
	"github.com/maxsxu/settings-repository-plus/internal/settings/readonly"
	"github.com/maxsxu/settings-repository-plus/internal/settings/repo"
	"github.com/maxsxu/settings-repository-plus/internal/settings/store"
	syncpkg "github.com/maxsxu/settings-repository-plus/internal/settings/sync"
	"github.com/maxsxu/settings-repository-plus/internal/settings/workspace"
	"github.com/maxsxu/settings-repository-plus/internal/utils"
)

// defaultSchemeDirs are the preset collections every workspace carries.
var defaultSchemeDirs = []string{"keymaps", "colors", "templates"}

type App struct {
	cfg   *config.Config
	ws    *workspace.Workspace
	guard *syncpkg.Guard
	store *store.FileStore
	repo  *repo.GitManager
	orch  *syncpkg.Orchestrator
	auto  *syncpkg.AutoSyncCoordinator
}

// New builds the daemon object graph, cloning the upstream on first run.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ws, err := workspace.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	gitOpts := repo.Options{Branch: cfg.Branch, Auth: authFor(cfg)}
	var gitMgr *repo.GitManager
	if utils.DirExists(filepath.Join(ws.RepositoryDir, ".git")) {
		gitMgr, err = repo.Open(ws.RepositoryDir, gitOpts)
	} else {
		slog.Info("cloning settings repository", "url", cfg.RepositoryURL)
		gitMgr, err = repo.Clone(ctx, ws.RepositoryDir, cfg.RepositoryURL, gitOpts)
		if err != nil && errors.Is(err, transport.ErrEmptyRemoteRepository) {
			// Fresh upstream with no commits yet: start locally and attach it.
			gitMgr, err = repo.Init(ws.RepositoryDir, gitOpts)
			if err == nil {
				err = gitMgr.SetUpstream(cfg.RepositoryURL)
			}
		}
	}
	if err != nil {
		return nil, err
	}

	manifest, err := readonly.LoadManifest(cfg.SourcesManifestPath())
	if err != nil {
		return nil, err
	}

	guard := syncpkg.NewGuard()
	cfgStore := store.NewFileStore(ws.RepositoryDir, guard, nil)
	for _, dir := range defaultSchemeDirs {
		cfgStore.AddSchemeManager(store.NewPresetSchemes(dir, dir, ws.RepositoryDir))
	}

	planner := syncpkg.NewReloadPlanner(cfgStore, syncpkg.CallerExecutor{}, acceptAllPrompter{})
	orch, err := syncpkg.NewOrchestrator(syncpkg.Deps{
		Repo:     gitMgr,
		Store:    cfgStore,
		Planner:  planner,
		Guard:    guard,
		ReadOnly: readonly.NewManager(ws.ReadOnlyDir, manifest),
		Restart:  ExitRestarter{},
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:   cfg,
		ws:    ws,
		guard: guard,
		store: cfgStore,
		repo:  gitMgr,
		orch:  orch,
	}

	if cfg.AutoSync {
		a.auto = syncpkg.NewAutoSyncCoordinator(ws.RepositoryDir, orch, cfg.AutoSyncInterval)
		orch.AttachAutoSync(a.auto)
	}
	return a, nil
}

// Store exposes the configuration store for host components.
func (a *App) Store() *store.FileStore {
	return a.store
}

// Sync runs one synchronization pass.
func (a *App) Sync(ctx context.Context, opts syncpkg.SyncOptions) (bool, error) {
	return a.orch.Sync(ctx, opts)
}

// Start locks the workspace and runs the daemon until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	slog.Info("settings sync daemon start", "workspace", a.ws.Root)

	if err := a.ws.Lock(); err != nil {
		return err
	}
	defer func() {
		if err := a.ws.Unlock(); err != nil {
			slog.Error("unlock workspace", "error", err)
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)

	if a.auto != nil {
		if err := a.auto.Start(egCtx); err != nil {
			return fmt.Errorf("start auto sync: %w", err)
		}
	}

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("stopping settings sync daemon")

		if a.auto != nil {
			a.auto.Stop()
		}

		// Final exit sync publishes whatever the run can still save.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := a.orch.Sync(shutdownCtx, syncpkg.SyncOptions{
			Type:      syncpkg.SyncTypeMerge,
			OnAppExit: true,
		}); err != nil {
			slog.Warn("exit sync failed", "error", err)
		}
		return egCtx.Err()
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("settings sync daemon stopped")
	return nil
}

func authFor(cfg *config.Config) transport.AuthMethod {
	if cfg.Token == "" {
		return nil
	}
	username := cfg.Username
	if username == "" {
		// Token-only auth still needs a non-empty basic-auth username.
		username = "token"
	}
	return &githttp.BasicAuth{Username: username, Password: cfg.Token}
}
