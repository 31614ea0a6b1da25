package sync

import (
	"context"

	"github.com/maxsxu/settings-repository-plus/internal/settings/store"
)

// ConfigStore is the storage contract the orchestrator and planner consume.
// *store.FileStore is the production implementation.
type ConfigStore interface {
	// FlushPending persists dirty in-memory component state to storage so an
	// upcoming commit captures the latest state.
	FlushPending() error

	// HasStorage reports whether a file spec addresses a registered storage.
	HasStorage(fileSpec string) bool

	// ApplyStorageDeltas refreshes state from changed storages and drops
	// state for deleted ones, returning every affected component.
	ApplyStorageDeltas(ctx context.Context, changed, deleted []string) ([]store.ComponentName, error)

	// NotReloadable filters names down to components requiring reconstruction.
	NotReloadable(names []store.ComponentName) []store.ComponentName

	// ReinitComponents reinitializes reloadable components transactionally:
	// one failure must not prevent the others, and subscribers get a single
	// batched notification.
	ReinitComponents(ctx context.Context, names, notReloadable []store.ComponentName) error

	// SchemeManagers returns every registered scheme manager.
	SchemeManagers() []store.SchemeManager
}

// ReadOnlySources refreshes imported read-only configuration roots,
// independent of the main repository. Update returns the changed root
// directories, or nil if nothing changed.
type ReadOnlySources interface {
	Update(ctx context.Context) ([]string, error)
}

// Executor schedules work on the privileged execution context that owns
// component state (the UI thread in a desktop host). Invoke is awaited, never
// fire-and-forget.
type Executor interface {
	Invoke(ctx context.Context, fn func() error) error
}

// CallerExecutor runs the function inline on the calling goroutine. Suitable
// when the sync run itself owns component state, as in the daemon.
type CallerExecutor struct{}

func (CallerExecutor) Invoke(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn()
}

// RestartPrompter asks whether the application may restart to reconstruct the
// named components.
type RestartPrompter interface {
	ConfirmRestart(notReloadable []store.ComponentName) bool
}

// Restarter forces an immediate application restart, bypassing the normal
// save-and-confirm path; the sync run has already persisted everything.
type Restarter interface {
	Restart()
}

// AutoSync is the coordinator surface the orchestrator needs: suspend
// triggers, wait out an in-flight background run, and disable permanently
// once a restart is pending.
type AutoSync interface {
	Suspend() (resume func())
	WaitFor(ctx context.Context) error
	DisableForever()
}
