package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/maxsxu/settings-repository-plus/internal/settings/repo"
)

// SyncOptions parameterizes a single synchronization run.
type SyncOptions struct {
	// Type selects the strategy.
	Type SyncType

	// LocalInitializer seeds initial local content. When set, the pre-update
	// commit is skipped and the initializer runs inside the strategy so its
	// output layers on top of the freshly pulled baseline.
	LocalInitializer repo.Initializer

	// OnAppExit marks a shutdown-time sync: pending changes are not flushed
	// (the host already saved everything) and no restart is forced.
	OnAppExit bool
}

// runState is the transient state of one run, owned exclusively by the
// orchestrator for the run's duration.
type runState struct {
	updateResult    *repo.UpdateResult
	readOnlyChanged bool
	storagesUpdated bool
	restartRequired bool
	err             error
}

func (st *runState) didUpdate() bool {
	return st.storagesUpdated || st.readOnlyChanged
}

// Orchestrator drives one synchronization run end-to-end. Only one run is
// active per process; a second caller waits for the in-flight run.
type Orchestrator struct {
	repo     repo.Manager
	store    ConfigStore
	planner  *ReloadPlanner
	guard    *Guard
	readonly ReadOnlySources
	auto     AutoSync
	restart  Restarter

	mu stdsync.Mutex
}

// Deps are the collaborators the orchestrator receives at construction.
// ReadOnly, Auto and Restart are optional.
type Deps struct {
	Repo     repo.Manager
	Store    ConfigStore
	Planner  *ReloadPlanner
	Guard    *Guard
	ReadOnly ReadOnlySources
	Restart  Restarter
}

func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Repo == nil || deps.Store == nil || deps.Planner == nil || deps.Guard == nil {
		return nil, fmt.Errorf("orchestrator requires repo, store, planner and guard")
	}
	return &Orchestrator{
		repo:     deps.Repo,
		store:    deps.Store,
		planner:  deps.Planner,
		guard:    deps.Guard,
		readonly: deps.ReadOnly,
		restart:  deps.Restart,
	}, nil
}

// Guard exposes the write interlock for wiring into the storage layer.
func (o *Orchestrator) Guard() *Guard {
	return o.guard
}

// AttachAutoSync wires the coordinator after both sides are constructed.
func (o *Orchestrator) AttachAutoSync(auto AutoSync) {
	o.auto = auto
}

// Sync performs one synchronization run under the chosen strategy and returns
// whether any update (repository or read-only source) occurred. Expected
// outcomes (cancellation, authentication, missing remote, unresolvable
// conflict) are surfaced as typed errors from the repo package; cancellation
// ends the run cleanly with no error.
func (o *Orchestrator) Sync(ctx context.Context, opts SyncOptions) (bool, error) {
	if !opts.Type.IsValid() {
		return false, fmt.Errorf("invalid sync type %d", int(opts.Type))
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.auto != nil {
		resume := o.auto.Suspend()
		defer resume()
	}

	st := &runState{}
	o.runGuarded(ctx, opts, st)

	// A restart decision takes precedence over a captured error: the restart
	// itself resolves the run's purpose, even if the caller never observes
	// the error.
	if st.restartRequired && !opts.OnAppExit {
		if o.auto != nil {
			o.auto.DisableForever()
		}
		if o.restart != nil {
			slog.Info("restarting to reconstruct components")
			o.restart.Restart()
		}
		return st.didUpdate(), nil
	}

	if st.err != nil {
		return false, st.err
	}
	return st.didUpdate(), nil
}

// AutoSync is the background entry point used by the coordinator. It skips
// the suspend/wait handshake, which would deadlock against the coordinator's
// own in-flight tracking. It also never waits for the run mutex: a manual run
// holding it may itself be waiting for this coordinator run to finish, so a
// busy mutex means skip, not queue.
func (o *Orchestrator) AutoSync(ctx context.Context) error {
	if !o.mu.TryLock() {
		slog.Debug("sync already in flight, skipping automatic run")
		return nil
	}
	defer o.mu.Unlock()

	st := &runState{}
	o.runGuarded(ctx, SyncOptions{Type: SyncTypeMerge}, st)

	if st.restartRequired {
		if o.auto != nil {
			o.auto.DisableForever()
		}
		if o.restart != nil {
			slog.Info("restarting to reconstruct components")
			o.restart.Restart()
		}
		return nil
	}
	return st.err
}

// runGuarded executes one run with the write interlock held. The guard is
// released before the caller acts on the run state, so errors are never
// raised while writes are still prohibited.
func (o *Orchestrator) runGuarded(ctx context.Context, opts SyncOptions, st *runState) {
	release := o.guard.Acquire()
	defer release()

	log := slog.With("run", shortRunID(), "strategy", opts.Type.String())
	log.Info("sync run start")
	o.run(ctx, opts, st, log)
	log.Info("sync run end",
		"updated", st.didUpdate(),
		"restartRequired", st.restartRequired,
		"err", st.err)
}

func (o *Orchestrator) run(ctx context.Context, opts SyncOptions, st *runState, log *slog.Logger) {
	// Flush pending in-memory changes so the upcoming commit captures the
	// latest state. Skipped on shutdown: the host already saved everything.
	if !opts.OnAppExit {
		if err := o.store.FlushPending(); err != nil {
			log.Error("flush pending configuration", "error", err)
		}
	}

	if o.auto != nil {
		if err := o.auto.WaitFor(ctx); err != nil {
			log.Debug("cancelled while waiting for automatic sync")
			return
		}
	}

	if opts.LocalInitializer == nil {
		committed, err := o.repo.Commit(ctx, opts.Type.String())
		switch {
		case err == nil:
			if committed {
				log.Debug("local changes committed before update")
			}
		case errors.Is(err, context.Canceled):
			log.Debug("commit cancelled")
			return
		case opts.Type == SyncTypeMerge:
			// Merge needs the local commit as a merge base; abort.
			log.Warn("commit failed, aborting merge", "error", err)
			st.err = err
			return
		default:
			// The reset discards the uncommittable state anyway.
			log.Warn("commit failed, proceeding with reset", "error", err)
		}
	}

	if ctx.Err() != nil {
		log.Debug("sync cancelled before update")
		return
	}

	if o.repo.HasUpstream() {
		update, err := o.update(ctx, opts)
		switch {
		case err == nil:
			st.updateResult = update
		case errors.Is(err, context.Canceled):
			log.Debug("update cancelled")
		case isExpectedOutcome(err):
			// User-actionable, not an application error.
			log.Warn("sync update needs user action", "error", err)
			st.err = err
		default:
			log.Error("sync update failed", "error", err)
			st.err = err
		}
	} else {
		log.Debug("no upstream configured, skipping repository update")
	}

	if o.readonly != nil && ctx.Err() == nil {
		roots, err := o.readonly.Update(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("read-only sources refresh failed", "error", err)
		}
		st.readOnlyChanged = len(roots) > 0
	}

	if st.updateResult != nil {
		outcome, err := o.planner.Apply(ctx, st.updateResult, opts.Type == SyncTypeOverwriteLocal)
		if err != nil && st.err == nil {
			st.err = err
		}
		st.storagesUpdated = outcome.updated
		st.restartRequired = outcome.restartRequired
	}
}

// update dispatches to the strategy handler. Each handler returns a
// normalized UpdateResult so the apply phase is strategy-agnostic.
func (o *Orchestrator) update(ctx context.Context, opts SyncOptions) (*repo.UpdateResult, error) {
	switch opts.Type {
	case SyncTypeMerge:
		return o.updateMerge(ctx, opts.LocalInitializer)
	case SyncTypeOverwriteLocal:
		return o.updateOverwriteLocal(ctx)
	case SyncTypeOverwriteRemote:
		return o.updateOverwriteRemote(ctx, opts.LocalInitializer)
	default:
		return nil, fmt.Errorf("invalid sync type %d", int(opts.Type))
	}
}

func (o *Orchestrator) updateMerge(ctx context.Context, initializer repo.Initializer) (*repo.UpdateResult, error) {
	update, err := o.repo.Pull(ctx)
	if err != nil {
		return nil, err
	}

	if initializer != nil {
		// Initial local content layers on top of the pulled baseline, never
		// the reverse.
		if err := initializer(ctx); err != nil {
			return nil, fmt.Errorf("local initializer: %w", err)
		}
		if _, err := o.repo.Commit(ctx, SyncTypeMerge.String()); err != nil {
			return nil, err
		}
	}

	if err := o.pushIfAhead(ctx); err != nil {
		return nil, err
	}
	return update, nil
}

func (o *Orchestrator) updateOverwriteLocal(ctx context.Context) (*repo.UpdateResult, error) {
	// Never push: the user may still modify or discard the working tree
	// before any future publication.
	return o.repo.ResetToRemote(ctx)
}

func (o *Orchestrator) updateOverwriteRemote(ctx context.Context, initializer repo.Initializer) (*repo.UpdateResult, error) {
	update, err := o.repo.ResetToLocal(ctx, initializer)
	if err != nil {
		return nil, err
	}
	if err := o.pushIfAhead(ctx); err != nil {
		return nil, err
	}
	return update, nil
}

// pushIfAhead pushes only when there is at least one outgoing commit. An
// empty push would raise a remote-protocol error.
func (o *Orchestrator) pushIfAhead(ctx context.Context) error {
	ahead, err := o.repo.AheadCommitCount(ctx)
	if err != nil {
		return err
	}
	if ahead == 0 {
		return nil
	}
	return o.repo.Push(ctx)
}

func isExpectedOutcome(err error) bool {
	return errors.Is(err, repo.ErrAuthFailed) ||
		errors.Is(err, repo.ErrNoRemoteRepository) ||
		errors.Is(err, repo.ErrUnresolvedConflict)
}

func shortRunID() string {
	return uuid.NewString()[:8]
}
