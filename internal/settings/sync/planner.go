package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/maxsxu/settings-repository-plus/internal/settings/repo"
	"github.com/maxsxu/settings-repository-plus/internal/settings/repopath"
	"github.com/maxsxu/settings-repository-plus/internal/settings/store"
)

// ReloadPlanner applies an UpdateResult to the live configuration model: it
// maps repository deltas back to storages, decides which scheme managers must
// reload, and reinitializes only the affected components.
type ReloadPlanner struct {
	store  ConfigStore
	exec   Executor
	prompt RestartPrompter
}

func NewReloadPlanner(cfgStore ConfigStore, exec Executor, prompt RestartPrompter) *ReloadPlanner {
	if exec == nil {
		exec = CallerExecutor{}
	}
	return &ReloadPlanner{store: cfgStore, exec: exec, prompt: prompt}
}

// applyOutcome reports what an apply pass did.
type applyOutcome struct {
	updated         bool
	restartRequired bool
}

// Apply maps the update's repository paths to local storages and refreshes the
// in-memory model. reloadAllSchemes must be true exactly when the strategy was
// overwrite-local, since a full reset may touch anything.
func (p *ReloadPlanner) Apply(ctx context.Context, update *repo.UpdateResult, reloadAllSchemes bool) (applyOutcome, error) {
	var out applyOutcome
	if update == nil {
		return out, nil
	}

	changedSpecs := p.mapToFileSpecs(update.Changed.ToSlice())
	deletedSpecs := p.mapToFileSpecs(update.Deleted.ToSlice())
	changed := p.filterStorages(changedSpecs)
	deleted := p.filterStorages(deletedSpecs)
	schemes := p.schemesToReload(changedSpecs, deletedSpecs, reloadAllSchemes)

	if len(changed) == 0 && len(deleted) == 0 && len(schemes) == 0 {
		slog.Debug("no storages affected by update")
		return out, nil
	}

	var names []store.ComponentName
	err := p.exec.Invoke(ctx, func() error {
		var applyErr error
		names, applyErr = p.store.ApplyStorageDeltas(ctx, changed, deleted)
		if applyErr != nil {
			slog.Error("apply storage deltas", "error", applyErr)
		}
		for _, sm := range schemes {
			if reloadErr := sm.Reload(); reloadErr != nil {
				slog.Error("scheme reload failed", "manager", sm.Name(), "error", reloadErr)
			}
		}
		return applyErr
	})
	if err != nil {
		return out, fmt.Errorf("apply update: %w", err)
	}

	// Storages were touched, so an update happened even if no live component
	// maps to them.
	out.updated = true
	if len(names) == 0 {
		return out, nil
	}

	notReloadable := p.store.NotReloadable(names)
	if reinitErr := p.store.ReinitComponents(ctx, names, notReloadable); reinitErr != nil {
		slog.Error("component reinitialization", "error", reinitErr)
	}

	if len(notReloadable) > 0 && p.prompt != nil && p.prompt.ConfirmRestart(notReloadable) {
		out.restartRequired = true
	}
	return out, nil
}

// mapToFileSpecs resolves repository paths to file specs via the inverse path
// mapping. Paths outside the settings layout are dropped.
func (p *ReloadPlanner) mapToFileSpecs(paths []string) []string {
	specs := make([]string, 0, len(paths))
	for _, path := range paths {
		fileSpec, _, ok := repopath.ToLocalPath(path)
		if !ok {
			continue
		}
		specs = append(specs, fileSpec)
	}
	sort.Strings(specs)
	return specs
}

// filterStorages keeps only file specs with a registered storage; the rest
// carry no component state.
func (p *ReloadPlanner) filterStorages(specs []string) []string {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		if p.store.HasStorage(spec) {
			out = append(out, spec)
		}
	}
	return out
}

// schemesToReload picks the scheme managers whose file spec overlaps a changed
// or deleted path, or all of them after a full reset.
func (p *ReloadPlanner) schemesToReload(changed, deleted []string, reloadAll bool) []store.SchemeManager {
	managers := p.store.SchemeManagers()
	if reloadAll {
		return managers
	}

	var out []store.SchemeManager
	for _, sm := range managers {
		if specsTouch(changed, sm.FileSpec()) || specsTouch(deleted, sm.FileSpec()) {
			out = append(out, sm)
		}
	}
	return out
}

func specsTouch(specs []string, schemeSpec string) bool {
	for _, spec := range specs {
		if spec == schemeSpec || strings.HasPrefix(spec, schemeSpec+"/") {
			return true
		}
	}
	return false
}
