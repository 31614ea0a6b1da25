// Package store is the file-backed configuration storage layer. It owns the
// in-memory state of addressable configuration components, maps them to file
// specs inside the settings working copy, and applies the storage deltas a
// sync run produces. All writes honor the orchestrator's write interlock.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/maxsxu/settings-repository-plus/internal/settings/repopath"
	"github.com/maxsxu/settings-repository-plus/internal/utils"
)

// ComponentName identifies an addressable, independently-reloadable unit of
// configuration state.
type ComponentName string

var (
	// ErrWritesProhibited is returned for any write attempted while a sync
	// run holds the write interlock.
	ErrWritesProhibited = errors.New("configuration writes prohibited during sync")

	// ErrUnknownComponent is returned when addressing an unregistered component.
	ErrUnknownComponent = errors.New("unknown component")
)

// WriteGate is the capability the orchestrator exposes to reject configuration
// writes while a sync run is in flight.
type WriteGate interface {
	WritesProhibited() bool
}

// Notifier receives one batched notification per apply phase covering every
// component that changed, so subscribers observe the whole set once.
type Notifier interface {
	ComponentsChanged(names []ComponentName)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) ComponentsChanged([]ComponentName) {}

// ComponentSpec registers a component with the store.
type ComponentSpec struct {
	Name     ComponentName
	FileSpec string
	Roaming  repopath.RoamingType

	// Reloadable components can be refreshed in-process. Others require
	// dropping and reconstructing their instances, i.e. a restart.
	Reloadable bool

	// Reinit rebuilds the in-memory instance after its storage changed.
	// Optional; nil means the refreshed state is picked up lazily.
	Reinit func(ctx context.Context) error
}

type componentEntry struct {
	spec  ComponentSpec
	state []byte
	dirty bool
}

// FileStore implements the ConfigStore contract over the settings working copy.
type FileStore struct {
	root     string
	gate     WriteGate
	notifier Notifier

	mu         sync.Mutex
	components map[ComponentName]*componentEntry
	byFileSpec map[string][]ComponentName
	storages   map[string]struct{}
	schemes    []SchemeManager
}

// NewFileStore creates a store rooted at the settings working copy. gate may
// not be nil; use the orchestrator's guard.
func NewFileStore(root string, gate WriteGate, notifier Notifier) *FileStore {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &FileStore{
		root:       root,
		gate:       gate,
		notifier:   notifier,
		components: make(map[ComponentName]*componentEntry),
		byFileSpec: make(map[string][]ComponentName),
		storages:   make(map[string]struct{}),
	}
}

// RegisterComponent adds a component and its backing storage.
func (s *FileStore) RegisterComponent(spec ComponentSpec) error {
	if spec.Name == "" || spec.FileSpec == "" {
		return fmt.Errorf("component spec requires name and file spec")
	}
	if _, err := repopath.ToRepoPath(spec.FileSpec, spec.Roaming); err != nil {
		return fmt.Errorf("register %s: %w", spec.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.components[spec.Name]; exists {
		return fmt.Errorf("component %s already registered", spec.Name)
	}
	s.components[spec.Name] = &componentEntry{spec: spec}
	s.byFileSpec[spec.FileSpec] = append(s.byFileSpec[spec.FileSpec], spec.Name)
	s.storages[spec.FileSpec] = struct{}{}
	return nil
}

// RegisterStorage adds a storage with no live component attached. Deltas for
// it still count as an update but affect no component.
func (s *FileStore) RegisterStorage(fileSpec string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storages[fileSpec] = struct{}{}
}

// AddSchemeManager attaches a scheme manager backed by one file-spec directory.
func (s *FileStore) AddSchemeManager(sm SchemeManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemes = append(s.schemes, sm)
}

// SchemeManagers returns every registered scheme manager.
func (s *FileStore) SchemeManagers() []SchemeManager {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SchemeManager, len(s.schemes))
	copy(out, s.schemes)
	return out
}

// HasStorage reports whether fileSpec addresses a registered storage.
func (s *FileStore) HasStorage(fileSpec string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.storages[fileSpec]
	return ok
}

// SetComponentState records new in-memory state for a component. Rejected
// while a sync run holds the write interlock.
func (s *FileStore) SetComponentState(name ComponentName, state []byte) error {
	if s.gate != nil && s.gate.WritesProhibited() {
		return ErrWritesProhibited
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.components[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	entry.state = append([]byte(nil), state...)
	entry.dirty = true
	return nil
}

// ComponentState returns the current in-memory state of a component.
func (s *FileStore) ComponentState(name ComponentName) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.components[name]
	if !ok || entry.state == nil {
		return nil, false
	}
	return append([]byte(nil), entry.state...), true
}

// FlushPending persists every dirty component to its storage file so an
// upcoming commit captures the latest state.
func (s *FileStore) FlushPending() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for name, entry := range s.components {
		if !entry.dirty {
			continue
		}
		path, err := s.localPathLocked(entry.spec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := utils.EnsureParent(path); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", name, err))
			continue
		}
		if err := os.WriteFile(path, entry.state, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("flush %s: %w", name, err))
			continue
		}
		entry.dirty = false
	}
	return errors.Join(errs...)
}

// ApplyStorageDeltas refreshes in-memory state from changed storage files and
// drops state for deleted ones. It returns the names of every affected live
// component, sorted for stable notification order.
func (s *FileStore) ApplyStorageDeltas(ctx context.Context, changed, deleted []string) ([]ComponentName, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	affected := make(map[ComponentName]struct{})
	var errs []error

	for _, fileSpec := range changed {
		for _, name := range s.byFileSpec[fileSpec] {
			entry := s.components[name]
			path, err := s.localPathLocked(entry.spec)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("reload %s: %w", name, err))
				continue
			}
			entry.state = data
			entry.dirty = false
			affected[name] = struct{}{}
		}
	}

	for _, fileSpec := range deleted {
		for _, name := range s.byFileSpec[fileSpec] {
			entry := s.components[name]
			entry.state = nil
			entry.dirty = false
			affected[name] = struct{}{}
		}
	}

	names := make([]ComponentName, 0, len(affected))
	for name := range affected {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names, errors.Join(errs...)
}

// NotReloadable filters names down to components that cannot be refreshed
// in-process.
func (s *FileStore) NotReloadable(names []ComponentName) []ComponentName {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ComponentName
	for _, name := range names {
		if entry, ok := s.components[name]; ok && !entry.spec.Reloadable {
			out = append(out, name)
		}
	}
	return out
}

// ReinitComponents reinitializes every reloadable affected component. A
// failure in one component does not prevent reinitialization of the others;
// subscribers receive a single batched notification covering the whole set.
func (s *FileStore) ReinitComponents(ctx context.Context, names, notReloadable []ComponentName) error {
	skip := make(map[ComponentName]struct{}, len(notReloadable))
	for _, name := range notReloadable {
		skip[name] = struct{}{}
	}

	var errs []error
	for _, name := range names {
		if _, skipped := skip[name]; skipped {
			continue
		}
		s.mu.Lock()
		entry, ok := s.components[name]
		s.mu.Unlock()
		if !ok || entry.spec.Reinit == nil {
			continue
		}
		if err := entry.spec.Reinit(ctx); err != nil {
			slog.Error("component reinit failed", "component", name, "error", err)
			errs = append(errs, fmt.Errorf("reinit %s: %w", name, err))
		}
	}

	if len(names) > 0 {
		s.notifier.ComponentsChanged(names)
	}
	return errors.Join(errs...)
}

func (s *FileStore) localPathLocked(spec ComponentSpec) (string, error) {
	repoPath, err := repopath.ToRepoPath(spec.FileSpec, spec.Roaming)
	if err != nil {
		return "", fmt.Errorf("map %s: %w", spec.Name, err)
	}
	return filepath.Join(s.root, filepath.FromSlash(repoPath)), nil
}
