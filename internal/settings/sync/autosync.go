package sync

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/rjeczalik/notify"
	"golang.org/x/sync/singleflight"
)

const (
	defaultAutoSyncInterval = 5 * time.Minute
	autoSyncDebounce        = 2 * time.Second
)

// SyncRunner is the orchestrator surface the coordinator drives.
type SyncRunner interface {
	AutoSync(ctx context.Context) error
}

// AutoSyncCoordinator schedules background merge syncs from filesystem
// activity in the settings workspace and a periodic interval, and serializes
// them against manual runs. Concurrent triggers collapse into one run.
type AutoSyncCoordinator struct {
	runner   SyncRunner
	dir      string
	interval time.Duration
	debounce time.Duration

	disabled  atomic.Bool
	suspended atomic.Int32

	group singleflight.Group

	mu       stdsync.Mutex
	inflight chan struct{}

	events chan notify.EventInfo
	wg     stdsync.WaitGroup
}

var _ AutoSync = (*AutoSyncCoordinator)(nil)

// NewAutoSyncCoordinator watches dir (the settings working copy) and triggers
// runner. interval <= 0 uses the default.
func NewAutoSyncCoordinator(dir string, runner SyncRunner, interval time.Duration) *AutoSyncCoordinator {
	if interval <= 0 {
		interval = defaultAutoSyncInterval
	}
	return &AutoSyncCoordinator{
		runner:   runner,
		dir:      dir,
		interval: interval,
		debounce: autoSyncDebounce,
		events:   make(chan notify.EventInfo, 64),
	}
}

// Start begins watching for local edits and ticking the periodic sync.
func (c *AutoSyncCoordinator) Start(ctx context.Context) error {
	slog.Info("auto sync start", "dir", c.dir, "interval", c.interval)

	recursive := filepath.Join(c.dir, "...")
	if err := notify.Watch(recursive, c.events, notify.Write, notify.Create, notify.Remove, notify.Rename); err != nil {
		return err
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()
	return nil
}

// Stop halts watching and waits out an in-flight run.
func (c *AutoSyncCoordinator) Stop() {
	notify.Stop(c.events)
	c.wg.Wait()
	slog.Info("auto sync stop")
}

func (c *AutoSyncCoordinator) loop(ctx context.Context) {
	// Timer instead of ticker so a slow run does not queue ticks.
	interval := time.NewTimer(c.interval)
	defer interval.Stop()

	debounce := time.NewTimer(c.debounce)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-c.events:
			if !ok {
				return
			}
			if c.ignoreEvent(event.Path()) {
				continue
			}
			// Collapse edit bursts into one trigger.
			debounce.Reset(c.debounce)

		case <-debounce.C:
			c.maybeSync(ctx)

		case <-interval.C:
			c.maybeSync(ctx)
			interval.Reset(c.interval)
		}
	}
}

// ignoreEvent drops repository-internal churn: a sync run rewrites .git
// state, which must not retrigger the watcher.
func (c *AutoSyncCoordinator) ignoreEvent(path string) bool {
	rel, err := filepath.Rel(c.dir, path)
	if err != nil {
		return true
	}
	rel = filepath.ToSlash(rel)
	return rel == ".git" || strings.HasPrefix(rel, ".git/") || strings.HasPrefix(rel, "../")
}

func (c *AutoSyncCoordinator) maybeSync(ctx context.Context) {
	if c.disabled.Load() || c.suspended.Load() > 0 {
		return
	}

	_, _, _ = c.group.Do("auto-sync", func() (any, error) {
		done := make(chan struct{})
		c.mu.Lock()
		c.inflight = done
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			c.inflight = nil
			c.mu.Unlock()
			close(done)
		}()

		if err := c.runner.AutoSync(ctx); err != nil {
			slog.Warn("automatic sync failed", "error", err)
		}
		return nil, nil
	})
}

// Suspend pauses new automatic triggers until the returned resume function is
// called. Used by the orchestrator for the duration of a manual run.
func (c *AutoSyncCoordinator) Suspend() (resume func()) {
	c.suspended.Add(1)
	return func() { c.suspended.Add(-1) }
}

// WaitFor blocks until any in-flight automatic run finishes, bounded by ctx.
func (c *AutoSyncCoordinator) WaitFor(ctx context.Context) error {
	c.mu.Lock()
	done := c.inflight
	c.mu.Unlock()
	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DisableForever turns automatic syncing off for the remainder of the process
// lifetime. Set when a restart is pending.
func (c *AutoSyncCoordinator) DisableForever() {
	c.disabled.Store(true)
}

// Disabled reports whether automatic syncing was permanently disabled.
func (c *AutoSyncCoordinator) Disabled() bool {
	return c.disabled.Load()
}
