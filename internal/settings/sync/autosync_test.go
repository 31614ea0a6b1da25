package sync

import (
	"context"
	"errors"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/rjeczalik/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvent string

func (e fakeEvent) Event() notify.Event { return notify.Write }
func (e fakeEvent) Path() string        { return string(e) }
func (e fakeEvent) Sys() interface{}    { return nil }

type countingRunner struct {
	mu    stdsync.Mutex
	calls int
	block chan struct{}
	err   error
}

func (r *countingRunner) AutoSync(ctx context.Context) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	return r.err
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestAutoSyncMaybeSync(t *testing.T) {
	t.Run("runs when idle", func(t *testing.T) {
		runner := &countingRunner{}
		c := NewAutoSyncCoordinator(t.TempDir(), runner, time.Hour)
		c.maybeSync(context.Background())
		assert.Equal(t, 1, runner.count())
	})

	t.Run("suspended skips", func(t *testing.T) {
		runner := &countingRunner{}
		c := NewAutoSyncCoordinator(t.TempDir(), runner, time.Hour)
		resume := c.Suspend()
		c.maybeSync(context.Background())
		assert.Zero(t, runner.count())

		resume()
		c.maybeSync(context.Background())
		assert.Equal(t, 1, runner.count())
	})

	t.Run("disabled forever skips", func(t *testing.T) {
		runner := &countingRunner{}
		c := NewAutoSyncCoordinator(t.TempDir(), runner, time.Hour)
		c.DisableForever()
		c.maybeSync(context.Background())
		assert.Zero(t, runner.count())
		assert.True(t, c.Disabled())
	})

	t.Run("run failure is swallowed", func(t *testing.T) {
		runner := &countingRunner{err: errors.New("remote unreachable")}
		c := NewAutoSyncCoordinator(t.TempDir(), runner, time.Hour)
		c.maybeSync(context.Background())
		assert.Equal(t, 1, runner.count())
	})
}

func TestAutoSyncWaitFor(t *testing.T) {
	t.Run("no run in flight returns immediately", func(t *testing.T) {
		c := NewAutoSyncCoordinator(t.TempDir(), &countingRunner{}, time.Hour)
		require.NoError(t, c.WaitFor(context.Background()))
	})

	t.Run("blocks until the in-flight run finishes", func(t *testing.T) {
		runner := &countingRunner{block: make(chan struct{})}
		c := NewAutoSyncCoordinator(t.TempDir(), runner, time.Hour)

		started := make(chan struct{})
		go func() {
			close(started)
			c.maybeSync(context.Background())
		}()
		<-started
		require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

		waited := make(chan error, 1)
		go func() { waited <- c.WaitFor(context.Background()) }()

		select {
		case <-waited:
			t.Fatal("WaitFor returned while a run was in flight")
		case <-time.After(50 * time.Millisecond):
		}

		close(runner.block)
		select {
		case err := <-waited:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("WaitFor did not return after the run finished")
		}
	})

	t.Run("context bound", func(t *testing.T) {
		runner := &countingRunner{block: make(chan struct{})}
		defer close(runner.block)
		c := NewAutoSyncCoordinator(t.TempDir(), runner, time.Hour)

		go c.maybeSync(context.Background())
		require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, c.WaitFor(ctx), context.DeadlineExceeded)
	})
}

func TestAutoSyncIgnoreEvent(t *testing.T) {
	dir := t.TempDir()
	c := NewAutoSyncCoordinator(dir, &countingRunner{}, time.Hour)

	assert.True(t, c.ignoreEvent(filepath.Join(dir, ".git")))
	assert.True(t, c.ignoreEvent(filepath.Join(dir, ".git", "index")))
	assert.True(t, c.ignoreEvent(filepath.Join(dir, "..", "elsewhere", "x")))
	assert.False(t, c.ignoreEvent(filepath.Join(dir, "options", "editor.xml")))
	assert.False(t, c.ignoreEvent(filepath.Join(dir, "keymaps", "custom.xml")))
}

func TestAutoSyncDebounceCollapsesBursts(t *testing.T) {
	runner := &countingRunner{}
	dir := t.TempDir()
	c := NewAutoSyncCoordinator(dir, runner, time.Hour)
	c.debounce = 30 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop(ctx)
	}()

	for i := 0; i < 5; i++ {
		c.events <- fakeEvent(filepath.Join(dir, "options", "editor.xml"))
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return runner.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, runner.count())

	cancel()
	c.wg.Wait()
}
