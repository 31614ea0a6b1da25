// Package repo wraps version-control operations for the settings workspace
// behind a narrow manager contract. The sync orchestrator is the only caller;
// every mutating operation assumes the orchestrator's write-prohibition guard
// is held for the duration of the call.
package repo

import "context"

// Initializer seeds the working copy with initial local content. It runs with
// the write guard held and may create or modify files under the workspace.
type Initializer func(ctx context.Context) error

// Manager is the version-control contract consumed by the sync orchestrator.
// Implementations surface authentication and missing-remote failures as
// ErrAuthFailed / ErrNoRemoteRepository so callers can branch on kind.
type Manager interface {
	// Commit stages and commits all local modifications, tagged with the sync
	// strategy that triggered it. Returns true iff something was committed.
	Commit(ctx context.Context, tag string) (bool, error)

	// Pull fetches and fast-forwards the local branch. Returns the paths the
	// working copy gained or lost. Diverged histories fail with
	// ErrUnresolvedConflict.
	Pull(ctx context.Context) (*UpdateResult, error)

	// Push publishes local commits to the upstream.
	Push(ctx context.Context) error

	// ResetToRemote discards local state and hard-resets the working copy to
	// the remote head. The returned result reflects the diff from the
	// pre-reset head to the remote head.
	ResetToRemote(ctx context.Context) (*UpdateResult, error)

	// ResetToLocal makes local state the winner: it runs the optional
	// initializer, commits everything, and arranges history so a subsequent
	// push replaces the remote content without force. The working copy keeps
	// its local content, so the returned result is empty unless the
	// initializer touched tracked files.
	ResetToLocal(ctx context.Context, initializer Initializer) (*UpdateResult, error)

	// HasUpstream reports whether a remote is configured.
	HasUpstream() bool

	// AheadCommitCount returns the number of local commits not present on the
	// remote branch. A missing remote branch counts every local commit.
	AheadCommitCount(ctx context.Context) (int, error)
}
