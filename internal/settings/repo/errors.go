package repo

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Sentinel errors for the expected, user-actionable outcomes of repository
// operations. Callers branch on these with errors.Is instead of catching
// transport-specific failures.
var (
	// ErrAuthFailed means credentials were rejected or missing.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNoRemoteRepository means the configured upstream does not exist.
	ErrNoRemoteRepository = errors.New("remote repository not found")

	// ErrUnresolvedConflict means local and remote histories diverged beyond
	// what the current strategy can resolve automatically.
	ErrUnresolvedConflict = errors.New("cannot auto-resolve conflict")

	// ErrNoUpstream means the repository has no remote configured.
	ErrNoUpstream = errors.New("no upstream configured")
)

// mapGitError translates go-git and transport errors into the sentinel
// taxonomy, preserving the original error in the chain.
func mapGitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return fmt.Errorf("%w: %v", ErrNoRemoteRepository, err)
	case errors.Is(err, git.ErrRemoteNotFound):
		return fmt.Errorf("%w: %v", ErrNoUpstream, err)
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("%w: %v", ErrUnresolvedConflict, err)
	default:
		return err
	}
}
