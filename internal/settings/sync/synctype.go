// Package sync drives one settings synchronization run end-to-end: commit,
// pull or reset per the chosen strategy, push, refresh of read-only sources,
// and selective reload of only the configuration components a remote update
// touched. The local configuration store is never read or written concurrently
// with a run in progress.
package sync

import "fmt"

// SyncType selects which repository operations a run performs and in what
// order.
type SyncType int

const (
	// SyncTypeMerge pulls remote changes, layers local content on top, and
	// pushes the result.
	SyncTypeMerge SyncType = iota

	// SyncTypeOverwriteLocal resets local state to match the remote exactly.
	// The remote is never touched.
	SyncTypeOverwriteLocal

	// SyncTypeOverwriteRemote resets the remote to match local state.
	SyncTypeOverwriteRemote
)

func (t SyncType) String() string {
	switch t {
	case SyncTypeMerge:
		return "merge"
	case SyncTypeOverwriteLocal:
		return "overwrite local"
	case SyncTypeOverwriteRemote:
		return "overwrite remote"
	default:
		return fmt.Sprintf("sync type %d", int(t))
	}
}

// ParseSyncType maps a CLI strategy name to its SyncType.
func ParseSyncType(s string) (SyncType, error) {
	switch s {
	case "merge":
		return SyncTypeMerge, nil
	case "overwrite-local":
		return SyncTypeOverwriteLocal, nil
	case "overwrite-remote":
		return SyncTypeOverwriteRemote, nil
	default:
		return SyncTypeMerge, fmt.Errorf("unknown sync strategy %q", s)
	}
}

// IsValid reports whether t is a known strategy.
func (t SyncType) IsValid() bool {
	switch t {
	case SyncTypeMerge, SyncTypeOverwriteLocal, SyncTypeOverwriteRemote:
		return true
	default:
		return false
	}
}
