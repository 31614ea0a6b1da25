package sync

import "sync/atomic"

// Guard is the process-wide interlock a sync run holds for its whole duration.
// While held, configuration writes and automatic commits are rejected
// everywhere in the process. Visibility is atomic, so any goroutine attempting
// a write observes the flag without coordination.
type Guard struct {
	writesProhibited   atomic.Bool
	autoCommitDisabled atomic.Bool
}

func NewGuard() *Guard {
	return &Guard{}
}

// Acquire sets both flags and returns the release function. Callers must
// defer the release so every exit path, including cancellation and panics,
// clears the flags.
func (g *Guard) Acquire() (release func()) {
	g.autoCommitDisabled.Store(true)
	g.writesProhibited.Store(true)
	return func() {
		g.writesProhibited.Store(false)
		g.autoCommitDisabled.Store(false)
	}
}

// WritesProhibited reports whether a sync run is in flight. This is the
// capability handed to the storage layer.
func (g *Guard) WritesProhibited() bool {
	return g.writesProhibited.Load()
}

// AutoCommitDisabled reports whether background commit activity must pause.
func (g *Guard) AutoCommitDisabled() bool {
	return g.autoCommitDisabled.Load()
}
