package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardAcquireRelease(t *testing.T) {
	g := NewGuard()
	assert.False(t, g.WritesProhibited())

	release := g.Acquire()
	assert.True(t, g.WritesProhibited())
	assert.True(t, g.AutoCommitDisabled())

	release()
	assert.False(t, g.WritesProhibited())
	assert.False(t, g.AutoCommitDisabled())
}

func TestGuardReleaseIdempotent(t *testing.T) {
	g := NewGuard()
	release := g.Acquire()
	release()
	release()
	assert.False(t, g.WritesProhibited())
}
