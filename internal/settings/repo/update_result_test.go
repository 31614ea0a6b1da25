package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateResultDisjoint(t *testing.T) {
	ur := NewUpdateResult()
	ur.AddChanged("options/editor.xml")
	ur.AddDeleted("options/editor.xml")
	assert.False(t, ur.Changed.Contains("options/editor.xml"))
	assert.True(t, ur.Deleted.Contains("options/editor.xml"))

	ur.AddChanged("options/editor.xml")
	assert.True(t, ur.Changed.Contains("options/editor.xml"))
	assert.False(t, ur.Deleted.Contains("options/editor.xml"))
}

func TestUpdateResultIsEmpty(t *testing.T) {
	var nilResult *UpdateResult
	assert.True(t, nilResult.IsEmpty())
	assert.True(t, NewUpdateResult().IsEmpty())

	ur := NewUpdateResult()
	ur.AddDeleted("keymaps/custom.xml")
	assert.False(t, ur.IsEmpty())
}

func TestUpdateResultMerge(t *testing.T) {
	first := NewUpdateResult()
	first.AddChanged("a.xml")
	first.AddDeleted("b.xml")

	second := NewUpdateResult()
	second.AddDeleted("a.xml")
	second.AddChanged("c.xml")

	first.Merge(second)
	assert.False(t, first.Changed.Contains("a.xml"))
	assert.True(t, first.Deleted.Contains("a.xml"))
	assert.True(t, first.Deleted.Contains("b.xml"))
	assert.True(t, first.Changed.Contains("c.xml"))

	first.Merge(nil)
	assert.Equal(t, 1, first.Changed.Cardinality())
	assert.Equal(t, 2, first.Deleted.Cardinality())
}
