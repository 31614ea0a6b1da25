package repo

import (
	mapset "github.com/deckarep/golang-set/v2"
)

// UpdateResult reports which repository-relative paths an operation changed or
// deleted in the working copy. Changed and Deleted are kept disjoint: a path
// added to one side is dropped from the other.
type UpdateResult struct {
	Changed mapset.Set[string]
	Deleted mapset.Set[string]
}

func NewUpdateResult() *UpdateResult {
	return &UpdateResult{
		Changed: mapset.NewSet[string](),
		Deleted: mapset.NewSet[string](),
	}
}

func (u *UpdateResult) AddChanged(path string) {
	u.Deleted.Remove(path)
	u.Changed.Add(path)
}

func (u *UpdateResult) AddDeleted(path string) {
	u.Changed.Remove(path)
	u.Deleted.Add(path)
}

func (u *UpdateResult) IsEmpty() bool {
	return u == nil || (u.Changed.Cardinality() == 0 && u.Deleted.Cardinality() == 0)
}

// Merge folds another result into this one. Later changes win over earlier
// deletes and vice versa.
func (u *UpdateResult) Merge(other *UpdateResult) {
	if other == nil {
		return
	}
	other.Changed.Each(func(p string) bool {
		u.AddChanged(p)
		return false
	})
	other.Deleted.Each(func(p string) bool {
		u.AddDeleted(p)
		return false
	})
}
