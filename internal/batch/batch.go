// Package batch implements the async-phase batching analyzer: given a new
// system and the current batch plan, it finds the earliest batch with no
// component-lock conflict that also satisfies the system's run-after
// constraints, appending a new batch if none qualifies.
package batch

import (
	"errors"
	"fmt"
)

// ErrUnknownPredecessor indicates a run-after reference names a system not
// yet placed in any batch.
var ErrUnknownPredecessor = errors.New("batch: unknown predecessor system")

// Lock is a component lock declaration, independent of the owning package's
// component type representation so this analyzer stays a pure function over
// plain data.
type Lock struct {
	Component string
	Tag       string
	Scoped    bool
}

// Conflicts reports whether two locks would race if run concurrently.
func (l Lock) Conflicts(other Lock) bool {
	if l.Component != other.Component {
		return false
	}
	if !l.Scoped || !other.Scoped {
		return true
	}
	return l.Tag == other.Tag
}

// System is the minimal view of a system the analyzer needs to place it.
type System struct {
	Name     string
	Locks    []Lock
	RunAfter []string
}

// locksConflict reports whether any lock of a conflicts with any lock of b.
func locksConflict(a, b []Lock) bool {
	for _, la := range a {
		for _, lb := range b {
			if la.Conflicts(lb) {
				return true
			}
		}
	}
	return false
}

// batchConflicts reports whether sys conflicts with any system already
// placed in batch.
func batchConflicts(batch []System, sys System) bool {
	for _, placed := range batch {
		if locksConflict(placed.Locks, sys.Locks) {
			return true
		}
	}
	return false
}

// minBatchIndex computes k = 1 + the maximum index of a batch containing any
// tag in sys.RunAfter, or 0 if RunAfter is empty. Returns ErrUnknownPredecessor
// if a referenced tag has not yet been placed.
func minBatchIndex(plan [][]System, sys System) (int, error) {
	if len(sys.RunAfter) == 0 {
		return 0, nil
	}

	located := make(map[string]int, len(sys.RunAfter))
	for idx, b := range plan {
		for _, placed := range b {
			located[placed.Name] = idx
		}
	}

	k := 0
	for _, dep := range sys.RunAfter {
		idx, ok := located[dep]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnknownPredecessor, dep)
		}
		if idx+1 > k {
			k = idx + 1
		}
	}
	return k, nil
}

// Place inserts sys into the earliest batch at index >= k with no lock
// conflict, appending a new batch after the last one if none qualifies.
// The input plan is never mutated; a new plan is returned.
func Place(plan [][]System, sys System) ([][]System, error) {
	k, err := minBatchIndex(plan, sys)
	if err != nil {
		return nil, err
	}

	out := make([][]System, len(plan))
	for i, b := range plan {
		out[i] = append([]System(nil), b...)
	}

	for i := k; i < len(out); i++ {
		if !batchConflicts(out[i], sys) {
			out[i] = append(out[i], sys)
			return out, nil
		}
	}

	out = append(out, []System{sys})
	return out, nil
}
