package batch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlaceBareLockConflictForcesNewBatch(t *testing.T) {
	var plan [][]System
	var err error

	plan, err = Place(plan, System{Name: "a", Locks: []Lock{{Component: "position"}}})
	require.NoError(t, err)
	plan, err = Place(plan, System{Name: "b", Locks: []Lock{{Component: "position"}}})
	require.NoError(t, err)

	require.Len(t, plan, 2)
	require.Equal(t, "a", plan[0][0].Name)
	require.Equal(t, "b", plan[1][0].Name)
}

func TestPlaceScopedLocksDistinctTagsShareBatch(t *testing.T) {
	var plan [][]System
	var err error

	plan, err = Place(plan, System{Name: "a", Locks: []Lock{{Component: "health", Tag: "team-red", Scoped: true}}})
	require.NoError(t, err)
	plan, err = Place(plan, System{Name: "b", Locks: []Lock{{Component: "health", Tag: "team-blue", Scoped: true}}})
	require.NoError(t, err)

	require.Len(t, plan, 1)
	require.Len(t, plan[0], 2)
}

func TestPlaceScopedLocksSameTagConflict(t *testing.T) {
	var plan [][]System
	var err error

	plan, err = Place(plan, System{Name: "a", Locks: []Lock{{Component: "health", Tag: "team-red", Scoped: true}}})
	require.NoError(t, err)
	plan, err = Place(plan, System{Name: "b", Locks: []Lock{{Component: "health", Tag: "team-red", Scoped: true}}})
	require.NoError(t, err)

	require.Len(t, plan, 2, "same-tag scoped locks must conflict")
}

func TestPlaceRunAfterForcesLaterBatch(t *testing.T) {
	var plan [][]System
	var err error

	plan, err = Place(plan, System{Name: "a", Locks: []Lock{{Component: "velocity"}}})
	require.NoError(t, err)
	// b has no lock conflict with a, but declares run_after a, so it must
	// land in batch 1, not batch 0.
	plan, err = Place(plan, System{Name: "b", Locks: []Lock{{Component: "position"}}, RunAfter: []string{"a"}})
	require.NoError(t, err)

	require.Len(t, plan, 2)
	require.Equal(t, []System{{Name: "a", Locks: []Lock{{Component: "velocity"}}}}, plan[0])
	require.Len(t, plan[1], 1)
	require.Equal(t, "b", plan[1][0].Name)
}

func TestPlaceUnknownPredecessorErrors(t *testing.T) {
	var plan [][]System
	_, err := Place(plan, System{Name: "a", RunAfter: []string{"ghost"}})
	require.ErrorIs(t, err, ErrUnknownPredecessor)
}

func TestPlaceDoesNotMutateInputPlan(t *testing.T) {
	plan := [][]System{{{Name: "a", Locks: []Lock{{Component: "position"}}}}}
	next, err := Place(plan, System{Name: "b", Locks: []Lock{{Component: "velocity"}}})
	require.NoError(t, err)
	require.Len(t, plan[0], 1, "input plan must not be mutated")
	require.Len(t, next[0], 2, "b should be appended to batch 0 of the returned plan")
}
