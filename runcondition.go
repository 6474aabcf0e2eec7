package ecs

import (
	"fmt"
	"sync"
)

// RunInState builds a RunCondition requiring the world's current state (as
// reported by the configured StateProvider) to equal state.
//
// Multiple RunInState values on one system combine by conjunction, not
// disjunction: the documentation convention of "a list of states in which
// the system should run" reads as disjunctive, but this engine ANDs every
// declared predicate. A single state value is the common case; declaring
// more than one means the state must equal all of them simultaneously,
// which is never true. This mirrors the upstream behavior deliberately
// rather than silently reinterpreting it — see the design notes.
func RunInState(provider func() string, state string) RunCondition {
	return RunCondition{
		Key: fmt.Sprintf("state==%s", state),
		Eval: func() (bool, error) {
			if provider == nil {
				return false, nil
			}
			return provider() == state, nil
		},
	}
}

// RunNotInState builds a RunCondition requiring the current state to differ
// from state.
func RunNotInState(provider func() string, state string) RunCondition {
	return RunCondition{
		Key: fmt.Sprintf("state!=%s", state),
		Eval: func() (bool, error) {
			if provider == nil {
				return true, nil
			}
			return provider() != state, nil
		},
	}
}

// ConditionCache evaluates and caches boolean predicates once per frame.
// Writes happen only at frame start on the driver goroutine; reads during
// the frame are concurrency-safe for the gated systems that consult it.
type ConditionCache struct {
	mu     sync.RWMutex
	values map[string]bool
}

// NewConditionCache constructs an empty cache.
func NewConditionCache() *ConditionCache {
	return &ConditionCache{values: make(map[string]bool)}
}

// Refresh evaluates every distinct condition (by Key) exactly once and
// stores the result. A condition whose Eval returns an error is reported as
// ErrBadCondition, wrapping the original error; the cache is left holding
// whatever values were computed before the failure.
func (c *ConditionCache) Refresh(conditions []RunCondition) error {
	seen := make(map[string]struct{}, len(conditions))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cond := range conditions {
		if cond.Eval == nil {
			continue
		}
		if _, ok := seen[cond.Key]; ok {
			continue
		}
		seen[cond.Key] = struct{}{}
		ok, err := cond.Eval()
		if err != nil {
			return fmt.Errorf("%w: condition %s: %w", ErrBadCondition, cond.Key, err)
		}
		c.values[cond.Key] = ok
	}
	return nil
}

// Eval returns the cached value for a condition's key, and whether it has
// been evaluated this frame.
func (c *ConditionCache) Eval(key string) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Gate reports whether every condition in conditions holds, per the cached
// values. A condition missing from the cache (not yet refreshed) gates the
// system closed, matching the startup-systems-default-to-false rule.
func (c *ConditionCache) Gate(conditions []RunCondition) bool {
	for _, cond := range conditions {
		v, ok := c.Eval(cond.Key)
		if !ok || !v {
			return false
		}
	}
	return true
}
