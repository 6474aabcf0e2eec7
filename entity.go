package ecs

import (
	"fmt"
	"sync"
)

// EntityID names an entity within a World. The embedded generation lets the
// registry detect a command holding onto an identifier whose slot has since
// been recycled for a different entity.
type EntityID struct {
	slot uint32
	gen  uint32
}

// Index returns the entity's storage slot, stable across its lifetime.
func (id EntityID) Index() uint32 { return id.slot }

// Generation returns the recycling counter attached to the entity's slot.
func (id EntityID) Generation() uint32 { return id.gen }

// IsZero reports whether id is the unset identifier.
func (id EntityID) IsZero() bool { return id.slot == 0 && id.gen == 0 }

func (id EntityID) String() string {
	if id.IsZero() {
		return "EntityID(0:0)"
	}
	return fmt.Sprintf("EntityID(%d:%d)", id.slot, id.gen)
}

// EntityRegistry allocates and recycles EntityIDs for one World. A destroyed
// slot is returned to the free list with its generation bumped, so any
// EntityID still referencing the old generation reads as dead rather than
// aliasing the slot's next occupant.
type EntityRegistry struct {
	mu   sync.Mutex
	gens []uint32
	free []uint32
	live int
}

// NewEntityRegistry constructs an empty registry.
func NewEntityRegistry() *EntityRegistry {
	return &EntityRegistry{}
}

// Create allocates a fresh EntityID, preferring a recycled slot over growing
// the registry.
func (r *EntityRegistry) Create() EntityID {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.popFreeLocked()
	if !ok {
		slot = uint32(len(r.gens))
		r.gens = append(r.gens, 0)
	}

	r.gens[slot]++
	r.live++
	return EntityID{slot: slot, gen: r.gens[slot]}
}

func (r *EntityRegistry) popFreeLocked() (uint32, bool) {
	if len(r.free) == 0 {
		return 0, false
	}
	last := len(r.free) - 1
	slot := r.free[last]
	r.free = r.free[:last]
	return slot, true
}

// Destroy recycles id's slot, reporting false if id is already stale or
// unset.
func (r *EntityRegistry) Destroy(id EntityID) bool {
	if id.IsZero() {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isAliveLocked(id) {
		return false
	}

	r.gens[id.slot]++
	r.free = append(r.free, id.slot)
	r.live--
	return true
}

// IsAlive reports whether id still names a live entity in this registry.
func (r *EntityRegistry) IsAlive(id EntityID) bool {
	if id.IsZero() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isAliveLocked(id)
}

// Count returns the number of currently live entities.
func (r *EntityRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live
}

func (r *EntityRegistry) isAliveLocked(id EntityID) bool {
	if int(id.slot) >= len(r.gens) {
		return false
	}
	return r.gens[id.slot] == id.gen
}
