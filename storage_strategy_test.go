package ecs_test

import ecs "github.com/wyvernstudios/ecsched"

// mapComponentStrategy is a minimal in-memory StorageStrategy used only to
// exercise the StorageProvider/ComponentStore contracts in tests; nothing in
// the scheduler depends on a concrete storage backend, so these tests don't
// need one beyond this.
type mapComponentStrategy struct{}

func newMapStrategy() ecs.StorageStrategy { return mapComponentStrategy{} }

func (mapComponentStrategy) Name() string { return "map" }

func (mapComponentStrategy) NewStore(t ecs.ComponentType) ecs.ComponentStore {
	return &mapComponentStore{componentType: t, values: make(map[ecs.EntityID]any)}
}

type mapComponentStore struct {
	componentType ecs.ComponentType
	values        map[ecs.EntityID]any
}

func (s *mapComponentStore) ComponentType() ecs.ComponentType { return s.componentType }

func (s *mapComponentStore) Len() int { return len(s.values) }

func (s *mapComponentStore) Has(id ecs.EntityID) bool {
	_, ok := s.values[id]
	return ok
}

func (s *mapComponentStore) Get(id ecs.EntityID) (any, bool) {
	v, ok := s.values[id]
	return v, ok
}

func (s *mapComponentStore) Iterate(fn func(ecs.EntityID, any) bool) {
	for id, v := range s.values {
		if !fn(id, v) {
			return
		}
	}
}

func (s *mapComponentStore) Set(id ecs.EntityID, value any) error {
	s.values[id] = value
	return nil
}

func (s *mapComponentStore) Remove(id ecs.EntityID) bool {
	if _, ok := s.values[id]; !ok {
		return false
	}
	delete(s.values, id)
	return true
}

func (s *mapComponentStore) Clear() { s.values = make(map[ecs.EntityID]any) }
