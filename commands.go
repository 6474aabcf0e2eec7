package ecs

import "fmt"

// NewCreateEntityCommand enqueues an entity allocation. When target is
// non-nil, the allocated EntityID is written into it once the command
// applies, so a system can hold a forward reference to an entity it is
// about to create before the command buffer drains.
func NewCreateEntityCommand(target *EntityID) Command {
	return createEntityCommand{target: target}
}

// NewDestroyEntityCommand enqueues destruction of id.
func NewDestroyEntityCommand(id EntityID) Command {
	return destroyEntityCommand{entity: id}
}

// NewAddComponentCommand enqueues attaching value as component to id.
func NewAddComponentCommand(id EntityID, component ComponentType, value any) Command {
	return addComponentCommand{entity: id, component: component, value: value}
}

// NewRemoveComponentCommand enqueues detaching component from id.
func NewRemoveComponentCommand(id EntityID, component ComponentType) Command {
	return removeComponentCommand{entity: id, component: component}
}

type createEntityCommand struct {
	target *EntityID
}

func (c createEntityCommand) Apply(world *World) error {
	id := world.registry.Create()
	if c.target != nil {
		*c.target = id
	}
	return nil
}

type destroyEntityCommand struct {
	entity EntityID
}

func (c destroyEntityCommand) Apply(world *World) error {
	if c.entity.IsZero() {
		return fmt.Errorf("ecs: destroy zero entity")
	}
	if !world.registry.Destroy(c.entity) {
		return fmt.Errorf("ecs: destroy stale entity %v", c.entity)
	}
	return nil
}

type addComponentCommand struct {
	entity    EntityID
	component ComponentType
	value     any
}

func (c addComponentCommand) Apply(world *World) error {
	if c.entity.IsZero() {
		return fmt.Errorf("ecs: add component to zero entity")
	}
	store, err := writableStore(world, c.component)
	if err != nil {
		return err
	}
	return store.Set(c.entity, c.value)
}

type removeComponentCommand struct {
	entity    EntityID
	component ComponentType
}

func (c removeComponentCommand) Apply(world *World) error {
	if c.entity.IsZero() {
		return fmt.Errorf("ecs: remove component from zero entity")
	}
	store, err := writableStore(world, c.component)
	if err != nil {
		return err
	}
	store.Remove(c.entity)
	return nil
}

// writableStore looks up component's store and asserts it supports writes;
// a read-only ComponentView registered under the same type is a caller bug,
// not a missing-registration error, so it gets its own message.
func writableStore(world *World, component ComponentType) (ComponentStore, error) {
	view, err := world.storage.View(component)
	if err != nil {
		return nil, err
	}
	store, ok := view.(ComponentStore)
	if !ok {
		return nil, fmt.Errorf("ecs: component %s is not writable", component)
	}
	return store, nil
}

var (
	_ Command = createEntityCommand{}
	_ Command = destroyEntityCommand{}
	_ Command = addComponentCommand{}
	_ Command = removeComponentCommand{}
)
