package ecs

import "errors"

var (
	// ErrComponentAlreadyRegistered indicates an attempt to register the same component twice.
	ErrComponentAlreadyRegistered = errors.New("ecs: component already registered")
	// ErrComponentNotRegistered signals lookup on an unknown component type.
	ErrComponentNotRegistered = errors.New("ecs: component not registered")
	// ErrNilStorageStrategy is returned when storage registration receives a nil strategy.
	ErrNilStorageStrategy = errors.New("ecs: nil storage strategy")
	// ErrNilComponentStore is returned when a strategy produces a nil store.
	ErrNilComponentStore = errors.New("ecs: strategy returned nil store")
	// ErrWorkerPoolClosed indicates jobs cannot be submitted because the pool closed.
	ErrWorkerPoolClosed = errors.New("ecs: worker pool closed")

	// ErrDuplicateSystem indicates a system name was added to the schedule more than once.
	ErrDuplicateSystem = errors.New("ecs: duplicate system")
	// ErrNotASystem indicates a value passed to an Add*System call does not implement System.
	ErrNotASystem = errors.New("ecs: not a system")
	// ErrUnknownPredecessor indicates a run_after reference names a system not yet added.
	ErrUnknownPredecessor = errors.New("ecs: unknown predecessor system")
	// ErrBadConfig indicates an invalid world configuration value, such as fps_limit.
	ErrBadConfig = errors.New("ecs: bad config")
	// ErrBadCondition indicates a run condition failed to evaluate to a boolean.
	ErrBadCondition = errors.New("ecs: bad run condition")
	// ErrUnexpectedCompletion indicates a completion signal arrived for an id not in the await set.
	ErrUnexpectedCompletion = errors.New("ecs: unexpected task completion")
	// ErrSystemCrash indicates a system task returned an error during a frame.
	ErrSystemCrash = errors.New("ecs: system crashed")
	// ErrDebugDisabled indicates the debug snapshot was requested outside of a development toggle.
	ErrDebugDisabled = errors.New("ecs: debug surface disabled")
	// ErrLockConflict indicates two systems in the same batch declared conflicting component locks.
	ErrLockConflict = errors.New("ecs: component lock conflict")
)
