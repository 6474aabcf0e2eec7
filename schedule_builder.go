package ecs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wyvernstudios/ecsched/internal/batch"
)

// SystemDescriptor is the immutable, per-system static declaration produced
// by the schedule builder: identity, phase, run-after edges, run
// conditions, and locked components.
type SystemDescriptor struct {
	Name       string
	Phase      Phase
	RunAfter   []string
	Conditions []RunCondition
	Locks      []ComponentLock
	System     System
}

// Schedule is the immutable, finalized output of a ScheduleBuilder: five
// ordered per-phase system lists plus the async phase's batched plan.
type Schedule struct {
	BuildID    uuid.UUID
	Startup    []SystemDescriptor
	FrameStart []SystemDescriptor
	Async      []SystemDescriptor
	FrameEnd   []SystemDescriptor
	Shutdown   []SystemDescriptor
	BatchPlan  [][]SystemDescriptor
}

// systemOptions accumulates the option values supplied to one Add call or
// one system-set frame, prior to merging with the active set stack.
type systemOptions struct {
	states    []string
	notStates []string
	conditions []RunCondition
	runAfter  []string
}

// SystemOption configures a system being added to a sync or async phase.
type SystemOption func(*systemOptions)

// RunIf gates a system on a user-supplied nullary predicate.
func RunIf(cond RunCondition) SystemOption {
	return func(o *systemOptions) { o.conditions = append(o.conditions, cond) }
}

// RunInStateOption gates a system on the world's current state equalling s.
func RunInStateOption(s string) SystemOption {
	return func(o *systemOptions) { o.states = append(o.states, s) }
}

// RunNotInStateOption gates a system on the world's current state differing from s.
func RunNotInStateOption(s string) SystemOption {
	return func(o *systemOptions) { o.notStates = append(o.notStates, s) }
}

// RunAfterOption declares systems that must already be batched before this
// one. Only meaningful for AddSystem (the async phase); ignored elsewhere
// with a warning.
func RunAfterOption(names ...string) SystemOption {
	return func(o *systemOptions) { o.runAfter = append(o.runAfter, names...) }
}

func mergeOptions(frames ...systemOptions) systemOptions {
	var out systemOptions
	seenState := make(map[string]struct{})
	seenNotState := make(map[string]struct{})
	seenAfter := make(map[string]struct{})
	seenCond := make(map[string]struct{})
	for _, f := range frames {
		for _, s := range f.states {
			if _, ok := seenState[s]; ok {
				continue
			}
			seenState[s] = struct{}{}
			out.states = append(out.states, s)
		}
		for _, s := range f.notStates {
			if _, ok := seenNotState[s]; ok {
				continue
			}
			seenNotState[s] = struct{}{}
			out.notStates = append(out.notStates, s)
		}
		for _, a := range f.runAfter {
			if _, ok := seenAfter[a]; ok {
				continue
			}
			seenAfter[a] = struct{}{}
			out.runAfter = append(out.runAfter, a)
		}
		for _, c := range f.conditions {
			if _, ok := seenCond[c.Key]; ok {
				continue
			}
			seenCond[c.Key] = struct{}{}
			out.conditions = append(out.conditions, c)
		}
	}
	return out
}

// ScheduleBuilder accumulates add_*_system operations declared by the
// user's setup callback, including nested system sets with inherited
// options, and produces an immutable Schedule on Finalize.
type ScheduleBuilder struct {
	logger        Logger
	stateProvider func() string

	names      map[string]Phase
	startup    []SystemDescriptor
	frameStart []SystemDescriptor
	async      []SystemDescriptor
	frameEnd   []SystemDescriptor
	shutdown   []SystemDescriptor
	batchPlan  [][]batch.System

	activeSets []systemOptions
}

// NewScheduleBuilder constructs an empty builder. stateProvider supplies the
// value RunInState/RunNotInState compare against; logger receives
// build-time warnings (a nil logger defaults to a no-op).
func NewScheduleBuilder(stateProvider func() string, logger Logger) *ScheduleBuilder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &ScheduleBuilder{
		logger:        logger,
		stateProvider: stateProvider,
		names:         make(map[string]Phase),
	}
}

func (b *ScheduleBuilder) currentStack() systemOptions {
	return mergeOptions(b.activeSets...)
}

func (b *ScheduleBuilder) resolveConditions(opts systemOptions) []RunCondition {
	conds := append([]RunCondition(nil), opts.conditions...)
	for _, s := range opts.states {
		conds = append(conds, RunInState(b.stateProvider, s))
	}
	for _, s := range opts.notStates {
		conds = append(conds, RunNotInState(b.stateProvider, s))
	}
	return conds
}

func (b *ScheduleBuilder) checkSystem(name string, sys System) error {
	if sys == nil {
		return fmt.Errorf("%w: %s", ErrNotASystem, name)
	}
	if _, ok := b.names[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSystem, name)
	}
	return nil
}

// AddStartupSystem runs sys once at world start, with no options: per the
// build-time resolution of the conditional-startup open question, startup
// systems cannot be gated.
func (b *ScheduleBuilder) AddStartupSystem(name string, sys System) error {
	if err := b.checkSystem(name, sys); err != nil {
		return err
	}
	b.names[name] = PhaseStartup
	b.startup = append(b.startup, SystemDescriptor{Name: name, Phase: PhaseStartup, Locks: sys.LockedComponents(), System: sys})
	return nil
}

// AddShutdownSystem runs sys once at world end, gate-less, in insertion order.
func (b *ScheduleBuilder) AddShutdownSystem(name string, sys System) error {
	if err := b.checkSystem(name, sys); err != nil {
		return err
	}
	b.names[name] = PhaseShutdown
	b.shutdown = append(b.shutdown, SystemDescriptor{Name: name, Phase: PhaseShutdown, Locks: sys.LockedComponents(), System: sys})
	return nil
}

// AddFrameStartSystem adds sys to the frame_start phase. A supplied
// RunAfterOption is ignored with a logged warning: sync phases preserve
// insertion order instead.
func (b *ScheduleBuilder) AddFrameStartSystem(name string, sys System, opts ...SystemOption) error {
	desc, err := b.buildSyncDescriptor(name, sys, PhaseFrameStart, opts)
	if err != nil {
		return err
	}
	b.names[name] = PhaseFrameStart
	b.frameStart = append(b.frameStart, desc)
	return nil
}

// AddFrameEndSystem adds sys to the frame_end phase, same rules as
// AddFrameStartSystem.
func (b *ScheduleBuilder) AddFrameEndSystem(name string, sys System, opts ...SystemOption) error {
	desc, err := b.buildSyncDescriptor(name, sys, PhaseFrameEnd, opts)
	if err != nil {
		return err
	}
	b.names[name] = PhaseFrameEnd
	b.frameEnd = append(b.frameEnd, desc)
	return nil
}

func (b *ScheduleBuilder) buildSyncDescriptor(name string, sys System, phase Phase, opts []SystemOption) (SystemDescriptor, error) {
	if err := b.checkSystem(name, sys); err != nil {
		return SystemDescriptor{}, err
	}
	var local systemOptions
	for _, opt := range opts {
		opt(&local)
	}
	merged := mergeOptions(b.currentStack(), local)
	if len(merged.runAfter) > 0 {
		b.logger.With("system", name).Error("run_after is ignored on sync phases; sync phases preserve insertion order")
		merged.runAfter = nil
	}
	return SystemDescriptor{
		Name:       name,
		Phase:      phase,
		Conditions: b.resolveConditions(merged),
		Locks:      sys.LockedComponents(),
		System:     sys,
	}, nil
}

// AddSystem adds sys to the async phase and places it in the batch plan.
// This is the only phase whose options may include RunAfterOption.
func (b *ScheduleBuilder) AddSystem(name string, sys System, opts ...SystemOption) error {
	if err := b.checkSystem(name, sys); err != nil {
		return err
	}
	var local systemOptions
	for _, opt := range opts {
		opt(&local)
	}
	merged := mergeOptions(b.currentStack(), local)

	locks := sys.LockedComponents()
	desc := SystemDescriptor{
		Name:       name,
		Phase:      PhaseAsync,
		RunAfter:   merged.runAfter,
		Conditions: b.resolveConditions(merged),
		Locks:      locks,
		System:     sys,
	}

	plan, err := batch.Place(b.batchPlan, toBatchSystem(desc))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownPredecessor, err)
	}
	b.batchPlan = plan
	b.names[name] = PhaseAsync
	b.async = append(b.async, desc)
	return nil
}

// AddSystemSet invokes fn with the set's options merged into the active
// stack; every system added within fn (including nested sets) inherits
// opts in addition to its own options. On return, the set's contribution is
// popped back off the stack.
func (b *ScheduleBuilder) AddSystemSet(fn func(*ScheduleBuilder) error, opts ...SystemOption) error {
	var local systemOptions
	for _, opt := range opts {
		opt(&local)
	}
	b.activeSets = append(b.activeSets, local)
	defer func() {
		b.activeSets = b.activeSets[:len(b.activeSets)-1]
	}()
	return fn(b)
}

func toBatchSystem(desc SystemDescriptor) batch.System {
	locks := make([]batch.Lock, 0, len(desc.Locks))
	for _, l := range desc.Locks {
		locks = append(locks, batch.Lock{Component: string(l.Component), Tag: string(l.Tag), Scoped: l.Scoped})
	}
	return batch.System{Name: desc.Name, Locks: locks, RunAfter: desc.RunAfter}
}

// createDefaultResourcesSystem is the builder-internal startup system
// registered at Finalize time, before setup runs, so it precedes every
// user startup system. It has no locks and performs no work beyond existing by name,
// matching the teacher's pattern of a reserved internal bootstrap step.
type createDefaultResourcesSystem struct {
	BaseSystem
}

func (createDefaultResourcesSystem) LockedComponents() []ComponentLock { return nil }

func (createDefaultResourcesSystem) Run(ctx context.Context, exec ExecutionContext) error {
	return nil
}

// Finalize registers the internal default-resources startup system, runs
// setup against the builder, and returns the immutable Schedule. setup may
// call Add*System/AddSystemSet any number of times; Finalize does not
// replay anything itself, since each Add already appended in insertion
// order during setup.
func (b *ScheduleBuilder) Finalize(setup func(*ScheduleBuilder) error) (*Schedule, error) {
	if err := b.AddStartupSystem("__create_default_resources__", createDefaultResourcesSystem{}); err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(b); err != nil {
			return nil, err
		}
	}

	batchPlan := make([][]SystemDescriptor, len(b.batchPlan))
	for i, batchSystems := range b.batchPlan {
		names := make(map[string]struct{}, len(batchSystems))
		for _, s := range batchSystems {
			names[s.Name] = struct{}{}
		}
		for _, desc := range b.async {
			if _, ok := names[desc.Name]; ok {
				batchPlan[i] = append(batchPlan[i], desc)
			}
		}
	}

	return &Schedule{
		BuildID:    uuid.New(),
		Startup:    b.startup,
		FrameStart: b.frameStart,
		Async:      b.async,
		FrameEnd:   b.frameEnd,
		Shutdown:   b.shutdown,
		BatchPlan:  batchPlan,
	}, nil
}
