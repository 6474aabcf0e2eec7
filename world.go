package ecs

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
)

type WorldOption func(*World)

// NewWorld constructs a world with default registries and providers.
func NewWorld(opts ...WorldOption) *World {
	w := &World{
		registry:  NewEntityRegistry(),
		storage:   newStorageProvider(),
		resources: newResourceContainer(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WithEntityRegistry overrides the default registry.
func WithEntityRegistry(registry *EntityRegistry) WorldOption {
	return func(w *World) {
		if registry != nil {
			w.registry = registry
		}
	}
}

// WithStorageProvider overrides the default storage provider.
func WithStorageProvider(provider StorageProvider) WorldOption {
	return func(w *World) {
		if provider != nil {
			w.storage = provider
		}
	}
}

// WithResourceContainer overrides the default resource container.
func WithResourceContainer(container ResourceContainer) WorldOption {
	return func(w *World) {
		if container != nil {
			w.resources = container
		}
	}
}

// Registry exposes the backing entity registry.
func (w *World) Registry() *EntityRegistry {
	return w.registry
}

// Storage returns the storage provider used by the world.
func (w *World) Storage() StorageProvider {
	return w.storage
}

// Resources exposes the resource container.
func (w *World) Resources() ResourceContainer {
	return w.resources
}

// RegisterComponent allows callers to register component storage strategies.
func (w *World) RegisterComponent(t ComponentType, strategy StorageStrategy) error {
	return w.storage.RegisterComponent(t, strategy)
}

// ViewComponent retrieves a component view by type.
func (w *World) ViewComponent(t ComponentType) (ComponentView, error) {
	return w.storage.View(t)
}

// ApplyCommands executes deferred commands against the world.
func (w *World) ApplyCommands(commands []Command) error {
	return w.storage.Apply(w, commands)
}

// WorldProcess owns a World, its finalized Schedule, and the frame driver
// that cycles through startup -> (frame_start -> async -> frame_end)* ->
// shutdown. It is the top-level handle an embedding application holds.
type WorldProcess struct {
	world   *World
	cfg     WorldConfig
	driver  *frameDriver
	state   string
	snapGen func() (FrameSnapshot, error)
}

// FrameSnapshot is a debug-only point-in-time view of a process, returned
// by DebugSnapshot when WorldConfig.DebugEnabled is set.
type FrameSnapshot struct {
	Tick        uint64
	EntityCount int
	LastSummary PhaseSummary
}

// NewWorldProcess validates cfg, builds the world and its schedule via
// setup, and returns a process ready for Run. startupEvents are batched
// into the FrameData the startup phase receives, so startup systems can
// observe events published before the process existed (e.g. a
// config-driven initial spawn list).
func NewWorldProcess(cfg WorldConfig, setup func(*ScheduleBuilder) error, startupEvents []EventEntry) (*WorldProcess, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	world := NewWorld()
	stateProvider := cfg.StateProvider
	proc := &WorldProcess{world: world, cfg: cfg, state: ""}
	if stateProvider == nil {
		stateProvider = func() string { return proc.state }
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	observer := cfg.Observer
	if observer == nil {
		observer = buildObserverChain(logger, cfg.Instrumentation)
	}
	cfg.Observer = observer

	builder := NewScheduleBuilder(stateProvider, logger)
	schedule, err := builder.Finalize(setup)
	if err != nil {
		return nil, err
	}

	events := NewEventStore()
	driver := newFrameDriver(world, schedule, cfg, clock.New(), events)
	proc.driver = driver

	proc.snapGen = func() (FrameSnapshot, error) {
		if !cfg.DebugEnabled {
			return FrameSnapshot{}, ErrDebugDisabled
		}
		return FrameSnapshot{
			Tick:        driver.Tick(),
			EntityCount: world.Registry().Count(),
			LastSummary: driver.LastSummary(),
		}, nil
	}

	if err := driver.RunStartup(context.Background(), startupEvents); err != nil {
		return nil, fmt.Errorf("world process startup: %w", err)
	}

	return proc, nil
}

// Run drives frames until ctx is cancelled, then runs the shutdown phase
// once before returning. A cancellation is not itself reported as an
// error.
func (p *WorldProcess) Run(ctx context.Context) error {
	defer p.driver.Close()
	for {
		if err := ctx.Err(); err != nil {
			return p.driver.RunShutdown(context.Background(), FrameData{})
		}
		if err := p.driver.RunFrame(ctx); err != nil {
			if ctx.Err() != nil {
				return p.driver.RunShutdown(context.Background(), FrameData{})
			}
			return err
		}
	}
}

// Shutdown runs the shutdown phase out-of-band, for callers driving frames
// manually via RunFrame-equivalent control rather than Run.
func (p *WorldProcess) Shutdown(ctx context.Context) error {
	defer p.driver.Close()
	return p.driver.RunShutdown(ctx, FrameData{})
}

// World exposes the underlying World for direct inspection/test setup.
func (p *WorldProcess) World() *World {
	return p.world
}

// SetState updates the value the schedule's RunInState/RunNotInState
// conditions compare against, when no external StateProvider was supplied.
func (p *WorldProcess) SetState(state string) {
	p.state = state
}

// DebugSnapshot returns a point-in-time view of the process, gated on
// WorldConfig.DebugEnabled.
func (p *WorldProcess) DebugSnapshot() (FrameSnapshot, error) {
	return p.snapGen()
}
