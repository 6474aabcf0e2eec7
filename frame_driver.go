package ecs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// frameStatus is the driver's state, per spec.md's frame_start -> async ->
// frame_end -> frame_ended cycle.
type frameStatus int

const (
	statusStartup frameStatus = iota
	statusFrameStart
	statusAsync
	statusFrameEnd
	statusFrameEnded
)

// frameDriver is the long-running state machine that cycles through
// phases, dispatches systems, awaits their completion, and enforces the
// frame-rate ceiling. It owns frame state exclusively; schedule data is
// read-only once the world constructs it.
type frameDriver struct {
	schedule *Schedule
	world    *World
	cache    *ConditionCache
	events   EventStore
	clock    clock.Clock
	fps      FPSLimit
	logger   Logger
	tracer   Tracer
	observer SchedulerObserver
	pool     *workerPool
	buffers  *CommandBufferPool

	status         frameStatus
	lastFrameTime  time.Time
	frameTimerDone bool
	timer          *clock.Timer

	// mu guards the fields below, which are read from outside the driver's
	// owning goroutine (WorldProcess.DebugSnapshot) or written from several
	// goroutines at once (one async batch's task completions).
	mu          sync.Mutex
	tick        uint64
	lastSummary PhaseSummary
	awaitSet    map[string]struct{}
}

func newFrameDriver(world *World, schedule *Schedule, cfg WorldConfig, clk clock.Clock, events EventStore) *frameDriver {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noopTracer{}
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	workers := cfg.AsyncWorkers
	if workers <= 0 {
		workers = 1
	}
	if clk == nil {
		clk = clock.New()
	}
	return &frameDriver{
		schedule: schedule,
		world:    world,
		cache:    NewConditionCache(),
		events:   events,
		clock:    clk,
		fps:      cfg.FPSLimit,
		logger:   logger,
		tracer:   tracer,
		observer: observer,
		pool:     newWorkerPool(workers),
		buffers:  NewCommandBufferPool(),
		status:   statusStartup,
		awaitSet: make(map[string]struct{}),
	}
}

// frameEventKind identifies which alphabet symbol a step call advances the
// driver's state machine with: spec.md §9's explicit FSM consumes
// Tick, Completion(id), FrameTimerFired, and Shutdown.
type frameEventKind int

const (
	eventTick frameEventKind = iota
	eventCompletion
	eventFrameTimerFired
	eventShutdown
)

// frameEvent is one input to step.
type frameEvent struct {
	kind   frameEventKind
	taskID string
	result jobResult
}

// step is the sole place frame-level state transitions happen outside of
// phase dispatch itself. For eventCompletion it is also the sole place a
// task ID leaves the await_set, so it is the only place ErrUnexpectedCompletion
// can be raised: a completion signal for an ID step does not recognize means
// the await-set bookkeeping around some batch is corrupted.
func (d *frameDriver) step(event frameEvent) error {
	switch event.kind {
	case eventTick:
		d.mu.Lock()
		d.tick++
		d.mu.Unlock()
		return nil
	case eventCompletion:
		d.mu.Lock()
		_, known := d.awaitSet[event.taskID]
		if known {
			delete(d.awaitSet, event.taskID)
		}
		d.mu.Unlock()
		if !known {
			return fmt.Errorf("%w: task %s", ErrUnexpectedCompletion, event.taskID)
		}
		return event.result.Err()
	case eventFrameTimerFired:
		d.frameTimerDone = true
		return nil
	case eventShutdown:
		d.status = statusFrameEnded
		return nil
	default:
		return nil
	}
}

func (d *frameDriver) currentTick() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tick
}

// LastSummary returns the most recently published phase/batch summary, for
// WorldProcess.DebugSnapshot.
func (d *frameDriver) LastSummary() PhaseSummary {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSummary
}

// Tick returns the current frame tick, safe to call from outside the
// driver's owning goroutine.
func (d *frameDriver) Tick() uint64 {
	return d.currentTick()
}

// RunStartup executes the startup phase once, synchronously, in insertion
// order. Startup systems are never gated; their conditions list is always
// empty because the builder rejects options on AddStartupSystem. The
// startupEvents are batched into the FrameData the startup systems receive.
func (d *frameDriver) RunStartup(ctx context.Context, startupEvents []EventEntry) error {
	startupFrame := FrameData{EventBatches: BatchEvents(startupEvents)}
	if err := d.runSyncPhase(ctx, PhaseStartup, d.schedule.Startup, startupFrame); err != nil {
		return err
	}
	d.lastFrameTime = d.clock.Now()
	d.status = statusFrameStart
	return nil
}

// RunShutdown stops accepting new frame work and runs shutdown systems
// synchronously in insertion order, with lastFrame as their FrameData. The
// driver does not keep the last frame's data itself; WorldProcess.Run and
// WorldProcess.Shutdown pass an empty FrameData.
func (d *frameDriver) RunShutdown(ctx context.Context, lastFrame FrameData) error {
	if err := d.step(frameEvent{kind: eventShutdown}); err != nil {
		return err
	}
	return d.runSyncPhase(ctx, PhaseShutdown, d.schedule.Shutdown, lastFrame)
}

// RunFrame drives exactly one frame_start -> async -> frame_end cycle,
// enforcing the FPS ceiling between the start of this frame and the next.
func (d *frameDriver) RunFrame(ctx context.Context) error {
	now := d.clock.Now()
	delta := now.Sub(d.lastFrameTime)
	d.lastFrameTime = now

	drained := d.events.Drain()
	batches := BatchEvents(drained)
	frame := FrameData{FrameID: uuid.New(), Delta: delta, EventBatches: batches}

	if err := d.refreshConditions(); err != nil {
		return err
	}

	d.armFrameTimer()

	d.status = statusFrameStart
	if err := d.runSyncPhase(ctx, PhaseFrameStart, d.schedule.FrameStart, frame); err != nil {
		return err
	}

	d.status = statusAsync
	if err := d.runAsyncPhase(ctx, frame); err != nil {
		return err
	}

	d.status = statusFrameEnd
	if err := d.runSyncPhase(ctx, PhaseFrameEnd, d.schedule.FrameEnd, frame); err != nil {
		return err
	}

	d.status = statusFrameEnded
	if err := d.awaitFrameBoundary(ctx); err != nil {
		return err
	}
	return d.step(frameEvent{kind: eventTick})
}

// armFrameTimer starts the finish_frame_timer countdown: 0ms when the FPS
// limit is unlimited (frames gated only by system completion), otherwise
// the full frame period, time.Second/fps, measured from this call.
func (d *frameDriver) armFrameTimer() {
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.fps == 0 {
		d.frameTimerDone = true
		return
	}
	d.frameTimerDone = false
	period := time.Second / time.Duration(d.fps)
	d.timer = d.clock.Timer(period)
}

// awaitFrameBoundary blocks until both frame_timer == finished and
// status == frame_ended, i.e. the invariant spec.md §3 names for the
// boundary between one frame and the next.
func (d *frameDriver) awaitFrameBoundary(ctx context.Context) error {
	if d.frameTimerDone {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.timer.C:
		return d.step(frameEvent{kind: eventFrameTimerFired})
	}
}

func (d *frameDriver) refreshConditions() error {
	var conds []RunCondition
	for _, desc := range d.schedule.FrameStart {
		conds = append(conds, desc.Conditions...)
	}
	for _, desc := range d.schedule.Async {
		conds = append(conds, desc.Conditions...)
	}
	for _, desc := range d.schedule.FrameEnd {
		conds = append(conds, desc.Conditions...)
	}
	return d.cache.Refresh(conds)
}

func (d *frameDriver) runSyncPhase(ctx context.Context, phase Phase, descs []SystemDescriptor, frame FrameData) error {
	start := d.clock.Now()
	summary := PhaseSummary{Phase: phase, Tick: d.currentTick(), SystemsTotal: len(descs)}
	buf := d.buffers.Get()
	defer d.buffers.Put(buf)
	for _, desc := range descs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.gate(desc) {
			summary.SystemsSkipped++
			continue
		}
		exec := &executionContext{world: d.world, frame: frame, logger: d.logger.With("system", desc.Name), commands: buf}
		if err := desc.System.Run(ctx, exec); err != nil {
			summary.Error = fmt.Errorf("%w: %s: %v", ErrSystemCrash, desc.Name, err)
			summary.Duration = d.clock.Now().Sub(start)
			d.publish(summary)
			return summary.Error
		}
		summary.SystemsExecuted++
	}
	summary.Duration = d.clock.Now().Sub(start)
	d.publish(summary)
	if drained := buf.Drain(); len(drained) > 0 {
		return d.world.ApplyCommands(drained)
	}
	return nil
}

// runAsyncPhase dispatches the batch plan in order. Within a batch, one
// task per gated system is submitted to the worker pool and awaited
// through an errgroup bound to ctx, so the first system failure cancels
// the remaining in-flight tasks in that batch and is surfaced as
// ErrSystemCrash.
func (d *frameDriver) runAsyncPhase(ctx context.Context, frame FrameData) error {
	for idx, batch := range d.schedule.BatchPlan {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.runBatch(ctx, idx, batch, frame); err != nil {
			return err
		}
	}
	return nil
}

func (d *frameDriver) runBatch(ctx context.Context, idx int, descs []SystemDescriptor, frame FrameData) error {
	if err := checkBatchLocks(descs); err != nil {
		return err
	}

	start := d.clock.Now()
	summary := PhaseSummary{Phase: PhaseAsync, BatchIndex: idx, Tick: d.currentTick(), SystemsTotal: len(descs)}

	var cmdMu sync.Mutex
	var allCommands []Command

	group, gctx := errgroup.WithContext(ctx)
	for _, desc := range descs {
		desc := desc
		if !d.gate(desc) {
			summary.SystemsSkipped++
			continue
		}
		summary.SystemsExecuted++

		taskID := uuid.New().String()
		d.mu.Lock()
		d.awaitSet[taskID] = struct{}{}
		d.mu.Unlock()

		group.Go(func() error {
			handle := d.pool.Submit(gctx, func(taskCtx context.Context) jobResult {
				buf := d.buffers.Get()
				defer d.buffers.Put(buf)
				exec := &executionContext{world: d.world, frame: frame, logger: d.logger.With("system", desc.Name), commands: buf}
				if err := desc.System.Run(taskCtx, exec); err != nil {
					return jobResult{err: fmt.Errorf("%w: %s: %v", ErrSystemCrash, desc.Name, err)}
				}
				return jobResult{commands: buf.Drain()}
			})
			res := handle.Wait()
			if err := d.step(frameEvent{kind: eventCompletion, taskID: taskID, result: res}); err != nil {
				return err
			}
			if cmds := res.Commands(); len(cmds) > 0 {
				cmdMu.Lock()
				allCommands = append(allCommands, cmds...)
				cmdMu.Unlock()
			}
			return nil
		})
	}

	err := group.Wait()
	summary.Duration = d.clock.Now().Sub(start)
	if err != nil {
		summary.Error = err
		d.publish(summary)
		return err
	}
	d.publish(summary)
	if len(allCommands) > 0 {
		return d.world.ApplyCommands(allCommands)
	}
	return nil
}

// checkBatchLocks defends against a corrupted schedule: Place (see
// internal/batch) guarantees no two systems sharing a batch hold conflicting
// component locks, so this should never fire from a schedule built through
// ScheduleBuilder. It exists as the fatal backstop for a Schedule assembled
// by hand in violation of that guarantee.
func checkBatchLocks(descs []SystemDescriptor) error {
	for i, a := range descs {
		for _, b := range descs[i+1:] {
			for _, la := range a.Locks {
				for _, lb := range b.Locks {
					if la.conflicts(lb) {
						return fmt.Errorf("%w: %s vs %s on %s", ErrLockConflict, a.Name, b.Name, la.Component)
					}
				}
			}
		}
	}
	return nil
}

func (d *frameDriver) gate(desc SystemDescriptor) bool {
	return d.cache.Gate(desc.Conditions)
}

func (d *frameDriver) publish(summary PhaseSummary) {
	d.mu.Lock()
	d.lastSummary = summary
	d.mu.Unlock()
	if d.observer == nil {
		return
	}
	d.observer.PhaseCompleted(summary)
}

// Close releases the driver's worker pool.
func (d *frameDriver) Close() {
	d.pool.Close()
}

// executionContext is the concrete ExecutionContext passed to System.Run.
// Commands deferred during a system's run accumulate in a per-dispatch
// CommandBuffer and are applied to the world only after the phase (or
// batch) finishes, never mid-run.
type executionContext struct {
	world    *World
	frame    FrameData
	logger   Logger
	commands *CommandBuffer
}

func (c *executionContext) World() *World    { return c.world }
func (c *executionContext) Frame() FrameData { return c.frame }
func (c *executionContext) Logger() Logger   { return c.logger }
func (c *executionContext) Defer(cmd Command) {
	c.commands.Push(cmd)
}
