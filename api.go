package ecs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Phase identifies one of the five queues a system can be placed in.
type Phase string

const (
	PhaseStartup    Phase = "startup"
	PhaseFrameStart Phase = "frame_start"
	PhaseAsync      Phase = "async"
	PhaseFrameEnd   Phase = "frame_end"
	PhaseShutdown   Phase = "shutdown"
)

// ComponentType identifies a component storage bucket.
type ComponentType string

// ComponentLock is a static declaration that a system may mutate a component
// type, optionally scoped to an entity-tag component. A zero-value Tag with
// Scoped == false denotes a bare lock on Component; Scoped == true denotes a
// lock scoped to (Component, Tag).
type ComponentLock struct {
	Component ComponentType
	Tag       ComponentType
	Scoped    bool
}

// Lock constructs a bare component lock.
func Lock(component ComponentType) ComponentLock {
	return ComponentLock{Component: component}
}

// ScopedLock constructs a lock scoped to an entity-tag component.
func ScopedLock(component, tag ComponentType) ComponentLock {
	return ComponentLock{Component: component, Tag: tag, Scoped: true}
}

// conflicts reports whether two lock declarations would race if run concurrently.
func (l ComponentLock) conflicts(other ComponentLock) bool {
	if l.Component != other.Component {
		return false
	}
	if !l.Scoped || !other.Scoped {
		// bare-bare or bare-scoped on the same component always conflicts.
		return true
	}
	return l.Tag == other.Tag
}

// RunCondition is a cached, nullary boolean predicate that gates a system.
// Key identifies the condition for once-per-frame caching; two RunConditions
// with the same Key are treated as the same predicate.
type RunCondition struct {
	Key  string
	Eval func() (bool, error)
}

// FrameData is the read-only payload every system receives when it runs.
type FrameData struct {
	FrameID      uuid.UUID
	Delta        time.Duration
	EventBatches [][]EventEntry
}

// System is executable logic bound to exactly one phase of the schedule.
// systemCapability is unexported so only types embedding BaseSystem satisfy
// the interface by design, matching the "capability tag" spec.md names.
type System interface {
	LockedComponents() []ComponentLock
	Run(ctx context.Context, exec ExecutionContext) error
	systemCapability()
}

// BaseSystem grants the system capability marker. Embed it in concrete
// system types instead of implementing systemCapability by hand.
type BaseSystem struct{}

func (BaseSystem) systemCapability() {}

// ExecutionContext supplies a system with scoped access to the world and
// the current frame's data.
type ExecutionContext interface {
	World() *World
	Frame() FrameData
	Logger() Logger
	Defer(cmd Command)
}

// World encapsulates entity/component storage and resources. It is the
// single piece of mutable state every system's ExecutionContext exposes;
// all writes flow through deferred Command application rather than direct
// mutation during a system's Run.
type World struct {
	registry  *EntityRegistry
	storage   StorageProvider
	resources ResourceContainer
}

// Logger captures structured log output from the scheduler and systems.
type Logger interface {
	With(key string, value any) Logger
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Tracer coordinates tracing spans for observability tooling.
type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, TraceSpan)
}

// TraceSpan represents an active tracing region.
type TraceSpan interface {
	End()
}

// FPSLimit expresses the frame-rate ceiling; zero means unlimited.
type FPSLimit uint32

// WorldConfig configures a WorldProcess prior to construction.
type WorldConfig struct {
	FPSLimit        FPSLimit
	DebugEnabled    bool
	AsyncWorkers    int
	Logger          Logger
	Tracer          Tracer
	Observer        SchedulerObserver
	Instrumentation InstrumentationConfig
	StateProvider   func() string
}

// Validate enforces BadConfig invariants on a WorldConfig.
func (c WorldConfig) Validate() error {
	if c.AsyncWorkers < 0 {
		return ErrBadConfig
	}
	return nil
}

// InstrumentationConfig configures logging, tracing, and metrics sinks.
type InstrumentationConfig struct {
	EnableTrace   bool
	EnableMetrics bool
	Observation   ObservationSettings
}

// ObservationSettings toggles built-in observer integrations.
type ObservationSettings struct {
	EnableStructuredLogging bool
	LoggingFormat           ObservationLogFormat
	StructuredLogger        Logger
	EnablePrometheus        bool
	PrometheusCollector     PrometheusCollector
	PrometheusOptions       *PrometheusCollectorOptions
}

// ObservationLogFormat controls structured logging encoding.
type ObservationLogFormat uint8

const (
	ObservationLogFormatJSON ObservationLogFormat = iota
	ObservationLogFormatKeyValue
)

// SchedulerObserver receives a summary after each phase/batch finishes.
type SchedulerObserver interface {
	PhaseCompleted(summary PhaseSummary)
}

// PrometheusCollector handles phase summaries for Prometheus-style metrics.
type PrometheusCollector interface {
	ObservePhase(summary PhaseSummary)
}

type PrometheusCollectorOptions struct {
	DurationBuckets []time.Duration
}

// PhaseSummary captures execution metadata for one phase or async batch.
type PhaseSummary struct {
	Phase           Phase
	BatchIndex      int
	Tick            uint64
	Duration        time.Duration
	SystemsTotal    int
	SystemsExecuted int
	SystemsSkipped  int
	Error           error
}
