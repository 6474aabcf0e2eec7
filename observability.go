package ecs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

type compositeObserver struct {
	observers []SchedulerObserver
}

func (c compositeObserver) PhaseCompleted(summary PhaseSummary) {
	for _, observer := range c.observers {
		observer.PhaseCompleted(summary)
	}
}

type loggingObserver struct {
	logger Logger
}

func newLoggingObserver(logger Logger) SchedulerObserver {
	if logger == nil {
		return noopObserver{}
	}
	return loggingObserver{logger: logger}
}

func (o loggingObserver) PhaseCompleted(summary PhaseSummary) {
	builder := o.logger.With("phase", string(summary.Phase))
	args := []any{
		"batch", summary.BatchIndex,
		"tick", summary.Tick,
		"duration", summary.Duration,
		"systems_total", summary.SystemsTotal,
		"systems_executed", summary.SystemsExecuted,
		"systems_skipped", summary.SystemsSkipped,
	}
	if summary.Error != nil {
		args = append(args, "error", summary.Error.Error())
	}
	builder.Info("phase completed", args...)
}

type prometheusObserver struct {
	collector PrometheusCollector
}

func newPrometheusObserver(collector PrometheusCollector) SchedulerObserver {
	if collector == nil {
		return noopObserver{}
	}
	return prometheusObserver{collector: collector}
}

func (o prometheusObserver) PhaseCompleted(summary PhaseSummary) {
	o.collector.ObservePhase(summary)
}

// buildObserverChain assembles the active SchedulerObserver from an
// InstrumentationConfig, composing a structured-logging observer and a
// Prometheus collector observer when both are enabled.
func buildObserverChain(logger Logger, cfg InstrumentationConfig) SchedulerObserver {
	var observers []SchedulerObserver

	obs := cfg.Observation

	if obs.EnableStructuredLogging {
		structuredLogger := obs.StructuredLogger
		if structuredLogger == nil {
			structuredLogger = logger
		}
		observers = append(observers, newLoggingObserver(structuredLogger))
	}

	if obs.EnablePrometheus {
		collector := obs.PrometheusCollector
		if collector == nil {
			collector = NewPrometheusPhaseCollector(obs.PrometheusOptions)
		}
		observers = append(observers, newPrometheusObserver(collector))
	}

	if len(observers) == 0 {
		return noopObserver{}
	}
	if len(observers) == 1 {
		return observers[0]
	}
	return compositeObserver{observers: observers}
}

// PrometheusPhaseCollector aggregates phase summaries into Prometheus-style
// text exposition, grouped by phase and batch index.
type PrometheusPhaseCollector struct {
	options *PrometheusCollectorOptions
	mu      sync.Mutex
	samples map[prometheusKey]*prometheusSample
}

type prometheusKey struct {
	Phase      string
	BatchIndex int
}

type prometheusSample struct {
	durationSum   float64
	durationCount float64
	executed      float64
	skipped       float64
	errors        float64
}

// NewPrometheusPhaseCollector builds a PrometheusCollector that buffers
// samples in memory until WriteMetrics is called.
func NewPrometheusPhaseCollector(opts *PrometheusCollectorOptions) PrometheusCollector {
	if opts == nil {
		opts = &PrometheusCollectorOptions{}
	}
	return &PrometheusPhaseCollector{
		options: opts,
		samples: make(map[prometheusKey]*prometheusSample),
	}
}

func (c *PrometheusPhaseCollector) ObservePhase(summary PhaseSummary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := prometheusKey{Phase: string(summary.Phase), BatchIndex: summary.BatchIndex}
	sample, ok := c.samples[key]
	if !ok {
		sample = &prometheusSample{}
		c.samples[key] = sample
	}
	sample.durationSum += summary.Duration.Seconds()
	sample.durationCount++
	sample.executed += float64(summary.SystemsExecuted)
	sample.skipped += float64(summary.SystemsSkipped)
	if summary.Error != nil {
		sample.errors++
	}
}

// WriteMetrics renders the collected samples in Prometheus text exposition format.
func (c *PrometheusPhaseCollector) WriteMetrics(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString("# HELP ecsched_phase_duration_seconds Phase/batch execution duration.\n")
	buf.WriteString("# TYPE ecsched_phase_duration_seconds summary\n")

	keys := make([]prometheusKey, 0, len(c.samples))
	for key := range c.samples {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Phase == keys[j].Phase {
			return keys[i].BatchIndex < keys[j].BatchIndex
		}
		return keys[i].Phase < keys[j].Phase
	})

	for _, key := range keys {
		sample := c.samples[key]
		labels := fmt.Sprintf("phase=%q,batch=\"%d\"", key.Phase, key.BatchIndex)
		buf.WriteString(fmt.Sprintf("ecsched_phase_duration_seconds_sum{%s} %f\n", labels, sample.durationSum))
		buf.WriteString(fmt.Sprintf("ecsched_phase_duration_seconds_count{%s} %f\n", labels, sample.durationCount))
	}

	buf.WriteString("# HELP ecsched_phase_systems_executed_total Systems executed per phase/batch.\n")
	buf.WriteString("# TYPE ecsched_phase_systems_executed_total counter\n")
	for _, key := range keys {
		sample := c.samples[key]
		labels := fmt.Sprintf("phase=%q,batch=\"%d\"", key.Phase, key.BatchIndex)
		buf.WriteString(fmt.Sprintf("ecsched_phase_systems_executed_total{%s} %f\n", labels, sample.executed))
	}

	buf.WriteString("# HELP ecsched_phase_errors_total Phase/batch error count.\n")
	buf.WriteString("# TYPE ecsched_phase_errors_total counter\n")
	for _, key := range keys {
		sample := c.samples[key]
		labels := fmt.Sprintf("phase=%q,batch=\"%d\"", key.Phase, key.BatchIndex)
		buf.WriteString(fmt.Sprintf("ecsched_phase_errors_total{%s} %f\n", labels, sample.errors))
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// zerologLogger adapts Logger to zerolog, the production logging backend
// when a world is constructed with a non-nil WorldConfig.Logger built via
// NewZerologLogger.
type zerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger builds a Logger backed by zerolog, writing to w (stderr
// if nil).
func NewZerologLogger(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerologLogger{log: zerolog.New(w).With().Timestamp().Logger()}
}

func (l zerologLogger) With(key string, value any) Logger {
	return zerologLogger{log: l.log.With().Interface(key, value).Logger()}
}

func (l zerologLogger) Info(msg string, args ...any) {
	event := l.log.Info()
	logKVPairs(event, args)
	event.Msg(msg)
}

func (l zerologLogger) Error(msg string, args ...any) {
	event := l.log.Error()
	logKVPairs(event, args)
	event.Msg(msg)
}

func logKVPairs(event *zerolog.Event, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		event.Interface(key, args[i+1])
	}
}

// noopLogger is the default Logger until a real one is configured.
type noopLogger struct{}

func (noopLogger) With(string, any) Logger { return noopLogger{} }
func (noopLogger) Info(string, ...any)     {}
func (noopLogger) Error(string, ...any)    {}

// noopTracer is the default Tracer until a real one is configured.
type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, name string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End() {}

// noopObserver is the default SchedulerObserver until a real one is configured.
type noopObserver struct{}

func (noopObserver) PhaseCompleted(PhaseSummary) {}
