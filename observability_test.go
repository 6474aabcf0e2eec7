package ecs

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestPrometheusPhaseCollectorWritesMetrics(t *testing.T) {
	collector := NewPrometheusPhaseCollector(&PrometheusCollectorOptions{})
	cimpl, ok := collector.(*PrometheusPhaseCollector)
	if !ok {
		t.Fatalf("expected *PrometheusPhaseCollector implementation")
	}

	collector.ObservePhase(PhaseSummary{
		Phase:           PhaseAsync,
		BatchIndex:      1,
		Tick:            42,
		Duration:        5 * time.Millisecond,
		SystemsTotal:    2,
		SystemsExecuted: 2,
	})

	var buf bytes.Buffer
	if err := cimpl.WriteMetrics(&buf); err != nil {
		t.Fatalf("write metrics: %v", err)
	}
	metrics := buf.String()
	if !strings.Contains(metrics, "ecsched_phase_duration_seconds_sum") {
		t.Fatalf("expected duration metric in %q", metrics)
	}
	if !strings.Contains(metrics, "ecsched_phase_systems_executed_total") {
		t.Fatalf("expected executed metric in %q", metrics)
	}
}

func TestBuildObserverChainComposesLoggingAndPrometheus(t *testing.T) {
	cfg := InstrumentationConfig{
		Observation: ObservationSettings{
			EnableStructuredLogging: true,
			EnablePrometheus:        true,
		},
	}
	observer := buildObserverChain(noopLogger{}, cfg)
	composite, ok := observer.(compositeObserver)
	if !ok {
		t.Fatalf("expected compositeObserver, got %T", observer)
	}
	if len(composite.observers) != 2 {
		t.Fatalf("expected 2 observers, got %d", len(composite.observers))
	}
}

func TestBuildObserverChainDefaultsToNoop(t *testing.T) {
	observer := buildObserverChain(noopLogger{}, InstrumentationConfig{})
	if _, ok := observer.(noopObserver); !ok {
		t.Fatalf("expected noopObserver, got %T", observer)
	}
}
