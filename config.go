package ecs

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig is the TOML-decodable shape of a WorldConfig. Fields map
// 1:1 onto WorldConfig's plain-data members; the interface-typed members
// (Logger, Tracer, Observer, StateProvider) are never expressed in TOML
// and must be set on the returned WorldConfig by the caller.
type FileConfig struct {
	FPSLimit     uint32 `toml:"fps_limit"`
	DebugEnabled bool   `toml:"debug_enabled"`
	AsyncWorkers int    `toml:"async_workers"`

	Instrumentation struct {
		EnableTrace   bool `toml:"enable_trace"`
		EnableMetrics bool `toml:"enable_metrics"`
		Observation   struct {
			EnableStructuredLogging bool   `toml:"enable_structured_logging"`
			LoggingFormat           string `toml:"logging_format"`
			EnablePrometheus        bool   `toml:"enable_prometheus"`
		} `toml:"observation"`
	} `toml:"instrumentation"`
}

// LoadWorldConfigTOML reads and decodes a WorldConfig from a TOML file at
// path. Only plain-data fields are populated; Logger/Tracer/Observer/
// StateProvider default to nil and are filled in by NewWorldProcess.
func LoadWorldConfigTOML(path string) (WorldConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorldConfig{}, fmt.Errorf("ecs: read config %s: %w", path, err)
	}
	return DecodeWorldConfigTOML(data)
}

// DecodeWorldConfigTOML decodes a WorldConfig from raw TOML bytes.
func DecodeWorldConfigTOML(data []byte) (WorldConfig, error) {
	var fc FileConfig
	if _, err := toml.Decode(string(data), &fc); err != nil {
		return WorldConfig{}, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}

	format := ObservationLogFormatJSON
	if fc.Instrumentation.Observation.LoggingFormat == "key_value" {
		format = ObservationLogFormatKeyValue
	}

	cfg := WorldConfig{
		FPSLimit:     FPSLimit(fc.FPSLimit),
		DebugEnabled: fc.DebugEnabled,
		AsyncWorkers: fc.AsyncWorkers,
		Instrumentation: InstrumentationConfig{
			EnableTrace:   fc.Instrumentation.EnableTrace,
			EnableMetrics: fc.Instrumentation.EnableMetrics,
			Observation: ObservationSettings{
				EnableStructuredLogging: fc.Instrumentation.Observation.EnableStructuredLogging,
				LoggingFormat:           format,
				EnablePrometheus:        fc.Instrumentation.Observation.EnablePrometheus,
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return WorldConfig{}, err
	}
	return cfg, nil
}
