package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Config is the configuration of the solid command line tool.
type Config struct {
	// Script configures Starlark scene evaluation.
	Script ScriptConfig `json:"script" yaml:"script"`

	// Lint configures scene policy checks.
	Lint LintConfig `json:"lint" yaml:"lint"`

	// Output configures how scenes are rendered.
	Output OutputConfig `json:"output" yaml:"output"`

	// Watch configures re-evaluation on file changes.
	Watch WatchConfig `json:"watch" yaml:"watch"`

	// Log configures structured logging.
	Log LogConfig `json:"log" yaml:"log"`

	// Telemetry configures metrics and tracing.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// History configures the run history store.
	History HistoryConfig `json:"history" yaml:"history"`
}

// ScriptConfig configures Starlark scene evaluation.
type ScriptConfig struct {
	// Timeout bounds a single script run.
	Timeout Duration `json:"timeout" yaml:"timeout" validate:"gt=0"`
}

// LintConfig configures scene policy checks.
type LintConfig struct {
	// MaxDepth is the deepest allowed root-to-leaf path. Zero disables the check.
	MaxDepth int `json:"max_depth" yaml:"max_depth" validate:"gte=0"`

	// Policies lists additional policy files and directories.
	Policies []string `json:"policies" yaml:"policies" validate:"dive,required"`

	// Disabled lists built-in or custom policies to skip.
	Disabled []string `json:"disabled" yaml:"disabled" validate:"dive,required"`

	// FailOnWarning makes warnings fail a lint run.
	FailOnWarning bool `json:"fail_on_warning" yaml:"fail_on_warning"`
}

// OutputConfig configures how scenes are rendered.
type OutputConfig struct {
	// Format is the default scene rendering (tree, dot, json).
	Format string `json:"format" yaml:"format" validate:"required,oneof=tree dot json"`
}

// WatchConfig configures re-evaluation on file changes.
type WatchConfig struct {
	// Debounce is how long to wait for a burst of writes to settle.
	Debounce Duration `json:"debounce" yaml:"debounce" validate:"gt=0"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the minimum log level.
	Level string `json:"level" yaml:"level" validate:"required,oneof=trace debug info warn error"`

	// Format is console or json.
	Format string `json:"format" yaml:"format" validate:"required,oneof=console json"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// Metrics enables the Prometheus metrics endpoint.
	Metrics bool `json:"metrics" yaml:"metrics"`

	// MetricsAddress is the listen address of the metrics endpoint.
	MetricsAddress string `json:"metrics_address" yaml:"metrics_address" validate:"required_if=Metrics true"`

	// Tracing is the trace exporter (none, stdout, otlp).
	Tracing string `json:"tracing" yaml:"tracing" validate:"required,oneof=none stdout otlp"`

	// Endpoint is the OTLP collector endpoint.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"required_if=Tracing otlp"`

	// SampleRate is the trace sampling rate.
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// HistoryConfig configures recording of script and lint runs.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty disables recording.
	Path string `json:"path" yaml:"path"`

	// Keep is the number of runs retained per script; 0 keeps all.
	Keep int `json:"keep" yaml:"keep" validate:"gte=0"`
}

// Duration is a time.Duration that reads and writes as a Go duration string.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String implements fmt.Stringer.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. Bare numbers are nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %v", v)
	}
	return nil
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the config path of the offending value (e.g., "lint.max_depth").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

// String formats the error as file:line:column: path: message.
func (ve ValidationError) String() string {
	var b strings.Builder
	if ve.File != "" {
		b.WriteString(ve.File)
		if ve.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", ve.Line, ve.Column)
		}
		b.WriteString(": ")
	}
	if ve.Path != "" {
		b.WriteString(ve.Path)
		b.WriteString(": ")
	}
	b.WriteString(ve.Message)
	return b.String()
}

// LoadError is returned when a configuration fails to parse or validate.
type LoadError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if len(e.Errors) == 1 {
		return "invalid configuration: " + e.Errors[0].String()
	}
	lines := make([]string, 0, len(e.Errors))
	for _, ve := range e.Errors {
		lines = append(lines, "  "+ve.String())
	}
	return fmt.Sprintf("invalid configuration (%d errors):\n%s", len(e.Errors), strings.Join(lines, "\n"))
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Script: ScriptConfig{
			Timeout: Duration(30 * time.Second),
		},
		Lint: LintConfig{
			MaxDepth: 64,
			Policies: []string{},
			Disabled: []string{},
		},
		Output: OutputConfig{
			Format: "tree",
		},
		Watch: WatchConfig{
			Debounce: Duration(500 * time.Millisecond),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Metrics:        false,
			MetricsAddress: ":9464",
			Tracing:        "none",
			SampleRate:     1.0,
		},
		History: HistoryConfig{
			Keep: 100,
		},
	}
}
