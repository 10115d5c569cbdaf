package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/solidgraph/pkg/config"
	"github.com/openfroyo/solidgraph/pkg/script"
	"github.com/openfroyo/solidgraph/pkg/telemetry"
)

// shutdownTimeout bounds flushing telemetry when a command exits.
const shutdownTimeout = 5 * time.Second

// environment is what every scene command needs: the resolved
// configuration, telemetry and an evaluator reporting to it.
type environment struct {
	cfg       *config.Config
	tel       *telemetry.Telemetry
	recorder  *telemetry.Recorder
	evaluator *script.Evaluator
	logger    zerolog.Logger
}

// loadConfig resolves the configuration from --config, a default file in
// the working directory, or the built-in defaults.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		found, ok := config.Discover(".")
		if !ok {
			return config.Default(), nil
		}
		path = found
	}

	cfg, err := config.NewParser().Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// telemetryConfig maps the user configuration onto telemetry settings.
func telemetryConfig(cfg *config.Config, logOutput io.Writer) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceVersion = serviceVersion

	tc.Logging.Level = cfg.Log.Level
	tc.Logging.Format = cfg.Log.Format
	tc.Logging.Writer = logOutput
	if verbose && cfg.Log.Level != "trace" {
		tc.Logging.Level = "debug"
	}

	tc.Metrics.Enabled = cfg.Telemetry.Metrics
	tc.Metrics.ListenAddress = cfg.Telemetry.MetricsAddress

	if cfg.Telemetry.Tracing != "none" {
		tc.Tracing.Enabled = true
		tc.Tracing.Exporter = cfg.Telemetry.Tracing
		tc.Tracing.Endpoint = cfg.Telemetry.Endpoint
		tc.Tracing.SamplingRate = cfg.Telemetry.SampleRate
		tc.Tracing.Insecure = true
	}

	return tc
}

func newEnvironment(cmd *cobra.Command) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	tc := telemetryConfig(cfg, cmd.ErrOrStderr())

	// The configured level replaces the startup default unless LOG_LEVEL pins it.
	if os.Getenv("LOG_LEVEL") == "" {
		if level, err := zerolog.ParseLevel(tc.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
	}

	tel, err := telemetry.NewTelemetry(tc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	if err := tel.StartMetricsServer(); err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	recorder := tel.Recorder()
	evaluator := script.NewEvaluator(
		script.WithTimeout(cfg.Script.Timeout.Std()),
		script.WithLogger(tel.Logger.NewComponentLogger("script").Zerolog()),
		script.WithObserver(recorder),
	)

	return &environment{
		cfg:       cfg,
		tel:       tel,
		recorder:  recorder,
		evaluator: evaluator,
		logger:    tel.Logger.NewComponentLogger("cli").Zerolog(),
	}, nil
}

// run evaluates the script at path as one instrumented script run.
func (e *environment) run(ctx context.Context, path string) (*script.Scene, error) {
	var scene *script.Scene
	err := telemetry.RecordScriptRun(e.tel.WithContext(ctx), path, func(ctx context.Context) (int, error) {
		s, err := e.evaluator.RunFile(ctx, path)
		if err != nil {
			return 0, err
		}
		scene = s
		return s.Graph.Len(), nil
	})
	if err != nil {
		return nil, err
	}
	return scene, nil
}

func (e *environment) close() {
	stats := e.recorder.Stats()
	e.logger.Debug().
		Int64("attaches", stats.Attaches).
		Int64("rejections", stats.Rejections).
		Int64("traversals", stats.Traversals).
		Int64("modules", stats.Modules).
		Msg("Graph activity")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.tel.Shutdown(ctx); err != nil {
		e.logger.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// outputFormat returns the scene rendering selected by flags and config.
func (e *environment) outputFormat(flag string) string {
	switch {
	case jsonOutput:
		return "json"
	case flag != "":
		return flag
	default:
		return e.cfg.Output.Format
	}
}
