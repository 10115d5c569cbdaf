// Package telemetry provides observability for scene building.
//
// It integrates structured logging (zerolog), tracing (OpenTelemetry),
// metrics (Prometheus) and event publishing behind a single Telemetry value.
// Graph activity reaches it through Recorder, a dag.Observer that counts
// edges, rejected attaches, traversals and module builds.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Metrics.Enabled = true
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	ctx = tel.WithContext(ctx)
//	evaluator := script.NewEvaluator(
//	    script.WithLogger(tel.Logger.Zerolog()),
//	    script.WithObserver(tel.Recorder()),
//	)
//
//	err = telemetry.RecordScriptRun(ctx, "scene.star", func(ctx context.Context) (int, error) {
//	    scene, err := evaluator.RunFile(ctx, "scene.star")
//	    if err != nil {
//	        return 0, err
//	    }
//	    return scene.Graph.Len(), nil
//	})
//
// # Metrics
//
// All metrics live under the configured namespace (default "solidgraph"):
//
//   - script_runs_total{status}, script_duration_seconds{status}
//   - attachments_total, attach_rejections_total{code}
//   - traversals_total{direction,outcome}
//   - modules_built_total, module_sites
//   - scene_nodes
//   - policy_violations_total{policy,severity}
//
// A disabled Metrics value accepts every call and records nothing.
//
// # Events
//
// The EventPublisher delivers script, graph and policy events to
// subscribers in publishing order, optionally through a buffered queue.
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
//
// # Tracing
//
// Spans are exported to stderr ("stdout" exporter, for debugging) or to an
// OTLP collector over gRPC.
package telemetry
