package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}
	events.Subscribe(LogSubscriber(logger.NewComponentLogger("events").Zerolog()), nil)

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// Recorder returns a graph observer feeding this telemetry instance.
func (t *Telemetry) Recorder() *Recorder {
	return NewRecorder(t.Logger.NewComponentLogger("dag").Zerolog(), t.Metrics, t.Events)
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// Shutdown in reverse order of initialization
	return errors.Join(
		t.Events.Shutdown(ctx),
		t.Metrics.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
		t.Logger.Close(),
	)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// InstrumentedContext bundles the context, span, logger and timer of one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithField("trace_id", span.SpanContext().TraceID().String())
	}

	return &InstrumentedContext{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	duration := ic.Timer.Duration()
	if err != nil {
		ic.Logger.WithError(err).WithField("duration", duration.String()).Warn("Operation failed")
	} else {
		ic.Logger.WithField("duration", duration.String()).Debug("Operation finished")
	}
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// RecordScriptRun runs fn as one instrumented script run. fn returns the
// number of nodes it built.
func RecordScriptRun(ctx context.Context, script string, fn func(ctx context.Context) (int, error)) error {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		_, err := fn(ctx)
		return err
	}

	ctx, span := tel.Tracer.StartScriptSpan(ctx, script)
	defer span.End()

	logger := tel.Logger.WithScript(script)
	logDropped(logger, tel.Events.PublishScriptStarted(script))
	timer := NewTimer()

	nodes, err := fn(ctx)

	duration := timer.Duration()
	if err != nil {
		tel.Metrics.RecordScriptRun("failed", duration)
		logDropped(logger, tel.Events.PublishScriptFailed(script, err.Error()))
		RecordError(span, err)
		return err
	}

	tel.Metrics.RecordScriptRun("succeeded", duration)
	tel.Metrics.SetSceneNodes(nodes)
	logDropped(logger, tel.Events.PublishScriptCompleted(script, nodes, duration))
	AddSceneEvent(span, nodes)
	RecordSuccess(span)
	return nil
}

// logDropped reports an event the publisher refused.
func logDropped(logger *Logger, err error) {
	if err != nil {
		logger.WithError(err).Debug("Event dropped")
	}
}
