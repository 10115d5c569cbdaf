package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/solidgraph/pkg/dag"
	"github.com/openfroyo/solidgraph/pkg/transform"
)

// DefaultTimeout bounds a script run when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Scene is the result of a script run.
type Scene struct {
	// Name is the name the script was run under.
	Name string

	// Session is the build session the script ran in.
	Session *dag.Session

	// Graph holds every node the script built.
	Graph *dag.Graph

	// Roots are the parentless nodes of the graph, in creation order.
	Roots []dag.NodeID

	// Exports maps public globals holding nodes to their chains.
	Exports map[string]dag.Chain

	// Duration is the time spent executing the script.
	Duration time.Duration
}

// ExportNames returns the exported names in sorted order.
func (s *Scene) ExportNames() []string {
	names := make([]string, 0, len(s.Exports))
	for name := range s.Exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Layers returns every outermost layer below the roots together with its
// absolute transform.
func (s *Scene) Layers() []transform.Placement {
	var out []transform.Placement
	for _, r := range s.Roots {
		out = append(out, transform.Collect(s.Graph, r, isLayer, true)...)
	}
	return out
}

func isLayer(g *dag.Graph, id dag.NodeID) bool {
	_, ok := g.Payload(id).(Layer)
	return ok
}

// Evaluator runs scene scripts.
type Evaluator struct {
	timeout  time.Duration
	logger   zerolog.Logger
	observer dag.Observer
	ops      []dag.OperationProvider
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout bounds each run. Zero selects DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) {
		e.timeout = d
	}
}

// WithLogger sets the logger for evaluator and graph output. Script print
// calls are logged at info level.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithObserver attaches an observer to every graph the evaluator builds.
func WithObserver(o dag.Observer) Option {
	return func(e *Evaluator) {
		e.observer = o
	}
}

// WithOperations registers an operation provider on every session.
func WithOperations(p dag.OperationProvider) Option {
	return func(e *Evaluator) {
		e.ops = append(e.ops, p)
	}
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(opts ...Option) *Evaluator {
	e := &Evaluator{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	return e
}

// RunFile reads and runs the script at path.
func (e *Evaluator) RunFile(ctx context.Context, path string) (*Scene, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return e.Run(ctx, filepath.Base(path), src)
}

// Run executes src as a scene script into a fresh graph. The run stops when
// ctx is done or the evaluator timeout expires, whichever comes first.
func (e *Evaluator) Run(ctx context.Context, name string, src []byte) (*Scene, error) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	opts := []dag.Option{dag.WithLogger(e.logger)}
	if e.observer != nil {
		opts = append(opts, dag.WithObserver(e.observer))
	}
	session := dag.NewSession(dag.NewGraph(opts...))
	for _, p := range e.ops {
		session.RegisterOperations(p)
	}

	logger := e.logger.With().
		Str("script", name).
		Str("session_id", session.ID).
		Logger()

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger.Info().Str("source", "print").Msg(msg)
		},
	}

	type outcome struct {
		globals starlark.StringDict
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		globals, err := e.exec(thread, session, name, src)
		done <- outcome{globals: globals, err: err}
	}()

	var res outcome
	select {
	case <-runCtx.Done():
		thread.Cancel(runCtx.Err().Error())
		<-done
		logger.Warn().Dur("timeout", e.timeout).Msg("Script cancelled")
		if ctx.Err() != nil {
			return nil, &EvalError{Script: name, Message: ctx.Err().Error(), Err: ctx.Err()}
		}
		return nil, &EvalError{
			Script:  name,
			Message: fmt.Sprintf("execution timeout after %v", e.timeout),
			Err:     ErrTimeout,
		}
	case res = <-done:
	}

	if res.err != nil {
		logger.Debug().Err(res.err).Msg("Script failed")
		return nil, newEvalError(name, res.err)
	}

	scene := &Scene{
		Name:     name,
		Session:  session,
		Graph:    session.Graph(),
		Roots:    session.Graph().Roots(),
		Exports:  make(map[string]dag.Chain),
		Duration: time.Since(start),
	}
	for global, val := range res.globals {
		if len(global) > 0 && global[0] == '_' {
			continue
		}
		if ref, ok := val.(*Ref); ok {
			scene.Exports[global] = ref.chain
		}
	}

	logger.Debug().
		Int("nodes", scene.Graph.Len()).
		Int("roots", len(scene.Roots)).
		Int("exports", len(scene.Exports)).
		Dur("duration", scene.Duration).
		Msg("Script evaluated")

	return scene, nil
}

// exec runs the script synchronously on thread.
func (e *Evaluator) exec(thread *starlark.Thread, session *dag.Session, name string, src []byte) (globals starlark.StringDict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("script panicked: %v", r)
		}
	}()

	env := &env{session: session}
	predeclared := env.predeclared()
	predeclared["struct"] = starlarkstruct.Default

	return starlark.ExecFile(thread, name, src, predeclared)
}
