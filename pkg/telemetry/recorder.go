package telemetry

import (
	"sync/atomic"

	"github.com/openfroyo/solidgraph/pkg/dag"
	"github.com/rs/zerolog"
)

// Recorder is a dag.Observer that turns graph events into metrics, events
// and debug logs. It is safe for concurrent use by several graphs.
type Recorder struct {
	logger  zerolog.Logger
	metrics *Metrics
	events  *EventPublisher

	attaches   atomic.Int64
	rejections atomic.Int64
	traversals atomic.Int64
	aborted    atomic.Int64
	modules    atomic.Int64
}

// RecorderStats is a snapshot of the counts seen by a Recorder.
type RecorderStats struct {
	Attaches   int64
	Rejections int64
	Traversals int64
	Aborted    int64
	Modules    int64
}

var _ dag.Observer = (*Recorder)(nil)

// NewRecorder creates a recorder. metrics and events may be nil.
func NewRecorder(logger zerolog.Logger, metrics *Metrics, events *EventPublisher) *Recorder {
	if metrics == nil {
		metrics = &Metrics{}
	}
	if events == nil {
		events = &EventPublisher{}
	}
	return &Recorder{
		logger:  logger,
		metrics: metrics,
		events:  events,
	}
}

// NodeAttached implements dag.Observer.
func (r *Recorder) NodeAttached(parent, child dag.NodeID) {
	r.attaches.Add(1)
	r.metrics.RecordAttach()
	r.logger.Trace().
		Stringer("parent", parent).
		Stringer("child", child).
		Msg("Edge recorded")
}

// AttachRejected implements dag.Observer.
func (r *Recorder) AttachRejected(parent, child dag.NodeID, err *dag.TopologyError) {
	r.rejections.Add(1)
	r.metrics.RecordAttachRejected(string(err.Code))
	r.published(r.events.PublishAttachRejected(string(err.Code), parent.String(), child.String(), err.Message))
	r.logger.Debug().
		Str("code", string(err.Code)).
		Stringer("parent", parent).
		Stringer("child", child).
		Msg("Attach rejected")
}

// TraversalFinished implements dag.Observer.
func (r *Recorder) TraversalFinished(dir dag.Direction, aborted bool) {
	r.traversals.Add(1)
	if aborted {
		r.aborted.Add(1)
	}
	r.metrics.RecordTraversal(dir.String(), aborted)
}

// ModuleBuilt implements dag.Observer.
func (r *Recorder) ModuleBuilt(root dag.NodeID, sites int) {
	r.modules.Add(1)
	r.metrics.RecordModuleBuilt(sites)
	r.published(r.events.PublishModuleBuilt(root.String(), sites))
	r.logger.Debug().
		Stringer("root", root).
		Int("sites", sites).
		Msg("Module built")
}

func (r *Recorder) published(err error) {
	if err != nil {
		r.logger.Debug().Err(err).Msg("Event dropped")
	}
}

// Stats returns the counts recorded so far.
func (r *Recorder) Stats() RecorderStats {
	return RecorderStats{
		Attaches:   r.attaches.Load(),
		Rejections: r.rejections.Load(),
		Traversals: r.traversals.Load(),
		Aborted:    r.aborted.Load(),
		Modules:    r.modules.Load(),
	}
}
