package dag

import (
	"errors"
	"fmt"
)

// ErrorCode classifies a topology error for programmatic handling.
type ErrorCode string

// Topology error codes.
const (
	// ErrCodeCycle is returned when an attach would make a node its own descendant.
	ErrCodeCycle ErrorCode = "CYCLE_DETECTED"

	// ErrCodeLeafExtended is returned when a child is attached under a leaf.
	ErrCodeLeafExtended ErrorCode = "LEAF_EXTENDED"

	// ErrCodeUnknownNode is returned for handles that do not belong to the graph.
	ErrCodeUnknownNode ErrorCode = "UNKNOWN_NODE"

	// ErrCodeRetired is returned for anchors that were consumed by a module.
	ErrCodeRetired ErrorCode = "RETIRED_NODE"

	// ErrCodeNoScope is returned when an operation needs an open scope and none is.
	ErrCodeNoScope ErrorCode = "NO_SCOPE"
)

// Sentinel errors usable with errors.Is. Matching compares the code only.
var (
	ErrCycle        = &TopologyError{Code: ErrCodeCycle, Message: "circle detected"}
	ErrLeafExtended = &TopologyError{Code: ErrCodeLeafExtended, Message: "leaf nodes cannot be extended"}
	ErrUnknownNode  = &TopologyError{Code: ErrCodeUnknownNode, Message: "unknown node"}
	ErrRetired      = &TopologyError{Code: ErrCodeRetired, Message: "node was consumed by a module"}
	ErrNoScope      = &TopologyError{Code: ErrCodeNoScope, Message: "emplace formed without parent geometry"}
)

// TopologyError reports a structural invariant violation. It is raised at the
// exact call that would break the invariant and the graph is left unchanged.
type TopologyError struct {
	// Code is the error classification.
	Code ErrorCode `json:"code"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Parent is the proposed parent of the rejected edge, or NoNode.
	Parent NodeID `json:"parent"`

	// Child is the proposed child of the rejected edge, or NoNode.
	Child NodeID `json:"child"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *TopologyError) Error() string {
	if e.Parent != NoNode || e.Child != NoNode {
		return fmt.Sprintf("[%s] %s (parent=%s, child=%s)", e.Code, e.Message, e.Parent, e.Child)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is implements error equality checking for errors.Is.
func (e *TopologyError) Is(target error) bool {
	t, ok := target.(*TopologyError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a detail field to the error context.
func (e *TopologyError) WithDetail(key string, value interface{}) *TopologyError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newTopologyError(sentinel *TopologyError, parent, child NodeID) *TopologyError {
	return &TopologyError{
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Parent:  parent,
		Child:   child,
	}
}

// IsTopologyError reports whether err is, or wraps, a TopologyError.
func IsTopologyError(err error) bool {
	var e *TopologyError
	return errors.As(err, &e)
}

// IsCycle reports whether err was caused by a rejected cycle.
func IsCycle(err error) bool {
	return errors.Is(err, ErrCycle)
}
