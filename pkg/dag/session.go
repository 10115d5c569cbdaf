package dag

import (
	"github.com/google/uuid"
)

// Session is the ambient state of one build pass: a graph and a stack of
// open scopes. Nodes created through the session are implicitly attached
// under the open fronts of the innermost scope.
//
// A Session must be used by one build sequence at a time. Independent
// sessions, each with its own graph, may be used concurrently.
type Session struct {
	// ID identifies the build pass in logs and events.
	ID string

	graph     *Graph
	stack     []Chain
	providers []OperationProvider
}

// NewSession creates a session building into g. A nil graph gets a fresh one.
func NewSession(g *Graph) *Session {
	if g == nil {
		g = NewGraph()
	}
	return &Session{
		ID:    uuid.New().String(),
		graph: g,
	}
}

// Graph returns the graph the session builds into.
func (s *Session) Graph() *Graph {
	return s.graph
}

// Depth returns the number of open scopes.
func (s *Session) Depth() int {
	return len(s.stack)
}

// Top returns the innermost open scope.
func (s *Session) Top() (Chain, bool) {
	if len(s.stack) == 0 {
		return Chain{}, false
	}
	return s.stack[len(s.stack)-1], true
}

// Enter pushes target as the innermost scope and returns the function that
// closes it. The release function restores the stack to the depth it had
// before Enter and is safe to call more than once, so
//
//	defer s.Enter(target)()
//
// keeps the stack balanced on every exit path, panics included.
func (s *Session) Enter(target Chain) func() {
	depth := len(s.stack)
	s.stack = append(s.stack, target)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		if len(s.stack) > depth {
			s.stack = s.stack[:depth]
		}
	}
}

// Scope runs fn with target open as the innermost scope.
func (s *Session) Scope(target Chain, fn func() error) error {
	defer s.Enter(target)()
	return fn()
}

// ScopeNode is Scope for a single node.
func (s *Session) ScopeNode(id NodeID, fn func() error) error {
	return s.Scope(Single(id), fn)
}

// Activate attaches id under the open fronts of the innermost scope. Outside
// any scope the node is left as it is. Activating a node that is already
// placed elsewhere adds one more placement.
func (s *Session) Activate(id NodeID) (NodeID, error) {
	top, ok := s.Top()
	if !ok {
		return id, nil
	}
	if _, err := s.graph.Then(top, Single(id)); err != nil {
		return id, err
	}
	return id, nil
}

// Add creates a node of the given class and activates it.
func (s *Session) Add(class Class, payload interface{}) (NodeID, error) {
	return s.Activate(s.graph.New(class, payload))
}

// Node creates and activates an ordinary node.
func (s *Session) Node(payload interface{}) (NodeID, error) {
	return s.Add(ClassNode, payload)
}

// Leaf creates and activates a leaf node.
func (s *Session) Leaf(payload interface{}) (NodeID, error) {
	return s.Add(ClassLeaf, payload)
}

// Group creates and activates a group node.
func (s *Session) Group() (NodeID, error) {
	return s.Add(ClassGroup, nil)
}

// Anchor creates and activates an anchor.
func (s *Session) Anchor() (NodeID, error) {
	return s.Add(ClassAnchor, nil)
}
