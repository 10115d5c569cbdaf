package dag

import (
	"fmt"

	"github.com/rs/zerolog"
)

// NodeID is a stable handle to a node inside a Graph. Handles are dense,
// assigned in creation order and never reused.
type NodeID int

// NoNode is the zero handle used where no node applies.
const NoNode NodeID = -1

// String returns a short printable form of the handle.
func (id NodeID) String() string {
	if id == NoNode {
		return "none"
	}
	return fmt.Sprintf("#%d", int(id))
}

// Class is the structural capability of a node. Domain node kinds are opaque
// payloads and only ever pick one of these classes.
type Class uint8

const (
	// ClassNode is an ordinary node that may have children.
	ClassNode Class = iota

	// ClassLeaf is a node that must never have children.
	ClassLeaf

	// ClassGroup is a generic container traversed like any other node.
	ClassGroup

	// ClassAnchor is a leaf placeholder marking an attachment site inside a module.
	ClassAnchor
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassNode:
		return "node"
	case ClassLeaf:
		return "leaf"
	case ClassGroup:
		return "group"
	case ClassAnchor:
		return "anchor"
	default:
		return "unknown"
	}
}

// IsLeaf reports whether nodes of this class reject children.
func (c Class) IsLeaf() bool {
	return c == ClassLeaf || c == ClassAnchor
}

// Labeler is implemented by payloads that provide a debugging label.
type Labeler interface {
	Label() string
}

// Name is a minimal payload carrying only a label.
type Name string

// Label implements Labeler.
func (n Name) Label() string { return string(n) }

// node is one arena slot.
type node struct {
	class    Class
	payload  interface{}
	children []NodeID

	// parents is kept in attachment order; parentSet mirrors it for lookups.
	parents   []NodeID
	parentSet map[NodeID]struct{}

	retired bool
}

func (n *node) hasParent(id NodeID) bool {
	_, ok := n.parentSet[id]
	return ok
}

func (n *node) addParent(id NodeID) {
	if n.parentSet == nil {
		n.parentSet = make(map[NodeID]struct{})
	}
	n.parentSet[id] = struct{}{}
	n.parents = append(n.parents, id)
}

func (n *node) removeParent(id NodeID) {
	delete(n.parentSet, id)
	n.parents = removeID(n.parents, id)
}

// Observer receives notifications about graph mutations and traversals.
// Implementations must not mutate the graph.
type Observer interface {
	// NodeAttached is called after a new parent/child edge was recorded.
	NodeAttached(parent, child NodeID)

	// AttachRejected is called when an attach failed a structural check.
	AttachRejected(parent, child NodeID, err *TopologyError)

	// TraversalFinished is called when a VisitDescendants or VisitAncestors call returns.
	TraversalFinished(dir Direction, aborted bool)

	// ModuleBuilt is called after a module template was closed over its anchors.
	ModuleBuilt(root NodeID, sites int)
}

// Graph is an arena of nodes connected by ordered parent/child edges. The
// graph is always acyclic. A Graph is not safe for concurrent mutation; each
// build pass owns its graph.
type Graph struct {
	nodes    []*node
	logger   zerolog.Logger
	observer Observer
}

// Option configures a Graph.
type Option func(*Graph)

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Graph) {
		g.logger = logger.With().Str("component", "dag").Logger()
	}
}

// WithObserver registers an observer for graph events.
func WithObserver(o Observer) Option {
	return func(g *Graph) {
		g.observer = o
	}
}

// NewGraph creates an empty graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		nodes:  make([]*node, 0, 64),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New creates a detached node of the given class carrying payload.
func (g *Graph) New(class Class, payload interface{}) NodeID {
	id := NodeID(len(g.nodes))
	g.nodes = append(g.nodes, &node{class: class, payload: payload})
	return id
}

// NewNode creates a detached ordinary node.
func (g *Graph) NewNode(payload interface{}) NodeID {
	return g.New(ClassNode, payload)
}

// NewLeaf creates a detached leaf node.
func (g *Graph) NewLeaf(payload interface{}) NodeID {
	return g.New(ClassLeaf, payload)
}

// NewGroup creates a detached group node.
func (g *Graph) NewGroup() NodeID {
	return g.New(ClassGroup, nil)
}

// NewAnchor creates a detached anchor.
func (g *Graph) NewAnchor() NodeID {
	return g.New(ClassAnchor, nil)
}

// Len returns the number of nodes ever created in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Contains reports whether id addresses a live node of this graph.
func (g *Graph) Contains(id NodeID) bool {
	n := g.get(id)
	return n != nil && !n.retired
}

// Class returns the class of id. Unknown handles report ClassNode.
func (g *Graph) Class(id NodeID) Class {
	if n := g.get(id); n != nil {
		return n.class
	}
	return ClassNode
}

// Payload returns the opaque payload of id.
func (g *Graph) Payload(id NodeID) interface{} {
	if n := g.get(id); n != nil {
		return n.payload
	}
	return nil
}

// Label returns a human-readable label for id, for debugging output.
func (g *Graph) Label(id NodeID) string {
	n := g.get(id)
	if n == nil {
		return "<unknown " + id.String() + ">"
	}
	switch p := n.payload.(type) {
	case Labeler:
		return p.Label()
	case fmt.Stringer:
		return p.String()
	}
	switch n.class {
	case ClassGroup:
		return "Group"
	case ClassAnchor:
		return "Anchor"
	}
	return n.class.String() + id.String()
}

// Children returns a copy of the ordered children of id.
func (g *Graph) Children(id NodeID) []NodeID {
	n := g.get(id)
	if n == nil {
		return nil
	}
	return append([]NodeID(nil), n.children...)
}

// Parents returns a copy of the parents of id in attachment order.
func (g *Graph) Parents(id NodeID) []NodeID {
	n := g.get(id)
	if n == nil {
		return nil
	}
	return append([]NodeID(nil), n.parents...)
}

// Roots returns every live node without parents, in creation order.
func (g *Graph) Roots() []NodeID {
	var roots []NodeID
	for i, n := range g.nodes {
		if n.retired || len(n.parents) > 0 {
			continue
		}
		roots = append(roots, NodeID(i))
	}
	return roots
}

func (g *Graph) get(id NodeID) *node {
	if id < 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
