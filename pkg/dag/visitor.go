package dag

import (
	"strings"
)

// Action tells the traversal driver how to proceed after a visit.
type Action int

const (
	// Continue descends into the next level as usual.
	Continue Action = iota

	// Prune skips the next level of the current node on this path only.
	Prune

	// Abort stops the whole traversal immediately.
	Abort
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Continue:
		return "continue"
	case Prune:
		return "prune"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

// Direction selects which edges a traversal follows.
type Direction int

const (
	// Descendants follows child edges in insertion order.
	Descendants Direction = iota

	// Ancestors follows parent edges in attachment order.
	Ancestors
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Ancestors {
		return "ancestors"
	}
	return "descendants"
}

// Visitor is the callback contract driven by VisitDescendants and
// VisitAncestors.
//
// Visit is called once per path reaching a node. When it returns Continue and
// the node has a next level, the driver calls Descend, recurses into that
// level and then calls Ascend; nodes without children (or without parents,
// going up) get no Descend/Ascend pair. Prune skips the next level of that
// node on this path.
// Abort ends the traversal; no further callbacks are made, including the
// Ascend calls of the levels still open.
//
// Visitors must not mutate the topology of the graph they traverse.
type Visitor interface {
	Visit(g *Graph, id NodeID) Action
	Descend()
	Ascend()
}

// VisitFunc adapts a function to a Visitor with no-op Descend and Ascend.
type VisitFunc func(g *Graph, id NodeID) Action

// Visit implements Visitor.
func (f VisitFunc) Visit(g *Graph, id NodeID) Action { return f(g, id) }

// Descend implements Visitor.
func (f VisitFunc) Descend() {}

// Ascend implements Visitor.
func (f VisitFunc) Ascend() {}

// VisitDescendants runs v over start and everything below it, pre-order and
// depth first. Nodes reachable along several paths are visited once per path.
// It returns false if the visitor aborted.
func (g *Graph) VisitDescendants(start NodeID, v Visitor) bool {
	return g.traverse(start, v, Descendants)
}

// VisitAncestors runs v over start and everything above it, following
// parents in the order they were attached. It returns false if the visitor
// aborted.
func (g *Graph) VisitAncestors(start NodeID, v Visitor) bool {
	return g.traverse(start, v, Ancestors)
}

func (g *Graph) traverse(start NodeID, v Visitor, dir Direction) bool {
	completed := g.walk(start, v, dir)
	if g.observer != nil {
		g.observer.TraversalFinished(dir, !completed)
	}
	return completed
}

// walk returns false once the visitor aborted.
func (g *Graph) walk(id NodeID, v Visitor, dir Direction) bool {
	n := g.get(id)
	if n == nil {
		return true
	}

	switch v.Visit(g, id) {
	case Abort:
		return false
	case Prune:
		return true
	}

	next := n.children
	if dir == Ancestors {
		next = n.parents
	}
	if len(next) == 0 {
		return true
	}

	v.Descend()
	for _, nid := range next {
		if !g.walk(nid, v, dir) {
			return false
		}
	}
	v.Ascend()
	return true
}

// finder aborts on the first visit of target. Nodes already explored are
// pruned, which keeps membership queries linear on diamond-shaped graphs.
type finder struct {
	target NodeID
	seen   map[NodeID]struct{}
}

func (f *finder) Visit(_ *Graph, id NodeID) Action {
	if id == f.target {
		return Abort
	}
	if _, ok := f.seen[id]; ok {
		return Prune
	}
	f.seen[id] = struct{}{}
	return Continue
}

func (f *finder) Descend() {}
func (f *finder) Ascend()  {}

// HasDescendant reports whether target is reachable from root through child
// edges. A node is its own descendant.
func (g *Graph) HasDescendant(root, target NodeID) bool {
	return !g.walk(root, &finder{target: target, seen: make(map[NodeID]struct{})}, Descendants)
}

// HasAncestor reports whether target is reachable from node through parent
// edges. A node is its own ancestor.
func (g *Graph) HasAncestor(node, target NodeID) bool {
	return !g.walk(node, &finder{target: target, seen: make(map[NodeID]struct{})}, Ancestors)
}

// TreePrinter renders a traversal as an indented list of labels, two spaces
// per level.
type TreePrinter struct {
	depth int
	sb    strings.Builder
}

// Visit implements Visitor.
func (p *TreePrinter) Visit(g *Graph, id NodeID) Action {
	p.sb.WriteString(strings.Repeat("  ", p.depth))
	p.sb.WriteString(g.Label(id))
	p.sb.WriteByte('\n')
	return Continue
}

// Descend implements Visitor.
func (p *TreePrinter) Descend() { p.depth++ }

// Ascend implements Visitor.
func (p *TreePrinter) Ascend() { p.depth-- }

// String returns the rendered output.
func (p *TreePrinter) String() string {
	return p.sb.String()
}

// Dump renders the subgraph below root with a TreePrinter.
func (g *Graph) Dump(root NodeID) string {
	p := &TreePrinter{}
	g.VisitDescendants(root, p)
	return p.String()
}
