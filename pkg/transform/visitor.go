package transform

import (
	"github.com/openfroyo/solidgraph/pkg/dag"
)

// Visitor composes transforms along a descendant traversal. After Visit
// returns, Current holds the absolute transform of the visited node on the
// path that reached it.
//
// Visitor can be embedded by visitors that need the absolute placement of
// what they visit; such visitors call Visitor.Visit first and keep the
// Descend and Ascend methods.
type Visitor struct {
	stack   []Affine
	current Affine
}

// NewVisitor returns a visitor seeded with the identity.
func NewVisitor() *Visitor {
	return &Visitor{stack: []Affine{Identity()}}
}

// Current returns the absolute transform of the node visited last.
func (v *Visitor) Current() Affine {
	return v.current
}

// Visit implements dag.Visitor.
func (v *Visitor) Visit(g *dag.Graph, id dag.NodeID) dag.Action {
	top := v.top()
	switch {
	case resetsFrame(g, id):
		v.current = Identity()
	default:
		v.current = top.Mul(LocalOf(g, id))
	}
	return dag.Continue
}

// Descend implements dag.Visitor.
func (v *Visitor) Descend() {
	v.stack = append(v.stack, v.current)
}

// Ascend implements dag.Visitor.
func (v *Visitor) Ascend() {
	v.stack = v.stack[:len(v.stack)-1]
	v.current = v.top()
}

func (v *Visitor) top() Affine {
	if len(v.stack) == 0 {
		return Identity()
	}
	return v.stack[len(v.stack)-1]
}

// Placement is a node together with one of its absolute transforms.
type Placement struct {
	Node      dag.NodeID
	Transform Affine
}

// Collector records the absolute placement of every node accepted by Match.
// With Shallow set, the traversal does not continue below a match, so nested
// matches are not reported.
type Collector struct {
	*Visitor

	Match   func(g *dag.Graph, id dag.NodeID) bool
	Shallow bool

	Found []Placement
}

// NewCollector returns a collector for nodes accepted by match.
func NewCollector(match func(g *dag.Graph, id dag.NodeID) bool, shallow bool) *Collector {
	return &Collector{Visitor: NewVisitor(), Match: match, Shallow: shallow}
}

// Visit implements dag.Visitor.
func (c *Collector) Visit(g *dag.Graph, id dag.NodeID) dag.Action {
	c.Visitor.Visit(g, id)
	if c.Match == nil || !c.Match(g, id) {
		return dag.Continue
	}
	c.Found = append(c.Found, Placement{Node: id, Transform: c.Current()})
	if c.Shallow {
		return dag.Prune
	}
	return dag.Continue
}

// Collect runs a collector below root and returns what it found.
func Collect(g *dag.Graph, root dag.NodeID, match func(g *dag.Graph, id dag.NodeID) bool, shallow bool) []Placement {
	c := NewCollector(match, shallow)
	g.VisitDescendants(root, c)
	return c.Found
}

// Absolute returns the transform of every path from root down to target, in
// traversal order. Paths that reach target more than once are all reported.
func Absolute(g *dag.Graph, root, target dag.NodeID) []Affine {
	var out []Affine
	for _, p := range Collect(g, root, func(_ *dag.Graph, id dag.NodeID) bool { return id == target }, true) {
		out = append(out, p.Transform)
	}
	return out
}
