package transform

import (
	"github.com/openfroyo/solidgraph/pkg/dag"
)

// placementFinder walks the ancestors of a node, composing transforms from
// the node up. A path ends at a node without parents or at a frame reset;
// the transform accumulated at that point is one absolute placement.
type placementFinder struct {
	stack   []Affine
	current Affine
	found   []Affine
	tol     float64
}

func (f *placementFinder) Visit(g *dag.Graph, id dag.NodeID) dag.Action {
	below := Identity()
	if len(f.stack) > 0 {
		below = f.stack[len(f.stack)-1]
	}

	if resetsFrame(g, id) {
		f.record(below)
		return dag.Prune
	}

	f.current = LocalOf(g, id).Mul(below)
	if len(g.Parents(id)) == 0 {
		f.record(f.current)
	}
	return dag.Continue
}

func (f *placementFinder) Descend() {
	f.stack = append(f.stack, f.current)
}

func (f *placementFinder) Ascend() {
	f.stack = f.stack[:len(f.stack)-1]
}

func (f *placementFinder) record(t Affine) {
	for _, seen := range f.found {
		if seen.EqualApprox(t, f.tol) {
			return
		}
	}
	f.found = append(f.found, t)
}

// Placements returns every distinct absolute transform under which id appears
// in the scene, one per root-to-node path up to duplicates. The node's own
// local transform is included. Transforms are listed in the order their
// paths were found, parents taken in attachment order.
func Placements(g *dag.Graph, id dag.NodeID) []Affine {
	if !g.Contains(id) {
		return nil
	}
	f := &placementFinder{tol: DefaultTolerance}
	g.VisitAncestors(id, f)
	return f.found
}
