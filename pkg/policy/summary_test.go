package policy

import (
	"testing"

	"github.com/openfroyo/solidgraph/pkg/dag"
)

func mustAttach(t *testing.T, g *dag.Graph, parent, child dag.NodeID) {
	t.Helper()
	if _, err := g.Attach(parent, child); err != nil {
		t.Fatalf("attach %s -> %s: %v", parent, child, err)
	}
}

// buildDiamond builds root -> difference -> {a, b}, with leaf shared by a and b.
func buildDiamond(t *testing.T) (*dag.Graph, dag.NodeID) {
	t.Helper()
	g := dag.NewGraph()
	root := g.NewGroup()
	diff := g.NewNode(dag.Operation{Kind: dag.OpDifference})
	a := g.NewNode(dag.Name("a"))
	b := g.NewNode(dag.Name("b"))
	leaf := g.NewLeaf(dag.Name("cube"))

	mustAttach(t, g, root, diff)
	mustAttach(t, g, diff, a)
	mustAttach(t, g, diff, b)
	mustAttach(t, g, a, leaf)
	mustAttach(t, g, b, leaf)
	return g, root
}

func TestSummarize(t *testing.T) {
	g, root := buildDiamond(t)

	s := Summarize(g)

	if len(s.Roots) != 1 || s.Roots[0] != int(root) {
		t.Errorf("Expected roots [%d], got %v", root, s.Roots)
	}
	if len(s.Nodes) != 5 {
		t.Fatalf("Expected 5 nodes, got %d", len(s.Nodes))
	}
	if s.MaxDepth != 4 {
		t.Errorf("Expected max depth 4, got %d", s.MaxDepth)
	}
	if s.Edges != 5 {
		t.Errorf("Expected 5 edges, got %d", s.Edges)
	}
	if s.Shared != 1 {
		t.Errorf("Expected 1 shared node, got %d", s.Shared)
	}

	wantClasses := map[string]int{"group": 1, "node": 3, "leaf": 1}
	for class, want := range wantClasses {
		if got := s.Classes[class]; got != want {
			t.Errorf("Expected %d %s nodes, got %d", want, class, got)
		}
	}

	diff := s.Nodes[1]
	if diff.Operation != "difference" || diff.Children != 2 || diff.Depth != 1 {
		t.Errorf("Unexpected operation summary: %+v", diff)
	}

	leaf := s.Nodes[4]
	if leaf.Label != "cube" || leaf.Parents != 2 || leaf.Depth != 3 {
		t.Errorf("Unexpected leaf summary: %+v", leaf)
	}
}

func TestSummarize_Subtree(t *testing.T) {
	g, _ := buildDiamond(t)
	stray := g.NewLeaf(dag.Name("stray"))

	whole := Summarize(g)
	if len(whole.Roots) != 2 {
		t.Errorf("Expected 2 roots for the whole graph, got %v", whole.Roots)
	}

	sub := Summarize(g, stray)
	if len(sub.Nodes) != 1 || sub.MaxDepth != 1 {
		t.Errorf("Expected a single node summary, got %+v", sub)
	}

	unknown := Summarize(g, dag.NodeID(999))
	if len(unknown.Roots) != 0 || len(unknown.Nodes) != 0 {
		t.Errorf("Expected an empty summary for an unknown root, got %+v", unknown)
	}
}
