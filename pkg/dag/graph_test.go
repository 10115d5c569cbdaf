package dag

import (
	"errors"
	"strings"
	"testing"
)

type testNode string

func (n testNode) String() string { return "TestNode(" + string(n) + ")" }

func TestGraph_Attach_AppendsInOrder(t *testing.T) {
	g := NewGraph()
	root := g.NewNode(testNode("root"))
	a := g.NewNode(testNode("a"))
	b := g.NewNode(testNode("b"))

	c, err := g.Attach(root, a)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if c.Root != root || len(c.Fronts) != 1 || c.Fronts[0] != a {
		t.Errorf("Expected chain (root, [a]), got %+v", c)
	}
	if _, err := g.Attach(root, b); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	children := g.Children(root)
	if len(children) != 2 || children[0] != a || children[1] != b {
		t.Errorf("Expected children [a b], got %v", children)
	}
	if parents := g.Parents(a); len(parents) != 1 || parents[0] != root {
		t.Errorf("Expected parents [root], got %v", parents)
	}
}

func TestGraph_Attach_Idempotent(t *testing.T) {
	g := NewGraph()
	p := g.NewNode(nil)
	c := g.NewNode(nil)

	for i := 0; i < 3; i++ {
		if _, err := g.Attach(p, c); err != nil {
			t.Fatalf("Attach %d failed: %v", i, err)
		}
	}

	if n := len(g.Children(p)); n != 1 {
		t.Errorf("Expected 1 child, got %d", n)
	}
	if n := len(g.Parents(c)); n != 1 {
		t.Errorf("Expected 1 parent, got %d", n)
	}
}

func TestGraph_Attach_RejectsCycles(t *testing.T) {
	tests := []struct {
		name  string
		build func(g *Graph) (parent, child NodeID)
	}{
		{
			name: "self loop",
			build: func(g *Graph) (NodeID, NodeID) {
				a := g.NewNode(testNode("a"))
				return a, a
			},
		},
		{
			name: "direct back edge",
			build: func(g *Graph) (NodeID, NodeID) {
				a := g.NewNode(testNode("a"))
				b := g.NewNode(testNode("b"))
				mustAttach(g, a, b)
				return b, a
			},
		},
		{
			name: "deep back edge",
			build: func(g *Graph) (NodeID, NodeID) {
				a := g.NewNode(testNode("a"))
				b := g.NewNode(testNode("b"))
				c := g.NewNode(testNode("c"))
				d := g.NewNode(testNode("d"))
				mustAttach(g, a, b)
				mustAttach(g, b, c)
				mustAttach(g, a, d)
				mustAttach(g, d, c)
				return c, a
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph()
			parent, child := tt.build(g)
			before := g.ToDOT()

			_, err := g.Attach(parent, child)
			if err == nil {
				t.Fatal("Expected cycle error, got nil")
			}
			if !errors.Is(err, ErrCycle) {
				t.Errorf("Expected ErrCycle, got: %v", err)
			}
			if !IsCycle(err) || !IsTopologyError(err) {
				t.Errorf("Expected a cycle topology error, got: %v", err)
			}
			if !strings.Contains(err.Error(), "circle detected") {
				t.Errorf("Expected message to mention circle, got: %s", err.Error())
			}
			if after := g.ToDOT(); after != before {
				t.Errorf("Graph changed after rejected attach:\nbefore:\n%s\nafter:\n%s", before, after)
			}
		})
	}
}

func TestGraph_Attach_LeafCannotBeExtended(t *testing.T) {
	g := NewGraph()
	leaf := g.NewLeaf(testNode("leaf"))
	anchor := g.NewAnchor()
	child := g.NewNode(testNode("child"))

	for _, parent := range []NodeID{leaf, anchor} {
		_, err := g.Attach(parent, child)
		if !errors.Is(err, ErrLeafExtended) {
			t.Errorf("Expected ErrLeafExtended for %s, got: %v", g.Label(parent), err)
		}
	}
	if n := len(g.Parents(child)); n != 0 {
		t.Errorf("Expected child to stay detached, got %d parents", n)
	}

	// A leaf can still be a child.
	if _, err := g.Attach(child, leaf); err != nil {
		t.Errorf("Expected leaf to be attachable as child, got: %v", err)
	}
}

func TestGraph_Attach_UnknownNode(t *testing.T) {
	g := NewGraph()
	a := g.NewNode(nil)

	_, err := g.Attach(a, NodeID(42))
	if !errors.Is(err, ErrUnknownNode) {
		t.Errorf("Expected ErrUnknownNode, got: %v", err)
	}
	var te *TopologyError
	if !errors.As(err, &te) {
		t.Fatalf("Expected *TopologyError, got %T", err)
	}
	if te.Code != ErrCodeUnknownNode {
		t.Errorf("Expected code %s, got %s", ErrCodeUnknownNode, te.Code)
	}
}

func TestGraph_Then_AttachesUnderEveryFront(t *testing.T) {
	g := NewGraph()
	root := g.NewNode(testNode("root"))
	a := g.NewNode(testNode("a"))
	b := g.NewNode(testNode("b"))
	mustAttach(g, root, a)
	mustAttach(g, root, b)
	x := g.NewNode(testNode("x"))

	c, err := g.Then(Chain{Root: root, Fronts: []NodeID{a, b}}, Single(x))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if c.Root != root || len(c.Fronts) != 1 || c.Fronts[0] != x {
		t.Errorf("Expected chain (root, [x]), got %+v", c)
	}
	parents := g.Parents(x)
	if len(parents) != 2 || parents[0] != a || parents[1] != b {
		t.Errorf("Expected parents [a b], got %v", parents)
	}
}

func TestGraph_Then_IsAtomic(t *testing.T) {
	g := NewGraph()
	root := g.NewNode(testNode("root"))
	a := g.NewNode(testNode("a"))
	leaf := g.NewLeaf(testNode("leaf"))
	mustAttach(g, root, a)
	mustAttach(g, root, leaf)
	x := g.NewNode(testNode("x"))

	_, err := g.Then(Chain{Root: root, Fronts: []NodeID{a, leaf}}, Single(x))
	if !errors.Is(err, ErrLeafExtended) {
		t.Fatalf("Expected ErrLeafExtended, got: %v", err)
	}
	if n := len(g.Parents(x)); n != 0 {
		t.Errorf("Expected no edge to be added, got %d parents", n)
	}
}

func TestGraph_Unlink(t *testing.T) {
	g := NewGraph()
	p1 := g.NewNode(testNode("p1"))
	p2 := g.NewNode(testNode("p2"))
	n := g.NewNode(testNode("n"))
	c := g.NewNode(testNode("c"))
	mustAttach(g, p1, n)
	mustAttach(g, p2, n)
	mustAttach(g, n, c)

	g.Unlink(n)

	if len(g.Children(p1)) != 0 || len(g.Children(p2)) != 0 {
		t.Error("Expected node to be removed from every parent")
	}
	if len(g.Parents(n)) != 0 {
		t.Error("Expected parent set to be cleared")
	}
	if children := g.Children(n); len(children) != 1 || children[0] != c {
		t.Errorf("Expected own children to be kept, got %v", children)
	}
}

func TestGraph_Emplace(t *testing.T) {
	g := NewGraph()
	r1 := g.NewNode(testNode("r1"))
	r2 := g.NewNode(testNode("r2"))
	x := g.NewNode(testNode("x"))
	y := g.NewNode(testNode("y"))
	target := g.NewNode(testNode("target"))
	leaf := g.NewLeaf(testNode("leaf"))
	mustAttach(g, r1, x)
	mustAttach(g, r1, target)
	mustAttach(g, r1, y)
	mustAttach(g, r2, target)
	mustAttach(g, target, leaf)

	wrapper := g.NewNode(testNode("wrapper"))
	if err := g.Emplace(target, wrapper); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if children := g.Children(r1); len(children) != 3 || children[1] != wrapper {
		t.Errorf("Expected wrapper to take the slot of target in r1, got %v", children)
	}
	if children := g.Children(r2); len(children) != 1 || children[0] != wrapper {
		t.Errorf("Expected wrapper under r2, got %v", children)
	}
	if parents := g.Parents(wrapper); len(parents) != 2 || parents[0] != r1 || parents[1] != r2 {
		t.Errorf("Expected wrapper parents [r1 r2], got %v", parents)
	}
	if parents := g.Parents(target); len(parents) != 1 || parents[0] != wrapper {
		t.Errorf("Expected target parents [wrapper], got %v", parents)
	}

	expected := "TestNode(r1)\n" +
		"  TestNode(x)\n" +
		"  TestNode(wrapper)\n" +
		"    TestNode(target)\n" +
		"      TestNode(leaf)\n" +
		"  TestNode(y)\n"
	if out := g.Dump(r1); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
}

func TestGraph_Emplace_ChildOfTarget(t *testing.T) {
	g := NewGraph()
	root := g.NewNode(testNode("root"))
	target := g.NewNode(testNode("target"))
	below := g.NewNode(testNode("below"))
	mustAttach(g, root, target)
	mustAttach(g, target, below)

	if err := g.Emplace(target, below); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "TestNode(root)\n" +
		"  TestNode(below)\n" +
		"    TestNode(target)\n"
	if out := g.Dump(root); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
	if children := g.Children(target); len(children) != 0 {
		t.Errorf("Expected target to lose its old child, got %v", children)
	}
	if parents := g.Parents(below); len(parents) != 1 || parents[0] != root {
		t.Errorf("Expected below parents [root], got %v", parents)
	}
}

func TestGraph_Emplace_Rejections(t *testing.T) {
	g := NewGraph()
	top := g.NewNode(testNode("top"))
	parent := g.NewNode(testNode("parent"))
	target := g.NewNode(testNode("target"))
	mustAttach(g, top, parent)
	mustAttach(g, parent, target)
	leaf := g.NewLeaf(nil)
	before := g.ToDOT()

	tests := []struct {
		name        string
		replacement NodeID
		want        error
	}{
		{name: "direct parent", replacement: parent, want: ErrCycle},
		{name: "ancestor", replacement: top, want: ErrCycle},
		{name: "target itself", replacement: target, want: ErrCycle},
		{name: "leaf", replacement: leaf, want: ErrLeafExtended},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := g.Emplace(target, tt.replacement); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got: %v", tt.want, err)
			}
			if after := g.ToDOT(); after != before {
				t.Errorf("Graph changed after rejected emplace:\nbefore:\n%s\nafter:\n%s", before, after)
			}
		})
	}
}

func TestGraph_Roots(t *testing.T) {
	g := NewGraph()
	a := g.NewNode(nil)
	b := g.NewNode(nil)
	c := g.NewNode(nil)
	mustAttach(g, a, b)

	roots := g.Roots()
	if len(roots) != 2 || roots[0] != a || roots[1] != c {
		t.Errorf("Expected roots [a c], got %v", roots)
	}
}

func TestGraph_Label(t *testing.T) {
	g := NewGraph()
	tests := []struct {
		id       NodeID
		expected string
	}{
		{g.NewNode(Name("named")), "named"},
		{g.NewNode(testNode("x")), "TestNode(x)"},
		{g.NewGroup(), "Group"},
		{g.NewAnchor(), "Anchor"},
		{g.NewLeaf(nil), "leaf#4"},
		{NodeID(99), "<unknown #99>"},
	}

	for _, tt := range tests {
		if got := g.Label(tt.id); got != tt.expected {
			t.Errorf("Label(%s) = %q, expected %q", tt.id, got, tt.expected)
		}
	}
}

func TestGraph_Levels(t *testing.T) {
	g := NewGraph()
	a := g.NewNode(testNode("a"))
	b := g.NewNode(testNode("b"))
	c := g.NewNode(testNode("c"))
	mustAttach(g, a, b)
	mustAttach(g, b, c)
	mustAttach(g, a, c)

	levels := g.Levels()
	if len(levels) != 3 {
		t.Fatalf("Expected 3 levels, got %d: %v", len(levels), levels)
	}
	if len(levels[2]) != 1 || levels[2][0] != c {
		t.Errorf("Expected c on the deepest level, got %v", levels[2])
	}
}

func TestGraph_ToDOT(t *testing.T) {
	g := NewGraph()
	root := g.NewNode(Name(`say "hi"`))
	leaf := g.NewLeaf(Name("leaf"))
	mustAttach(g, root, leaf)

	dot := g.ToDOT()
	for _, want := range []string{
		"digraph SceneGraph {",
		`"#0" [label="say \"hi\""`,
		`"#0" -> "#1";`,
		"lightgreen",
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("Expected DOT output to contain %q, got:\n%s", want, dot)
		}
	}
}

type recordingObserver struct {
	attached int
	rejected []ErrorCode
	finished []bool
	modules  []int
}

func (o *recordingObserver) NodeAttached(parent, child NodeID) { o.attached++ }
func (o *recordingObserver) AttachRejected(parent, child NodeID, err *TopologyError) {
	o.rejected = append(o.rejected, err.Code)
}
func (o *recordingObserver) TraversalFinished(dir Direction, aborted bool) {
	o.finished = append(o.finished, aborted)
}
func (o *recordingObserver) ModuleBuilt(root NodeID, sites int) {
	o.modules = append(o.modules, sites)
}

func TestGraph_Observer(t *testing.T) {
	obs := &recordingObserver{}
	g := NewGraph(WithObserver(obs))
	a := g.NewNode(nil)
	b := g.NewNode(nil)
	mustAttach(g, a, b)
	mustAttach(g, a, b)
	_, _ = g.Attach(b, a)
	g.VisitDescendants(a, VisitFunc(func(*Graph, NodeID) Action { return Abort }))

	if obs.attached != 1 {
		t.Errorf("Expected 1 attach notification, got %d", obs.attached)
	}
	if len(obs.rejected) != 1 || obs.rejected[0] != ErrCodeCycle {
		t.Errorf("Expected one cycle rejection, got %v", obs.rejected)
	}
	if len(obs.finished) != 1 || !obs.finished[0] {
		t.Errorf("Expected one aborted traversal, got %v", obs.finished)
	}
}

func mustAttach(g *Graph, parent, child NodeID) {
	if _, err := g.Attach(parent, child); err != nil {
		panic(err)
	}
}
