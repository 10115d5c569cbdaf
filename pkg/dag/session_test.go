package dag

import (
	"errors"
	"testing"
)

func TestSession_ImplicitAttach(t *testing.T) {
	s := NewSession(nil)
	g := s.Graph()

	outside, err := s.Node(testNode("outside"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(g.Parents(outside)) != 0 {
		t.Error("Expected node created outside any scope to stay detached")
	}

	root := g.NewNode(testNode("root"))
	var inner NodeID
	err = s.ScopeNode(root, func() error {
		inner, err = s.Node(testNode("inner"))
		return err
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if parents := g.Parents(inner); len(parents) != 1 || parents[0] != root {
		t.Errorf("Expected inner under root, got %v", parents)
	}
	if s.Depth() != 0 {
		t.Errorf("Expected empty stack after scope, got depth %d", s.Depth())
	}
}

func TestSession_ScopeBalance(t *testing.T) {
	s := NewSession(nil)
	root := s.Graph().NewNode(nil)

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		err := s.ScopeNode(root, func() error {
			return s.ScopeNode(root, func() error { return boom })
		})
		if !errors.Is(err, boom) {
			t.Errorf("Expected build error to propagate, got: %v", err)
		}
		if s.Depth() != 0 {
			t.Errorf("Expected depth 0, got %d", s.Depth())
		}
	})

	t.Run("panic", func(t *testing.T) {
		func() {
			defer func() { _ = recover() }()
			_ = s.ScopeNode(root, func() error {
				panic("boom")
			})
		}()
		if s.Depth() != 0 {
			t.Errorf("Expected depth 0 after panic, got %d", s.Depth())
		}
	})

	t.Run("release twice", func(t *testing.T) {
		outer := s.Enter(Single(root))
		release := s.Enter(Single(root))
		release()
		release()
		if s.Depth() != 1 {
			t.Errorf("Expected depth 1, got %d", s.Depth())
		}
		outer()
		if s.Depth() != 0 {
			t.Errorf("Expected depth 0, got %d", s.Depth())
		}
	})
}

func TestSession_ScopeOverChain(t *testing.T) {
	s := NewSession(nil)
	g := s.Graph()
	root := g.NewNode(testNode("root"))
	a := g.NewNode(testNode("a"))
	b := g.NewNode(testNode("b"))
	mustAttach(g, root, a)
	mustAttach(g, root, b)

	var leaf NodeID
	err := s.Scope(Chain{Root: root, Fronts: []NodeID{a, b}}, func() error {
		var err error
		leaf, err = s.Leaf(testNode("leaf"))
		return err
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if parents := g.Parents(leaf); len(parents) != 2 || parents[0] != a || parents[1] != b {
		t.Errorf("Expected leaf under every front, got %v", parents)
	}
}

func TestSession_ActivateRejectsLeafScope(t *testing.T) {
	s := NewSession(nil)
	leaf := s.Graph().NewLeaf(testNode("leaf"))

	err := s.ScopeNode(leaf, func() error {
		_, err := s.Node(testNode("child"))
		return err
	})
	if !errors.Is(err, ErrLeafExtended) {
		t.Errorf("Expected ErrLeafExtended, got: %v", err)
	}
}

// TestSession_Direct builds a mixed expression/scope graph and checks the
// printed tree, including a node placed in two spots.
func TestSession_Direct(t *testing.T) {
	s := NewSession(nil)
	g := s.Graph()

	root := g.NewNode(testNode("root"))
	level1, _ := s.Node(testNode("expr-level1"))
	level2, _ := s.Node(testNode("expr-level2"))

	first, err := g.Attach(root, level1)
	if err != nil {
		t.Fatal(err)
	}
	foo, err := g.Then(first, Single(level2))
	if err != nil {
		t.Fatal(err)
	}

	four, _ := s.Node(testNode("4"))
	withFour, err := g.Attach(root, four)
	if err != nil {
		t.Fatal(err)
	}

	var nontree NodeID
	err = s.Scope(withFour, func() error {
		if _, err := s.Node(testNode("2")); err != nil {
			return err
		}
		if _, err := s.Node(testNode("3")); err != nil {
			return err
		}
		var err error
		if nontree, err = s.Node(testNode("non-tree")); err != nil {
			return err
		}
		return s.ScopeNode(nontree, func() error {
			_, err := s.Node(testNode("non-tree leaf"))
			return err
		})
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.ScopeNode(root, func() error {
		_, err := s.Node(testNode("5"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	err = s.Scope(foo, func() error {
		if _, err := s.Node(testNode("7")); err != nil {
			return err
		}
		_, err := s.Activate(nontree)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	eight, _ := s.Node(testNode("8"))
	withEight, err := g.Then(foo, Single(eight))
	if err != nil {
		t.Fatal(err)
	}
	err = s.Scope(withEight, func() error {
		_, err := s.Node(testNode("9"))
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	expected := "TestNode(root)\n" +
		"  TestNode(expr-level1)\n" +
		"    TestNode(expr-level2)\n" +
		"      TestNode(7)\n" +
		"      TestNode(non-tree)\n" +
		"        TestNode(non-tree leaf)\n" +
		"      TestNode(8)\n" +
		"        TestNode(9)\n" +
		"  TestNode(4)\n" +
		"    TestNode(2)\n" +
		"    TestNode(3)\n" +
		"    TestNode(non-tree)\n" +
		"      TestNode(non-tree leaf)\n" +
		"  TestNode(5)\n"
	if out := g.Dump(root); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
}

func TestSession_Operations(t *testing.T) {
	s := NewSession(nil)
	g := s.Graph()
	a := Single(g.NewLeaf(testNode("a")))
	b := Single(g.NewLeaf(testNode("b")))

	tests := []struct {
		name  string
		op    func(...Chain) (Chain, error)
		class Class
		label string
	}{
		{"union", s.Union, ClassGroup, "Group"},
		{"difference", s.Subtract, ClassNode, "difference"},
		{"intersection", s.Intersect, ClassNode, "intersection"},
		{"hull", s.Hull, ClassNode, "hull"},
		{"minkowski", s.Minkowski, ClassNode, "minkowski"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.op(a, b)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if g.Class(c.Root) != tt.class {
				t.Errorf("Expected class %s, got %s", tt.class, g.Class(c.Root))
			}
			if got := g.Label(c.Root); got != tt.label {
				t.Errorf("Expected label %q, got %q", tt.label, got)
			}
			children := g.Children(c.Root)
			if len(children) != 2 || children[0] != a.Root || children[1] != b.Root {
				t.Errorf("Expected operands [a b] in order, got %v", children)
			}
		})
	}
}

func TestSession_ComposeRejectsWithoutPartialState(t *testing.T) {
	s := NewSession(nil)
	g := s.Graph()
	scope := Single(g.NewNode(testNode("scope")))
	x := Single(g.NewLeaf(testNode("x")))
	before := g.ToDOT()
	count := g.Len()

	err := s.Scope(scope, func() error {
		_, err := s.Union(x, scope)
		return err
	})
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Expected ErrCycle, got: %v", err)
	}
	if g.Len() != count {
		t.Errorf("Expected no operation node to be created, got %d nodes (was %d)", g.Len(), count)
	}
	if after := g.ToDOT(); after != before {
		t.Errorf("Graph changed after rejected compose:\nbefore:\n%s\nafter:\n%s", before, after)
	}

	leaf := Single(g.NewLeaf(testNode("leaf")))
	err = s.Scope(leaf, func() error {
		_, err := s.Union(x)
		return err
	})
	if !errors.Is(err, ErrLeafExtended) {
		t.Fatalf("Expected ErrLeafExtended under a leaf scope, got: %v", err)
	}
	if parents := g.Parents(x.Root); len(parents) != 0 {
		t.Errorf("Expected operand to stay detached, got parents %v", parents)
	}
}

type kernelOp struct{ kind OperationKind }

func (k kernelOp) Label() string { return "kernel:" + string(k.kind) }

func TestSession_RegisterOperations(t *testing.T) {
	s := NewSession(nil)
	s.RegisterOperations(OperationProviderFunc(func(kind OperationKind) (Class, interface{}, bool) {
		if kind != OpHull {
			return 0, nil, false
		}
		return ClassNode, kernelOp{kind}, true
	}))
	s.RegisterOperations(OperationProviderFunc(func(kind OperationKind) (Class, interface{}, bool) {
		return ClassNode, Name("fallback"), true
	}))

	hull, err := s.Hull()
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Graph().Label(hull.Root); got != "kernel:hull" {
		t.Errorf("Expected first provider to win, got %q", got)
	}
	union, err := s.Union()
	if err != nil {
		t.Fatal(err)
	}
	if got := s.Graph().Label(union.Root); got != "fallback" {
		t.Errorf("Expected second provider for union, got %q", got)
	}
}

func TestSession_EmplaceOperation(t *testing.T) {
	s := NewSession(nil)
	g := s.Graph()
	root := g.NewNode(testNode("root"))

	wrap := func(label string, kind OperationKind, inner, before, after string) error {
		n, err := s.Node(testNode(label))
		if err != nil {
			return err
		}
		return s.ScopeNode(n, func() error {
			if _, err := s.Node(testNode(before)); err != nil {
				return err
			}
			appendix, err := s.EmplaceOperation(kind)
			if err != nil {
				return err
			}
			if err := s.ScopeNode(appendix, func() error {
				_, err := s.Node(testNode(inner))
				return err
			}); err != nil {
				return err
			}
			_, err = s.Node(testNode(after))
			return err
		})
	}

	err := s.ScopeNode(root, func() error {
		if err := wrap("0", OpDifference, "2", "1", "3"); err != nil {
			return err
		}
		return wrap("10", OpIntersection, "12", "11", "13")
	})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := "TestNode(root)\n" +
		"  difference\n" +
		"    TestNode(0)\n" +
		"      TestNode(1)\n" +
		"      TestNode(3)\n" +
		"    Group\n" +
		"      TestNode(2)\n" +
		"  intersection\n" +
		"    TestNode(10)\n" +
		"      TestNode(11)\n" +
		"      TestNode(13)\n" +
		"    Group\n" +
		"      TestNode(12)\n"
	if out := g.Dump(root); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
}

func TestSession_EmplaceOperationNeedsScope(t *testing.T) {
	s := NewSession(nil)
	if _, err := s.EmplaceOperation(OpDifference); !errors.Is(err, ErrNoScope) {
		t.Errorf("Expected ErrNoScope, got: %v", err)
	}
}
