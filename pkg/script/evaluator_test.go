package script

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/openfroyo/solidgraph/pkg/dag"
)

func run(t *testing.T, src string, opts ...Option) *Scene {
	t.Helper()
	scene, err := NewEvaluator(opts...).Run(context.Background(), "test.star", []byte(src))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return scene
}

func dumpExport(t *testing.T, scene *Scene, name string) string {
	t.Helper()
	c, ok := scene.Exports[name]
	if !ok {
		t.Fatalf("Expected export %q, got %v", name, scene.ExportNames())
	}
	return scene.Graph.Dump(c.Root)
}

func TestEvaluator_Direct(t *testing.T) {
	scene := run(t, `
root = node("root")
foo = root * node("expr-level1") * node("expr-level2")

state = {}

def _four():
    node("2")
    node("3")
    state["nontree"] = node("non-tree")
    scope(state["nontree"], lambda: node("non-tree leaf"))

scope(root * node("4"), _four)
scope(root, lambda: node("5"))

def _foo():
    node("7")
    state["nontree"]()

scope(foo, _foo)
scope(foo * node("8"), lambda: node("9"))
`)

	expected := "root\n" +
		"  expr-level1\n" +
		"    expr-level2\n" +
		"      7\n" +
		"      non-tree\n" +
		"        non-tree leaf\n" +
		"      8\n" +
		"        9\n" +
		"  4\n" +
		"    2\n" +
		"    3\n" +
		"    non-tree\n" +
		"      non-tree leaf\n" +
		"  5\n"
	if out := dumpExport(t, scene, "root"); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
	if len(scene.Roots) != 1 {
		t.Errorf("Expected a single root, got %d", len(scene.Roots))
	}
}

func TestEvaluator_Module(t *testing.T) {
	scene := run(t, `
def _mymodule():
    node("mymodule-1")
    scope(node("mymodule-2"), anchor)
    anchor()

mymodule = module(_mymodule)

root = node("root")
scope(root * mymodule(), lambda: node("leaf"))
scope(root * mymodule() * node("intermediate"), lambda: node("leaf2"))
`)

	expected := "root\n" +
		"  Group\n" +
		"    mymodule-1\n" +
		"    mymodule-2\n" +
		"      leaf\n" +
		"    leaf\n" +
		"  Group\n" +
		"    mymodule-1\n" +
		"    mymodule-2\n" +
		"      intermediate\n" +
		"        leaf2\n" +
		"    intermediate\n" +
		"      leaf2\n"
	if out := dumpExport(t, scene, "root"); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
}

func TestEvaluator_ModuleArguments(t *testing.T) {
	scene := run(t, `
def _row(n, label = "cell"):
    for i in range(n):
        leaf("%s-%d" % (label, i))

row = module(_row)
top = group()
scope(top, lambda: row(2, label = "a"))
`)

	expected := "Group\n" +
		"  Group\n" +
		"    a-0\n" +
		"    a-1\n"
	if out := dumpExport(t, scene, "top"); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
}

func TestEvaluator_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		is      error
		message string
	}{
		{
			name: "cycle",
			src: `
a = node("a")
b = node("b")
a * b
b * a
`,
			is:      dag.ErrCycle,
			message: "circle detected",
		},
		{
			name: "leaf extended",
			src: `
l = leaf("l")
l * node("n")
`,
			is:      dag.ErrLeafExtended,
			message: "leaf nodes cannot be extended",
		},
		{
			name:    "wrap without scope",
			src:     `wrap("difference")`,
			is:      dag.ErrNoScope,
			message: "without parent geometry",
		},
		{
			name:    "syntax",
			src:     `node(`,
			message: "test.star",
		},
		{
			name:    "bad argument",
			src:     `union(node("a"), 3)`,
			message: "argument 2 is int, want node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator().Run(context.Background(), "test.star", []byte(tt.src))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			var evalErr *EvalError
			if !errors.As(err, &evalErr) {
				t.Fatalf("Expected *EvalError, got %T", err)
			}
			if evalErr.Script != "test.star" {
				t.Errorf("Expected script name test.star, got %q", evalErr.Script)
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Expected errors.Is(%v), got: %v", tt.is, err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected error to contain %q, got: %v", tt.message, err)
			}
		})
	}
}

func TestEvaluator_Timeout(t *testing.T) {
	src := `
def spin():
    for i in range(1000000000):
        pass

spin()
`
	start := time.Now()
	_, err := NewEvaluator(WithTimeout(50*time.Millisecond)).Run(context.Background(), "spin.star", []byte(src))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Expected cancellation to stop the script, took %v", elapsed)
	}
}

func TestEvaluator_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEvaluator().Run(ctx, "cancelled.star", []byte(`
def spin():
    for i in range(1000000000):
        pass

spin()
`))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestEvaluator_TransformsAndLayers(t *testing.T) {
	scene := run(t, `
root = group()

def _body():
    scope(translate(10, 0, 0), lambda: scope(layer("preview"), lambda: leaf("ghost")))
    scope(rotate(90), lambda: scope(translate([0, 0, 5]), lambda: layer("print")))
    scope(translate(1, when = False), lambda: layer("disabled"))

scope(root, _body)
`)

	layers := scene.Layers()
	if len(layers) != 3 {
		t.Fatalf("Expected 3 layers, got %d", len(layers))
	}

	expected := []struct {
		name   string
		offset r3.Vec
	}{
		{"preview", r3.Vec{X: 10}},
		{"print", r3.Vec{Z: 5}},
		{"disabled", r3.Vec{}},
	}
	for i, want := range expected {
		l, ok := scene.Graph.Payload(layers[i].Node).(Layer)
		if !ok || l.Name != want.name {
			t.Errorf("Layer %d: expected %s, got %v", i, want.name, scene.Graph.Payload(layers[i].Node))
			continue
		}
		got := layers[i].Transform.Offset()
		if r3.Norm(r3.Sub(got, want.offset)) > 1e-9 {
			t.Errorf("Layer %s: expected offset %v, got %v", want.name, want.offset, got)
		}
	}
}

func TestEvaluator_TransformArguments(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		label string
	}{
		{"translate coords", `t = translate(1, 2, 3)`, "translate(1, 2, 3)"},
		{"translate vector", `t = translate([1, 2])`, "translate(1, 2, 0)"},
		{"translate keyword", `t = translate(z = 4)`, "translate(0, 0, 4)"},
		{"scale default", `t = scale(2)`, "scale(2, 1, 1)"},
		{"rotate single", `t = rotate(45)`, "rotate(0, 0, 45)"},
		{"rotate euler", `t = rotate(10, 20, 30)`, "rotate(10, 20, 30)"},
		{"rotate axis", `t = rotate(90, axis = [0, 1, 0])`, "rotate(0, 1, 0, 90)"},
		{"mirror", `t = mirror(1, 0, 0)`, "mirror(1, 0, 0)"},
		{"matrix", `t = matrix([[1, 0, 0, 1], [0, 1, 0, 2], [0, 0, 1, 3]])`, "matrix"},
		{"untransform", `t = untransform()`, "untransform"},
		{"disabled", `t = mirror(0, 0, 0, when = False)`, "Group"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scene := run(t, tt.src)
			if got := scene.Graph.Label(scene.Exports["t"].Root); got != tt.label {
				t.Errorf("Expected label %q, got %q", tt.label, got)
			}
		})
	}

	if _, err := NewEvaluator().Run(context.Background(), "bad.star", []byte(`translate([1, 2], 3)`)); err == nil {
		t.Error("Expected ambiguous translate arguments to fail")
	}
}

func TestEvaluator_OperationsAndWrap(t *testing.T) {
	scene := run(t, `
root = node("root")

def _part():
    body = node("body")
    def _inner():
        leaf("plate")
        scope(wrap("difference"), lambda: leaf("hole"))
    scope(body, _inner)

scope(root, _part)
h = hull(leaf("a"), leaf("b"))
`)

	expected := "root\n" +
		"  difference\n" +
		"    body\n" +
		"      plate\n" +
		"    Group\n" +
		"      hole\n"
	if out := dumpExport(t, scene, "root"); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
	if out := dumpExport(t, scene, "h"); out != "hull\n  a\n  b\n" {
		t.Errorf("Unexpected hull tree:\n%s", out)
	}
}

func TestEvaluator_RefAttributes(t *testing.T) {
	scene := run(t, `
p = node("p")
c = attach(p, leaf("x"), leaf("y"))
labels = [f.label for f in c.fronts]
kind = c.root.kind
print("fronts", labels, kind)
e = emplace(c.fronts[0], node("wrapper"))
`)

	c := scene.Exports["c"]
	if len(c.Fronts) != 2 {
		t.Fatalf("Expected 2 fronts, got %v", c.Fronts)
	}
	expected := "p\n  wrapper\n    x\n  y\n"
	if out := dumpExport(t, scene, "p"); out != expected {
		t.Errorf("Unexpected tree:\n%s\nexpected:\n%s", out, expected)
	}
}

func TestEvaluator_PrintIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	run(t, `print("hello from script")`, WithLogger(logger))

	if !strings.Contains(buf.String(), "hello from script") {
		t.Errorf("Expected print output in log, got: %s", buf.String())
	}
}

func TestEvaluator_ExportsSkipPrivateAndNonNodes(t *testing.T) {
	scene := run(t, `
a = node("a")
_hidden = node("hidden")
count = 3
`)
	names := scene.ExportNames()
	if len(names) != 1 || names[0] != "a" {
		t.Errorf("Expected exports [a], got %v", names)
	}
}
