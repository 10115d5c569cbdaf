package script

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/openfroyo/solidgraph/pkg/dag"
)

// Layer is the payload of a layer group. Layers classify the geometry below
// them, e.g. for previews or separate exports.
type Layer struct {
	Name string
}

// Label implements dag.Labeler.
func (l Layer) Label() string {
	return "layer(" + l.Name + ")"
}

// Ref is the Starlark value of a node expression. It wraps a dag.Chain, so
// the same value is both the root of what was built and the place to keep
// attaching: `a * b` attaches b under the fronts of a.
//
// Calling a Ref activates its root in the innermost open scope.
type Ref struct {
	env   *env
	chain dag.Chain
}

var (
	_ starlark.HasBinary = (*Ref)(nil)
	_ starlark.HasAttrs  = (*Ref)(nil)
	_ starlark.Callable  = (*Ref)(nil)
)

func (r *Ref) String() string {
	g := r.env.session.Graph()
	if len(r.chain.Fronts) == 1 && r.chain.Fronts[0] == r.chain.Root {
		return fmt.Sprintf("<node %s>", g.Label(r.chain.Root))
	}
	fronts := make([]string, len(r.chain.Fronts))
	for i, f := range r.chain.Fronts {
		fronts[i] = g.Label(f)
	}
	return fmt.Sprintf("<node %s -> [%s]>", g.Label(r.chain.Root), strings.Join(fronts, ", "))
}

// Type implements starlark.Value.
func (r *Ref) Type() string { return "node" }

// Freeze implements starlark.Value. The graph behind a Ref stays mutable.
func (r *Ref) Freeze() {}

// Truth implements starlark.Value.
func (r *Ref) Truth() starlark.Bool { return starlark.True }

// Hash implements starlark.Value.
func (r *Ref) Hash() (uint32, error) { return uint32(r.chain.Root), nil }

// Name implements starlark.Callable.
func (r *Ref) Name() string { return "node" }

// Chain returns the wrapped chain.
func (r *Ref) Chain() dag.Chain { return r.chain }

// Binary implements starlark.HasBinary for the `*` attach operator.
func (r *Ref) Binary(op syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	if op != syntax.STAR {
		return nil, nil
	}
	other, ok := y.(*Ref)
	if !ok {
		return nil, nil
	}
	left, right := r, other
	if side == starlark.Right {
		left, right = other, r
	}
	c, err := r.env.session.Graph().Then(left.chain, right.chain)
	if err != nil {
		return nil, err
	}
	return r.env.ref(c), nil
}

// CallInternal implements starlark.Callable.
func (r *Ref) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs("node", args, kwargs, 0); err != nil {
		return nil, err
	}
	if _, err := r.env.session.Activate(r.chain.Root); err != nil {
		return nil, err
	}
	return r, nil
}

// Attr implements starlark.HasAttrs.
func (r *Ref) Attr(name string) (starlark.Value, error) {
	g := r.env.session.Graph()
	switch name {
	case "id":
		return starlark.MakeInt(int(r.chain.Root)), nil
	case "label":
		return starlark.String(g.Label(r.chain.Root)), nil
	case "kind":
		return starlark.String(g.Class(r.chain.Root).String()), nil
	case "root":
		return r.env.ref(dag.Single(r.chain.Root)), nil
	case "fronts":
		fronts := make([]starlark.Value, len(r.chain.Fronts))
		for i, f := range r.chain.Fronts {
			fronts[i] = r.env.ref(dag.Single(f))
		}
		return starlark.NewList(fronts), nil
	case "children":
		return r.env.refList(g.Children(r.chain.Root)), nil
	case "parents":
		return r.env.refList(g.Parents(r.chain.Root)), nil
	}
	return nil, nil
}

// AttrNames implements starlark.HasAttrs.
func (r *Ref) AttrNames() []string {
	return []string{"children", "fronts", "id", "kind", "label", "parents", "root"}
}

// moduleValue is the callable returned by module(fn). Every call builds a
// fresh instance.
type moduleValue struct {
	env   *env
	name  string
	build starlark.Callable
}

var _ starlark.Callable = (*moduleValue)(nil)

func (m *moduleValue) String() string        { return fmt.Sprintf("<module %s>", m.name) }
func (m *moduleValue) Type() string          { return "module" }
func (m *moduleValue) Freeze()               { m.build.Freeze() }
func (m *moduleValue) Truth() starlark.Bool  { return starlark.True }
func (m *moduleValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: module") }
func (m *moduleValue) Name() string          { return m.name }

func (m *moduleValue) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	c, err := m.env.session.Module(func(*dag.Session) error {
		_, err := starlark.Call(thread, m.build, args, kwargs)
		return err
	})
	if err != nil {
		return nil, err
	}
	return m.env.ref(c), nil
}
