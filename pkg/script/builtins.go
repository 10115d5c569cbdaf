package script

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/openfroyo/solidgraph/pkg/dag"
)

// env binds the builtins of one script run to its session.
type env struct {
	session *dag.Session
}

func (e *env) ref(c dag.Chain) *Ref {
	return &Ref{env: e, chain: c}
}

func (e *env) node(id dag.NodeID) *Ref {
	return e.ref(dag.Single(id))
}

func (e *env) refList(ids []dag.NodeID) *starlark.List {
	out := make([]starlark.Value, len(ids))
	for i, id := range ids {
		out[i] = e.node(id)
	}
	return starlark.NewList(out)
}

type builtinFunc func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

// predeclared returns the scene builtins.
func (e *env) predeclared() starlark.StringDict {
	fns := map[string]builtinFunc{
		"node":         e.builtinNode,
		"leaf":         e.builtinLeaf,
		"group":        e.builtinGroup,
		"anchor":       e.builtinAnchor,
		"layer":        e.builtinLayer,
		"attach":       e.builtinAttach,
		"scope":        e.builtinScope,
		"module":       e.builtinModule,
		"unlink":       e.builtinUnlink,
		"emplace":      e.builtinEmplace,
		"wrap":         e.builtinWrap,
		"activate":     e.builtinActivate,
		"tree":         e.builtinTree,
		"union":        e.operation(dag.OpUnion),
		"difference":   e.operation(dag.OpDifference),
		"intersection": e.operation(dag.OpIntersection),
		"hull":         e.operation(dag.OpHull),
		"minkowski":    e.operation(dag.OpMinkowski),
		"translate":    e.builtinTranslate,
		"scale":        e.builtinScale,
		"rotate":       e.builtinRotate,
		"mirror":       e.builtinMirror,
		"matrix":       e.builtinMatrix,
		"untransform":  e.builtinUntransform,
	}

	dict := make(starlark.StringDict, len(fns))
	for name, fn := range fns {
		dict[name] = starlark.NewBuiltin(name, fn)
	}
	return dict
}

func payloadOf(label starlark.Value) interface{} {
	if s, ok := starlark.AsString(label); ok {
		return dag.Name(s)
	}
	if label == nil || label == starlark.None {
		return nil
	}
	return dag.Name(label.String())
}

func (e *env) builtinNode(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var label starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "label?", &label); err != nil {
		return nil, err
	}
	id, err := e.session.Node(payloadOf(label))
	if err != nil {
		return nil, err
	}
	return e.node(id), nil
}

func (e *env) builtinLeaf(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var label starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "label?", &label); err != nil {
		return nil, err
	}
	id, err := e.session.Leaf(payloadOf(label))
	if err != nil {
		return nil, err
	}
	return e.node(id), nil
}

func (e *env) builtinGroup(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	id, err := e.session.Group()
	if err != nil {
		return nil, err
	}
	return e.node(id), nil
}

func (e *env) builtinAnchor(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	id, err := e.session.Anchor()
	if err != nil {
		return nil, err
	}
	return e.node(id), nil
}

func (e *env) builtinLayer(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	id, err := e.session.Add(dag.ClassGroup, Layer{Name: name})
	if err != nil {
		return nil, err
	}
	return e.node(id), nil
}

// attach(parent, *children) attaches every child under the fronts of parent.
// The result is rooted at parent and its fronts are those of the children.
func (e *env) builtinAttach(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
	}
	refs, err := toRefs(b.Name(), args)
	if err != nil {
		return nil, err
	}
	if len(refs) < 2 {
		return nil, fmt.Errorf("%s: need a parent and at least one child", b.Name())
	}

	parent := refs[0].chain
	result := dag.Chain{Root: parent.Root}
	for _, child := range refs[1:] {
		c, err := e.session.Graph().Then(parent, child.chain)
		if err != nil {
			return nil, err
		}
		result.Fronts = append(result.Fronts, c.Fronts...)
	}
	return e.ref(result), nil
}

// scope(target, fn) calls fn with target open as the innermost scope.
func (e *env) builtinScope(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target *Ref
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &target, &fn); err != nil {
		return nil, err
	}
	err := e.session.Scope(target.chain, func() error {
		_, err := starlark.Call(thread, fn, nil, nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return target, nil
}

func (e *env) builtinModule(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &fn); err != nil {
		return nil, err
	}
	return &moduleValue{env: e, name: fn.Name(), build: fn}, nil
}

func (e *env) builtinUnlink(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target *Ref
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &target); err != nil {
		return nil, err
	}
	e.session.Graph().Unlink(target.chain.Root)
	return target, nil
}

func (e *env) builtinEmplace(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target, replacement *Ref
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &target, &replacement); err != nil {
		return nil, err
	}
	if err := e.session.Graph().Emplace(target.chain.Root, replacement.chain.Root); err != nil {
		return nil, err
	}
	return replacement, nil
}

// wrap(kind) wraps the innermost scope target in a new operation node and
// returns the group collecting the other operands.
func (e *env) builtinWrap(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var kind string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "kind", &kind); err != nil {
		return nil, err
	}
	switch k := dag.OperationKind(kind); k {
	case dag.OpUnion, dag.OpDifference, dag.OpIntersection, dag.OpHull, dag.OpMinkowski:
		id, err := e.session.EmplaceOperation(k)
		if err != nil {
			return nil, err
		}
		return e.node(id), nil
	}
	return nil, fmt.Errorf("%s: unknown operation %q", b.Name(), kind)
}

func (e *env) builtinActivate(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target *Ref
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &target); err != nil {
		return nil, err
	}
	return target.CallInternal(thread, nil, nil)
}

func (e *env) builtinTree(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target *Ref
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &target); err != nil {
		return nil, err
	}
	return starlark.String(e.session.Graph().Dump(target.chain.Root)), nil
}

func (e *env) operation(kind dag.OperationKind) builtinFunc {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		refs, err := toRefs(b.Name(), args)
		if err != nil {
			return nil, err
		}
		operands := make([]dag.Chain, len(refs))
		for i, r := range refs {
			operands[i] = r.chain
		}
		c, err := e.session.Compose(kind, operands...)
		if err != nil {
			return nil, err
		}
		return e.ref(c), nil
	}
}

func toRefs(fn string, args starlark.Tuple) ([]*Ref, error) {
	refs := make([]*Ref, len(args))
	for i, a := range args {
		r, ok := a.(*Ref)
		if !ok {
			return nil, fmt.Errorf("%s: argument %d is %s, want node", fn, i+1, a.Type())
		}
		refs[i] = r
	}
	return refs, nil
}
