package script

import (
	"fmt"

	"go.starlark.net/starlark"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/openfroyo/solidgraph/pkg/dag"
	"github.com/openfroyo/solidgraph/pkg/transform"
)

// vector reads up to three coordinates given either as one list or tuple,
// or as separate x, y and z values. Missing coordinates take def.
func vector(fn string, x, y, z starlark.Value, def float64) (r3.Vec, error) {
	coords := []float64{def, def, def}

	if seq, ok := x.(starlark.Indexable); ok && !isString(x) {
		if !isNone(y) || !isNone(z) {
			return r3.Vec{}, fmt.Errorf("%s: ambiguous arguments: vector and coordinates", fn)
		}
		if seq.Len() > 3 {
			return r3.Vec{}, fmt.Errorf("%s: vector has %d coordinates, want at most 3", fn, seq.Len())
		}
		for i := 0; i < seq.Len(); i++ {
			f, err := number(fn, seq.Index(i))
			if err != nil {
				return r3.Vec{}, err
			}
			coords[i] = f
		}
		return r3.Vec{X: coords[0], Y: coords[1], Z: coords[2]}, nil
	}

	for i, v := range []starlark.Value{x, y, z} {
		if isNone(v) {
			continue
		}
		f, err := number(fn, v)
		if err != nil {
			return r3.Vec{}, err
		}
		coords[i] = f
	}
	return r3.Vec{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

func number(fn string, v starlark.Value) (float64, error) {
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s: got %s, want number", fn, v.Type())
	}
	return f, nil
}

func isNone(v starlark.Value) bool {
	return v == nil || v == starlark.None
}

func isString(v starlark.Value) bool {
	_, ok := v.(starlark.String)
	return ok
}

// addTransform runs add when cond holds and creates a plain group otherwise.
func (e *env) addTransform(when bool, add func() (dag.NodeID, error)) (starlark.Value, error) {
	id, err := transform.When(e.session, when, add)
	if err != nil {
		return nil, err
	}
	return e.node(id), nil
}

// translate(x=0, y=0, z=0, when=True)
func (e *env) builtinTranslate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y, z starlark.Value = starlark.None, starlark.None, starlark.None
	when := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x?", &x, "y?", &y, "z?", &z, "when?", &when); err != nil {
		return nil, err
	}
	v, err := vector(b.Name(), x, y, z, 0)
	if err != nil {
		return nil, err
	}
	return e.addTransform(when, func() (dag.NodeID, error) { return transform.Translate(e.session, v) })
}

// scale(x=1, y=1, z=1, when=True)
func (e *env) builtinScale(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y, z starlark.Value = starlark.None, starlark.None, starlark.None
	when := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x?", &x, "y?", &y, "z?", &z, "when?", &when); err != nil {
		return nil, err
	}
	v, err := vector(b.Name(), x, y, z, 1)
	if err != nil {
		return nil, err
	}
	return e.addTransform(when, func() (dag.NodeID, error) { return transform.Scale(e.session, v) })
}

// rotate(a=0, b=None, c=None, axis=None, when=True)
//
// A single angle rotates about Z, or about axis when one is given. Three
// angles, or one vector, are Euler angles applied about X, Y, then Z.
func (e *env) builtinRotate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, bb, c, axis starlark.Value = starlark.MakeInt(0), starlark.None, starlark.None, starlark.None
	when := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a?", &a, "b?", &bb, "c?", &c, "axis?", &axis, "when?", &when); err != nil {
		return nil, err
	}

	if !isNone(axis) {
		deg, err := number(b.Name(), a)
		if err != nil {
			return nil, err
		}
		w, err := vector(b.Name(), axis, starlark.None, starlark.None, 0)
		if err != nil {
			return nil, err
		}
		return e.addTransform(when, func() (dag.NodeID, error) { return transform.RotateAbout(e.session, w, deg) })
	}

	var deg r3.Vec
	if _, ok := a.(starlark.Indexable); !ok && isNone(bb) && isNone(c) {
		z, err := number(b.Name(), a)
		if err != nil {
			return nil, err
		}
		deg = r3.Vec{Z: z}
	} else {
		var err error
		if deg, err = vector(b.Name(), a, bb, c, 0); err != nil {
			return nil, err
		}
	}
	return e.addTransform(when, func() (dag.NodeID, error) { return transform.Rotate(e.session, deg) })
}

// mirror(x, y=None, z=None, when=True) mirrors across the plane with the
// given normal.
func (e *env) builtinMirror(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, y, z starlark.Value = starlark.None, starlark.None, starlark.None
	when := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "y?", &y, "z?", &z, "when?", &when); err != nil {
		return nil, err
	}
	n, err := vector(b.Name(), x, y, z, 0)
	if err != nil {
		return nil, err
	}
	return e.addTransform(when, func() (dag.NodeID, error) { return transform.Mirror(e.session, n) })
}

// matrix(rows, when=True) takes a row-major 4x4 matrix, or its top 3 rows.
func (e *env) builtinMatrix(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var rows starlark.Indexable
	when := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "rows", &rows, "when?", &when); err != nil {
		return nil, err
	}
	if rows.Len() != 3 && rows.Len() != 4 {
		return nil, fmt.Errorf("%s: got %d rows, want 3 or 4", b.Name(), rows.Len())
	}

	m := transform.Identity().Rows()
	for i := 0; i < rows.Len(); i++ {
		row, ok := rows.Index(i).(starlark.Indexable)
		if !ok || row.Len() != 4 {
			return nil, fmt.Errorf("%s: row %d must have 4 numbers", b.Name(), i)
		}
		for j := 0; j < 4; j++ {
			f, err := number(b.Name(), row.Index(j))
			if err != nil {
				return nil, err
			}
			m[i][j] = f
		}
	}
	return e.addTransform(when, func() (dag.NodeID, error) { return transform.Matrix(e.session, transform.FromRows(m)) })
}

func (e *env) builtinUntransform(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
		return nil, err
	}
	id, err := transform.Reset(e.session)
	if err != nil {
		return nil, err
	}
	return e.node(id), nil
}
