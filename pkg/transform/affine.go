package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultTolerance is the absolute per-element tolerance used when comparing
// composed transforms.
const DefaultTolerance = 1e-9

// ErrZeroAxis is returned when a direction vector of zero length is given.
var ErrZeroAxis = errors.New("axis must not be zero")

// Affine is a 3D affine transform in homogeneous 4x4 form. The zero value is
// the identity. Affine values are immutable; every operation returns a new
// value.
type Affine struct {
	m *mat.Dense
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{}
}

// FromRows builds a transform from a row-major 4x4 matrix.
func FromRows(rows [4][4]float64) Affine {
	data := make([]float64, 0, 16)
	for _, r := range rows {
		data = append(data, r[:]...)
	}
	return Affine{m: mat.NewDense(4, 4, data)}
}

// Translation moves points by v.
func Translation(v r3.Vec) Affine {
	return FromRows([4][4]float64{
		{1, 0, 0, v.X},
		{0, 1, 0, v.Y},
		{0, 0, 1, v.Z},
		{0, 0, 0, 1},
	})
}

// Scaling scales points along each axis by the components of v.
func Scaling(v r3.Vec) Affine {
	return FromRows([4][4]float64{
		{v.X, 0, 0, 0},
		{0, v.Y, 0, 0},
		{0, 0, v.Z, 0},
		{0, 0, 0, 1},
	})
}

// RotationX rotates by deg degrees about the X axis.
func RotationX(deg float64) Affine {
	c, s := cosSin(deg)
	return FromRows([4][4]float64{
		{1, 0, 0, 0},
		{0, c, -s, 0},
		{0, s, c, 0},
		{0, 0, 0, 1},
	})
}

// RotationY rotates by deg degrees about the Y axis.
func RotationY(deg float64) Affine {
	c, s := cosSin(deg)
	return FromRows([4][4]float64{
		{c, 0, s, 0},
		{0, 1, 0, 0},
		{-s, 0, c, 0},
		{0, 0, 0, 1},
	})
}

// RotationZ rotates by deg degrees about the Z axis.
func RotationZ(deg float64) Affine {
	c, s := cosSin(deg)
	return FromRows([4][4]float64{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	})
}

// Rotation rotates by the Euler angles in deg, in degrees, applied about X
// first, then Y, then Z.
func Rotation(deg r3.Vec) Affine {
	return RotationZ(deg.Z).Mul(RotationY(deg.Y)).Mul(RotationX(deg.X))
}

// RotationAbout rotates by deg degrees about axis through the origin.
func RotationAbout(axis r3.Vec, deg float64) (Affine, error) {
	if r3.Norm(axis) == 0 {
		return Affine{}, ErrZeroAxis
	}
	w := r3.Unit(axis)
	c, s := cosSin(deg)
	t := 1 - c
	return FromRows([4][4]float64{
		{1 + t*(w.X*w.X-1), -w.Z*s + t*w.X*w.Y, w.Y*s + t*w.X*w.Z, 0},
		{w.Z*s + t*w.X*w.Y, 1 + t*(w.Y*w.Y-1), -w.X*s + t*w.Y*w.Z, 0},
		{-w.Y*s + t*w.X*w.Z, w.X*s + t*w.Y*w.Z, 1 + t*(w.Z*w.Z-1), 0},
		{0, 0, 0, 1},
	}), nil
}

// Reflection mirrors points across the plane through the origin with the
// given normal.
func Reflection(normal r3.Vec) (Affine, error) {
	if r3.Norm(normal) == 0 {
		return Affine{}, ErrZeroAxis
	}
	n := r3.Unit(normal)
	return FromRows([4][4]float64{
		{1 - 2*n.X*n.X, -2 * n.X * n.Y, -2 * n.X * n.Z, 0},
		{-2 * n.X * n.Y, 1 - 2*n.Y*n.Y, -2 * n.Y * n.Z, 0},
		{-2 * n.X * n.Z, -2 * n.Y * n.Z, 1 - 2*n.Z*n.Z, 0},
		{0, 0, 0, 1},
	}), nil
}

// Mul returns the composition a∘b: b is applied first, then a.
func (a Affine) Mul(b Affine) Affine {
	switch {
	case a.m == nil:
		return b
	case b.m == nil:
		return a
	}
	var out mat.Dense
	out.Mul(a.m, b.m)
	return Affine{m: &out}
}

// Apply transforms the point p.
func (a Affine) Apply(p r3.Vec) r3.Vec {
	if a.m == nil {
		return p
	}
	var out mat.VecDense
	out.MulVec(a.m, mat.NewVecDense(4, []float64{p.X, p.Y, p.Z, 1}))
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// Offset returns the translation part of the transform, the image of the
// origin.
func (a Affine) Offset() r3.Vec {
	return r3.Vec{X: a.At(0, 3), Y: a.At(1, 3), Z: a.At(2, 3)}
}

// At returns the matrix element at row i, column j.
func (a Affine) At(i, j int) float64 {
	if a.m == nil {
		if i == j {
			return 1
		}
		return 0
	}
	return a.m.At(i, j)
}

// Rows returns the row-major matrix.
func (a Affine) Rows() [4][4]float64 {
	var rows [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			rows[i][j] = a.At(i, j)
		}
	}
	return rows
}

// Inverse returns the inverse transform.
func (a Affine) Inverse() (Affine, error) {
	if a.m == nil {
		return a, nil
	}
	var out mat.Dense
	if err := out.Inverse(a.m); err != nil {
		return Affine{}, fmt.Errorf("invert transform: %w", err)
	}
	return Affine{m: &out}, nil
}

// EqualApprox reports whether every element of a and b differs by at most tol.
func (a Affine) EqualApprox(b Affine, tol float64) bool {
	return mat.EqualApprox(a.dense(), b.dense(), tol)
}

// IsIdentity reports whether a is the identity within DefaultTolerance.
func (a Affine) IsIdentity() bool {
	return a.m == nil || a.EqualApprox(Identity(), DefaultTolerance)
}

// String formats the matrix row by row.
func (a Affine) String() string {
	rows := a.Rows()
	parts := make([]string, 0, 4)
	for _, r := range rows {
		parts = append(parts, fmt.Sprintf("%s %s %s %s",
			formatFloat(r[0]), formatFloat(r[1]), formatFloat(r[2]), formatFloat(r[3])))
	}
	return "[" + strings.Join(parts, "; ") + "]"
}

func (a Affine) dense() *mat.Dense {
	if a.m != nil {
		return a.m
	}
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func cosSin(deg float64) (float64, float64) {
	rad := deg * math.Pi / 180
	return math.Cos(rad), math.Sin(rad)
}

func formatFloat(f float64) string {
	if math.Abs(f) < DefaultTolerance {
		f = 0
	}
	return strconv.FormatFloat(f, 'g', 6, 64)
}
