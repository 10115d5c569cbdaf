package transform

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/openfroyo/solidgraph/pkg/dag"
)

// Placer is implemented by payloads that contribute a local transform to
// everything below them.
type Placer interface {
	LocalTransform() Affine
}

// FrameReset is implemented by payloads that discard the accumulated
// ancestor transform and start an independent coordinate frame.
type FrameReset interface {
	ResetsFrame() bool
}

// Node is the payload of a transform node.
type Node struct {
	// Op names the constructor, e.g. "translate".
	Op string

	// Params are the constructor arguments, kept for labels.
	Params []float64

	// Local is the transform applied to the subgraph below the node.
	Local Affine
}

// LocalTransform implements Placer.
func (n *Node) LocalTransform() Affine {
	return n.Local
}

// Label implements dag.Labeler.
func (n *Node) Label() string {
	if len(n.Params) == 0 {
		return n.Op
	}
	args := make([]string, len(n.Params))
	for i, p := range n.Params {
		args[i] = formatFloat(p)
	}
	return n.Op + "(" + strings.Join(args, ", ") + ")"
}

// Untransform is the payload of a frame reset node.
type Untransform struct{}

// ResetsFrame implements FrameReset.
func (Untransform) ResetsFrame() bool { return true }

// Label implements dag.Labeler.
func (Untransform) Label() string { return "untransform" }

// LocalOf returns the local transform of a node, or the identity when the
// payload is not a Placer.
func LocalOf(g *dag.Graph, id dag.NodeID) Affine {
	if p, ok := g.Payload(id).(Placer); ok {
		return p.LocalTransform()
	}
	return Identity()
}

func resetsFrame(g *dag.Graph, id dag.NodeID) bool {
	r, ok := g.Payload(id).(FrameReset)
	return ok && r.ResetsFrame()
}

func vecParams(v r3.Vec) []float64 {
	return []float64{v.X, v.Y, v.Z}
}

// Add creates an activated transform node in s.
func Add(s *dag.Session, op string, params []float64, local Affine) (dag.NodeID, error) {
	return s.Node(&Node{Op: op, Params: params, Local: local})
}

// Translate adds a translation by v.
func Translate(s *dag.Session, v r3.Vec) (dag.NodeID, error) {
	return Add(s, "translate", vecParams(v), Translation(v))
}

// Scale adds a per-axis scaling by v.
func Scale(s *dag.Session, v r3.Vec) (dag.NodeID, error) {
	return Add(s, "scale", vecParams(v), Scaling(v))
}

// Rotate adds a rotation by the Euler angles deg, in degrees.
func Rotate(s *dag.Session, deg r3.Vec) (dag.NodeID, error) {
	return Add(s, "rotate", vecParams(deg), Rotation(deg))
}

// RotateAbout adds a rotation by deg degrees about axis.
func RotateAbout(s *dag.Session, axis r3.Vec, deg float64) (dag.NodeID, error) {
	m, err := RotationAbout(axis, deg)
	if err != nil {
		return dag.NoNode, err
	}
	return Add(s, "rotate", append(vecParams(axis), deg), m)
}

// Mirror adds a reflection across the plane with the given normal.
func Mirror(s *dag.Session, normal r3.Vec) (dag.NodeID, error) {
	m, err := Reflection(normal)
	if err != nil {
		return dag.NoNode, err
	}
	return Add(s, "mirror", vecParams(normal), m)
}

// Matrix adds an arbitrary affine transform.
func Matrix(s *dag.Session, m Affine) (dag.NodeID, error) {
	return Add(s, "matrix", nil, m)
}

// Reset adds an untransform node. Everything below it is placed relative to
// the origin, whatever sits above.
func Reset(s *dag.Session) (dag.NodeID, error) {
	return s.Node(Untransform{})
}

// When returns add() if cond holds and a plain group otherwise, so scopes
// opened on the result keep their structure either way.
func When(s *dag.Session, cond bool, add func() (dag.NodeID, error)) (dag.NodeID, error) {
	if !cond {
		return s.Group()
	}
	return add()
}

// TranslateIf is Translate when cond holds and a plain group otherwise.
func TranslateIf(s *dag.Session, cond bool, v r3.Vec) (dag.NodeID, error) {
	return When(s, cond, func() (dag.NodeID, error) { return Translate(s, v) })
}

// ScaleIf is Scale when cond holds and a plain group otherwise.
func ScaleIf(s *dag.Session, cond bool, v r3.Vec) (dag.NodeID, error) {
	return When(s, cond, func() (dag.NodeID, error) { return Scale(s, v) })
}

// RotateIf is Rotate when cond holds and a plain group otherwise.
func RotateIf(s *dag.Session, cond bool, deg r3.Vec) (dag.NodeID, error) {
	return When(s, cond, func() (dag.NodeID, error) { return Rotate(s, deg) })
}

// MirrorIf is Mirror when cond holds and a plain group otherwise.
func MirrorIf(s *dag.Session, cond bool, normal r3.Vec) (dag.NodeID, error) {
	return When(s, cond, func() (dag.NodeID, error) { return Mirror(s, normal) })
}

// MatrixIf is Matrix when cond holds and a plain group otherwise.
func MatrixIf(s *dag.Session, cond bool, m Affine) (dag.NodeID, error) {
	return When(s, cond, func() (dag.NodeID, error) { return Matrix(s, m) })
}
