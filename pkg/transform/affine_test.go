package transform

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func vecNear(a, b r3.Vec) bool {
	const tol = 1e-9
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

func TestAffine_Apply(t *testing.T) {
	p := r3.Vec{X: 1, Y: 2, Z: 3}

	tests := []struct {
		name     string
		m        Affine
		expected r3.Vec
	}{
		{"identity", Identity(), p},
		{"translation", Translation(r3.Vec{X: 10, Y: -1}), r3.Vec{X: 11, Y: 1, Z: 3}},
		{"scaling", Scaling(r3.Vec{X: 2, Y: 3, Z: 4}), r3.Vec{X: 2, Y: 6, Z: 12}},
		{"rotation z", RotationZ(90), r3.Vec{X: -2, Y: 1, Z: 3}},
		{"rotation x", RotationX(90), r3.Vec{X: 1, Y: -3, Z: 2}},
		{"rotation y", RotationY(90), r3.Vec{X: 3, Y: 2, Z: -1}},
		{"euler z only", Rotation(r3.Vec{Z: 90}), r3.Vec{X: -2, Y: 1, Z: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.Apply(p); !vecNear(got, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestAffine_MulOrder(t *testing.T) {
	// Rotate first, then translate.
	m := Translation(r3.Vec{X: 10}).Mul(RotationZ(90))
	got := m.Apply(r3.Vec{X: 1})
	if !vecNear(got, r3.Vec{X: 10, Y: 1}) {
		t.Errorf("Expected (10, 1, 0), got %v", got)
	}
}

func TestAffine_EulerOrder(t *testing.T) {
	got := Rotation(r3.Vec{X: 90, Z: 90})
	expected := RotationZ(90).Mul(RotationX(90))
	if !got.EqualApprox(expected, DefaultTolerance) {
		t.Errorf("Expected X rotation to apply first, got %s", got)
	}
}

func TestAffine_RotationAbout(t *testing.T) {
	m, err := RotationAbout(r3.Vec{Z: 5}, 90)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !m.EqualApprox(RotationZ(90), DefaultTolerance) {
		t.Errorf("Expected rotation about z to match RotationZ, got %s", m)
	}

	if _, err := RotationAbout(r3.Vec{}, 90); !errors.Is(err, ErrZeroAxis) {
		t.Errorf("Expected ErrZeroAxis, got: %v", err)
	}
}

func TestAffine_Reflection(t *testing.T) {
	m, err := Reflection(r3.Vec{X: 2})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got := m.Apply(r3.Vec{X: 1, Y: 2, Z: 3}); !vecNear(got, r3.Vec{X: -1, Y: 2, Z: 3}) {
		t.Errorf("Expected x to be mirrored, got %v", got)
	}
	if !m.Mul(m).IsIdentity() {
		t.Error("Expected a reflection to be its own inverse")
	}
}

func TestAffine_Inverse(t *testing.T) {
	m := Translation(r3.Vec{X: 1, Y: 2, Z: 3}).Mul(Rotation(r3.Vec{X: 30, Y: 45, Z: 60}))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !m.Mul(inv).IsIdentity() {
		t.Errorf("Expected m * inv(m) to be identity, got %s", m.Mul(inv))
	}

	if _, err := Scaling(r3.Vec{X: 1, Y: 0, Z: 1}).Inverse(); err == nil {
		t.Error("Expected singular transform to fail inversion")
	}
}

func TestAffine_String(t *testing.T) {
	expected := "[1 0 0 10; 0 1 0 0; 0 0 1 -2.5; 0 0 0 1]"
	if got := Translation(r3.Vec{X: 10, Z: -2.5}).String(); got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
	if got := Identity().String(); got != "[1 0 0 0; 0 1 0 0; 0 0 1 0; 0 0 0 1]" {
		t.Errorf("Unexpected identity string %q", got)
	}
}
