package core

import (
	"math"
	"testing"
)

func TestClampF(t *testing.T) {
	tests := []struct {
		name          string
		val, min, max float64
		expected      float64
	}{
		{"within range", 0.5, -1, 1, 0.5},
		{"below min", -1.5, -1, 1, -1},
		{"above max", 0.97, -0.95, 0.95, 0.95},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClampF(tc.val, tc.min, tc.max); got != tc.expected {
				t.Errorf("ClampF(%v, %v, %v) = %v, expected %v", tc.val, tc.min, tc.max, got, tc.expected)
			}
		})
	}
}

func TestSign(t *testing.T) {
	if Sign(2.5) != 1 || Sign(-0.1) != -1 || Sign(0) != 0 {
		t.Errorf("Sign returned unexpected values: %v %v %v", Sign(2.5), Sign(-0.1), Sign(0))
	}
}

func TestFromAngle(t *testing.T) {
	v := FromAngle(math.Pi/3, 2)
	if math.Abs(v.Len()-2) > 1e-9 {
		t.Errorf("FromAngle length = %v, expected 2", v.Len())
	}
	if math.Abs(v.X-1) > 1e-9 {
		t.Errorf("FromAngle x = %v, expected 1", v.X)
	}
}

func TestVecArithmetic(t *testing.T) {
	v := Vec2{X: 1, Y: -2}.Add(Vec2{X: 0.5, Y: 0.5}).Scale(2)
	if v.X != 3 || v.Y != -3 {
		t.Errorf("unexpected vector %+v", v)
	}
}
