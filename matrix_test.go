package runtimefx

import (
	"math"
	"testing"
)

func TestMatrixIdentity(t *testing.T) {
	m := Identity()
	if !m.IsIdentity() {
		t.Error("Identity() is not the identity matrix")
	}
	x, y := m.TransformPoint(3, 7)
	if x != 3 || y != 7 {
		t.Errorf("identity transformed (3,7) to (%v,%v)", x, y)
	}
}

func TestMatrixTranslate(t *testing.T) {
	m := Translate(10, 20)
	x, y := m.TransformPoint(1, 2)
	if x != 11 || y != 22 {
		t.Errorf("translate(10,20) of (1,2) = (%v,%v), want (11,22)", x, y)
	}
}

func TestMatrixScale(t *testing.T) {
	m := Scale(2, 3)
	x, y := m.TransformPoint(4, 5)
	if x != 8 || y != 15 {
		t.Errorf("scale(2,3) of (4,5) = (%v,%v), want (8,15)", x, y)
	}
}

func TestMatrixRotate(t *testing.T) {
	m := Rotate(math.Pi / 2)
	x, y := m.TransformPoint(1, 0)
	if math.Abs(x) > 1e-9 || math.Abs(y-1) > 1e-9 {
		t.Errorf("rotate(pi/2) of (1,0) = (%v,%v), want (0,1)", x, y)
	}
}

func TestMatrixMultiply(t *testing.T) {
	m := Translate(5, 0).Multiply(Scale(2, 2))
	x, y := m.TransformPoint(3, 4)
	if x != 11 || y != 8 {
		t.Errorf("translate*scale of (3,4) = (%v,%v), want (11,8)", x, y)
	}
}

func TestMatrixMVP(t *testing.T) {
	// Identity over a 100x50 target maps pixel corners to NDC corners.
	mvp := Identity().MVP(100, 50)

	apply := func(px, py float32) (float32, float32) {
		x := mvp[0]*px + mvp[4]*py + mvp[12]
		y := mvp[1]*px + mvp[5]*py + mvp[13]
		return x, y
	}

	tests := []struct {
		name         string
		px, py       float32
		wantX, wantY float32
	}{
		{"top-left", 0, 0, -1, 1},
		{"bottom-right", 100, 50, 1, -1},
		{"center", 50, 25, 0, 0},
	}
	for _, tt := range tests {
		x, y := apply(tt.px, tt.py)
		if x != tt.wantX || y != tt.wantY {
			t.Errorf("%s: (%v,%v) -> (%v,%v), want (%v,%v)", tt.name, tt.px, tt.py, x, y, tt.wantX, tt.wantY)
		}
	}
}

func TestMatrixMVPTranslate(t *testing.T) {
	mvp := Translate(50, 0).MVP(100, 100)
	// Pixel origin shifted 50 right lands at NDC x = 0.
	x := mvp[0]*0 + mvp[4]*0 + mvp[12]
	if x != 0 {
		t.Errorf("translated origin maps to NDC x = %v, want 0", x)
	}
}

func TestBlendModeString(t *testing.T) {
	if got := BlendSourceOver.String(); got != "source-over" {
		t.Errorf("BlendSourceOver.String() = %q", got)
	}
	if got := BlendSource.String(); got != "source" {
		t.Errorf("BlendSource.String() = %q", got)
	}
	if !BlendSourceOver.blendEnabled() {
		t.Error("source-over should enable blending")
	}
	if BlendSource.blendEnabled() {
		t.Error("source should not enable blending")
	}
}
