package geom

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRect_Contains(t *testing.T) {
	r := R(1280, 0, 1280, 1024)

	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"origin", Pt(1280, 0), true},
		{"inside", Pt(1500, 500), true},
		{"right edge exclusive", Pt(2560, 10), false},
		{"bottom edge exclusive", Pt(1300, 1024), false},
		{"left of", Pt(1279.5, 10), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Contains(tt.p))
		})
	}
}

func TestRect_Union(t *testing.T) {
	a := R(0, 0, 1280, 1024)
	b := R(1280, 0, 1280, 1024)

	assert.Equal(t, R(0, 0, 2560, 1024), a.Union(b))
	assert.Equal(t, a, a.Union(Rect{}))
	assert.Equal(t, b, Rect{}.Union(b))
}

func TestRect_Clamp(t *testing.T) {
	r := R(0, 0, 100, 50)

	assert.Equal(t, Pt(0, 0), r.Clamp(Pt(-10, -3)))
	assert.Equal(t, Pt(99, 49), r.Clamp(Pt(200, 200)))
	assert.Equal(t, Pt(10, 20), r.Clamp(Pt(10, 20)))
	assert.Equal(t, Pt(-5, 7), Rect{}.Clamp(Pt(-5, 7)))
}

func TestRect_MapNormalized(t *testing.T) {
	r := R(1280, 0, 1280, 1024)

	assert.Equal(t, Pt(1280, 0), r.MapNormalized(0, 0))
	assert.Equal(t, Pt(1920, 512), r.MapNormalized(0.5, 0.5))
	// Out of range input is not clamped.
	assert.Equal(t, Pt(1280+1280*1.5, -1024*0.25), r.MapNormalized(1.5, -0.25))
}

func TestPoint_Sub(t *testing.T) {
	assert.Equal(t, Pt(25, 25), Pt(125, 125).Sub(Pt(100, 100)))
	assert.Equal(t, Pt(-100, -100), Pt(0, 0).Sub(Pt(100, 100)))
	assert.Equal(t, Pt(3, 4), Pt(1, 1).Add(Pt(2, 3)))
}
