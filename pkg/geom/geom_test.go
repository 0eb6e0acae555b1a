package geom

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRectUnion(t *testing.T) {
	a := NewRect(0, 0, 10, 10)
	b := NewRect(5, -5, 10, 10)
	got := a.Union(b)
	want := Rect{MinX: 0, MinY: -5, MaxX: 15, MaxY: 10}
	if got != want {
		t.Errorf("Union() = %+v, want %+v", got, want)
	}
}

func TestRectCenter(t *testing.T) {
	r := NewRect(0, 0, 40, 20)
	c := r.Center()
	if !almostEqual(c.X, 20) || !almostEqual(c.Y, 10) {
		t.Errorf("Center() = %+v, want (20, 10)", c)
	}
}

func TestRayRectIntersection(t *testing.T) {
	tests := []struct {
		name   string
		origin Point
		toward Point
		rect   Rect
		want   Point
		ok     bool
	}{
		{
			name:   "horizontal from center",
			origin: Point{20, 10},
			toward: Point{100, 10},
			rect:   NewRect(0, 0, 40, 20),
			want:   Point{40, 10},
			ok:     true,
		},
		{
			name:   "vertical from center",
			origin: Point{20, 10},
			toward: Point{20, -50},
			rect:   NewRect(0, 0, 40, 20),
			want:   Point{20, 0},
			ok:     true,
		},
		{
			name:   "diagonal from outside",
			origin: Point{-10, 10},
			toward: Point{20, 10},
			rect:   NewRect(0, 0, 40, 20),
			want:   Point{0, 10},
			ok:     true,
		},
		{
			name:   "degenerate zero direction",
			origin: Point{20, 10},
			toward: Point{20, 10},
			rect:   NewRect(0, 0, 40, 20),
			ok:     false,
		},
		{
			name:   "ray away from rect",
			origin: Point{100, 100},
			toward: Point{200, 200},
			rect:   NewRect(0, 0, 40, 20),
			ok:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RayRectIntersection(tt.origin, tt.toward, tt.rect)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (!almostEqual(got.X, tt.want.X) || !almostEqual(got.Y, tt.want.Y)) {
				t.Errorf("point = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestAffineCompose(t *testing.T) {
	// Translate then scale: scaling applied after translation.
	m := Scaling(2, 2).Mul(Translation(3, 4))
	p := m.Apply(Point{1, 1})
	if !almostEqual(p.X, 8) || !almostEqual(p.Y, 10) {
		t.Errorf("Apply() = %+v, want (8, 10)", p)
	}
}

func TestAffineInvert(t *testing.T) {
	m := Translation(5, -3).Mul(Scaling(2, 4)).Mul(Rotation(30))
	inv, ok := m.Invert()
	if !ok {
		t.Fatal("Invert() reported singular matrix")
	}
	p := Point{7, 11}
	back := inv.Apply(m.Apply(p))
	if !almostEqual(back.X, p.X) || !almostEqual(back.Y, p.Y) {
		t.Errorf("round trip = %+v, want %+v", back, p)
	}

	if _, ok := Scaling(0, 1).Invert(); ok {
		t.Error("Invert() on singular matrix reported ok")
	}
}

func TestParseTransform(t *testing.T) {
	tests := []struct {
		name string
		in   string
		pt   Point
		want Point
	}{
		{"translate pair", "translate(10, 20)", Point{0, 0}, Point{10, 20}},
		{"translate single", "translate(10)", Point{0, 0}, Point{10, 0}},
		{"scale uniform", "scale(2)", Point{3, 4}, Point{6, 8}},
		{"scale pair", "scale(2 3)", Point{3, 4}, Point{6, 12}},
		{"matrix", "matrix(1 0 0 1 5 6)", Point{1, 1}, Point{6, 7}},
		{"composed", "translate(10,0) scale(2)", Point{1, 0}, Point{12, 0}},
		{"rotate about center", "rotate(180 10 10)", Point{0, 0}, Point{20, 20}},
		{"unknown skipped", "frobnicate(9) translate(1,1)", Point{0, 0}, Point{1, 1}},
		{"empty", "", Point{5, 5}, Point{5, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTransform(tt.in).Apply(tt.pt)
			if !almostEqual(got.X, tt.want.X) || !almostEqual(got.Y, tt.want.Y) {
				t.Errorf("ParseTransform(%q).Apply(%+v) = %+v, want %+v", tt.in, tt.pt, got, tt.want)
			}
		})
	}
}

func TestApplyRect(t *testing.T) {
	r := NewRect(0, 0, 10, 10)
	got := Rotation(90).ApplyRect(r)
	want := Rect{MinX: -10, MinY: 0, MaxX: 0, MaxY: 10}
	if !almostEqual(got.MinX, want.MinX) || !almostEqual(got.MinY, want.MinY) ||
		!almostEqual(got.MaxX, want.MaxX) || !almostEqual(got.MaxY, want.MaxY) {
		t.Errorf("ApplyRect() = %+v, want %+v", got, want)
	}
}
