// Package geom provides the small 2D geometry kernel used by the layout
// engine: points, axis-aligned rectangles, affine transforms, and the
// ray/rectangle border intersection shared by graph edge routing and
// connector endpoint resolution.
package geom

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const epsilon = 1e-9

// Point is a 2D coordinate.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle given by its min and max corners.
// A Rect with Max < Min on either axis is not valid.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// NewRect builds a rect from an origin and a non-negative size.
func NewRect(x, y, w, h float64) Rect {
	return Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}
}

// Width returns the horizontal extent of the rect.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Height returns the vertical extent of the rect.
func (r Rect) Height() float64 { return r.MaxY - r.MinY }

// Center returns the centroid of the rect.
func (r Rect) Center() Point {
	return Point{X: (r.MinX + r.MaxX) / 2, Y: (r.MinY + r.MaxY) / 2}
}

// Empty reports whether the rect has zero area.
func (r Rect) Empty() bool {
	return r.Width() <= 0 && r.Height() <= 0
}

// Union returns the smallest rect containing both r and other.
func (r Rect) Union(other Rect) Rect {
	return Rect{
		MinX: math.Min(r.MinX, other.MinX),
		MinY: math.Min(r.MinY, other.MinY),
		MaxX: math.Max(r.MaxX, other.MaxX),
		MaxY: math.Max(r.MaxY, other.MaxY),
	}
}

// Translate returns the rect shifted by (dx, dy).
func (r Rect) Translate(dx, dy float64) Rect {
	return Rect{MinX: r.MinX + dx, MinY: r.MinY + dy, MaxX: r.MaxX + dx, MaxY: r.MaxY + dy}
}

// RayRectIntersection returns the first point where the ray from origin
// toward the target crosses the rect boundary, and whether such a point
// exists. The ray starts strictly after the origin, so an origin inside
// the rect yields the exit point on the border.
//
// This is the single border-intersection rule shared by graph edge
// routing and connector endpoint resolution.
func RayRectIntersection(origin, toward Point, r Rect) (Point, bool) {
	dx := toward.X - origin.X
	dy := toward.Y - origin.Y
	if math.Abs(dx) < 1e-12 && math.Abs(dy) < 1e-12 {
		return Point{}, false
	}

	bestT := math.Inf(1)
	var best Point
	found := false

	if math.Abs(dx) > 1e-12 {
		for _, x := range [2]float64{r.MinX, r.MaxX} {
			t := (x - origin.X) / dx
			if t <= 1e-12 {
				continue
			}
			y := origin.Y + t*dy
			if y >= r.MinY-epsilon && y <= r.MaxY+epsilon && t < bestT {
				bestT, best, found = t, Point{X: x, Y: y}, true
			}
		}
	}
	if math.Abs(dy) > 1e-12 {
		for _, y := range [2]float64{r.MinY, r.MaxY} {
			t := (y - origin.Y) / dy
			if t <= 1e-12 {
				continue
			}
			x := origin.X + t*dx
			if x >= r.MinX-epsilon && x <= r.MaxX+epsilon && t < bestT {
				bestT, best, found = t, Point{X: x, Y: y}, true
			}
		}
	}
	return best, found
}

// Affine is a 2D affine transform in SVG matrix order (a b c d e f):
//
//	| a c e |
//	| b d f |
type Affine struct {
	A, B, C, D, E, F float64
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{A: 1, D: 1}
}

// Translation returns a translation transform.
func Translation(tx, ty float64) Affine {
	return Affine{A: 1, D: 1, E: tx, F: ty}
}

// Scaling returns a scaling transform.
func Scaling(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Rotation returns a rotation transform by the given angle in degrees.
func Rotation(deg float64) Affine {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return Affine{A: cos, B: sin, C: -sin, D: cos}
}

// Mul composes two transforms: the result applies m2 first, then m.
func (m Affine) Mul(m2 Affine) Affine {
	return Affine{
		A: m.A*m2.A + m.C*m2.B,
		B: m.B*m2.A + m.D*m2.B,
		C: m.A*m2.C + m.C*m2.D,
		D: m.B*m2.C + m.D*m2.D,
		E: m.A*m2.E + m.C*m2.F + m.E,
		F: m.B*m2.E + m.D*m2.F + m.F,
	}
}

// Apply transforms a point.
func (m Affine) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// ApplyRect transforms a rect and returns the axis-aligned bounding rect
// of the four transformed corners.
func (m Affine) ApplyRect(r Rect) Rect {
	corners := [4]Point{
		{r.MinX, r.MinY},
		{r.MaxX, r.MinY},
		{r.MinX, r.MaxY},
		{r.MaxX, r.MaxY},
	}
	out := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range corners {
		p := m.Apply(c)
		out.MinX = math.Min(out.MinX, p.X)
		out.MinY = math.Min(out.MinY, p.Y)
		out.MaxX = math.Max(out.MaxX, p.X)
		out.MaxY = math.Max(out.MaxY, p.Y)
	}
	return out
}

// Invert returns the inverse transform, or false for a singular matrix.
func (m Affine) Invert() (Affine, bool) {
	det := m.A*m.D - m.B*m.C
	if math.Abs(det) < 1e-12 {
		return Affine{}, false
	}
	inv := 1 / det
	ai := m.D * inv
	bi := -m.B * inv
	ci := -m.C * inv
	di := m.A * inv
	return Affine{
		A: ai,
		B: bi,
		C: ci,
		D: di,
		E: -(ai*m.E + ci*m.F),
		F: -(bi*m.E + di*m.F),
	}, true
}

var transformRe = regexp.MustCompile(`([a-zA-Z]+)\s*\(([^)]*)\)`)

var numSplitRe = regexp.MustCompile(`[,\s]+`)

// ParseTransform parses an SVG transform attribute (translate, scale,
// rotate, matrix, skewX, skewY) into a composed Affine. Unknown
// functions and malformed argument lists are skipped, matching lenient
// SVG consumer behavior.
func ParseTransform(transform string) Affine {
	m := Identity()
	for _, match := range transformRe.FindAllStringSubmatch(transform, -1) {
		name := strings.ToLower(match[1])
		var vals []float64
		for _, chunk := range numSplitRe.Split(strings.TrimSpace(match[2]), -1) {
			if chunk == "" {
				continue
			}
			v, err := strconv.ParseFloat(chunk, 64)
			if err != nil {
				continue
			}
			vals = append(vals, v)
		}

		var t Affine
		switch {
		case name == "matrix" && len(vals) == 6:
			t = Affine{A: vals[0], B: vals[1], C: vals[2], D: vals[3], E: vals[4], F: vals[5]}
		case name == "translate" && len(vals) >= 1:
			ty := 0.0
			if len(vals) > 1 {
				ty = vals[1]
			}
			t = Translation(vals[0], ty)
		case name == "scale" && len(vals) >= 1:
			sy := vals[0]
			if len(vals) > 1 {
				sy = vals[1]
			}
			t = Scaling(vals[0], sy)
		case name == "rotate" && len(vals) >= 1:
			if len(vals) >= 3 {
				// rotate(a cx cy) rotates about the given center.
				t = Translation(vals[1], vals[2]).Mul(Rotation(vals[0])).Mul(Translation(-vals[1], -vals[2]))
			} else {
				t = Rotation(vals[0])
			}
		case name == "skewx" && len(vals) == 1:
			t = Affine{A: 1, C: math.Tan(vals[0] * math.Pi / 180), D: 1}
		case name == "skewy" && len(vals) == 1:
			t = Affine{A: 1, B: math.Tan(vals[0] * math.Pi / 180), D: 1}
		default:
			continue
		}
		m = m.Mul(t)
	}
	return m
}
