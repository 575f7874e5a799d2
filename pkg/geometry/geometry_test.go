package geometry

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
)

func arcPoints(cx, cy, r, from, to float64, n int) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a := from + (to-from)*float64(i)/float64(n-1)
		x[i] = cx + r*math.Cos(a)
		y[i] = cy + r*math.Sin(a)
	}
	return x, y
}

func TestFitCircleExact(t *testing.T) {
	x, y := arcPoints(12.5, -3, 7, 0, 2*math.Pi, 40)
	c, err := FitCircle(x, y)
	if err != nil {
		t.Fatalf("FitCircle failed: %v", err)
	}
	if math.Abs(c.Center.X-12.5) > 1e-6 || math.Abs(c.Center.Y+3) > 1e-6 {
		t.Errorf("Expected centre (12.5, -3), got (%g, %g)", c.Center.X, c.Center.Y)
	}
	if math.Abs(c.Radius-7) > 1e-6 {
		t.Errorf("Expected radius 7, got %g", c.Radius)
	}
}

func TestFitCircleArcWithNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x, y := arcPoints(40, 25, 20, 0.2, 2.4, 60)
	for i := range x {
		x[i] += rng.NormFloat64() * 0.05
		y[i] += rng.NormFloat64() * 0.05
	}
	c, err := FitCircle(x, y)
	if err != nil {
		t.Fatalf("FitCircle failed: %v", err)
	}
	if math.Hypot(c.Center.X-40, c.Center.Y-25) > 0.5 {
		t.Errorf("Centre too far from (40, 25): (%g, %g)", c.Center.X, c.Center.Y)
	}
	if math.Abs(c.Radius-20) > 0.5 {
		t.Errorf("Expected radius close to 20, got %g", c.Radius)
	}
}

func TestFitCircleOrderInvariant(t *testing.T) {
	x, y := arcPoints(3, 4, 5, 0.1, 2.0, 25)
	for i := range x {
		x[i] += 0.02 * math.Sin(float64(i)*1.7)
	}
	first, err := FitCircle(x, y)
	if err != nil {
		t.Fatalf("FitCircle failed: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	perm := rng.Perm(len(x))
	px := make([]float64, len(x))
	py := make([]float64, len(y))
	for i, j := range perm {
		px[i], py[i] = x[j], y[j]
	}
	second, err := FitCircle(px, py)
	if err != nil {
		t.Fatalf("FitCircle failed on permuted input: %v", err)
	}

	if first.Center.Sub(second.Center).Norm() > 1e-6 || math.Abs(first.Radius-second.Radius) > 1e-6 {
		t.Errorf("Fit depends on point order: %+v vs %+v", first, second)
	}
}

func TestFitCircleRejectsDegenerateInput(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
	}{
		{"two points", []float64{0, 1}, []float64{0, 1}},
		{"collinear", []float64{0, 1, 2, 3}, []float64{0, 2, 4, 6}},
		{"coincident", []float64{1, 1, 1}, []float64{2, 2, 2}},
		{"nan", []float64{0, 1, math.NaN()}, []float64{0, 1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitCircle(tt.x, tt.y)
			var fe *FitError
			if !errors.As(err, &fe) {
				t.Errorf("Expected a FitError, got %v", err)
			}
		})
	}
}

// cylinderCloud samples a cylinder with the given axis, centre and radius
func cylinderCloud(axis, centre r3.Vector, radius, length float64, rings, perRing int) []r3.Vector {
	axis = axis.Normalize()
	u := axis.Ortho()
	v := axis.Cross(u)
	var pts []r3.Vector
	for i := 0; i < rings; i++ {
		h := -length/2 + length*float64(i)/float64(rings-1)
		for j := 0; j < perRing; j++ {
			a := 2 * math.Pi * float64(j) / float64(perRing)
			p := centre.Add(axis.Mul(h)).Add(u.Mul(radius * math.Cos(a))).Add(v.Mul(radius * math.Sin(a)))
			pts = append(pts, p)
		}
	}
	return pts
}

func TestFitCylinderRecoversAxis(t *testing.T) {
	tests := []struct {
		name string
		axis r3.Vector
	}{
		{"x", r3.Vector{X: 1}},
		{"z", r3.Vector{Z: 1}},
		{"oblique", r3.Vector{X: 1, Y: 0.3, Z: -0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			centre := r3.Vector{X: 10, Y: -4, Z: 22}
			pts := cylinderCloud(tt.axis, centre, 15, 40, 30, 36)

			c, err := FitCylinder(pts, 1)
			if err != nil {
				t.Fatalf("FitCylinder failed: %v", err)
			}
			want := canonicalAxis(tt.axis)
			if math.Abs(c.Axis.Dot(want)) < 0.999 {
				t.Errorf("Expected axis %v, got %v", want, c.Axis)
			}
			if math.Abs(c.Radius-15) > 0.05 {
				t.Errorf("Expected radius 15, got %g", c.Radius)
			}
			// the centre may slide along the axis
			off := c.Center.Sub(centre)
			perp := off.Sub(want.Mul(off.Dot(want)))
			if perp.Norm() > 0.05 {
				t.Errorf("Centre is %g mm off the axis", perp.Norm())
			}
		})
	}
}

func TestFitCylinderAxisSignIsCanonical(t *testing.T) {
	pts := cylinderCloud(r3.Vector{X: -1, Y: 0.1}, r3.Vector{}, 10, 30, 20, 24)
	c, err := FitCylinder(pts, DefaultCylinderStride)
	if err != nil {
		t.Fatalf("FitCylinder failed: %v", err)
	}
	if c.Axis.X < 0 {
		t.Errorf("Largest axis component should be non-negative, got %v", c.Axis)
	}
	if math.Abs(c.Axis.Norm()-1) > 1e-9 {
		t.Errorf("Axis should be a unit vector, got norm %g", c.Axis.Norm())
	}
}

func TestFitCylinderTooFewPoints(t *testing.T) {
	pts := []r3.Vector{{X: 1}, {Y: 1}, {Z: 1}, {X: 2}}
	_, err := FitCylinder(pts, 10)
	var fe *FitError
	if !errors.As(err, &fe) {
		t.Errorf("Expected a FitError, got %v", err)
	}
}

func TestAlignToAxis(t *testing.T) {
	axis := r3.Vector{X: 1, Y: 2, Z: 2}.Normalize()
	c := Cylinder{Axis: axis, Center: r3.Vector{X: 1, Y: 1, Z: 1}}
	pts := []r3.Vector{c.Center.Add(axis.Mul(3)), c.Center}

	out := AlignToAxis(pts, c)
	if math.Abs(out[0].X-3) > 1e-12 || math.Abs(out[0].Y) > 1e-12 || math.Abs(out[0].Z) > 1e-12 {
		t.Errorf("Point on the axis should map to (3, 0, 0), got %v", out[0])
	}
	if out[1].Norm() > 1e-12 {
		t.Errorf("Centre should map to the origin, got %v", out[1])
	}
}

func TestAxisAlignmentIsRotation(t *testing.T) {
	rot := AxisAlignment(r3.Vector{X: 0, Y: 0, Z: 1})
	det := rot.At(0, 0)*(rot.At(1, 1)*rot.At(2, 2)-rot.At(1, 2)*rot.At(2, 1)) -
		rot.At(0, 1)*(rot.At(1, 0)*rot.At(2, 2)-rot.At(1, 2)*rot.At(2, 0)) +
		rot.At(0, 2)*(rot.At(1, 0)*rot.At(2, 1)-rot.At(1, 1)*rot.At(2, 0))
	if math.Abs(det-1) > 1e-12 {
		t.Errorf("Expected determinant 1, got %g", det)
	}
	if math.Abs(rot.At(0, 2)-1) > 1e-12 {
		t.Errorf("z should map onto x, got row %v", []float64{rot.At(0, 0), rot.At(0, 1), rot.At(0, 2)})
	}
}

func TestSegmentsIntersect(t *testing.T) {
	tests := []struct {
		name       string
		a, b, c, d r2.Point
		want       bool
	}{
		{"crossing", r2.Point{X: 0, Y: 0}, r2.Point{X: 2, Y: 2}, r2.Point{X: 0, Y: 2}, r2.Point{X: 2, Y: 0}, true},
		{"parallel", r2.Point{X: 0, Y: 0}, r2.Point{X: 2, Y: 0}, r2.Point{X: 0, Y: 1}, r2.Point{X: 2, Y: 1}, false},
		{"apart", r2.Point{X: 0, Y: 0}, r2.Point{X: 1, Y: 1}, r2.Point{X: 3, Y: 0}, r2.Point{X: 4, Y: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentsIntersect(tt.a, tt.b, tt.c, tt.d); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSideString(t *testing.T) {
	if BoneSide.String() != "bone" || ArticularSide.String() != "articular" {
		t.Errorf("Unexpected side names %q %q", BoneSide, ArticularSide)
	}
}
