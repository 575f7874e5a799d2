package thickness

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"

	"kneemorph/pkg/geometry"
)

func TestNearestNeighborPicksMinimum(t *testing.T) {
	a := geometry.PointCloud{Points: []r3.Vector{{}}}
	b := geometry.PointCloud{Points: []r3.Vector{{Z: 3}, {Y: 4}}}

	for name, fn := range map[string]Func{"brute": NearestNeighbor, "kdtree": KDTree} {
		got, err := fn(a, b)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(got) != 1 || got[0] != 3 {
			t.Errorf("%s: expected [3], got %v", name, got)
		}
	}
}

func TestNearestNeighborContract(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	random := func(n int) geometry.PointCloud {
		pts := make([]r3.Vector, n)
		for i := range pts {
			pts[i] = r3.Vector{X: rng.Float64() * 50, Y: rng.Float64() * 50, Z: rng.Float64() * 5}
		}
		return geometry.PointCloud{Points: pts}
	}
	a, b := random(300), random(200)
	// one coincident point
	a.Points[7] = b.Points[11]

	brute, err := NearestNeighbor(a, b)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := KDTree(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(brute) != a.Len() || len(tree) != a.Len() {
		t.Fatalf("Expected %d values, got %d and %d", a.Len(), len(brute), len(tree))
	}
	for i := range brute {
		if brute[i] < 0 {
			t.Errorf("Distance %d is negative: %g", i, brute[i])
		}
		if math.Abs(brute[i]-tree[i]) > 1e-12 {
			t.Errorf("Strategies disagree at %d: %g vs %g", i, brute[i], tree[i])
		}
	}
	if brute[7] != 0 {
		t.Errorf("Coincident point should have zero thickness, got %g", brute[7])
	}

	back, err := NearestNeighbor(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != b.Len() {
		t.Errorf("Reverse thickness should follow b, got %d values", len(back))
	}
}

func TestNearestNeighborEmpty(t *testing.T) {
	a := geometry.PointCloud{Points: []r3.Vector{{X: 1}}}
	if _, err := NearestNeighbor(a, geometry.PointCloud{}); !errors.Is(err, ErrEmptyCompanion) {
		t.Errorf("Expected ErrEmptyCompanion, got %v", err)
	}
	if _, err := KDTree(a, geometry.PointCloud{}); !errors.Is(err, ErrEmptyCompanion) {
		t.Errorf("Expected ErrEmptyCompanion, got %v", err)
	}
	got, err := NearestNeighbor(geometry.PointCloud{}, a)
	if err != nil || len(got) != 0 {
		t.Errorf("Empty input should give an empty field, got %v, %v", got, err)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})
	if s.Mean != 2.5 {
		t.Errorf("Expected mean 2.5, got %g", s.Mean)
	}
	if math.Abs(s.Std-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Errorf("Expected sample std %g, got %g", math.Sqrt(5.0/3.0), s.Std)
	}
	if one := Summarize([]float64{2}); one.Std != 0 {
		t.Errorf("A single value has zero spread, got %g", one.Std)
	}
}
