package thickness

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"

	"kneemorph/pkg/geometry"
)

// point adapts r3.Vector to kdtree.Comparable
type point r3.Vector

// Compare implements the kdtree.Comparable interface
func (p point) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(point)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance
func (p point) Distance(c kdtree.Comparable) float64 {
	return r3.Vector(p).Sub(r3.Vector(c.(point))).Norm2()
}

// points satisfies kdtree.Interface
type points []point

func (p points) Index(i int) kdtree.Comparable         { return p[i] }
func (p points) Len() int                              { return len(p) }
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p points) Pivot(d kdtree.Dim) int {
	plane := pointPlane{points: p, Dim: d}
	return kdtree.Partition(plane, kdtree.MedianOfRandoms(plane, 100))
}

// pointPlane implements kdtree.SortSlicer for points along one dimension
type pointPlane struct {
	points
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	return p.points[i].Compare(p.points[j], p.Dim) < 0
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{points: p.points[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}

// KDTree gives the same result as NearestNeighbor by querying a KD-tree
// built over b.
func KDTree(a, b geometry.PointCloud) ([]float64, error) {
	if a.Len() == 0 {
		return []float64{}, nil
	}
	if b.Len() == 0 {
		return nil, ErrEmptyCompanion
	}

	data := make(points, b.Len())
	for i, q := range b.Points {
		data[i] = point(q)
	}
	tree := kdtree.New(data, false)

	out := make([]float64, a.Len())
	for i, p := range a.Points {
		_, d := tree.Nearest(point(p))
		out[i] = math.Sqrt(d)
	}
	return out, nil
}
