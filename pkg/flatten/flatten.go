// Package flatten unrolls a roughly cylindrical cartilage surface into a
// two-dimensional (axial, angular) representation.
package flatten

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"kneemorph/pkg/geometry"
	"kneemorph/pkg/surface"
)

// histogramBins is the resolution of the angular density used to locate
// the cut of the unrolled surface
const histogramBins = 100

// seamTolerance is how close to -pi and +pi the angles must reach for the
// surface to be considered split by the atan2 seam
const seamTolerance = 0.05

// Surface is an unrolled point cloud. Axial and Angular are parallel and
// grouped by angular bin in ascending bin order; Phi holds the bin of every
// input point in input order.
type Surface struct {
	Axial   []float64
	Angular []float64
	Phi     []float64

	// Cut is the angle below which 2*pi was added; HasCut is false when the
	// angular range was already contiguous
	Cut    float64
	HasCut bool

	Cylinder geometry.Cylinder
}

// Len is the number of flattened points
func (s *Surface) Len() int { return len(s.Axial) }

// Flattener fits a cylinder to a cloud and unrolls the cloud around it
type Flattener struct {
	// Stride is the subsampling of the cylinder fit
	Stride int
}

// FlattenPointCloud unrolls cloud with the default cylinder stride
func FlattenPointCloud(cloud geometry.PointCloud) (*Surface, error) {
	f := Flattener{Stride: geometry.DefaultCylinderStride}
	return f.Flatten(cloud)
}

// Flatten rotates the cloud so that its cylinder axis is x, then unrolls it
func (f Flattener) Flatten(cloud geometry.PointCloud) (*Surface, error) {
	if cloud.Len() == 0 {
		return nil, errors.Wrapf(surface.ErrEmptyRegion, "cannot flatten %s surface", cloud.Side)
	}
	cyl, err := geometry.FitCylinder(cloud.Points, f.Stride)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot flatten %s surface", cloud.Side)
	}

	s, err := Unroll(geometry.AlignToAxis(cloud.Points, cyl))
	if err != nil {
		return nil, err
	}
	s.Cylinder = cyl
	return s, nil
}

// Unroll flattens points that are already aligned with x: the angle
// atan2(z, y) rounded to two decimals is the bin of each point, bins are
// visited in ascending order, and each bin contributes the x coordinates of
// its points in input order.
func Unroll(points []r3.Vector) (*Surface, error) {
	if len(points) == 0 {
		return nil, errors.Wrap(surface.ErrEmptyRegion, "cannot unroll an empty cloud")
	}

	phi := make([]float64, len(points))
	for i, p := range points {
		phi[i] = binAngle(math.Atan2(p.Z, p.Y))
	}

	s := &Surface{Phi: phi}
	keys, groups := groupByBin(phi)
	for _, k := range keys {
		for _, i := range groups[k] {
			s.Axial = append(s.Axial, points[i].X)
			s.Angular = append(s.Angular, float64(k)/100)
		}
	}

	s.Cut, s.HasCut = findCut(s.Angular)
	if s.HasCut {
		for i, a := range s.Angular {
			if a < s.Cut {
				s.Angular[i] = a + 2*math.Pi
			}
		}
	}

	floats.AddConst(-floats.Min(s.Axial), s.Axial)
	floats.AddConst(-stat.Mean(s.Angular, nil), s.Angular)
	for _, v := range s.Angular {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.New("unrolled angles are not finite")
		}
	}
	return s, nil
}

// FlattenThickness regroups one value per point into the bin order used by
// Unroll for the same phi, so that the result lines up with the Axial and
// Angular arrays of the surface.
func FlattenThickness(values, phi []float64) ([]float64, error) {
	if len(values) != len(phi) {
		return nil, errors.Errorf("got %d values for %d angular bins", len(values), len(phi))
	}
	keys, groups := groupByBin(phi)
	out := make([]float64, 0, len(values))
	for _, k := range keys {
		for _, i := range groups[k] {
			out = append(out, values[i])
		}
	}
	return out, nil
}

// binAngle rounds an angle to two decimals
func binAngle(a float64) float64 { return float64(binKey(a)) / 100 }

func binKey(a float64) int { return int(math.Round(a * 100)) }

// groupByBin returns the sorted distinct bins of phi and, per bin, the
// indices of its points in input order.
func groupByBin(phi []float64) ([]int, map[int][]int) {
	groups := make(map[int][]int)
	for i, p := range phi {
		k := binKey(p)
		groups[k] = append(groups[k], i)
	}
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys, groups
}

// findCut builds a histogram of the angles and returns the lower edge of
// the middle bin of the empty run closest to angle zero. Surfaces that do
// not reach both sides of the +-pi seam are already contiguous.
func findCut(angles []float64) (float64, bool) {
	lo, hi := floats.Min(angles), floats.Max(angles)
	if lo > -math.Pi+seamTolerance || hi < math.Pi-seamTolerance {
		return 0, false
	}

	dividers := make([]float64, histogramBins+1)
	floats.Span(dividers, lo, hi)
	dividers[histogramBins] = math.Nextafter(hi, math.Inf(1))

	sorted := append([]float64(nil), angles...)
	sort.Float64s(sorted)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	best, bestDist := -1, math.Inf(1)
	for start := 0; start < len(counts); {
		if counts[start] != 0 {
			start++
			continue
		}
		end := start
		for end+1 < len(counts) && counts[end+1] == 0 {
			end++
		}
		centre := (dividers[start] + dividers[end+1]) / 2
		if d := math.Abs(centre); d < bestDist {
			best, bestDist = start+(end-start+1)/2, d
		}
		start = end + 1
	}
	if best < 0 {
		return 0, false
	}
	return dividers[best], true
}
