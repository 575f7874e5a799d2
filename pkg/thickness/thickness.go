// Package thickness measures cartilage thickness as the distance from every
// point of one surface to the closest point of the other.
package thickness

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"

	"kneemorph/pkg/geometry"
)

// ErrEmptyCompanion is returned when the surface distances are measured to
// has no points
var ErrEmptyCompanion = errors.New("companion surface has no points")

// Func computes one non-negative distance per point of a, in order
type Func func(a, b geometry.PointCloud) ([]float64, error)

// NearestNeighbor compares every point of a with every point of b
func NearestNeighbor(a, b geometry.PointCloud) ([]float64, error) {
	if a.Len() == 0 {
		return []float64{}, nil
	}
	if b.Len() == 0 {
		return nil, ErrEmptyCompanion
	}

	out := make([]float64, a.Len())
	for i, p := range a.Points {
		best := math.Inf(1)
		for _, q := range b.Points {
			if d := p.Sub(q).Norm2(); d < best {
				best = d
			}
		}
		out[i] = math.Sqrt(best)
	}
	return out, nil
}

// Summary describes a thickness field
type Summary struct {
	Mean float64
	Std  float64
}

// Summarize returns the mean and sample standard deviation of values
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean, std := stat.MeanStdDev(values, nil)
	if len(values) == 1 {
		std = 0
	}
	return Summary{Mean: mean, Std: std}
}
