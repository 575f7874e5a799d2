package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// DefaultCylinderStride keeps every tenth point of a cloud for the fit
const DefaultCylinderStride = 10

// Cylinder is a fitted cylinder. Axis is a unit vector whose
// largest-magnitude component is non-negative; Center lies on the axis.
type Cylinder struct {
	Axis     r3.Vector
	Center   r3.Vector
	Radius   float64
	FitError float64
}

// cylinderStarts are the (theta, phi) directions the search begins from:
// z, x and y.
var cylinderStarts = [][]float64{
	{0, 0},
	{math.Pi / 2, 0},
	{math.Pi / 2, math.Pi / 2},
}

// FitCylinder fits a cylinder to every stride-th point of points, starting
// at the second point. For a fixed axis direction the centre and the
// radius spread have closed forms; the direction is searched with
// Nelder-Mead over spherical angles.
func FitCylinder(points []r3.Vector, stride int) (Cylinder, error) {
	if stride < 1 {
		stride = 1
	}
	var sample []r3.Vector
	for i := 1; i < len(points); i += stride {
		sample = append(sample, points[i])
	}
	if len(sample) < 3 {
		return Cylinder{}, &FitError{Shape: "cylinder", Reason: "fewer than 3 sampled points"}
	}

	var mean r3.Vector
	for _, p := range sample {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			return Cylinder{}, &FitError{Shape: "cylinder", Reason: "non-finite coordinate"}
		}
		mean = mean.Add(p)
	}
	mean = mean.Mul(1 / float64(len(sample)))
	centred := make([]r3.Vector, len(sample))
	for i, p := range sample {
		centred[i] = p.Sub(mean)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			fit, ok := cylinderForDirection(centred, direction(x[0], x[1]))
			if !ok {
				return math.Inf(1)
			}
			return fit.FitError
		},
	}
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{Absolute: 1e-12, Iterations: 200},
	}

	best := Cylinder{FitError: math.Inf(1)}
	for _, start := range cylinderStarts {
		init := append([]float64(nil), start...)
		result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
		if result == nil || (err != nil && !finite(result.F)) {
			continue
		}
		fit, ok := cylinderForDirection(centred, direction(result.X[0], result.X[1]))
		if ok && fit.FitError < best.FitError {
			best = fit
		}
	}
	if !finite(best.FitError) {
		return Cylinder{}, &FitError{Shape: "cylinder", Reason: "degenerate objective for every direction"}
	}

	best.Center = best.Center.Add(mean)
	best.Axis = canonicalAxis(best.Axis)
	return best, nil
}

// direction is the unit vector at polar angle theta and azimuth phi
func direction(theta, phi float64) r3.Vector {
	return r3.Vector{
		X: math.Cos(phi) * math.Sin(theta),
		Y: math.Sin(phi) * math.Sin(theta),
		Z: math.Cos(theta),
	}
}

// cylinderForDirection evaluates the closed-form centre, radius and error
// of the best cylinder with axis w through centred points.
func cylinderForDirection(points []r3.Vector, w r3.Vector) (Cylinder, bool) {
	n := float64(len(points))
	wv := mat.NewVecDense(3, []float64{w.X, w.Y, w.Z})

	// projection onto the plane orthogonal to w
	proj := mat.NewDense(3, 3, nil)
	proj.Outer(-1, wv, wv)
	for i := 0; i < 3; i++ {
		proj.Set(i, i, proj.At(i, i)+1)
	}
	skew := mat.NewDense(3, 3, []float64{
		0, -w.Z, w.Y,
		w.Z, 0, -w.X,
		-w.Y, w.X, 0,
	})

	ys := make([]r3.Vector, len(points))
	sqr := make([]float64, len(points))
	a := mat.NewDense(3, 3, nil)
	var b r3.Vector
	var u float64
	for i, p := range points {
		var y mat.VecDense
		y.MulVec(proj, mat.NewVecDense(3, []float64{p.X, p.Y, p.Z}))
		ys[i] = r3.Vector{X: y.AtVec(0), Y: y.AtVec(1), Z: y.AtVec(2)}
		sqr[i] = ys[i].Norm2()
		a.RankOne(a, 1/n, &y, &y)
		b = b.Add(ys[i].Mul(sqr[i] / n))
		u += sqr[i] / n
	}

	var sa, aHat mat.Dense
	sa.Mul(skew, a)
	aHat.Mul(&sa, skew.T())

	var prod mat.Dense
	prod.Mul(&aHat, a)
	tr := mat.Trace(&prod)
	if math.Abs(tr) < 1e-300 {
		return Cylinder{}, false
	}

	var pc mat.VecDense
	pc.MulVec(&aHat, mat.NewVecDense(3, []float64{b.X, b.Y, b.Z}))
	pc.ScaleVec(1/tr, &pc)
	centre := r3.Vector{X: pc.AtVec(0), Y: pc.AtVec(1), Z: pc.AtVec(2)}

	var g float64
	for i := range ys {
		t := sqr[i] - u - 2*ys[i].Dot(centre)
		g += t * t
	}
	g /= n

	r2 := u + centre.Norm2()
	if !finite(g) || r2 < 0 {
		return Cylinder{}, false
	}
	return Cylinder{Axis: w, Center: centre, Radius: math.Sqrt(r2), FitError: g}, true
}

// canonicalAxis flips v so its largest-magnitude component is non-negative
func canonicalAxis(v r3.Vector) r3.Vector {
	v = v.Normalize()
	largest := v.X
	if math.Abs(v.Y) > math.Abs(largest) {
		largest = v.Y
	}
	if math.Abs(v.Z) > math.Abs(largest) {
		largest = v.Z
	}
	if largest < 0 {
		return v.Mul(-1)
	}
	return v
}
