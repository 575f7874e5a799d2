package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	// collinearTolerance is the smallest accepted ratio between the minor
	// and major eigenvalues of the point covariance
	collinearTolerance = 1e-10

	circleMaxIterations = 200
)

// Circle is a fitted circle in the (column, row) plane of a slice; Center.Z
// is always zero.
type Circle struct {
	Center r3.Vector
	Radius float64
}

// FitCircle finds the circle minimising the spread of the distances from
// its centre to the points, sum((R_i - mean(R))^2). The algebraic fit seeds
// a damped Gauss-Newton refinement of the centre.
func FitCircle(x, y []float64) (Circle, error) {
	if len(x) != len(y) {
		return Circle{}, &FitError{Shape: "circle", Reason: "coordinate slices differ in length"}
	}
	n := len(x)
	if n < 3 {
		return Circle{}, &FitError{Shape: "circle", Reason: "fewer than 3 points"}
	}
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			return Circle{}, &FitError{Shape: "circle", Reason: "non-finite coordinate"}
		}
	}

	pts := mat.NewDense(n, 2, nil)
	for i := range x {
		pts.Set(i, 0, x[i])
		pts.Set(i, 1, y[i])
	}
	if collinear(pts) {
		return Circle{}, &FitError{Shape: "circle", Reason: "points are collinear"}
	}

	mx, my := stat.Mean(x, nil), stat.Mean(y, nil)
	cx, cy, err := algebraicCircle(x, y, mx, my)
	if err != nil {
		return Circle{}, err
	}
	cx, cy = refineCircle(x, y, cx, cy)

	r := meanRadius(x, y, cx, cy)
	if !finite(cx) || !finite(cy) || !finite(r) {
		return Circle{}, &FitError{Shape: "circle", Reason: "fit did not converge to a finite circle"}
	}
	return Circle{Center: r3.Vector{X: cx, Y: cy}, Radius: r}, nil
}

func collinear(pts *mat.Dense) bool {
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, pts, nil)

	var es mat.EigenSym
	if !es.Factorize(&cov, false) {
		return true
	}
	vals := es.Values(nil)
	if vals[1] <= 0 {
		return true
	}
	return vals[0]/vals[1] < collinearTolerance
}

// algebraicCircle solves u^2 + v^2 = a*u + b*v + c in the least-squares
// sense on coordinates centred at (mx, my).
func algebraicCircle(x, y []float64, mx, my float64) (float64, float64, error) {
	n := len(x)
	a := mat.NewDense(n, 3, nil)
	rhs := mat.NewDense(n, 1, nil)
	for i := range x {
		u, v := x[i]-mx, y[i]-my
		a.Set(i, 0, u)
		a.Set(i, 1, v)
		a.Set(i, 2, 1)
		rhs.Set(i, 0, u*u+v*v)
	}

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, rhs); err != nil {
		return 0, 0, &FitError{Shape: "circle", Reason: "algebraic system is singular"}
	}
	return mx + sol.At(0, 0)/2, my + sol.At(1, 0)/2, nil
}

// refineCircle runs Levenberg-Marquardt on the centre, with residuals
// R_i - mean(R).
func refineCircle(x, y []float64, cx, cy float64) (float64, float64) {
	n := len(x)
	res := make([]float64, n)
	jac := mat.NewDense(n, 2, nil)
	lambda := 1e-3

	cost := circleResiduals(x, y, cx, cy, res, nil)
	for iter := 0; iter < circleMaxIterations; iter++ {
		circleResiduals(x, y, cx, cy, res, jac)

		var jtj mat.Dense
		jtj.Mul(jac.T(), jac)
		var jtr mat.VecDense
		jtr.MulVec(jac.T(), mat.NewVecDense(n, res))

		improved := false
		for attempt := 0; attempt < 20; attempt++ {
			h := mat.DenseCopyOf(&jtj)
			h.Set(0, 0, jtj.At(0, 0)*(1+lambda))
			h.Set(1, 1, jtj.At(1, 1)*(1+lambda))

			var step mat.VecDense
			if err := step.SolveVec(h, &jtr); err != nil {
				lambda *= 10
				continue
			}
			nx, ny := cx-step.AtVec(0), cy-step.AtVec(1)
			nc := circleResiduals(x, y, nx, ny, res, nil)
			if nc < cost {
				done := math.Hypot(step.AtVec(0), step.AtVec(1)) <= 1e-12*(1+math.Hypot(cx, cy))
				cx, cy, cost = nx, ny, nc
				lambda /= 10
				improved = true
				if done {
					return cx, cy
				}
				break
			}
			lambda *= 10
		}
		if !improved {
			break
		}
	}
	return cx, cy
}

// circleResiduals fills res with R_i - mean(R) and, when jac is not nil,
// the derivatives of the residuals with respect to the centre. It returns
// the sum of squared residuals.
func circleResiduals(x, y []float64, cx, cy float64, res []float64, jac *mat.Dense) float64 {
	n := len(x)
	mean := meanRadius(x, y, cx, cy)
	var cost, mdx, mdy float64
	for i := range x {
		dx, dy := x[i]-cx, y[i]-cy
		r := math.Hypot(dx, dy)
		res[i] = r - mean
		cost += res[i] * res[i]
		if jac != nil {
			var gx, gy float64
			if r > 0 {
				gx, gy = -dx/r, -dy/r
			}
			jac.Set(i, 0, gx)
			jac.Set(i, 1, gy)
			mdx += gx
			mdy += gy
		}
	}
	if jac != nil {
		mdx /= float64(n)
		mdy /= float64(n)
		for i := 0; i < n; i++ {
			jac.Set(i, 0, jac.At(i, 0)-mdx)
			jac.Set(i, 1, jac.At(i, 1)-mdy)
		}
	}
	return cost
}

func meanRadius(x, y []float64, cx, cy float64) float64 {
	var sum float64
	for i := range x {
		sum += math.Hypot(x[i]-cx, y[i]-cy)
	}
	return sum / float64(len(x))
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
