package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
)

// AxisAlignment returns the rotation that maps axis onto +x: a rotation
// about z by psi = -atan2(a_y, a_x) followed by one about y by
// theta = atan2(a_z', a_x').
func AxisAlignment(axis r3.Vector) *mat.Dense {
	psi := -math.Atan2(axis.Y, axis.X)
	rz := mat.NewDense(3, 3, []float64{
		math.Cos(psi), -math.Sin(psi), 0,
		math.Sin(psi), math.Cos(psi), 0,
		0, 0, 1,
	})

	var a mat.VecDense
	a.MulVec(rz, mat.NewVecDense(3, []float64{axis.X, axis.Y, axis.Z}))
	theta := math.Atan2(a.AtVec(2), a.AtVec(0))
	ry := mat.NewDense(3, 3, []float64{
		math.Cos(theta), 0, math.Sin(theta),
		0, 1, 0,
		-math.Sin(theta), 0, math.Cos(theta),
	})

	var r mat.Dense
	r.Mul(ry, rz)
	return &r
}

// AlignToAxis translates points so that c.Center is the origin and rotates
// them so that c.Axis becomes +x.
func AlignToAxis(points []r3.Vector, c Cylinder) []r3.Vector {
	if len(points) == 0 {
		return nil
	}
	rot := AxisAlignment(c.Axis)

	src := mat.NewDense(3, len(points), nil)
	for j, p := range points {
		d := p.Sub(c.Center)
		src.Set(0, j, d.X)
		src.Set(1, j, d.Y)
		src.Set(2, j, d.Z)
	}
	var dst mat.Dense
	dst.Mul(rot, src)

	out := make([]r3.Vector, len(points))
	for j := range out {
		out[j] = r3.Vector{X: dst.At(0, j), Y: dst.At(1, j), Z: dst.At(2, j)}
	}
	return out
}
