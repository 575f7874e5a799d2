// Package volume holds the 3-D grids the morphology core reads: binary
// segmentation masks and displacement (vector) fields, together with their
// physical metadata.
package volume

import (
	"github.com/pkg/errors"
)

// Grid is the voxel lattice and physical placement shared by every volume.
// Voxel (x, y, z) is stored at x + Size[0]*(y + Size[1]*z).
type Grid struct {
	// Size is the number of voxels along x, y and z
	Size [3]int

	// Spacing is the physical voxel size in mm along x, y and z
	Spacing [3]float64

	// Origin is the physical position of voxel (0, 0, 0)
	Origin [3]float64

	// Direction holds the direction cosines in row-major order
	Direction [9]float64
}

// NewGrid returns a grid with identity direction and zero origin
func NewGrid(size [3]int, spacing [3]float64) Grid {
	return Grid{
		Size:      size,
		Spacing:   spacing,
		Direction: [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
	}
}

// Len is the number of voxels
func (g Grid) Len() int { return g.Size[0] * g.Size[1] * g.Size[2] }

// Index is the linear position of voxel (x, y, z)
func (g Grid) Index(x, y, z int) int { return x + g.Size[0]*(y+g.Size[1]*z) }

// SameLattice reports whether two grids have the same size
func (g Grid) SameLattice(o Grid) bool { return g.Size == o.Size }

func (g Grid) validate() error {
	for i, n := range g.Size {
		if n <= 0 {
			return errors.Errorf("dimension %d has non-positive size %d", i, n)
		}
		if g.Spacing[i] <= 0 {
			return errors.Errorf("dimension %d has non-positive spacing %g", i, g.Spacing[i])
		}
	}
	return nil
}

// Mask is a binary segmentation; any non-zero voxel is labelled
type Mask struct {
	Grid
	Data []uint8
}

// NewMask allocates an empty mask
func NewMask(size [3]int, spacing [3]float64) *Mask {
	g := NewGrid(size, spacing)
	return &Mask{Grid: g, Data: make([]uint8, g.Len())}
}

// At returns the label of voxel (x, y, z)
func (m *Mask) At(x, y, z int) uint8 { return m.Data[m.Index(x, y, z)] }

// Set labels voxel (x, y, z)
func (m *Mask) Set(x, y, z int, v uint8) { m.Data[m.Index(x, y, z)] = v }

// CountNonZero is the number of labelled voxels
func (m *Mask) CountNonZero() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// VolumeMM3 is the labelled volume in cubic millimetres
func (m *Mask) VolumeMM3() float64 {
	return float64(m.CountNonZero()) * m.Spacing[0] * m.Spacing[1] * m.Spacing[2]
}

// Field is a grid of float32 vectors with a fixed number of components per
// voxel. Displacement fields have three components; level sets have one.
type Field struct {
	Grid
	Components int
	Data       []float32
}

// NewField allocates a zero field
func NewField(size [3]int, spacing [3]float64, components int) *Field {
	g := NewGrid(size, spacing)
	return &Field{Grid: g, Components: components, Data: make([]float32, g.Len()*components)}
}

// Vector returns the components stored at voxel index i
func (f *Field) Vector(i int) []float32 {
	return f.Data[i*f.Components : (i+1)*f.Components]
}
