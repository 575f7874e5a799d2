// Package registration drives the external elastix and transformix
// executables. The morphology core only needs a few of its operations; the
// rest of the capability set is exposed for callers that propagate
// reference masks back to subject space.
package registration

import (
	"errors"
	"fmt"
)

// ErrNotApplicable is returned by steps an anatomy does not have, such as
// the rigid stage of cartilage, which reuses the bone's transforms
var ErrNotApplicable = errors.New("registration step not applicable for this anatomy")

// ServiceFailure reports an external step that did not produce its
// expected output
type ServiceFailure struct {
	Tool   string
	Step   string
	Output string
	Err    error
}

func (e *ServiceFailure) Error() string {
	msg := fmt.Sprintf("%s %s did not produce %s", e.Tool, e.Step, e.Output)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ServiceFailure) Unwrap() error { return e.Err }

// Paths names the files of registering one moving image onto a reference
type Paths struct {
	// Reference is the fixed image
	Reference string

	// ReferenceMask is the dilated reference mask restricting the metric
	ReferenceMask string

	// Levelset is the reference mask as a level set, warped back onto the
	// moving image by the inverse chain
	Levelset string

	// Moving is the image registered onto the reference
	Moving string

	// Folder receives the forward results, InverseFolder the inverse ones
	Folder        string
	InverseFolder string

	// VectorField is where the deformation field is stored
	VectorField string

	// Size and Spacing of the moving image; the inverted rigid transform
	// resamples onto this lattice
	Size    [3]int
	Spacing [3]float64
}

// ReferenceFiles names the masks derived from a reference mask
type ReferenceFiles struct {
	Mask         string
	DilatedMask  string
	Levelset     string
	DilateRadius int
}

// Registrar is the set of registration steps of one anatomy
type Registrar interface {
	Rigid(p Paths) error
	Similarity(p Paths) error
	Spline(p Paths) error

	InverseRigid(p Paths) error
	InverseSimilarity(p Paths) error
	InverseSpline(p Paths) error

	WarpRigid(p Paths) error
	WarpSimilarity(p Paths) error
	WarpSpline(p Paths) error

	// VectorField writes the deformation field of the spline stage to
	// p.VectorField
	VectorField(p Paths) error

	// PrepareReference dilates the reference mask and converts it to a
	// level set
	PrepareReference(f ReferenceFiles) error
}
