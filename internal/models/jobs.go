package models

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SeparationJob separates and flattens the cartilage surfaces of one subject
type SeparationJob struct {
	Subject        Subject
	MinRegionArea  int
	CylinderStride int
	WriteNPY       bool
}

// Validate checks the job's required fields
func (j SeparationJob) Validate() error {
	if err := j.Subject.Validate(); err != nil {
		return err
	}
	if j.MinRegionArea < 1 || j.CylinderStride < 1 {
		return errors.Errorf("separation job %s: region area and cylinder stride must be positive", j.Subject.MaskName)
	}
	return nil
}

// ThicknessJob measures thickness from previously separated surfaces
type ThicknessJob struct {
	Subject   Subject
	Algorithm ThicknessAlgorithm
	// UseKDTree swaps the brute-force search for a spatial index
	UseKDTree bool
	// RenderMap writes a PNG of the flattened thickness
	RenderMap bool
}

// Validate checks the job's required fields
func (j ThicknessJob) Validate() error {
	if err := j.Subject.Validate(); err != nil {
		return err
	}
	if j.Algorithm != AtBoneSurface && j.Algorithm != AtArticularSurface {
		return errors.Errorf("thickness job %s: algorithm must be 1 or 2, got %d", j.Subject.MaskName, j.Algorithm)
	}
	return nil
}

// VolumeJob computes the cartilage volume of one subject
type VolumeJob struct {
	Subject Subject
}

// Validate checks the job's required fields
func (j VolumeJob) Validate() error { return j.Subject.Validate() }

// CohortMember is one image taking part in the reference search
type CohortMember struct {
	// Folder contains the image and its mask
	Folder string

	// Name is the image file name, e.g. 01_DESS_01_prep.mha
	Name string

	// MaskName overrides the mask derived from Name
	MaskName string
}

// Root is the image name without its extension
func (m CohortMember) Root() string {
	return strings.TrimSuffix(m.Name, filepath.Ext(m.Name))
}

// Mask returns the bone mask file name; by convention "..._prep.mha" has
// its femur mask in "..._f.mha".
func (m CohortMember) Mask() string {
	if m.MaskName != "" {
		return m.MaskName
	}
	return strings.Replace(m.Name, "prep.mha", "f.mha", 1)
}

func (m CohortMember) ImagePath() string { return filepath.Join(m.Folder, m.Name) }
func (m CohortMember) MaskPath() string  { return filepath.Join(m.Folder, m.Mask()) }

// VectorFieldName is the file the member's deformation field is stored in
func (m CohortMember) VectorFieldName() string { return m.Root() + "_VF.mha" }

// Validate checks the member's required fields
func (m CohortMember) Validate() error {
	if m.Name == "" {
		return errors.New("cohort member has no image name")
	}
	if m.Mask() == m.Name {
		return errors.Errorf("cohort member %s: cannot derive a mask name, set MaskName", m.Name)
	}
	return nil
}

// Standard file names inside a reference folder
const (
	ReferenceImageName    = "reference.mha"
	ReferenceMaskName     = "reference_f.mha"
	ReferenceLevelsetName = "reference_f_levelSet.mha"
)

// ConvergenceIterationContext describes where one iteration of the
// reference search materializes its candidate and collects its fields.
type ConvergenceIterationContext struct {
	Iteration    int
	Reference    CohortMember
	Workspace    string
	DilateRadius int
}

// Folder is <workspace>/<iteration>_<reference root>
func (c ConvergenceIterationContext) Folder() string {
	return filepath.Join(c.Workspace, fmt.Sprintf("%d_%s", c.Iteration, c.Reference.Root()))
}

func (c ConvergenceIterationContext) ReferenceImagePath() string {
	return filepath.Join(c.Folder(), ReferenceImageName)
}

func (c ConvergenceIterationContext) ReferenceMaskPath() string {
	return filepath.Join(c.Folder(), ReferenceMaskName)
}

// DilatedMaskPath is the mask restricting the distance computation
func (c ConvergenceIterationContext) DilatedMaskPath() string {
	return filepath.Join(c.Folder(), fmt.Sprintf("reference_f_%d.mha", c.DilateRadius))
}

func (c ConvergenceIterationContext) LevelsetMaskPath() string {
	return filepath.Join(c.Folder(), ReferenceLevelsetName)
}

// RegisteredFolder is the per-member scratch folder of the registration
func (c ConvergenceIterationContext) RegisteredFolder(m CohortMember) string {
	return filepath.Join(c.Folder(), m.Root())
}

// VectorFieldPath is where the member's deformation field ends up
func (c ConvergenceIterationContext) VectorFieldPath(m CohortMember) string {
	return filepath.Join(c.Folder(), m.VectorFieldName())
}

// Validate checks the context's required fields
func (c ConvergenceIterationContext) Validate() error {
	if c.Iteration < 1 {
		return errors.Errorf("iteration must start at 1, got %d", c.Iteration)
	}
	if c.Workspace == "" {
		return errors.New("iteration context has no workspace")
	}
	if c.DilateRadius < 0 {
		return errors.Errorf("dilate radius must not be negative, got %d", c.DilateRadius)
	}
	return c.Reference.Validate()
}
