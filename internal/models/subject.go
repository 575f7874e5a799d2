// Package models holds the typed per-stage records that flow through the
// morphology pipeline and the reference search.
package models

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Laterality is the side of the knee an acquisition belongs to
type Laterality string

const (
	Left  Laterality = "left"
	Right Laterality = "right"
)

// ParseLaterality accepts "left" and "right" in any letter case.
func ParseLaterality(s string) (Laterality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return "", errors.Errorf("knee laterality must be 'right' or 'left', got %q", s)
}

// ThicknessAlgorithm selects on which surface thickness is measured
type ThicknessAlgorithm int

const (
	// AtBoneSurface measures from every bone-side point to the articular surface
	AtBoneSurface ThicknessAlgorithm = 1
	// AtArticularSurface measures from every articular point to the bone-side surface
	AtArticularSurface ThicknessAlgorithm = 2
)

// Subject is one segmented mask of the morphology cohort together with the
// names of every file derived from it.
type Subject struct {
	// InputFolder contains the mask
	InputFolder string

	// MaskName is the mask file name, e.g. 01_DESS_01_prep_fc.mha
	MaskName string

	// MorphologyFolder receives every derived file
	MorphologyFolder string

	// Laterality is optional and only recorded
	Laterality Laterality
}

// Root is the mask name without its extension
func (s Subject) Root() string {
	return strings.TrimSuffix(s.MaskName, filepath.Ext(s.MaskName))
}

// MaskPath is the full path of the input mask
func (s Subject) MaskPath() string { return filepath.Join(s.InputFolder, s.MaskName) }

func (s Subject) derived(suffix string) string {
	return filepath.Join(s.MorphologyFolder, s.Root()+suffix)
}

func (s Subject) BoneCartPath() string     { return s.derived("_bone_cart.txt") }
func (s Subject) ArtiCartPath() string     { return s.derived("_arti_cart.txt") }
func (s Subject) BoneCartFlatPath() string { return s.derived("_bone_cart_flat.txt") }
func (s Subject) ArtiCartFlatPath() string { return s.derived("_arti_cart_flat.txt") }
func (s Subject) BonePhiPath() string      { return s.derived("_bone_phi.txt") }
func (s Subject) ArtiPhiPath() string      { return s.derived("_arti_phi.txt") }
func (s Subject) VolumePath() string       { return s.derived("_volume.txt") }

// ThicknessPath names the thickness file of the given algorithm
func (s Subject) ThicknessPath(a ThicknessAlgorithm) string {
	return s.derived("_thickness_" + strconv.Itoa(int(a)) + ".txt")
}

// ThicknessFlatPath names the flattened thickness file of the given algorithm
func (s Subject) ThicknessFlatPath(a ThicknessAlgorithm) string {
	return s.derived("_thickness_flat_" + strconv.Itoa(int(a)) + ".txt")
}

// ThicknessMapPath names the rendered thickness map of the given algorithm
func (s Subject) ThicknessMapPath(a ThicknessAlgorithm) string {
	return s.derived("_thickness_map_" + strconv.Itoa(int(a)) + ".png")
}

// Validate checks that the subject names a mask and an output folder
func (s Subject) Validate() error {
	if s.MaskName == "" {
		return errors.New("subject has no mask name")
	}
	if s.MorphologyFolder == "" {
		return errors.Errorf("subject %s has no morphology folder", s.MaskName)
	}
	return nil
}
