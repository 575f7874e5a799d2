// Package geometry contains the shape fits the morphology pipeline relies
// on: a least-squares circle through slice contours, a least-squares
// cylinder through a cartilage point cloud, and the rigid rotation that
// aligns a fitted axis with x.
package geometry

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Side tells which cartilage surface a point belongs to
type Side int

const (
	// BoneSide is the surface in contact with the subchondral bone
	BoneSide Side = iota
	// ArticularSide is the surface facing the joint space
	ArticularSide
)

func (s Side) String() string {
	switch s {
	case BoneSide:
		return "bone"
	case ArticularSide:
		return "articular"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// PointCloud is an ordered set of surface points in millimetres
type PointCloud struct {
	Side   Side
	Points []r3.Vector
}

// Len is the number of points
func (c PointCloud) Len() int { return len(c.Points) }

// FitError reports input a fit cannot be computed from
type FitError struct {
	Shape  string
	Reason string
}

func (e *FitError) Error() string {
	return fmt.Sprintf("cannot fit %s: %s", e.Shape, e.Reason)
}
