package geometry

import "github.com/golang/geo/r2"

// ccw reports whether a, b, c turn counter-clockwise
func ccw(a, b, c r2.Point) bool {
	return b.Sub(a).Cross(c.Sub(a)) > 0
}

// SegmentsIntersect reports whether segment ab crosses segment cd, using
// the orientation of each endpoint against the other segment.
func SegmentsIntersect(a, b, c, d r2.Point) bool {
	return ccw(a, c, d) != ccw(b, c, d) && ccw(a, b, c) != ccw(a, b, d)
}
