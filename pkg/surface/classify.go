package surface

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"kneemorph/pkg/geometry"
)

// ClassifyContour splits a closed contour into bone-side and articular-side
// points as seen from center (X is the column, Y the row). A point is
// bone-side when the segment from center to it crosses another edge of the
// contour; the two edges that end at the point itself are not tested.
// Both outputs keep contour order.
func ClassifyContour(center r3.Vector, contour []ContourPoint) (bone, arti []ContourPoint) {
	n := len(contour)
	if n == 0 {
		return nil, nil
	}
	c := r2.Point{X: center.X, Y: center.Y}
	pts := make([]r2.Point, n)
	for i, p := range contour {
		pts[i] = r2.Point{X: p.Col, Y: p.Row}
	}

	for i, p := range pts {
		crosses := false
		for j := 0; j < n && !crosses; j++ {
			k := (j + 1) % n
			if j == i || k == i {
				continue
			}
			crosses = geometry.SegmentsIntersect(c, p, pts[j], pts[k])
		}
		if crosses {
			bone = append(bone, contour[i])
		} else {
			arti = append(arti, contour[i])
		}
	}
	return bone, arti
}
