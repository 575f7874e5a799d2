// Package surface separates a cartilage mask into its bone-side and
// articular-side surfaces, slice by slice.
package surface

import (
	"errors"
	"io"
	"runtime"
	"sync"

	"github.com/golang/geo/r3"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"kneemorph/pkg/geometry"
	"kneemorph/pkg/volume"
)

// DefaultMinRegionArea is the smallest slice region, in pixels, kept as
// cartilage; anything smaller is segmentation noise
const DefaultMinRegionArea = 15

// ErrEmptyRegion is reported by consumers that need points when a mask has
// no populated slice or only regions below the area threshold
var ErrEmptyRegion = errors.New("mask has no region large enough to separate")

// Separator extracts surface point clouds from cartilage masks
type Separator struct {
	// MinRegionArea drops smaller slice regions
	MinRegionArea int

	// NumCores is the number of goroutines slices are spread over
	NumCores int

	Logger logrus.FieldLogger
}

// NewSeparator returns a separator with the default area threshold
func NewSeparator(logger logrus.FieldLogger) *Separator {
	return &Separator{
		MinRegionArea: DefaultMinRegionArea,
		NumCores:      runtime.NumCPU(),
		Logger:        logger,
	}
}

// sliceResult holds the classified contour points of one slice
type sliceResult struct {
	bone, arti []ContourPoint
	regions    int
	err        error
}

// Separate slices the mask along x and returns the bone-side and the
// articular-side point clouds in millimetres. A point is (column, row,
// slice) scaled by spacing[1], spacing[2] and spacing[0].
// A mask without populated slices yields two empty clouds and no error.
func (s *Separator) Separate(mask *volume.Mask) (bone, arti geometry.PointCloud, err error) {
	bone.Side = geometry.BoneSide
	arti.Side = geometry.ArticularSide
	log := s.logger()

	numSlices := mask.Size[0]
	results := make([]sliceResult, numSlices)

	numCores := s.NumCores
	if numCores < 1 {
		numCores = 1
	}
	slicesPerCore := (numSlices + numCores - 1) / numCores

	var wg sync.WaitGroup
	for c := 0; c < numCores; c++ {
		startSlice := c * slicesPerCore
		endSlice := min((c+1)*slicesPerCore, numSlices)
		if startSlice >= endSlice {
			break
		}
		wg.Add(1)
		go func(startSlice, endSlice int) {
			defer wg.Done()
			for x := startSlice; x < endSlice; x++ {
				results[x] = s.separateSlice(mask, x)
			}
		}(startSlice, endSlice)
	}
	wg.Wait()

	populated := 0
	for x, res := range results {
		if res.err != nil {
			return bone, arti, pkgerrors.Wrapf(res.err, "slice %d", x)
		}
		if res.regions == 0 {
			continue
		}
		populated++
		for _, p := range res.bone {
			bone.Points = append(bone.Points, physical(mask, x, p))
		}
		for _, p := range res.arti {
			arti.Points = append(arti.Points, physical(mask, x, p))
		}
	}

	log.WithFields(logrus.Fields{
		"slices":    populated,
		"bone":      bone.Len(),
		"articular": arti.Len(),
	}).Debug("Separated cartilage surfaces")
	return bone, arti, nil
}

// separateSlice classifies the contours of the kept regions of slice x
// against one circle fitted to all of them.
func (s *Separator) separateSlice(mask *volume.Mask, x int) sliceResult {
	w, h := mask.Size[1], mask.Size[2]
	img := make([]bool, w*h)
	populated := false
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			if mask.At(x, col, row) != 0 {
				img[row*w+col] = true
				populated = true
			}
		}
	}
	if !populated {
		return sliceResult{}
	}

	minArea := s.MinRegionArea
	if minArea < 1 {
		minArea = DefaultMinRegionArea
	}

	var contours [][]ContourPoint
	var cols, rows []float64
	for _, reg := range labelRegions(img, w, h) {
		if reg.area() < minArea {
			continue
		}
		contour := outerContour(reg, w)
		contours = append(contours, contour)
		for _, p := range contour {
			cols = append(cols, p.Col)
			rows = append(rows, p.Row)
		}
	}
	if len(contours) == 0 {
		return sliceResult{}
	}

	circle, err := geometry.FitCircle(cols, rows)
	if err != nil {
		return sliceResult{err: err}
	}

	res := sliceResult{regions: len(contours)}
	for _, contour := range contours {
		b, a := ClassifyContour(circle.Center, contour)
		res.bone = append(res.bone, b...)
		res.arti = append(res.arti, a...)
	}
	return res
}

func physical(mask *volume.Mask, x int, p ContourPoint) r3.Vector {
	return r3.Vector{
		X: p.Col * mask.Spacing[1],
		Y: p.Row * mask.Spacing[2],
		Z: float64(x) * mask.Spacing[0],
	}
}

func (s *Separator) logger() logrus.FieldLogger {
	if s.Logger != nil {
		return s.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
