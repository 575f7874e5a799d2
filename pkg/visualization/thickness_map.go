package visualization

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Thickness values are mapped onto the colour ramp between these bounds
const (
	MinThicknessMM = 0.0
	MaxThicknessMM = 5.0
)

// MapOptions control the raster of a thickness map
type MapOptions struct {
	// PixelsPerMM along the axial direction
	PixelsPerMM float64

	// PixelsPerRadian along the angular direction
	PixelsPerRadian float64

	// Dot is the side of the square drawn for every point
	Dot int
}

// DefaultMapOptions draws 4 pixels per mm and per 1/40 rad
func DefaultMapOptions() MapOptions {
	return MapOptions{PixelsPerMM: 4, PixelsPerRadian: 160, Dot: 3}
}

// RenderThicknessMap scatters flattened points on a white canvas, each
// coloured by its thickness. axial, angular and thickness are parallel.
// The angular coordinate runs downwards.
func RenderThicknessMap(axial, angular, thickness []float64, opts MapOptions) (*image.RGBA, error) {
	n := len(axial)
	if n == 0 {
		return nil, errors.New("no points to render")
	}
	if len(angular) != n || len(thickness) != n {
		return nil, errors.Errorf("got %d axial, %d angular and %d thickness values", n, len(angular), len(thickness))
	}
	if opts.PixelsPerMM <= 0 || opts.PixelsPerRadian <= 0 {
		return nil, errors.New("map resolution must be positive")
	}
	dot := max(opts.Dot, 1)

	minX, maxX := floats.Min(axial), floats.Max(axial)
	minY, maxY := floats.Min(angular), floats.Max(angular)
	if math.IsNaN(minX+maxX+minY+maxY) || math.IsInf(minX+maxX+minY+maxY, 0) {
		return nil, errors.New("flattened coordinates are not finite")
	}
	w := int(math.Ceil((maxX-minX)*opts.PixelsPerMM)) + dot
	h := int(math.Ceil((maxY-minY)*opts.PixelsPerRadian)) + dot

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for i := 0; i < n; i++ {
		px := int(math.Round((axial[i] - minX) * opts.PixelsPerMM))
		py := int(math.Round((angular[i] - minY) * opts.PixelsPerRadian))
		c := Jet(thickness[i])
		for dy := 0; dy < dot; dy++ {
			for dx := 0; dx < dot; dx++ {
				img.SetRGBA(px+dx, py+dy, c)
			}
		}
	}
	return img, nil
}

// Jet maps a thickness in mm onto a blue-cyan-yellow-red ramp saturating
// at MinThicknessMM and MaxThicknessMM
func Jet(mm float64) color.RGBA {
	if math.IsNaN(mm) {
		return color.RGBA{A: 255}
	}
	t := (mm - MinThicknessMM) / (MaxThicknessMM - MinThicknessMM)
	t = math.Max(0, math.Min(1, t))

	channel := func(center float64) uint8 {
		v := 1.5 - math.Abs(4*t-center)
		return uint8(math.Round(255 * math.Max(0, math.Min(1, v))))
	}
	return color.RGBA{R: channel(3), G: channel(2), B: channel(1), A: 255}
}
