// Package visualization renders quality-control images: slices of a
// segmentation mask and flattened cartilage thickness maps.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"kneemorph/pkg/volume"
)

// Viewer extracts slices of a mask
type Viewer struct {
	mask *volume.Mask
}

// NewViewer creates a viewer of mask
func NewViewer(mask *volume.Mask) *Viewer {
	return &Viewer{mask: mask}
}

// ExtractSlice extracts the slice at position along axis. Labelled voxels
// are white. An x slice is laid out with columns along y and rows along z,
// the layout the surface separator works on.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, errors.New("position must be non-negative")
	}
	size := v.mask.Size

	var img *image.Gray
	switch axis {
	case "x", "X":
		if position >= size[0] {
			return nil, errors.Errorf("position %d exceeds size %d", position, size[0])
		}
		img = image.NewGray(image.Rect(0, 0, size[1], size[2]))
		for z := 0; z < size[2]; z++ {
			for y := 0; y < size[1]; y++ {
				img.SetGray(y, z, label(v.mask.At(position, y, z)))
			}
		}

	case "y", "Y":
		if position >= size[1] {
			return nil, errors.Errorf("position %d exceeds size %d", position, size[1])
		}
		img = image.NewGray(image.Rect(0, 0, size[0], size[2]))
		for z := 0; z < size[2]; z++ {
			for x := 0; x < size[0]; x++ {
				img.SetGray(x, z, label(v.mask.At(x, position, z)))
			}
		}

	case "z", "Z":
		if position >= size[2] {
			return nil, errors.Errorf("position %d exceeds size %d", position, size[2])
		}
		img = image.NewGray(image.Rect(0, 0, size[0], size[1]))
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				img.SetGray(x, y, label(v.mask.At(x, y, position)))
			}
		}

	default:
		return nil, errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

func label(v uint8) color.Gray {
	if v != 0 {
		return color.Gray{Y: 255}
	}
	return color.Gray{}
}

// SaveSliceSequence writes every non-empty slice along axis as a PNG
// named slice_<axis>_<position>.png and returns how many were written
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, errors.Wrapf(err, "creating %s", outputDir)
	}

	var n int
	switch axis {
	case "x", "X":
		n = v.mask.Size[0]
	case "y", "Y":
		n = v.mask.Size[1]
	case "z", "Z":
		n = v.mask.Size[2]
	default:
		return 0, errors.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	written := 0
	for pos := 0; pos < n; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return written, err
		}
		if empty(img.(*image.Gray)) {
			continue
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := SavePNG(img, filename); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func empty(img *image.Gray) bool {
	for _, p := range img.Pix {
		if p != 0 {
			return false
		}
	}
	return true
}

// SavePNG encodes img to filename
func SavePNG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "cannot create %s", filename)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return errors.Wrapf(err, "cannot encode %s", filename)
	}
	return errors.Wrapf(file.Close(), "cannot close %s", filename)
}
