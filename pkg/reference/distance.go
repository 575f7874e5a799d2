package reference

import (
	"math"

	"github.com/pkg/errors"

	"kneemorph/pkg/volume"
)

// Distances reads the deformation fields one at a time, averages them and
// returns for each field the Euclidean norm of its difference to the
// average over the voxels of the mask, divided by the number of those
// voxels.
func Distances(fieldPaths []string, maskPath string) ([]float64, error) {
	if len(fieldPaths) == 0 {
		return nil, errors.New("no deformation fields to compare")
	}
	mask, err := volume.ReadMask(maskPath)
	if err != nil {
		return nil, err
	}
	masked := maskedVoxels(mask)
	if len(masked) == 0 {
		return nil, errors.Errorf("mask %s has no voxels to measure distances over", maskPath)
	}

	avg := make([]float64, 3*len(masked))
	for _, path := range fieldPaths {
		f, err := readField(path, mask)
		if err != nil {
			return nil, err
		}
		for k, i := range masked {
			v := f.Vector(i)
			for c := 0; c < 3; c++ {
				avg[3*k+c] += float64(v[c])
			}
		}
	}
	for i := range avg {
		avg[i] /= float64(len(fieldPaths))
	}

	distances := make([]float64, len(fieldPaths))
	for n, path := range fieldPaths {
		f, err := readField(path, mask)
		if err != nil {
			return nil, err
		}
		if distances[n], err = maskedDistance(f, avg, masked); err != nil {
			return nil, errors.Wrap(err, path)
		}
	}
	return distances, nil
}

// MaskedDistance is the normalized distance between two fields over mask
func MaskedDistance(f, g *volume.Field, mask *volume.Mask) (float64, error) {
	if !f.SameLattice(mask.Grid) || !g.SameLattice(mask.Grid) {
		return 0, errors.New("fields and mask are on different grids")
	}
	if f.Components != 3 || g.Components != 3 {
		return 0, errors.New("distances need 3-component fields")
	}
	masked := maskedVoxels(mask)
	if len(masked) == 0 {
		return 0, errors.New("mask has no voxels to measure distances over")
	}
	ref := make([]float64, 3*len(masked))
	for k, i := range masked {
		v := g.Vector(i)
		for c := 0; c < 3; c++ {
			ref[3*k+c] = float64(v[c])
		}
	}
	return maskedDistance(f, ref, masked)
}

func maskedDistance(f *volume.Field, ref []float64, masked []int) (float64, error) {
	var sum float64
	for k, i := range masked {
		v := f.Vector(i)
		for c := 0; c < 3; c++ {
			d := float64(v[c]) - ref[3*k+c]
			sum += d * d
		}
	}
	dist := math.Sqrt(sum) / float64(len(masked))
	if math.IsNaN(dist) || math.IsInf(dist, 0) {
		return 0, errors.New("distance is not finite")
	}
	return dist, nil
}

func readField(path string, mask *volume.Mask) (*volume.Field, error) {
	f, err := volume.ReadVectorField(path)
	if err != nil {
		return nil, err
	}
	if !f.SameLattice(mask.Grid) {
		return nil, errors.Errorf("field %s has size %v, mask has %v", path, f.Size, mask.Size)
	}
	return f, nil
}

func maskedVoxels(mask *volume.Mask) []int {
	var idx []int
	for i, v := range mask.Data {
		if v != 0 {
			idx = append(idx, i)
		}
	}
	return idx
}
