package volume

import "math"

// farAway stands in for an infinite squared distance
const farAway = 1e20

// squaredDistance returns, for every voxel, the squared Euclidean distance
// in voxel units to the nearest voxel for which inside reports true. It runs
// the separable lower-envelope transform along x, then y, then z.
func squaredDistance(g Grid, inside func(i int) bool) []float64 {
	d := make([]float64, g.Len())
	for i := range d {
		if inside(i) {
			d[i] = 0
		} else {
			d[i] = farAway
		}
	}

	maxN := g.Size[0]
	for _, n := range g.Size {
		if n > maxN {
			maxN = n
		}
	}
	f := make([]float64, maxN)
	out := make([]float64, maxN)
	v := make([]int, maxN)
	z := make([]float64, maxN+1)

	strides := [3]int{1, g.Size[0], g.Size[0] * g.Size[1]}
	for axis := 0; axis < 3; axis++ {
		n := g.Size[axis]
		stride := strides[axis]
		for start := 0; start < len(d); start++ {
			// visit each line once, from its first voxel
			if (start/stride)%n != 0 {
				continue
			}
			for q := 0; q < n; q++ {
				f[q] = d[start+q*stride]
			}
			lowerEnvelope(f[:n], out[:n], v, z)
			for q := 0; q < n; q++ {
				d[start+q*stride] = out[q]
			}
		}
	}
	return d
}

// lowerEnvelope is the 1-D squared distance transform of sampled function f
func lowerEnvelope(f, out []float64, v []int, z []float64) {
	n := len(f)
	k := 0
	v[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		for s <= z[k] {
			k--
			s = ((f[q] + float64(q*q)) - (f[v[k]] + float64(v[k]*v[k]))) / float64(2*q-2*v[k])
		}
		k++
		v[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}
	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - v[k])
		out[q] = dq*dq + f[v[k]]
	}
}

// Dilate grows the mask by a ball of the given radius in voxels
func (m *Mask) Dilate(radius int) *Mask {
	out := &Mask{Grid: m.Grid, Data: make([]uint8, len(m.Data))}
	d := squaredDistance(m.Grid, func(i int) bool { return m.Data[i] != 0 })
	r2 := float64(radius * radius)
	for i, v := range d {
		if v <= r2 {
			out.Data[i] = 1
		}
	}
	return out
}

// LevelSet converts the mask into a signed distance map (voxel units),
// positive inside and negative outside, with the zero crossing halfway
// between boundary voxels.
func (m *Mask) LevelSet() *Field {
	toInside := squaredDistance(m.Grid, func(i int) bool { return m.Data[i] != 0 })
	toOutside := squaredDistance(m.Grid, func(i int) bool { return m.Data[i] == 0 })

	ls := &Field{Grid: m.Grid, Components: 1, Data: make([]float32, len(m.Data))}
	for i := range m.Data {
		if m.Data[i] != 0 {
			ls.Data[i] = float32(math.Sqrt(toOutside[i]) - 0.5)
		} else {
			ls.Data[i] = float32(-(math.Sqrt(toInside[i]) - 0.5))
		}
	}
	return ls
}
