package surface

// region is a 4-connected set of pixels of one slice, as linear indices
// row*width + col in scan order of discovery.
type region struct {
	pixels []int
}

// labelRegions finds the 4-connected components of a binary slice image
func labelRegions(img []bool, w, h int) []region {
	visited := make([]bool, w*h)
	var regions []region
	queue := make([]int, 0, 64)

	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			start := row*w + col
			if !img[start] || visited[start] {
				continue
			}

			var reg region
			visited[start] = true
			queue = append(queue[:0], start)
			for len(queue) > 0 {
				ci := queue[0]
				queue = queue[1:]
				reg.pixels = append(reg.pixels, ci)

				cr, cc := ci/w, ci%w
				for _, d := range [4][2]int{{0, 1}, {0, -1}, {1, 0}, {-1, 0}} {
					nr, nc := cr+d[0], cc+d[1]
					if nr < 0 || nr >= h || nc < 0 || nc >= w {
						continue
					}
					ni := nr*w + nc
					if img[ni] && !visited[ni] {
						visited[ni] = true
						queue = append(queue, ni)
					}
				}
			}
			regions = append(regions, reg)
		}
	}
	return regions
}

// area is the number of pixels in the region
func (r region) area() int { return len(r.pixels) }
