package surface

import "sort"

// ContourPoint is a sub-pixel boundary coordinate in a slice
type ContourPoint struct {
	Row, Col float64
}

// edgeKey identifies an edge midpoint of the pixel lattice in doubled
// coordinates, so that every marching squares vertex has integer keys.
type edgeKey struct{ r2, c2 int }

func (k edgeKey) point() ContourPoint {
	return ContourPoint{Row: float64(k.r2) / 2, Col: float64(k.c2) / 2}
}

func keyLess(a, b edgeKey) bool {
	if a.r2 != b.r2 {
		return a.r2 < b.r2
	}
	return a.c2 < b.c2
}

// outerContour returns the longest closed iso-0.5 contour of the region,
// found with marching squares on a copy of the region padded by one pixel
// so that every contour closes. Coordinates are in slice pixels.
func outerContour(reg region, w int) []ContourPoint {
	minR, minC := int(^uint(0)>>1), int(^uint(0)>>1)
	maxR, maxC := -1, -1
	for _, p := range reg.pixels {
		r, c := p/w, p%w
		minR, maxR = min(minR, r), max(maxR, r)
		minC, maxC = min(minC, c), max(maxC, c)
	}

	// padded local image
	pw, ph := maxC-minC+3, maxR-minR+3
	img := make([]bool, pw*ph)
	for _, p := range reg.pixels {
		r, c := p/w-minR+1, p%w-minC+1
		img[r*pw+c] = true
	}
	at := func(r, c int) bool { return img[r*pw+c] }

	adj := make(map[edgeKey][]edgeKey)
	link := func(a, b edgeKey) {
		adj[a] = append(adj[a], b)
		adj[b] = append(adj[b], a)
	}

	for r := 0; r < ph-1; r++ {
		for c := 0; c < pw-1; c++ {
			tl, tr, br, bl := at(r, c), at(r, c+1), at(r+1, c+1), at(r+1, c)
			top := edgeKey{2 * r, 2*c + 1}
			right := edgeKey{2*r + 1, 2*c + 2}
			bottom := edgeKey{2*r + 2, 2*c + 1}
			left := edgeKey{2*r + 1, 2 * c}

			cell := 0
			if tl {
				cell |= 1
			}
			if tr {
				cell |= 2
			}
			if br {
				cell |= 4
			}
			if bl {
				cell |= 8
			}
			switch cell {
			case 1, 14:
				link(left, top)
			case 2, 13:
				link(top, right)
			case 4, 11:
				link(right, bottom)
			case 8, 7:
				link(bottom, left)
			case 3, 12:
				link(left, right)
			case 6, 9:
				link(top, bottom)
			case 5:
				// diagonal pixels stay apart, matching 4-connected labelling
				link(left, top)
				link(right, bottom)
			case 10:
				link(top, right)
				link(bottom, left)
			}
		}
	}

	keys := make([]edgeKey, 0, len(adj))
	for k := range adj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	seen := make(map[edgeKey]bool, len(adj))
	var best []ContourPoint
	for _, start := range keys {
		if seen[start] {
			continue
		}
		var loop []ContourPoint
		prev, cur := start, start
		for {
			seen[cur] = true
			loop = append(loop, cur.point())
			next, ok := nextVertex(adj[cur], prev, seen, start)
			if !ok {
				break
			}
			prev, cur = cur, next
			if cur == start {
				break
			}
		}
		if len(loop) > len(best) {
			best = loop
		}
	}

	out := make([]ContourPoint, len(best))
	for i, p := range best {
		out[i] = ContourPoint{Row: p.Row - 1 + float64(minR), Col: p.Col - 1 + float64(minC)}
	}
	return out
}

// nextVertex picks the unvisited neighbour to walk to, or start once the
// loop is complete.
func nextVertex(neighbors []edgeKey, prev edgeKey, seen map[edgeKey]bool, start edgeKey) (edgeKey, bool) {
	for _, n := range neighbors {
		if !seen[n] {
			return n, true
		}
	}
	for _, n := range neighbors {
		if n == start && n != prev {
			return n, true
		}
	}
	return edgeKey{}, false
}
