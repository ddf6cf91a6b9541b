package point

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"
)

// Approximate average hexagon edge length in km per H3 resolution.
var h3EdgeKm = [16]float64{
	1107.712591, 418.676005, 158.244655, 59.810857,
	22.606379, 8.544408, 3.229482, 1.220629,
	0.461354, 0.174375, 0.065907, 0.024910,
	0.009415, 0.003559, 0.001348, 0.000509,
}

const kmPerDegree = 111.0

// resolutionForCell picks the H3 resolution whose hexagons are at
// least as fine as the grid cell, so a GridDisk ring walk visits
// neighbouring grid cells in distance order.
func resolutionForCell(cellSizeDeg float64) int {
	target := cellSizeDeg * kmPerDegree
	for res := 0; res < len(h3EdgeKm); res++ {
		if h3EdgeKm[res] <= target {
			return res
		}
	}
	return len(h3EdgeKm) - 1
}

// nnIndex is a nearest-neighbour index over observed grid cells,
// bucketed by H3 cell.
type nnIndex struct {
	res     int
	buckets map[h3.Cell][]obs
}

type obs struct {
	x, y float64
	val  float64
}

func newNNIndex(cellSizeDeg float64) *nnIndex {
	return &nnIndex{
		res:     resolutionForCell(cellSizeDeg),
		buckets: map[h3.Cell][]obs{},
	}
}

func (ix *nnIndex) add(x, y, val float64) error {
	c, err := h3.LatLngToCell(h3.LatLng{Lat: y, Lng: x}, ix.res)
	if err != nil {
		return fmt.Errorf("h3 index point (%f,%f): %w", x, y, err)
	}
	ix.buckets[c] = append(ix.buckets[c], obs{x: x, y: y, val: val})
	return nil
}

// maxRings bounds the outward search; beyond it the cell stays empty.
const maxRings = 16

// nearest returns the value of the observation closest to (x, y).
// The search expands H3 rings outward and finishes one extra ring to
// avoid picking a hex-adjacent but farther observation.
func (ix *nnIndex) nearest(x, y float64) (float64, bool, error) {
	if len(ix.buckets) == 0 {
		return 0, false, nil
	}
	origin, err := h3.LatLngToCell(h3.LatLng{Lat: y, Lng: x}, ix.res)
	if err != nil {
		return 0, false, fmt.Errorf("h3 locate point (%f,%f): %w", x, y, err)
	}

	best := obs{}
	bestD := -1.0
	foundAt := -1
	seen := map[h3.Cell]struct{}{}

	for k := 0; k <= maxRings; k++ {
		if foundAt >= 0 && k > foundAt+1 {
			break
		}
		disk, err := h3.GridDisk(origin, k)
		if err != nil {
			return 0, false, fmt.Errorf("h3 grid disk k=%d: %w", k, err)
		}
		for _, c := range disk {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			for _, o := range ix.buckets[c] {
				dx, dy := o.x-x, o.y-y
				d := dx*dx + dy*dy
				if bestD < 0 || d < bestD {
					best, bestD = o, d
					if foundAt < 0 {
						foundAt = k
					}
				}
			}
			if bestD >= 0 && foundAt < 0 {
				foundAt = k
			}
		}
	}
	if bestD < 0 {
		return 0, false, nil
	}
	return best.val, true, nil
}
