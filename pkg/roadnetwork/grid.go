package roadnetwork

import (
	"math"

	"github.com/lintang-b-s/navigatorx-ch/pkg/geo"
)

// SpatialGrid buckets node indexes by (floor(lon/cellSize), floor(lat/cellSize)).
type SpatialGrid struct {
	cellSize float64
	cells    map[uint64][]int32
}

func cellKey(x, y int32) uint64 {
	return uint64(uint32(x))<<32 | uint64(uint32(y))
}

func NewSpatialGrid(cellSize float64, lat, lon []float64) *SpatialGrid {
	g := &SpatialGrid{
		cellSize: cellSize,
		cells:    make(map[uint64][]int32),
	}
	for i := range lat {
		x, y := g.cellOf(lat[i], lon[i])
		key := cellKey(x, y)
		g.cells[key] = append(g.cells[key], int32(i))
	}
	return g
}

func (g *SpatialGrid) cellOf(lat, lon float64) (int32, int32) {
	return int32(math.Floor(lon / g.cellSize)), int32(math.Floor(lat / g.cellSize))
}

func (g *SpatialGrid) NumCells() int {
	return len(g.cells)
}

func (g *SpatialGrid) Cell(lat, lon float64) []int32 {
	x, y := g.cellOf(lat, lon)
	return g.cells[cellKey(x, y)]
}

// scanRing visits every node in the cells at Chebyshev distance r from (cx, cy).
func (g *SpatialGrid) scanRing(cx, cy, r int32, visit func(idx int32)) {
	if r == 0 {
		for _, idx := range g.cells[cellKey(cx, cy)] {
			visit(idx)
		}
		return
	}
	for x := cx - r; x <= cx+r; x++ {
		for _, idx := range g.cells[cellKey(x, cy-r)] {
			visit(idx)
		}
		for _, idx := range g.cells[cellKey(x, cy+r)] {
			visit(idx)
		}
	}
	for y := cy - r + 1; y <= cy+r-1; y++ {
		for _, idx := range g.cells[cellKey(cx-r, y)] {
			visit(idx)
		}
		for _, idx := range g.cells[cellKey(cx+r, y)] {
			visit(idx)
		}
	}
}

// ringLowerBound is the minimum distance in meters from (lat, lon) to any cell of ring r.
func (g *SpatialGrid) ringLowerBound(lat, lon float64, cx, cy, r int32) float64 {
	cs := g.cellSize
	minLon := float64(cx-r) * cs
	maxLon := float64(cx+r+1) * cs
	minLat := float64(cy-r) * cs
	maxLat := float64(cy+r+1) * cs

	bottom := geo.RectDistance(lat, lon, minLat, minLon, minLat+cs, maxLon)
	top := geo.RectDistance(lat, lon, maxLat-cs, minLon, maxLat, maxLon)
	left := geo.RectDistance(lat, lon, minLat, minLon, maxLat, minLon+cs)
	right := geo.RectDistance(lat, lon, minLat, maxLon-cs, maxLat, maxLon)
	return math.Min(math.Min(bottom, top), math.Min(left, right))
}
