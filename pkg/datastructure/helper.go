package datastructure

import (
	"github.com/twpayne/go-polyline"
)

const (
	AlgorithmCH                 = "ch"
	AlgorithmBidirectionalAStar = "bidirectional_astar"
)

type RouteResult struct {
	NodeIDs      []int64      `json:"node_ids"`
	Coordinates  []Coordinate `json:"coordinates"`
	Geometry     string       `json:"geometry"`
	DistanceM    float64      `json:"distance_m"`
	DurationS    float64      `json:"duration_s"`
	Cost         float64      `json:"cost"`
	Algorithm    string       `json:"algorithm"`
	SettledNodes int          `json:"settled_nodes"`
	// Partial is set when the search ran before all edges were loaded.
	Partial      bool         `json:"partial,omitempty"`
}

func (r *RouteResult) Clone() *RouteResult {
	c := *r
	c.NodeIDs = append([]int64(nil), r.NodeIDs...)
	c.Coordinates = append([]Coordinate(nil), r.Coordinates...)
	return &c
}

func CreatePolyline(path []Coordinate) string {
	s := ""
	coords := make([][]float64, 0, len(path))
	for _, p := range path {
		coords = append(coords, []float64{p.Lat, p.Lon})
	}
	s = string(polyline.EncodeCoords(coords))
	return s
}

func DecodePolyline(s string) ([]Coordinate, error) {
	coords, _, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, err
	}
	out := make([]Coordinate, len(coords))
	for i, c := range coords {
		out[i] = NewCoordinate(c[0], c[1])
	}
	return out, nil
}
