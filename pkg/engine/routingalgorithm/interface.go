package routingalgorithm

import (
	"context"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
)

// RoadGraph is what the router needs from *roadnetwork.RoadNetwork.
type RoadGraph interface {
	NumNodes() int
	NodeID(idx int32) int64
	NodeIndex(id int64) (int32, bool)
	Coordinate(idx int32) datastructure.Coordinate
	HaversineDistance(a, b int32) float64

	OutEdges(idx int32) []datastructure.Edge
	InEdges(idx int32) []datastructure.Edge
	FindEdge(from, to int32) (datastructure.Edge, bool)
	WaitEdges(ctx context.Context) roadnetwork.LoadState
	MaxSpeedKmh() float64

	IsConnected(a, b int32) (connected bool, known bool)
}
