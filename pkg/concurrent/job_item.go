package concurrent

import (
	"context"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

type JobFunc[T any, G any] func(job T) G

// SpurSearchParam is one spur search of a K-shortest-paths iteration.
type SpurSearchParam struct {
	Ctx           context.Context
	SpurIndex     int
	SpurNode      int32
	TargetNode    int32
	RootPath      []int32
	RootCost      float64
	ExcludedEdges map[datastructure.EdgeKey]struct{}
	ExcludedNodes map[int32]struct{}
}

func NewSpurSearchParam(ctx context.Context, spurIndex int, spurNode, target int32, rootPath []int32, rootCost float64,
	excludedEdges map[datastructure.EdgeKey]struct{}, excludedNodes map[int32]struct{}) SpurSearchParam {
	return SpurSearchParam{
		Ctx:           ctx,
		SpurIndex:     spurIndex,
		SpurNode:      spurNode,
		TargetNode:    target,
		RootPath:      rootPath,
		RootCost:      rootCost,
		ExcludedEdges: excludedEdges,
		ExcludedNodes: excludedNodes,
	}
}
