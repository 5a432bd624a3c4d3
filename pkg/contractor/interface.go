package contractor

import (
	"context"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

// RoadGraph is the part of the road network the builder reads.
type RoadGraph interface {
	NumNodes() int
	NodeID(idx int32) int64
	NodeIndex(id int64) (int32, bool)
	OutEdges(idx int32) []datastructure.Edge
	WaitLoaded(ctx context.Context) error
}

type CHStore interface {
	ReplaceCHIndex(ctx context.Context, order []datastructure.CHNodeOrder, shortcuts []datastructure.Shortcut) error
	ForEachCHNodeOrderBatch(ctx context.Context, fn func([]datastructure.CHNodeOrder) error) error
	ForEachCHShortcutBatch(ctx context.Context, fn func([]datastructure.Shortcut) error) error
}
