package contractor

import (
	"context"
	"errors"
	"sort"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

var ErrNoCHIndex = errors.New("contraction hierarchy index not found")

// CHIndex is the persisted form of a hierarchy. NodeOrder only holds
// contracted nodes; a node missing from it is part of the uncontracted core.
type CHIndex struct {
	NodeOrder map[int64]int32
	Shortcuts []datastructure.Shortcut
}

func (ix *CHIndex) Order(nodeID int64) (int32, bool) {
	o, ok := ix.NodeOrder[nodeID]
	return o, ok
}

// Covers reports whether the node received an order during the build.
func (ix *CHIndex) Covers(nodeID int64) bool {
	_, ok := ix.NodeOrder[nodeID]
	return ok
}

func (ix *CHIndex) NumContracted() int {
	return len(ix.NodeOrder)
}

func (ix *CHIndex) NumShortcuts() int {
	return len(ix.Shortcuts)
}

// Save replaces the ch_node_order and ch_shortcuts tables with this index.
func (ix *CHIndex) Save(ctx context.Context, store CHStore) error {
	order := make([]datastructure.CHNodeOrder, 0, len(ix.NodeOrder))
	for id, o := range ix.NodeOrder {
		order = append(order, datastructure.CHNodeOrder{NodeID: id, OrderID: o})
	}
	sort.Slice(order, func(i, j int) bool {
		return order[i].OrderID < order[j].OrderID
	})
	if err := store.ReplaceCHIndex(ctx, order, ix.Shortcuts); err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "save ch index")
	}
	return nil
}

// Load reads a saved index chunk by chunk. An empty order table yields
// ErrNoCHIndex.
func Load(ctx context.Context, store CHStore) (*CHIndex, error) {
	ix := &CHIndex{NodeOrder: make(map[int64]int32)}
	err := store.ForEachCHNodeOrderBatch(ctx, func(rows []datastructure.CHNodeOrder) error {
		for _, r := range rows {
			ix.NodeOrder[r.NodeID] = r.OrderID
		}
		return nil
	})
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "load ch node order")
	}
	if len(ix.NodeOrder) == 0 {
		return nil, util.WrapErrorf(ErrNoCHIndex, util.ErrNotFound, "load ch index")
	}

	err = store.ForEachCHShortcutBatch(ctx, func(rows []datastructure.Shortcut) error {
		ix.Shortcuts = append(ix.Shortcuts, rows...)
		return nil
	})
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "load ch shortcuts")
	}
	return ix, nil
}
