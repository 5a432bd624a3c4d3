package roadnetwork

import (
	"context"
	"sort"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GraphStore is the read side of the persisted graph store.
type GraphStore interface {
	ForEachNodeBatch(ctx context.Context, fn func([]datastructure.Node) error) error
	ForEachWayBatch(ctx context.Context, fn func([]datastructure.Way) error) error
	ForEachEdgeBatch(ctx context.Context, fn func([]datastructure.EdgeRow) error) error
	ForEachTurnRestrictionBatch(ctx context.Context, fn func([]datastructure.TurnRestriction) error) error
}

// Load reads nodes, ways and turn restrictions eagerly, builds the spatial grid and
// starts streaming edges in the background. An empty node table is fatal.
func Load(ctx context.Context, store GraphStore, cfg Config, log *zap.Logger, monitor *metrics.Monitor) (*RoadNetwork, error) {
	rn := newRoadNetwork(cfg, log, monitor)
	start := time.Now()

	var (
		nodes []datastructure.Node
		ways  []datastructure.Way
		trs   []datastructure.TurnRestriction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return store.ForEachNodeBatch(gctx, func(batch []datastructure.Node) error {
			nodes = append(nodes, batch...)
			return nil
		})
	})
	g.Go(func() error {
		return store.ForEachWayBatch(gctx, func(batch []datastructure.Way) error {
			ways = append(ways, batch...)
			return nil
		})
	})
	g.Go(func() error {
		return store.ForEachTurnRestrictionBatch(gctx, func(batch []datastructure.TurnRestriction) error {
			trs = append(trs, batch...)
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "load nodes and ways")
	}

	if err := rn.setNodes(nodes, ways, trs); err != nil {
		return nil, err
	}
	log.Info("nodes and ways loaded", zap.Int("nodes", len(rn.ids)), zap.Int("ways", len(rn.ways)),
		zap.Int("gridCells", rn.grid.NumCells()), zap.Duration("took", time.Since(start)))
	monitor.SampleMemory("nodes_loaded", log)

	go rn.loadEdges(ctx, func(fn func([]datastructure.EdgeRow) error) error {
		return store.ForEachEdgeBatch(ctx, fn)
	})
	return rn, nil
}

// FromRows builds a fully loaded network from in-memory rows, without a store.
func FromRows(ctx context.Context, nodes []datastructure.Node, ways []datastructure.Way, edges []datastructure.EdgeRow,
	trs []datastructure.TurnRestriction, cfg Config, log *zap.Logger, monitor *metrics.Monitor) (*RoadNetwork, error) {
	rn := newRoadNetwork(cfg, log, monitor)
	if err := rn.setNodes(nodes, ways, trs); err != nil {
		return nil, err
	}
	rn.loadEdges(ctx, func(fn func([]datastructure.EdgeRow) error) error {
		return fn(edges)
	})
	if err := rn.Err(); err != nil {
		return nil, err
	}
	return rn, nil
}

func (rn *RoadNetwork) setNodes(nodes []datastructure.Node, ways []datastructure.Way, trs []datastructure.TurnRestriction) error {
	if len(nodes) == 0 {
		return util.WrapErrorf(ErrEmptyNodeSet, util.ErrInternalServerError, "load graph")
	}

	rn.ids = make([]int64, 0, len(nodes))
	rn.lat = make([]float64, 0, len(nodes))
	rn.lon = make([]float64, 0, len(nodes))
	rn.index = make(map[int64]int32, len(nodes))
	for _, n := range nodes {
		if _, dup := rn.index[n.ID]; dup {
			continue
		}
		rn.index[n.ID] = int32(len(rn.ids))
		rn.ids = append(rn.ids, n.ID)
		rn.lat = append(rn.lat, n.Lat)
		rn.lon = append(rn.lon, n.Lon)
	}

	rn.ways = make(map[int64]datastructure.Way, len(ways))
	for _, w := range ways {
		rn.ways[w.ID] = w
	}
	rn.restrictions = trs

	perShard := len(rn.ids)/numShards + 1
	for i := range rn.shards {
		rn.shards[i].out = make([][]datastructure.Edge, perShard)
		rn.shards[i].in = make([][]datastructure.Edge, perShard)
	}

	rn.grid = NewSpatialGrid(rn.cfg.CellSize, rn.lat, rn.lon)
	rn.monitor.SetLoaded("nodes", len(rn.ids))
	rn.monitor.SetLoaded("ways", len(rn.ways))
	return nil
}

// loadEdges streams edge batches into the shards with a bounded number of workers,
// then freezes them and closes done.
func (rn *RoadNetwork) loadEdges(ctx context.Context, stream func(fn func([]datastructure.EdgeRow) error) error) {
	defer close(rn.done)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rn.cfg.LoadWorkers)
	err := stream(func(batch []datastructure.EdgeRow) error {
		if gctx.Err() != nil {
			return gctx.Err()
		}
		g.Go(func() error {
			rn.addEdges(batch)
			return nil
		})
		return nil
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	if err != nil {
		rn.loadErr = util.WrapErrorf(err, util.ErrInternalServerError, "load edges")
		rn.log.Error("edge loading failed", zap.Error(err), zap.Int64("edgesSoFar", rn.edgeCount.Load()))
		return
	}

	rn.freeze()

	stats := rn.Stats()
	rn.monitor.SetLoaded("edges", stats.Edges)
	rn.monitor.SetSkippedEdges(stats.SkippedEdges)
	rn.monitor.SampleMemory("edges_loaded", rn.log)
	rn.log.Info("edges loaded", zap.Int("edges", stats.Edges), zap.Int("skipped", stats.SkippedEdges),
		zap.Float64("maxSpeedKmh", stats.MaxSpeedKmh), zap.Duration("took", time.Since(start)))
}

func (rn *RoadNetwork) addEdges(batch []datastructure.EdgeRow) {
	for _, row := range batch {
		from, okFrom := rn.index[row.FromNodeID]
		to, okTo := rn.index[row.ToNodeID]
		if !okFrom || !okTo {
			rn.skippedEdges.Add(1)
			continue
		}

		var way *datastructure.Way
		highway := ""
		if w, ok := rn.ways[row.WayID]; ok {
			way = &w
			highway = w.Highway
		}
		speed := effectiveSpeed(row.SpeedLimitKmh, way, rn.cfg.DefaultSpeedKmh)
		cost := EdgeCost(row.DistanceM, speed, highway)

		rn.appendEdge(from, datastructure.NewEdge(to, row.DistanceM, int32(speed), row.WayID, cost), false)
		rn.appendEdge(to, datastructure.NewEdge(from, row.DistanceM, int32(speed), row.WayID, cost), true)
		rn.edgeCount.Add(1)
		rn.observeSpeed(speed)
	}
}

func (rn *RoadNetwork) appendEdge(idx int32, e datastructure.Edge, reverse bool) {
	s := &rn.shards[idx%numShards]
	pos := idx / numShards
	s.mu.Lock()
	if reverse {
		s.in[pos] = append(s.in[pos], e)
	} else {
		s.out[pos] = append(s.out[pos], e)
	}
	s.mu.Unlock()
}

// freeze builds forward and reverse CSR arrays, publishes them and releases the shards.
func (rn *RoadNetwork) freeze() {
	n := len(rn.ids)
	build := func(reverse bool) *csr {
		c := &csr{offsets: make([]uint32, n+1)}
		total := 0
		for i := 0; i < n; i++ {
			s := &rn.shards[i%numShards]
			lists := s.out
			if reverse {
				lists = s.in
			}
			total += len(lists[i/numShards])
			c.offsets[i+1] = uint32(total)
		}
		c.edges = make([]datastructure.Edge, 0, total)
		for i := 0; i < n; i++ {
			s := &rn.shards[i%numShards]
			lists := s.out
			if reverse {
				lists = s.in
			}
			list := lists[i/numShards]
			sort.Slice(list, func(a, b int) bool {
				if list[a].To != list[b].To {
					return list[a].To < list[b].To
				}
				return list[a].Cost < list[b].Cost
			})
			c.edges = append(c.edges, list...)
		}
		return c
	}

	for i := range rn.shards {
		rn.shards[i].mu.Lock()
	}
	rev := build(true)
	fwd := build(false)
	rn.reverse.Store(rev)
	rn.forward.Store(fwd)
	for i := range rn.shards {
		rn.shards[i].out = nil
		rn.shards[i].in = nil
		rn.shards[i].mu.Unlock()
	}
}
