package routingalgorithm

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

type Options struct {
	HeuristicSpeedKmh float64
	// HeuristicWeight > 1 trades optimality for speed.
	HeuristicWeight float64
	EarlyStopFactor float64
	SearchTimeout   time.Duration
	KSPTimeout      time.Duration
	KSPWorkers      int

	CHQueryTimeout    time.Duration
	CHMaxSettledNodes int
}

func DefaultOptions() Options {
	return Options{
		HeuristicSpeedKmh: 130,
		HeuristicWeight:   1,
		EarlyStopFactor:   1,
		SearchTimeout:     5 * time.Second,
		KSPTimeout:        15 * time.Second,
		KSPWorkers:        4,
		CHQueryTimeout:    2 * time.Second,
		CHMaxSettledNodes: 2_000_000,
	}
}

func OptionsFrom(cfg util.Config) Options {
	return Options{
		HeuristicSpeedKmh: cfg.Routing.HeuristicSpeedKmh,
		HeuristicWeight:   cfg.Routing.HeuristicWeight,
		EarlyStopFactor:   cfg.Routing.EarlyStopFactor,
		SearchTimeout:     cfg.Routing.SearchTimeout,
		KSPTimeout:        cfg.Routing.KSPTimeout,
		KSPWorkers:        cfg.Routing.KSPWorkers,
		CHQueryTimeout:    cfg.CH.QueryTimeout,
		CHMaxSettledNodes: cfg.CH.MaxSettledNodes,
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HeuristicSpeedKmh <= 0 {
		o.HeuristicSpeedKmh = d.HeuristicSpeedKmh
	}
	if o.HeuristicWeight < 1 {
		o.HeuristicWeight = d.HeuristicWeight
	}
	if o.EarlyStopFactor < 1 {
		o.EarlyStopFactor = d.EarlyStopFactor
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = d.SearchTimeout
	}
	if o.KSPTimeout <= 0 {
		o.KSPTimeout = d.KSPTimeout
	}
	if o.KSPWorkers <= 0 {
		o.KSPWorkers = d.KSPWorkers
	}
	if o.CHQueryTimeout <= 0 {
		o.CHQueryTimeout = d.CHQueryTimeout
	}
	if o.CHMaxSettledNodes <= 0 {
		o.CHMaxSettledNodes = d.CHMaxSettledNodes
	}
	return o
}

// RouteAlgorithm answers point-to-point queries over dense node indexes.
// It is safe for concurrent use.
type RouteAlgorithm struct {
	g         RoadGraph
	opts      Options
	hierarchy atomic.Pointer[Hierarchy]
	log       *zap.Logger
	monitor   *metrics.Monitor
}

func NewRouteAlgorithm(g RoadGraph, opts Options, log *zap.Logger, monitor *metrics.Monitor) *RouteAlgorithm {
	return &RouteAlgorithm{
		g:       g,
		opts:    opts.withDefaults(),
		log:     log,
		monitor: monitor,
	}
}

func (rt *RouteAlgorithm) Options() Options {
	return rt.opts
}

// AttachHierarchy enables CH queries. Passing nil disables them.
func (rt *RouteAlgorithm) AttachHierarchy(h *Hierarchy) {
	rt.hierarchy.Store(h)
}

func (rt *RouteAlgorithm) Hierarchy() *Hierarchy {
	return rt.hierarchy.Load()
}

// ShortestPath returns the cheapest route from -> to. It uses the hierarchy
// when one is attached and covers both endpoints, and bidirectional A*
// otherwise.
func (rt *RouteAlgorithm) ShortestPath(ctx context.Context, from, to int32) (*datastructure.RouteResult, error) {
	start := time.Now()
	res, err := rt.shortestPath(ctx, from, to)

	algorithm, settled := datastructure.AlgorithmBidirectionalAStar, 0
	if res != nil {
		algorithm, settled = res.Algorithm, res.SettledNodes
	}
	rt.monitor.ObserveQuery(algorithm, outcomeOf(err), time.Since(start), settled)
	return res, err
}

func (rt *RouteAlgorithm) shortestPath(ctx context.Context, from, to int32) (*datastructure.RouteResult, error) {
	if err := rt.checkEndpoints(from, to); err != nil {
		return nil, err
	}
	if from == to {
		return rt.buildResult([]int32{from}, datastructure.AlgorithmBidirectionalAStar, 0, roadnetwork.EdgesComplete)
	}

	// the edge wait has its own bound; the search deadline starts after it.
	state := rt.g.WaitEdges(ctx)
	ctx, cancel := context.WithTimeout(ctx, rt.opts.SearchTimeout)
	defer cancel()

	if h := rt.hierarchy.Load(); h != nil && state == roadnetwork.EdgesComplete && h.Covers(from) && h.Covers(to) {
		sr, err := rt.shortestPathCH(ctx, h, from, to)
		switch {
		case err == nil:
			return rt.buildResult(sr.path, datastructure.AlgorithmCH, sr.settled, state)
		case errors.Is(err, ErrNoPath):
			return nil, util.WrapErrorf(ErrNoPath, util.ErrNotFound, "route %d -> %d", rt.g.NodeID(from), rt.g.NodeID(to))
		default:
			rt.log.Debug("ch query fell back to bidirectional a*", zap.Error(err))
		}
	}

	sr, err := rt.bidirectionalAStar(ctx, from, to, rt.searchParams(nil))
	if err != nil {
		return nil, rt.wrapSearchError(err, from, to)
	}
	return rt.buildResult(sr.path, datastructure.AlgorithmBidirectionalAStar, sr.settled, state)
}

func (rt *RouteAlgorithm) checkEndpoints(from, to int32) error {
	n := int32(rt.g.NumNodes())
	if from < 0 || from >= n || to < 0 || to >= n {
		return util.WrapErrorf(ErrNodeNotFound, util.ErrNotFound, "node index out of range")
	}
	if connected, known := rt.g.IsConnected(from, to); known && !connected {
		return util.WrapErrorf(ErrDifferentComponents, util.ErrNotFound, "route %d -> %d", rt.g.NodeID(from), rt.g.NodeID(to))
	}
	return nil
}

func (rt *RouteAlgorithm) wrapSearchError(err error, from, to int32) error {
	if errors.Is(err, ErrSearchTimeout) {
		return util.WrapErrorf(err, util.ErrTimeout, "route %d -> %d", rt.g.NodeID(from), rt.g.NodeID(to))
	}
	return util.WrapErrorf(err, util.ErrNotFound, "route %d -> %d", rt.g.NodeID(from), rt.g.NodeID(to))
}

// buildResult walks the path over the cheapest edge of each hop.
func (rt *RouteAlgorithm) buildResult(path []int32, algorithm string, settled int,
	state roadnetwork.LoadState) (*datastructure.RouteResult, error) {
	res := &datastructure.RouteResult{
		NodeIDs:      make([]int64, 0, len(path)),
		Coordinates:  make([]datastructure.Coordinate, 0, len(path)),
		Algorithm:    algorithm,
		SettledNodes: settled,
		Partial:      state == roadnetwork.EdgesPartial,
	}
	for i, v := range path {
		res.NodeIDs = append(res.NodeIDs, rt.g.NodeID(v))
		res.Coordinates = append(res.Coordinates, rt.g.Coordinate(v))
		if i == 0 {
			continue
		}
		e, ok := rt.g.FindEdge(path[i-1], v)
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrInternalServerError,
				"path uses missing edge %d -> %d", rt.g.NodeID(path[i-1]), rt.g.NodeID(v))
		}
		res.DistanceM += e.DistanceM
		res.DurationS += datastructure.TravelTimeSeconds(e.DistanceM, float64(e.SpeedKmh))
		res.Cost += e.Cost
	}
	res.Geometry = datastructure.CreatePolyline(res.Coordinates)
	return res, nil
}

func pathCost(g RoadGraph, path []int32) float64 {
	cost := 0.0
	for i := 1; i < len(path); i++ {
		if e, ok := g.FindEdge(path[i-1], path[i]); ok {
			cost += e.Cost
		}
	}
	return cost
}
