package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/navigatorx-ch/pkg/components"
	"github.com/lintang-b-s/navigatorx-ch/pkg/contractor"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

// Store is the persisted graph store as the engine uses it.
type Store interface {
	roadnetwork.GraphStore
	contractor.CHStore
}

type routeKey struct {
	from, to int32
}

// Engine resolves coordinates to graph nodes and answers route queries.
type Engine struct {
	rn       *roadnetwork.RoadNetwork
	router   *routingalgorithm.RouteAlgorithm
	analyzer *components.Analyzer
	store    Store
	cache    *lru.Cache[routeKey, *datastructure.RouteResult]

	searchRadiusM     float64
	maxSettledWitness int
	log               *zap.Logger
	monitor           *metrics.Monitor

	mu      sync.Mutex
	chIndex *contractor.CHIndex

	ready    chan struct{}
	readyErr error
	start    sync.Once
	started  atomic.Bool
	// gateWait bounds how long a query waits for the component analysis
	// once every edge is loaded.
	gateWait time.Duration
}

// LoadGraph opens the road network from the store. Nodes and ways are ready
// on return; edges keep streaming in the background.
func LoadGraph(ctx context.Context, store roadnetwork.GraphStore, cfg util.Config, log *zap.Logger,
	monitor *metrics.Monitor) (*roadnetwork.RoadNetwork, error) {
	return roadnetwork.Load(ctx, store, roadnetwork.ConfigFrom(cfg), log, monitor)
}

// NewEngine wires a router over rn. store may be nil when no hierarchy
// should be loaded or saved.
func NewEngine(rn *roadnetwork.RoadNetwork, store Store, cfg util.Config, log *zap.Logger,
	monitor *metrics.Monitor) (*Engine, error) {
	cacheSize := cfg.Routing.CacheSize
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	cache, err := lru.New[routeKey, *datastructure.RouteResult](cacheSize)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "route cache")
	}
	radius := cfg.Routing.SearchRadiusM
	if radius <= 0 {
		radius = 500
	}

	router := routingalgorithm.NewRouteAlgorithm(rn, routingalgorithm.OptionsFrom(cfg), log, monitor)
	return &Engine{
		rn:                rn,
		router:            router,
		analyzer:          components.NewAnalyzer(rn, log),
		store:             store,
		cache:             cache,
		searchRadiusM:     radius,
		maxSettledWitness: cfg.CH.MaxSettledWitness,
		log:               log,
		monitor:           monitor,
		ready:             make(chan struct{}),
		gateWait:          router.Options().SearchTimeout,
	}, nil
}

// Start runs the background work that needs the full edge set: the full
// component analysis and, when the store holds one, attaching the
// hierarchy. Queries made while edges stream in are answered without the
// component gate and without CH, and are not cached.
func (e *Engine) Start(ctx context.Context) {
	e.start.Do(func() {
		e.started.Store(true)
		go func() {
			defer close(e.ready)
			e.readyErr = e.prepare(ctx)
			if e.readyErr != nil {
				e.log.Error("engine background preparation failed", zap.Error(e.readyErr))
			}
		}()
	})
}

func (e *Engine) prepare(ctx context.Context) error {
	if err := e.rn.WaitLoaded(ctx); err != nil {
		return err
	}
	e.cache.Purge()
	if err := e.analyzer.AnalyzeFull(ctx); err != nil {
		return err
	}
	if e.store == nil {
		return nil
	}

	ix, err := contractor.Load(ctx, e.store)
	if errors.Is(err, contractor.ErrNoCHIndex) {
		e.log.Info("no ch index in the store, serving bidirectional a* only")
		return nil
	}
	if err != nil {
		return err
	}
	return e.attach(ctx, ix)
}

// WaitReady blocks until the work started by Start is done.
func (e *Engine) WaitReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) attach(ctx context.Context, ix *contractor.CHIndex) error {
	h, err := routingalgorithm.NewHierarchy(ctx, e.rn, ix)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.chIndex = ix
	e.mu.Unlock()

	e.router.AttachHierarchy(h)
	e.cache.Purge()
	e.log.Info("ch hierarchy attached",
		zap.Int("covered", h.NumCovered()), zap.Int("nodes", e.rn.NumNodes()),
		zap.Int("shortcuts", ix.NumShortcuts()))
	return nil
}

// BuildCHIndex contracts the loaded network and attaches the result.
// sampleSize > 0 builds a partial hierarchy over that many nodes.
func (e *Engine) BuildCHIndex(ctx context.Context, sampleSize int) (*contractor.CHIndex, error) {
	ix, err := contractor.NewContractor(e.rn, e.log, e.maxSettledWitness).Build(ctx, sampleSize)
	if err != nil {
		return nil, err
	}
	e.monitor.SampleMemory("ch_built", e.log)
	if err := e.attach(ctx, ix); err != nil {
		return nil, err
	}
	return ix, nil
}

// Save persists the attached hierarchy.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	ix := e.chIndex
	e.mu.Unlock()
	if ix == nil {
		return util.WrapErrorf(contractor.ErrNoCHIndex, util.ErrNotFound, "nothing to save")
	}
	if e.store == nil {
		return util.WrapErrorf(nil, util.ErrInternalServerError, "engine has no store")
	}
	return ix.Save(ctx, e.store)
}

func (e *Engine) RoadNetwork() *roadnetwork.RoadNetwork {
	return e.rn
}

func (e *Engine) Router() *routingalgorithm.RouteAlgorithm {
	return e.router
}

func (e *Engine) Components() *components.Analyzer {
	return e.analyzer
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

func (e *Engine) snap(startLat, startLon, endLat, endLon float64) (int32, int32, error) {
	if !validCoordinate(startLat, startLon) || !validCoordinate(endLat, endLon) {
		return -1, -1, util.WrapErrorf(nil, util.ErrBadParamInput, "coordinate out of range")
	}
	from, _, err := e.rn.NearestNode(startLat, startLon, e.searchRadiusM)
	if err != nil {
		return -1, -1, err
	}
	to, _, err := e.rn.NearestNode(endLat, endLon, e.searchRadiusM)
	if err != nil {
		return -1, -1, err
	}
	return from, to, nil
}

// awaitGate holds a query whose edges are all loaded until the full
// component analysis is installed, at most gateWait.
func (e *Engine) awaitGate(ctx context.Context) {
	if !e.started.Load() {
		return
	}
	select {
	case <-e.ready:
		return
	default:
	}
	if e.rn.WaitEdges(ctx) != roadnetwork.EdgesComplete {
		return
	}
	timer := time.NewTimer(e.gateWait)
	defer timer.Stop()
	select {
	case <-e.ready:
	case <-timer.C:
		e.log.Warn("component analysis not ready, routing without the connectivity check")
	case <-ctx.Done():
	}
}

// Route returns the fastest route between the nodes nearest to both
// coordinates. The result is a copy the caller may modify.
func (e *Engine) Route(ctx context.Context, startLat, startLon, endLat, endLon float64) (*datastructure.RouteResult, error) {
	from, to, err := e.snap(startLat, startLon, endLat, endLon)
	if err != nil {
		return nil, err
	}
	e.awaitGate(ctx)

	key := routeKey{from: from, to: to}
	if res, ok := e.cache.Get(key); ok {
		return res.Clone(), nil
	}

	start := time.Now()
	res, err := e.router.ShortestPath(ctx, from, to)
	if err != nil {
		return nil, err
	}
	e.log.Debug("route",
		zap.Int64("from", e.rn.NodeID(from)), zap.Int64("to", e.rn.NodeID(to)),
		zap.String("algorithm", res.Algorithm), zap.Duration("took", time.Since(start)))

	if !res.Partial {
		e.cache.Add(key, res)
	}
	return res.Clone(), nil
}

// KShortestRoutes returns up to k distinct routes in ascending cost order.
// When nothing can be resolved it returns an empty slice and a typed error.
func (e *Engine) KShortestRoutes(ctx context.Context, startLat, startLon, endLat, endLon float64, k int) ([]datastructure.RouteResult, error) {
	from, to, err := e.snap(startLat, startLon, endLat, endLon)
	if err != nil {
		return []datastructure.RouteResult{}, err
	}
	e.awaitGate(ctx)
	routes, err := e.router.KShortestPaths(ctx, from, to, k)
	if err != nil {
		return []datastructure.RouteResult{}, err
	}
	out := make([]datastructure.RouteResult, 0, len(routes))
	for _, r := range routes {
		out = append(out, *r)
	}
	return out, nil
}
