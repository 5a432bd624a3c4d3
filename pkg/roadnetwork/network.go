package roadnetwork

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/geo"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrEmptyNodeSet = errors.New("node table is empty")
	ErrNodeNotFound = errors.New("no graph node near the given coordinate")
)

// LoadState tells whether an adjacency read saw the complete edge set.
type LoadState int

const (
	EdgesPartial LoadState = iota
	EdgesComplete
)

func (s LoadState) String() string {
	if s == EdgesComplete {
		return "complete"
	}
	return "partial"
}

const numShards = 64

type Config struct {
	CellSize        float64
	EdgeWaitTimeout time.Duration
	MaxRing         int
	DefaultSpeedKmh float64
	LoadWorkers     int
}

func ConfigFrom(cfg util.Config) Config {
	return Config{
		CellSize:        cfg.Graph.CellSize,
		EdgeWaitTimeout: cfg.Graph.EdgeWaitTimeout,
		MaxRing:         cfg.Graph.MaxRing,
		DefaultSpeedKmh: cfg.Routing.DefaultSpeedKmh,
	}
}

func (c Config) withDefaults() Config {
	if c.CellSize <= 0 {
		c.CellSize = 0.01
	}
	if c.EdgeWaitTimeout <= 0 {
		c.EdgeWaitTimeout = 30 * time.Second
	}
	if c.MaxRing <= 0 {
		c.MaxRing = 50
	}
	if c.DefaultSpeedKmh <= 0 {
		c.DefaultSpeedKmh = DEFAULT_SPEED_KMH
	}
	if c.LoadWorkers <= 0 {
		c.LoadWorkers = 4
	}
	return c
}

type LoadStats struct {
	Nodes        int
	Ways         int
	Edges        int
	Restrictions int
	SkippedEdges int
	MaxSpeedKmh  float64
}

// ComponentIndex answers same-component checks once analysis is done.
type ComponentIndex interface {
	Ready() bool
	IsConnected(a, b int32) bool
}

// shard holds the adjacency of nodes with idx % numShards == shard id while edges stream in.
// Lists are indexed by idx / numShards.
type shard struct {
	mu  sync.RWMutex
	out [][]datastructure.Edge
	in  [][]datastructure.Edge
}

// csr is a frozen adjacency: edges of node i are edges[offsets[i]:offsets[i+1]].
type csr struct {
	offsets []uint32
	edges   []datastructure.Edge
}

func (c *csr) of(idx int32) []datastructure.Edge {
	return c.edges[c.offsets[idx]:c.offsets[idx+1]]
}

// RoadNetwork is the in-memory graph. Nodes, ways and the grid are read-only after load;
// edges stream in from a background goroutine and are frozen into CSR arrays when done.
type RoadNetwork struct {
	cfg     Config
	log     *zap.Logger
	monitor *metrics.Monitor

	ids   []int64
	lat   []float64
	lon   []float64
	index map[int64]int32

	ways         map[int64]datastructure.Way
	restrictions []datastructure.TurnRestriction
	grid         *SpatialGrid

	shards  [numShards]shard
	forward atomic.Pointer[csr]
	reverse atomic.Pointer[csr]

	done    chan struct{}
	loadErr error

	edgeCount    atomic.Int64
	skippedEdges atomic.Int64
	maxSpeedBits atomic.Uint64

	components atomic.Pointer[componentHolder]
}

type componentHolder struct {
	idx ComponentIndex
}

func newRoadNetwork(cfg Config, log *zap.Logger, monitor *metrics.Monitor) *RoadNetwork {
	return &RoadNetwork{
		cfg:     cfg.withDefaults(),
		log:     log,
		monitor: monitor,
		index:   make(map[int64]int32),
		ways:    make(map[int64]datastructure.Way),
		done:    make(chan struct{}),
	}
}

func (rn *RoadNetwork) NumNodes() int {
	return len(rn.ids)
}

func (rn *RoadNetwork) NodeIndex(id int64) (int32, bool) {
	idx, ok := rn.index[id]
	return idx, ok
}

func (rn *RoadNetwork) NodeID(idx int32) int64 {
	return rn.ids[idx]
}

func (rn *RoadNetwork) Coordinate(idx int32) datastructure.Coordinate {
	return datastructure.NewCoordinate(rn.lat[idx], rn.lon[idx])
}

func (rn *RoadNetwork) LatLon(idx int32) (float64, float64) {
	return rn.lat[idx], rn.lon[idx]
}

func (rn *RoadNetwork) Way(id int64) (datastructure.Way, bool) {
	w, ok := rn.ways[id]
	return w, ok
}

func (rn *RoadNetwork) NumWays() int {
	return len(rn.ways)
}

// TurnRestrictions are loaded for collaborators; searches do not apply them.
func (rn *RoadNetwork) TurnRestrictions() []datastructure.TurnRestriction {
	return rn.restrictions
}

func (rn *RoadNetwork) Grid() *SpatialGrid {
	return rn.grid
}

// HaversineDistance is the great-circle distance in meters between two nodes.
func (rn *RoadNetwork) HaversineDistance(a, b int32) float64 {
	return geo.HaversineDistance(rn.lat[a], rn.lon[a], rn.lat[b], rn.lon[b])
}

// Done is closed when the edge loader finishes, successfully or not.
func (rn *RoadNetwork) Done() <-chan struct{} {
	return rn.done
}

// Err returns the edge loader error once Done is closed.
func (rn *RoadNetwork) Err() error {
	select {
	case <-rn.done:
		return rn.loadErr
	default:
		return nil
	}
}

func (rn *RoadNetwork) EdgesLoaded() bool {
	return rn.forward.Load() != nil
}

// WaitLoaded blocks until edges are loaded or ctx ends.
func (rn *RoadNetwork) WaitLoaded(ctx context.Context) error {
	select {
	case <-rn.done:
		return rn.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitEdges waits at most edge_wait_timeout (or until ctx ends) for the edge load
// and reports whether reads will see the complete graph.
func (rn *RoadNetwork) WaitEdges(ctx context.Context) LoadState {
	if rn.EdgesLoaded() {
		return EdgesComplete
	}
	timer := time.NewTimer(rn.cfg.EdgeWaitTimeout)
	defer timer.Stop()
	select {
	case <-rn.done:
	case <-timer.C:
	case <-ctx.Done():
	}
	if rn.EdgesLoaded() {
		return EdgesComplete
	}
	rn.log.Warn("serving query on a partially loaded graph", zap.Int64("edgesSoFar", rn.edgeCount.Load()))
	return EdgesPartial
}

// Neighbors returns the out-edges of idx after a bounded wait for the edge load.
// The returned slice must not be modified.
func (rn *RoadNetwork) Neighbors(ctx context.Context, idx int32) ([]datastructure.Edge, LoadState) {
	state := rn.WaitEdges(ctx)
	return rn.OutEdges(idx), state
}

// InNeighbors is Neighbors over reversed edges; Edge.To is the tail node.
func (rn *RoadNetwork) InNeighbors(ctx context.Context, idx int32) ([]datastructure.Edge, LoadState) {
	state := rn.WaitEdges(ctx)
	return rn.InEdges(idx), state
}

// OutEdges never blocks: frozen CSR when loaded, otherwise a copy of what has streamed in.
func (rn *RoadNetwork) OutEdges(idx int32) []datastructure.Edge {
	if f := rn.forward.Load(); f != nil {
		return f.of(idx)
	}
	return rn.shardEdges(idx, false)
}

func (rn *RoadNetwork) InEdges(idx int32) []datastructure.Edge {
	if r := rn.reverse.Load(); r != nil {
		return r.of(idx)
	}
	return rn.shardEdges(idx, true)
}

func (rn *RoadNetwork) shardEdges(idx int32, reverse bool) []datastructure.Edge {
	s := &rn.shards[idx%numShards]
	pos := idx / numShards
	s.mu.RLock()
	defer s.mu.RUnlock()

	lists := s.out
	if reverse {
		lists = s.in
	}
	if int(pos) >= len(lists) || len(lists[pos]) == 0 {
		if f := rn.forward.Load(); f != nil {
			// frozen between the first check and the lock
			if reverse {
				return rn.reverse.Load().of(idx)
			}
			return f.of(idx)
		}
		return nil
	}
	return append([]datastructure.Edge(nil), lists[pos]...)
}

// FindEdge returns the cheapest edge from -> to.
func (rn *RoadNetwork) FindEdge(from, to int32) (datastructure.Edge, bool) {
	best := datastructure.Edge{}
	found := false
	for _, e := range rn.OutEdges(from) {
		if e.To == to && (!found || e.Cost < best.Cost) {
			best = e
			found = true
		}
	}
	return best, found
}

func (rn *RoadNetwork) NumEdges() int {
	return int(rn.edgeCount.Load())
}

// MaxSpeedKmh is the fastest effective edge speed seen so far.
func (rn *RoadNetwork) MaxSpeedKmh() float64 {
	return math.Float64frombits(rn.maxSpeedBits.Load())
}

func (rn *RoadNetwork) observeSpeed(speed float64) {
	for {
		old := rn.maxSpeedBits.Load()
		if math.Float64frombits(old) >= speed {
			return
		}
		if rn.maxSpeedBits.CompareAndSwap(old, math.Float64bits(speed)) {
			return
		}
	}
}

func (rn *RoadNetwork) Stats() LoadStats {
	return LoadStats{
		Nodes:        len(rn.ids),
		Ways:         len(rn.ways),
		Edges:        int(rn.edgeCount.Load()),
		Restrictions: len(rn.restrictions),
		SkippedEdges: int(rn.skippedEdges.Load()),
		MaxSpeedKmh:  rn.MaxSpeedKmh(),
	}
}

// SetComponents installs the component index used by IsConnected.
func (rn *RoadNetwork) SetComponents(c ComponentIndex) {
	rn.components.Store(&componentHolder{idx: c})
}

// IsConnected delegates to the component index. known is false until a full analysis is ready.
func (rn *RoadNetwork) IsConnected(a, b int32) (connected bool, known bool) {
	h := rn.components.Load()
	if h == nil || !h.idx.Ready() {
		return false, false
	}
	return h.idx.IsConnected(a, b), true
}

// NearestNode returns the closest node within radiusM of (lat, lon) and its distance in meters.
func (rn *RoadNetwork) NearestNode(lat, lon, radiusM float64) (int32, float64, error) {
	g := rn.grid
	cx, cy := g.cellOf(lat, lon)

	best := int32(-1)
	bestDist := math.Inf(1)
	visit := func(idx int32) {
		d := geo.HaversineDistance(lat, lon, rn.lat[idx], rn.lon[idx])
		if d < bestDist || (d == bestDist && idx < best) {
			best = idx
			bestDist = d
		}
	}

	for r := int32(0); r <= int32(rn.cfg.MaxRing); r++ {
		g.scanRing(cx, cy, r, visit)

		next := g.ringLowerBound(lat, lon, cx, cy, r+1)
		if next > radiusM || (best >= 0 && next > bestDist) {
			break
		}
	}

	if best < 0 || bestDist > radiusM {
		return -1, 0, util.WrapErrorf(ErrNodeNotFound, util.ErrNotFound,
			"no node within %.0fm of (%f, %f)", radiusM, lat, lon)
	}
	return best, bestDist, nil
}
