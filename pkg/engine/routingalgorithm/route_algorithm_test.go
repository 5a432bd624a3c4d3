package routingalgorithm

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/components"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testWays = []datastructure.Way{
	{ID: 1, Name: "Tol Solo-Ngawi", Highway: "motorway", SpeedLimitKmh: 100},
	{ID: 2, Name: "Jalan Slamet Riyadi", Highway: "primary", SpeedLimitKmh: 60},
	{ID: 3, Name: "Gang Kenanga", Highway: "residential", SpeedLimitKmh: 30},
}

func buildNetwork(t *testing.T, nodes []datastructure.Node, edges []datastructure.EdgeRow) *roadnetwork.RoadNetwork {
	t.Helper()
	rn, err := roadnetwork.FromRows(context.Background(), nodes, testWays, edges, nil, roadnetwork.Config{}, zap.NewNop(), nil)
	require.NoError(t, err)
	return rn
}

func gridID(size, r, c int) int64 {
	return int64(r*size + c + 1)
}

// gridNetwork is a size x size lattice about 110 m apart. Edge lengths are
// always longer than the straight line, some horizontal streets are one-way.
func gridNetwork(t *testing.T, size int) *roadnetwork.RoadNetwork {
	t.Helper()
	var nodes []datastructure.Node
	var edges []datastructure.EdgeRow
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			nodes = append(nodes, datastructure.Node{
				ID:  gridID(size, r, c),
				Lat: -7.55 - float64(r)*0.001,
				Lon: 110.80 + float64(c)*0.001,
			})
			if c+1 < size {
				way := testWays[(r+c)%3].ID
				dist := 150 + 40*float64((r*7+c*3)%5)
				edges = append(edges, datastructure.EdgeRow{FromNodeID: gridID(size, r, c), ToNodeID: gridID(size, r, c+1), DistanceM: dist, WayID: way})
				if (r+c)%5 != 0 {
					edges = append(edges, datastructure.EdgeRow{FromNodeID: gridID(size, r, c+1), ToNodeID: gridID(size, r, c), DistanceM: dist, WayID: way})
				}
			}
			if r+1 < size {
				way := testWays[(r*c)%3].ID
				dist := 140 + 35*float64((r*5+c*11)%4)
				edges = append(edges,
					datastructure.EdgeRow{FromNodeID: gridID(size, r, c), ToNodeID: gridID(size, r+1, c), DistanceM: dist, WayID: way},
					datastructure.EdgeRow{FromNodeID: gridID(size, r+1, c), ToNodeID: gridID(size, r, c), DistanceM: dist, WayID: way})
			}
		}
	}
	return buildNetwork(t, nodes, edges)
}

// referenceCost is a plain one-directional Dijkstra.
func referenceCost(rn *roadnetwork.RoadNetwork, from, to int32) float64 {
	dist := map[int32]float64{from: 0}
	pq := datastructure.NewBinaryHeap[int32]()
	pq.Insert(datastructure.NewPriorityQueueNode(0.0, from))
	for !pq.IsEmpty() {
		item, _ := pq.ExtractMin()
		u := item.GetItem()
		if item.GetRank() > dist[u] {
			continue
		}
		if u == to {
			return dist[u]
		}
		for _, e := range rn.OutEdges(u) {
			nc := dist[u] + e.Cost
			if old, ok := dist[e.To]; !ok || nc < old {
				dist[e.To] = nc
				pq.Insert(datastructure.NewPriorityQueueNode(nc, e.To))
			}
		}
	}
	return math.Inf(1)
}

func idx(t *testing.T, rn *roadnetwork.RoadNetwork, id int64) int32 {
	t.Helper()
	v, ok := rn.NodeIndex(id)
	require.True(t, ok)
	return v
}

func assertValidPath(t *testing.T, rn *roadnetwork.RoadNetwork, res *datastructure.RouteResult) {
	t.Helper()
	seen := make(map[int64]bool)
	for i, id := range res.NodeIDs {
		assert.False(t, seen[id], "node %d repeated", id)
		seen[id] = true
		if i > 0 {
			_, ok := rn.FindEdge(idx(t, rn, res.NodeIDs[i-1]), idx(t, rn, id))
			assert.True(t, ok, "missing edge %d -> %d", res.NodeIDs[i-1], id)
		}
	}
	assert.Len(t, res.Coordinates, len(res.NodeIDs))
}

func TestShortestPathSingleMotorwayEdge(t *testing.T) {
	rn := buildNetwork(t,
		[]datastructure.Node{{ID: 1, Lat: -7.55, Lon: 110.800}, {ID: 2, Lat: -7.55, Lon: 110.805}},
		[]datastructure.EdgeRow{{FromNodeID: 1, ToNodeID: 2, DistanceM: 1000, WayID: 1}})
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)

	res, err := rt.ShortestPath(context.Background(), idx(t, rn, 1), idx(t, rn, 2))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, res.NodeIDs)
	assert.InDelta(t, 1000.0, res.DistanceM, 1e-9)
	assert.InDelta(t, 36.0, res.DurationS, 1e-9)
	assert.InDelta(t, 36.0*0.8, res.Cost, 1e-9)
	assert.Equal(t, datastructure.AlgorithmBidirectionalAStar, res.Algorithm)

	coords, err := datastructure.DecodePolyline(res.Geometry)
	require.NoError(t, err)
	require.Len(t, coords, 2)
	assert.InDelta(t, 110.805, coords[1].Lon, 1e-5)

	_, err = rt.ShortestPath(context.Background(), idx(t, rn, 2), idx(t, rn, 1))
	assert.ErrorIs(t, err, ErrNoPath)
	assert.Equal(t, util.ErrNotFound, util.ErrorCode(err))
}

func TestShortestPathSameNode(t *testing.T) {
	rn := gridNetwork(t, 3)
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)

	v := idx(t, rn, 5)
	res, err := rt.ShortestPath(context.Background(), v, v)
	require.NoError(t, err)
	assert.Equal(t, []int64{5}, res.NodeIDs)
	assert.Zero(t, res.Cost)
	assert.Zero(t, res.DistanceM)
}

func TestShortestPathMatchesDijkstra(t *testing.T) {
	size := 7
	rn := gridNetwork(t, size)
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)
	ctx := context.Background()

	pairs := [][2]int64{
		{gridID(size, 0, 0), gridID(size, 6, 6)},
		{gridID(size, 6, 6), gridID(size, 0, 0)},
		{gridID(size, 0, 6), gridID(size, 6, 0)},
		{gridID(size, 3, 1), gridID(size, 2, 5)},
		{gridID(size, 5, 5), gridID(size, 0, 1)},
	}
	for _, p := range pairs {
		from, to := idx(t, rn, p[0]), idx(t, rn, p[1])
		res, err := rt.ShortestPath(ctx, from, to)
		require.NoError(t, err)
		assert.InDelta(t, referenceCost(rn, from, to), res.Cost, 1e-6, "%d -> %d", p[0], p[1])
		assert.Equal(t, p[0], res.NodeIDs[0])
		assert.Equal(t, p[1], res.NodeIDs[len(res.NodeIDs)-1])
		assert.Greater(t, res.SettledNodes, 0)
		assertValidPath(t, rn, res)
	}
}

func TestShortestPathWeightedHeuristicNotCheaper(t *testing.T) {
	size := 7
	rn := gridNetwork(t, size)
	opts := DefaultOptions()
	opts.HeuristicWeight = 2.5
	opts.EarlyStopFactor = 1.2
	rt := NewRouteAlgorithm(rn, opts, zap.NewNop(), nil)

	from, to := idx(t, rn, gridID(size, 0, 0)), idx(t, rn, gridID(size, 6, 5))
	res, err := rt.ShortestPath(context.Background(), from, to)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Cost+1e-9, referenceCost(rn, from, to))
	assertValidPath(t, rn, res)
}

func TestShortestPathDifferentComponents(t *testing.T) {
	rn := buildNetwork(t,
		[]datastructure.Node{
			{ID: 1, Lat: -7.550, Lon: 110.800}, {ID: 2, Lat: -7.550, Lon: 110.802},
			{ID: 3, Lat: -7.560, Lon: 110.800}, {ID: 4, Lat: -7.560, Lon: 110.802},
		},
		[]datastructure.EdgeRow{
			{FromNodeID: 1, ToNodeID: 2, DistanceM: 300, WayID: 2},
			{FromNodeID: 3, ToNodeID: 4, DistanceM: 300, WayID: 2},
		})
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)
	ctx := context.Background()

	// before the analysis the gate is skipped and the search exhausts
	_, err := rt.ShortestPath(ctx, idx(t, rn, 1), idx(t, rn, 4))
	assert.ErrorIs(t, err, ErrNoPath)

	require.NoError(t, components.NewAnalyzer(rn, zap.NewNop()).AnalyzeFull(ctx))

	_, err = rt.ShortestPath(ctx, idx(t, rn, 1), idx(t, rn, 4))
	assert.ErrorIs(t, err, ErrDifferentComponents)
	assert.False(t, errors.Is(err, ErrNoPath))

	_, err = rt.ShortestPath(ctx, idx(t, rn, 1), idx(t, rn, 2))
	assert.NoError(t, err)
}

// heldEdgeStore streams its first edge and holds the rest until releaseEdges.
type heldEdgeStore struct {
	nodes   []datastructure.Node
	edges   []datastructure.EdgeRow
	release chan struct{}
	once    sync.Once
}

// newHeldEdgeStore has a long direct street 1 -> 2 in the first batch and a
// much shorter detour 1 -> 3 -> 2 in the held one.
func newHeldEdgeStore() *heldEdgeStore {
	return &heldEdgeStore{
		nodes: []datastructure.Node{
			{ID: 1, Lat: -7.550, Lon: 110.800},
			{ID: 2, Lat: -7.550, Lon: 110.810},
			{ID: 3, Lat: -7.552, Lon: 110.805},
		},
		edges: []datastructure.EdgeRow{
			{FromNodeID: 1, ToNodeID: 2, DistanceM: 5000, WayID: 2},
			{FromNodeID: 1, ToNodeID: 3, DistanceM: 620, WayID: 2},
			{FromNodeID: 3, ToNodeID: 2, DistanceM: 620, WayID: 2},
		},
		release: make(chan struct{}),
	}
}

func (s *heldEdgeStore) releaseEdges() {
	s.once.Do(func() { close(s.release) })
}

func (s *heldEdgeStore) ForEachNodeBatch(ctx context.Context, fn func([]datastructure.Node) error) error {
	return fn(s.nodes)
}

func (s *heldEdgeStore) ForEachWayBatch(ctx context.Context, fn func([]datastructure.Way) error) error {
	return fn(testWays)
}

func (s *heldEdgeStore) ForEachTurnRestrictionBatch(ctx context.Context, fn func([]datastructure.TurnRestriction) error) error {
	return nil
}

func (s *heldEdgeStore) ForEachEdgeBatch(ctx context.Context, fn func([]datastructure.EdgeRow) error) error {
	if err := fn(s.edges[:1]); err != nil {
		return err
	}
	<-s.release
	return fn(s.edges[1:])
}

func TestShortestPathDuringBackgroundLoad(t *testing.T) {
	ctx := context.Background()
	store := newHeldEdgeStore()
	t.Cleanup(store.releaseEdges)

	// the edge wait outlasts the search deadline
	rn, err := roadnetwork.Load(ctx, store, roadnetwork.Config{EdgeWaitTimeout: 300 * time.Millisecond}, zap.NewNop(), nil)
	require.NoError(t, err)
	from, to := idx(t, rn, 1), idx(t, rn, 2)
	require.Eventually(t, func() bool { return len(rn.InEdges(to)) == 1 }, time.Second, time.Millisecond)

	opts := DefaultOptions()
	opts.SearchTimeout = 100 * time.Millisecond
	opts.KSPTimeout = 100 * time.Millisecond
	rt := NewRouteAlgorithm(rn, opts, zap.NewNop(), nil)

	res, err := rt.ShortestPath(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, res.NodeIDs)
	assert.True(t, res.Partial)

	routes, err := rt.KShortestPaths(ctx, from, to, 2)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	assert.Equal(t, []int64{1, 2}, routes[0].NodeIDs)
	assert.True(t, routes[0].Partial)

	store.releaseEdges()
	require.NoError(t, rn.WaitLoaded(ctx))

	res, err = rt.ShortestPath(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 2}, res.NodeIDs)
	assert.False(t, res.Partial)
}

func TestShortestPathOutOfRange(t *testing.T) {
	rn := gridNetwork(t, 2)
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)

	_, err := rt.ShortestPath(context.Background(), 0, int32(rn.NumNodes()))
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, util.ErrNotFound, util.ErrorCode(err))
}

func TestShortestPathTimeout(t *testing.T) {
	rn := gridNetwork(t, 5)
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rt.ShortestPath(ctx, idx(t, rn, 1), idx(t, rn, 25))
	assert.ErrorIs(t, err, ErrSearchTimeout)
	assert.Equal(t, util.ErrTimeout, util.ErrorCode(err))
}

func TestBidirectionalAStarExclusion(t *testing.T) {
	size := 4
	rn := gridNetwork(t, size)
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)
	ctx := context.Background()
	from, to := idx(t, rn, gridID(size, 0, 0)), idx(t, rn, gridID(size, 3, 3))

	best, err := rt.bidirectionalAStar(ctx, from, to, rt.searchParams(nil))
	require.NoError(t, err)

	x := NewExclusion()
	x.ExcludeEdge(best.path[0], best.path[1])
	x.ExcludeNode(best.path[2])
	alt, err := rt.bidirectionalAStar(ctx, from, to, rt.searchParams(x))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, alt.cost+1e-9, best.cost)
	assert.NotEqual(t, best.path[1], alt.path[1])
	for _, v := range alt.path {
		assert.NotEqual(t, best.path[2], v)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := util.DefaultConfig()
	cfg.Routing.HeuristicWeight = 0.5
	cfg.Routing.KSPWorkers = 0
	opts := OptionsFrom(cfg)

	assert.Equal(t, 1.0, opts.HeuristicWeight)
	assert.Equal(t, DefaultOptions().KSPWorkers, opts.KSPWorkers)
	assert.Equal(t, cfg.CH.QueryTimeout, opts.CHQueryTimeout)
}
