package roadnetwork

import (
	"context"
	"testing"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRows() ([]datastructure.Node, []datastructure.Way, []datastructure.EdgeRow) {
	nodes := []datastructure.Node{
		{ID: 1, Lat: -7.5600, Lon: 110.8200},
		{ID: 2, Lat: -7.5600, Lon: 110.8300},
		{ID: 3, Lat: -7.5700, Lon: 110.8300},
		{ID: 4, Lat: -7.5700, Lon: 110.8200},
	}
	ways := []datastructure.Way{
		{ID: 10, Name: "Jalan Slamet Riyadi", Highway: "primary", SpeedLimitKmh: 60},
		{ID: 11, Name: "Gang Mawar", Highway: "residential"},
	}
	edges := []datastructure.EdgeRow{
		{FromNodeID: 1, ToNodeID: 2, DistanceM: 1100, SpeedLimitKmh: 0, WayID: 10},
		{FromNodeID: 2, ToNodeID: 1, DistanceM: 1100, SpeedLimitKmh: 0, WayID: 10},
		{FromNodeID: 2, ToNodeID: 3, DistanceM: 1110, SpeedLimitKmh: 40, WayID: 11},
		{FromNodeID: 3, ToNodeID: 4, DistanceM: 1100, SpeedLimitKmh: 0, WayID: 11},
		{FromNodeID: 4, ToNodeID: 99, DistanceM: 10, SpeedLimitKmh: 0, WayID: 11},
	}
	return nodes, ways, edges
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(util.StoreConfig{Engine: storage.ENGINE_BADGER, InMemory: true, ChunkRows: 2}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedStore(t *testing.T, s *storage.Store) {
	t.Helper()
	ctx := context.Background()
	nodes, ways, edges := testRows()
	require.NoError(t, s.PutNodes(ctx, nodes))
	require.NoError(t, s.PutWays(ctx, ways))
	require.NoError(t, s.PutEdges(ctx, edges))
	require.NoError(t, s.PutTurnRestrictions(ctx, []datastructure.TurnRestriction{{FromWayID: 10, ToWayID: 11, RestrictionType: "no_right_turn"}}))
}

func TestLoadFromStore(t *testing.T) {
	s := newStore(t)
	seedStore(t, s)
	ctx := context.Background()

	rn, err := Load(ctx, s, Config{}, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NoError(t, rn.WaitLoaded(ctx))

	stats := rn.Stats()
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 2, stats.Ways)
	assert.Equal(t, 4, stats.Edges)
	assert.Equal(t, 1, stats.Restrictions)
	assert.Equal(t, 1, stats.SkippedEdges)
	assert.Equal(t, 60.0, stats.MaxSpeedKmh)

	one, ok := rn.NodeIndex(1)
	require.True(t, ok)
	two, _ := rn.NodeIndex(2)

	out, state := rn.Neighbors(ctx, one)
	assert.Equal(t, EdgesComplete, state)
	require.Len(t, out, 1)
	assert.Equal(t, two, out[0].To)
	assert.Equal(t, int32(60), out[0].SpeedKmh)
	assert.InDelta(t, 66.0, out[0].Cost, 1e-9)

	in, _ := rn.InNeighbors(ctx, two)
	require.Len(t, in, 1)
	assert.Equal(t, one, in[0].To)

	three, _ := rn.NodeIndex(3)
	e, ok := rn.FindEdge(two, three)
	require.True(t, ok)
	assert.InDelta(t, EdgeCost(1110, 40, "residential"), e.Cost, 1e-9)
}

func TestLoadIsIdempotent(t *testing.T) {
	s := newStore(t)
	seedStore(t, s)
	ctx := context.Background()

	first, err := Load(ctx, s, Config{}, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NoError(t, first.WaitLoaded(ctx))
	second, err := Load(ctx, s, Config{}, zap.NewNop(), nil)
	require.NoError(t, err)
	require.NoError(t, second.WaitLoaded(ctx))

	assert.Equal(t, first.Stats(), second.Stats())
}

func TestLoadEmptyNodeTable(t *testing.T) {
	s := newStore(t)
	_, err := Load(context.Background(), s, Config{}, zap.NewNop(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyNodeSet)
}

// slowEdgeStore releases its second edge batch only after release is closed.
type slowEdgeStore struct {
	nodes   []datastructure.Node
	edges   []datastructure.EdgeRow
	release chan struct{}
}

func (s *slowEdgeStore) ForEachNodeBatch(ctx context.Context, fn func([]datastructure.Node) error) error {
	return fn(s.nodes)
}

func (s *slowEdgeStore) ForEachWayBatch(ctx context.Context, fn func([]datastructure.Way) error) error {
	return nil
}

func (s *slowEdgeStore) ForEachTurnRestrictionBatch(ctx context.Context, fn func([]datastructure.TurnRestriction) error) error {
	return nil
}

func (s *slowEdgeStore) ForEachEdgeBatch(ctx context.Context, fn func([]datastructure.EdgeRow) error) error {
	if err := fn(s.edges[:1]); err != nil {
		return err
	}
	<-s.release
	return fn(s.edges[1:])
}

func TestNeighborsDuringBackgroundLoad(t *testing.T) {
	nodes, _, edges := testRows()
	store := &slowEdgeStore{nodes: nodes, edges: edges[:4], release: make(chan struct{})}
	ctx := context.Background()

	rn, err := Load(ctx, store, Config{EdgeWaitTimeout: 10 * time.Millisecond}, zap.NewNop(), nil)
	require.NoError(t, err)

	one, _ := rn.NodeIndex(1)
	two, _ := rn.NodeIndex(2)
	assert.Eventually(t, func() bool { return len(rn.OutEdges(one)) == 1 }, time.Second, time.Millisecond)

	out, state := rn.Neighbors(ctx, two)
	assert.Equal(t, EdgesPartial, state)
	assert.Empty(t, out)
	assert.False(t, rn.EdgesLoaded())

	close(store.release)
	require.NoError(t, rn.WaitLoaded(ctx))

	out, state = rn.Neighbors(ctx, two)
	assert.Equal(t, EdgesComplete, state)
	assert.Len(t, out, 2)
}

func TestNearestNode(t *testing.T) {
	nodes := []datastructure.Node{
		{ID: 1, Lat: 0.0095, Lon: 0.0001},
		{ID: 2, Lat: 0.0101, Lon: 0.0050},
		{ID: 3, Lat: 0.5, Lon: 0.5},
	}
	rn, err := FromRows(context.Background(), nodes, nil, nil, nil, Config{}, zap.NewNop(), nil)
	require.NoError(t, err)

	// query sits in cell (0,0) with node 1, but node 2 across the cell border is closer.
	idx, dist, err := rn.NearestNode(0.0099, 0.0049, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rn.NodeID(idx))
	assert.Less(t, dist, 50.0)

	idx, _, err = rn.NearestNode(0.0095, 0.0002, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rn.NodeID(idx))

	idx, dist, err = rn.NearestNode(0.45, 0.45, 10_000)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rn.NodeID(idx))
	assert.LessOrEqual(t, dist, 10_000.0)

	_, _, err = rn.NearestNode(0.25, 0.25, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.Equal(t, util.ErrNotFound, util.ErrorCode(err))
}

func TestSpatialGridCells(t *testing.T) {
	g := NewSpatialGrid(0.01, []float64{0.001, 0.002, 0.015, -0.001}, []float64{0.001, 0.009, 0.001, 0.001})
	assert.Equal(t, 3, g.NumCells())
	assert.ElementsMatch(t, []int32{0, 1}, g.Cell(0.005, 0.005))
	assert.Equal(t, []int32{3}, g.Cell(-0.005, 0.005))
}

type fixedComponents struct{ ready bool }

func (f fixedComponents) Ready() bool                 { return f.ready }
func (f fixedComponents) IsConnected(a, b int32) bool { return a == b }

func TestIsConnectedDelegates(t *testing.T) {
	nodes, ways, edges := testRows()
	rn, err := FromRows(context.Background(), nodes, ways, edges, nil, Config{}, zap.NewNop(), nil)
	require.NoError(t, err)

	_, known := rn.IsConnected(0, 1)
	assert.False(t, known)

	rn.SetComponents(fixedComponents{ready: true})
	connected, known := rn.IsConnected(0, 0)
	assert.True(t, known)
	assert.True(t, connected)
}

func TestEffectiveSpeed(t *testing.T) {
	w := &datastructure.Way{SpeedLimitKmh: 80}
	assert.Equal(t, 100.0, effectiveSpeed(100, w, 50))
	assert.Equal(t, 80.0, effectiveSpeed(0, w, 50))
	assert.Equal(t, 50.0, effectiveSpeed(0, nil, 50))
	assert.Equal(t, DEFAULT_SPEED_KMH, effectiveSpeed(0, &datastructure.Way{}, 0))
}
