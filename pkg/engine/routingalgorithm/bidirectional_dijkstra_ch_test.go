package routingalgorithm

import (
	"context"
	"testing"

	"github.com/lintang-b-s/navigatorx-ch/pkg/contractor"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func attachCH(t *testing.T, rt *RouteAlgorithm, rn *roadnetwork.RoadNetwork, sampleSize int) *Hierarchy {
	t.Helper()
	ctx := context.Background()
	ix, err := contractor.BuildCHIndex(ctx, rn, sampleSize, zap.NewNop())
	require.NoError(t, err)
	h, err := NewHierarchy(ctx, rn, ix)
	require.NoError(t, err)
	rt.AttachHierarchy(h)
	return h
}

func TestCHMatchesBidirectionalAStar(t *testing.T) {
	size := 8
	rn := gridNetwork(t, size)
	plain := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)
	ch := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)
	h := attachCH(t, ch, rn, 0)
	assert.Equal(t, rn.NumNodes(), h.NumCovered())

	ctx := context.Background()
	for _, p := range [][2]int64{
		{gridID(size, 0, 0), gridID(size, 7, 7)},
		{gridID(size, 7, 7), gridID(size, 0, 0)},
		{gridID(size, 0, 7), gridID(size, 7, 0)},
		{gridID(size, 4, 2), gridID(size, 1, 6)},
		{gridID(size, 3, 3), gridID(size, 3, 4)},
	} {
		from, to := idx(t, rn, p[0]), idx(t, rn, p[1])
		want, err := plain.ShortestPath(ctx, from, to)
		require.NoError(t, err)
		got, err := ch.ShortestPath(ctx, from, to)
		require.NoError(t, err)

		assert.Equal(t, datastructure.AlgorithmCH, got.Algorithm)
		assert.InDelta(t, want.Cost, got.Cost, 1e-6, "%d -> %d", p[0], p[1])
		assert.Equal(t, p[0], got.NodeIDs[0])
		assert.Equal(t, p[1], got.NodeIDs[len(got.NodeIDs)-1])
		assertValidPath(t, rn, got)
	}
}

func TestCHSampledIndexStaysExact(t *testing.T) {
	size := 6
	rn := gridNetwork(t, size)
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)
	h := attachCH(t, rt, rn, 20)
	assert.Equal(t, 20, h.NumCovered())

	ctx := context.Background()
	for a := int32(0); a < int32(rn.NumNodes()); a += 5 {
		for b := int32(1); b < int32(rn.NumNodes()); b += 7 {
			if a == b {
				continue
			}
			res, err := rt.ShortestPath(ctx, a, b)
			require.NoError(t, err)
			if h.Covers(a) && h.Covers(b) {
				assert.Equal(t, datastructure.AlgorithmCH, res.Algorithm)
			} else {
				assert.Equal(t, datastructure.AlgorithmBidirectionalAStar, res.Algorithm)
			}
			assert.InDelta(t, referenceCost(rn, a, b), res.Cost, 1e-6)
			assertValidPath(t, rn, res)
		}
	}
}

func TestCHFallsBackWhenBudgetExceeded(t *testing.T) {
	size := 6
	rn := gridNetwork(t, size)
	opts := DefaultOptions()
	opts.CHMaxSettledNodes = 1
	rt := NewRouteAlgorithm(rn, opts, zap.NewNop(), nil)
	attachCH(t, rt, rn, 0)

	from, to := idx(t, rn, gridID(size, 0, 0)), idx(t, rn, gridID(size, 5, 5))
	res, err := rt.ShortestPath(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, datastructure.AlgorithmBidirectionalAStar, res.Algorithm)
	assert.InDelta(t, referenceCost(rn, from, to), res.Cost, 1e-6)
}

func TestCHNoPath(t *testing.T) {
	rn := buildNetwork(t,
		[]datastructure.Node{{ID: 1, Lat: -7.55, Lon: 110.800}, {ID: 2, Lat: -7.55, Lon: 110.802}, {ID: 3, Lat: -7.55, Lon: 110.804}},
		[]datastructure.EdgeRow{
			{FromNodeID: 1, ToNodeID: 2, DistanceM: 300, WayID: 2},
			{FromNodeID: 2, ToNodeID: 3, DistanceM: 300, WayID: 2},
		})
	rt := NewRouteAlgorithm(rn, DefaultOptions(), zap.NewNop(), nil)
	attachCH(t, rt, rn, 0)
	ctx := context.Background()

	res, err := rt.ShortestPath(ctx, idx(t, rn, 1), idx(t, rn, 3))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, res.NodeIDs)

	_, err = rt.ShortestPath(ctx, idx(t, rn, 3), idx(t, rn, 1))
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestNewHierarchyMismatch(t *testing.T) {
	rn := gridNetwork(t, 3)
	ix := &contractor.CHIndex{
		NodeOrder: map[int64]int32{1: 0, 999: 1},
	}
	_, err := NewHierarchy(context.Background(), rn, ix)
	assert.ErrorIs(t, err, ErrHierarchyMismatch)

	ix = &contractor.CHIndex{
		NodeOrder: map[int64]int32{1: 0},
		Shortcuts: []datastructure.Shortcut{{FromNode: 2, ToNode: 999, Distance: 1, ViaNode: 1}},
	}
	_, err = NewHierarchy(context.Background(), rn, ix)
	assert.ErrorIs(t, err, ErrHierarchyMismatch)
}
