package components

import (
	"context"
	"testing"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// two islands: {1,2,3} one-way chain, {4,5} two-way; node 6 isolated.
func islands(t *testing.T) *roadnetwork.RoadNetwork {
	t.Helper()
	nodes := []datastructure.Node{
		{ID: 1, Lat: 0, Lon: 0}, {ID: 2, Lat: 0, Lon: 0.01}, {ID: 3, Lat: 0, Lon: 0.02},
		{ID: 4, Lat: 1, Lon: 1}, {ID: 5, Lat: 1, Lon: 1.01},
		{ID: 6, Lat: 2, Lon: 2},
	}
	edges := []datastructure.EdgeRow{
		{FromNodeID: 1, ToNodeID: 2, DistanceM: 1000, SpeedLimitKmh: 50},
		{FromNodeID: 2, ToNodeID: 3, DistanceM: 1000, SpeedLimitKmh: 50},
		{FromNodeID: 4, ToNodeID: 5, DistanceM: 1000, SpeedLimitKmh: 50},
		{FromNodeID: 5, ToNodeID: 4, DistanceM: 1000, SpeedLimitKmh: 50},
	}
	rn, err := roadnetwork.FromRows(context.Background(), nodes, nil, edges, nil, roadnetwork.Config{}, zap.NewNop(), nil)
	require.NoError(t, err)
	return rn
}

func idx(t *testing.T, rn *roadnetwork.RoadNetwork, id int64) int32 {
	t.Helper()
	i, ok := rn.NodeIndex(id)
	require.True(t, ok)
	return i
}

func TestAnalyzeFull(t *testing.T) {
	rn := islands(t)
	a := NewAnalyzer(rn, zap.NewNop())

	assert.False(t, a.Ready())
	assert.False(t, a.IsConnected(idx(t, rn, 1), idx(t, rn, 3)))

	require.NoError(t, a.AnalyzeFull(context.Background()))
	assert.True(t, a.Ready())
	assert.Equal(t, 3, a.NumComponents())

	assert.True(t, a.IsConnected(idx(t, rn, 1), idx(t, rn, 3)))
	assert.True(t, a.IsConnected(idx(t, rn, 3), idx(t, rn, 1)))
	assert.True(t, a.IsConnected(idx(t, rn, 4), idx(t, rn, 5)))
	assert.False(t, a.IsConnected(idx(t, rn, 1), idx(t, rn, 4)))
	assert.False(t, a.IsConnected(idx(t, rn, 6), idx(t, rn, 1)))

	main, ok := a.MainComponent()
	require.True(t, ok)
	assert.Equal(t, 3, a.ComponentSize(main))
	assert.True(t, a.IsInMainComponent(idx(t, rn, 2)))
	assert.False(t, a.IsInMainComponent(idx(t, rn, 5)))

	_, ok = a.ComponentID(-1)
	assert.False(t, ok)

	connected, known := rn.IsConnected(idx(t, rn, 1), idx(t, rn, 4))
	assert.True(t, known)
	assert.False(t, connected)
}

func TestAnalyzeSampledDoesNotGate(t *testing.T) {
	rn := islands(t)
	a := NewAnalyzer(rn, zap.NewNop())

	stats, err := a.AnalyzeSampled(context.Background(), 10, 2, 42)
	require.NoError(t, err)

	assert.False(t, a.Ready())
	assert.GreaterOrEqual(t, stats.H3Cells, 3)
	assert.GreaterOrEqual(t, stats.Seeds, 3)
	assert.LessOrEqual(t, stats.LargestSize, 2)
	assert.GreaterOrEqual(t, stats.CappedCount, 1)
	assert.InDelta(t, float64(stats.NodesCovered)/6.0, stats.Coverage, 1e-9)
	for i := 1; i < len(stats.Components); i++ {
		assert.GreaterOrEqual(t, stats.Components[i-1].Size, stats.Components[i].Size)
	}

	_, err = a.AnalyzeSampled(context.Background(), 0, 2, 42)
	require.Error(t, err)
	assert.Equal(t, util.ErrBadParamInput, util.ErrorCode(err))
}

func TestStronglyConnected(t *testing.T) {
	rn := islands(t)
	stats, err := StronglyConnected(context.Background(), rn)
	require.NoError(t, err)

	// {1},{2},{3} are singletons, {4,5} cycle, {6} isolated.
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 2, stats.LargestSize)
	assert.Equal(t, stats.Labels[idx(t, rn, 4)], stats.Labels[idx(t, rn, 5)])
	assert.NotEqual(t, stats.Labels[idx(t, rn, 1)], stats.Labels[idx(t, rn, 2)])
}
