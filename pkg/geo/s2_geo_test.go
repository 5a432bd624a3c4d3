package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineSymmetry(t *testing.T) {
	tests := []struct {
		name                   string
		latA, lonA, latB, lonB float64
	}{
		{"jakarta-bandung", -6.2088, 106.8456, -6.9175, 107.6191},
		{"antimeridian", 10.0, 179.9, 10.0, -179.9},
		{"same point", 51.5, -0.12, 51.5, -0.12},
		{"poles", 89.9, 0, -89.9, 180},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab := HaversineDistance(tt.latA, tt.lonA, tt.latB, tt.lonB)
			ba := HaversineDistance(tt.latB, tt.lonB, tt.latA, tt.lonA)
			assert.InDelta(t, ab, ba, 1e-6)
			assert.InDelta(t, S2Distance(tt.latA, tt.lonA, tt.latB, tt.lonB), ab, 1.0)
		})
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// 0.008993 degrees of latitude is roughly 1km.
	d := HaversineDistance(0, 0, 0.008993, 0)
	assert.InDelta(t, 1000.0, d, 1.0)
	assert.InDelta(t, 1.0, HaversineDistanceKM(0, 0, 0.008993, 0), 0.001)
}

func TestRectDistance(t *testing.T) {
	assert.Equal(t, 0.0, RectDistance(0.005, 0.005, 0, 0, 0.01, 0.01))

	d := RectDistance(0.02, 0.005, 0, 0, 0.01, 0.01)
	assert.InDelta(t, HaversineDistance(0.02, 0.005, 0.01, 0.005), d, 1.0)
	assert.LessOrEqual(t, d, HaversineDistance(0.02, 0.005, 0.01, 0.0))
}
