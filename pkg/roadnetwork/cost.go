package roadnetwork

import (
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

const DEFAULT_SPEED_KMH = 50.0

// effectiveSpeed picks the edge speed, then the way speed limit, then the default.
func effectiveSpeed(edgeSpeed int32, way *datastructure.Way, defaultSpeed float64) float64 {
	if edgeSpeed > 0 {
		return float64(edgeSpeed)
	}
	if way != nil && way.SpeedLimitKmh > 0 {
		return float64(way.SpeedLimitKmh)
	}
	if defaultSpeed > 0 {
		return defaultSpeed
	}
	return DEFAULT_SPEED_KMH
}

// EdgeCost is the routing weight in penalised seconds.
func EdgeCost(distM, speedKmh float64, highway string) float64 {
	return datastructure.TravelTimeSeconds(distM, speedKmh) * datastructure.RoadClassPenalty(highway)
}
