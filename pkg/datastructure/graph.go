package datastructure

// Node is a row of the nodes table.
type Node struct {
	ID  int64
	Lat float64
	Lon float64
}

// Way is a row of the ways table. Highway is the OSM road class.
type Way struct {
	ID            int64
	Name          string
	Highway       string
	SpeedLimitKmh int32
}

// EdgeRow is a row of the edges table.
type EdgeRow struct {
	FromNodeID    int64
	ToNodeID      int64
	DistanceM     float64
	SpeedLimitKmh int32
	WayID         int64
}

type TurnRestriction struct {
	FromWayID       int64
	ToWayID         int64
	RestrictionType string
}

// CHNodeOrder is a row of ch_node_order. Lower OrderID was contracted earlier.
type CHNodeOrder struct {
	NodeID  int64
	OrderID int32
}

// Shortcut is a row of ch_shortcuts. Distance is in the routing metric
// (penalised travel-time seconds). ViaNode is the contracted middle node.
type Shortcut struct {
	FromNode int64
	ToNode   int64
	Distance float64
	ViaNode  int64
}

// Edge is an in-memory adjacency entry. To is a dense node index.
type Edge struct {
	To        int32
	DistanceM float64
	SpeedKmh  int32
	WayID     int64
	Cost      float64
}

func NewEdge(to int32, distM float64, speedKmh int32, wayID int64, cost float64) Edge {
	return Edge{
		To:        to,
		DistanceM: distM,
		SpeedKmh:  speedKmh,
		WayID:     wayID,
		Cost:      cost,
	}
}

// EdgeKey identifies a directed edge by dense node indexes.
type EdgeKey struct {
	From int32
	To   int32
}

func RoadTypeMaxSpeed(roadType string) float64 {
	switch roadType {
	case "motorway":
		return 95
	case "trunk":
		return 85
	case "primary":
		return 75
	case "secondary":
		return 65
	case "tertiary":
		return 50
	case "unclassified":
		return 50
	case "residential":
		return 30
	case "service":
		return 20
	case "motorway_link":
		return 90
	case "trunk_link":
		return 80
	case "primary_link":
		return 70
	case "secondary_link":
		return 60
	case "tertiary_link":
		return 50
	case "living_street":
		return 20
	default:
		return 40
	}
}

// RoadClassPenalty multiplies travel time: motorways are cheaper per second, small roads dearer.
func RoadClassPenalty(roadType string) float64 {
	switch roadType {
	case "motorway":
		return 0.8
	case "motorway_link":
		return 0.85
	case "trunk", "trunk_link":
		return 0.9
	case "primary":
		return 1.0
	case "secondary":
		return 1.05
	case "tertiary":
		return 1.1
	case "unclassified":
		return 1.2
	case "residential":
		return 1.3
	case "living_street", "service":
		return 1.5
	default:
		return 1.0
	}
}

// MinRoadClassPenalty is the smallest factor RoadClassPenalty returns.
const MinRoadClassPenalty = 0.8

// TravelTimeSeconds is the unpenalised time to drive distM meters at speedKmh.
func TravelTimeSeconds(distM, speedKmh float64) float64 {
	if speedKmh <= 0 {
		return 0
	}
	return (distM / 1000.0) / speedKmh * 3600.0
}
