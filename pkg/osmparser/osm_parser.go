package osmparser

import (
	"context"
	"strconv"
	"strings"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/geo"
	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

type NodeType uint8

const (
	END_NODE NodeType = iota + 1
	BETWEEN_NODE
	JUNCTION_NODE
)

type nodeCoord struct {
	lat float64
	lon float64
}

type wayNode struct {
	id    int64
	coord nodeCoord
}

// ScannerFunc opens a fresh scan over the same OSM data. The parser reads
// the data twice.
type ScannerFunc func(ctx context.Context) (osm.Scanner, error)

// ParsedGraph holds the rows of the persisted graph store.
type ParsedGraph struct {
	Nodes            []datastructure.Node
	Ways             []datastructure.Way
	Edges            []datastructure.EdgeRow
	TurnRestrictions []datastructure.TurnRestriction
}

// OsmParser turns OSM highways into a junction-to-junction road graph.
type OsmParser struct {
	log *zap.Logger

	wayNodeMap    map[int64]NodeType
	acceptedNodes map[int64]nodeCoord
	barrierNodes  map[int64]struct{}
	usedNodes     map[int64]struct{}
	acceptedWays  map[int64]struct{}
}

func NewOSMParser(log *zap.Logger) *OsmParser {
	return &OsmParser{
		log:           log,
		wayNodeMap:    make(map[int64]NodeType),
		acceptedNodes: make(map[int64]nodeCoord),
		barrierNodes:  make(map[int64]struct{}),
		usedNodes:     make(map[int64]struct{}),
		acceptedWays:  make(map[int64]struct{}),
	}
}

var (
	skipHighway = map[string]struct{}{
		"footway":                {},
		"construction":           {},
		"cycleway":               {},
		"path":                   {},
		"pedestrian":             {},
		"busway":                 {},
		"steps":                  {},
		"bridleway":              {},
		"corridor":               {},
		"street_lamp":            {},
		"bus_stop":               {},
		"crossing":               {},
		"cyclist_waiting_aid":    {},
		"elevator":               {},
		"emergency_bay":          {},
		"emergency_access_point": {},
		"give_way":               {},
		"phone":                  {},
		"ladder":                 {},
		"milestone":              {},
		"passing_place":          {},
		"platform":               {},
		"proposed":               {},
		"speed_camera":           {},
		"track":                  {},
		"bus_guideway":           {},
		"speed_display":          {},
		"stop":                   {},
		"toll_gantry":            {},
		"traffic_mirror":         {},
		"traffic_signals":        {},
		"trailhead":              {},
	}
)

// Parse makes two passes: the first marks junction nodes and collects turn
// restrictions, the second reads coordinates and cuts ways into edges.
func (p *OsmParser) Parse(ctx context.Context, open ScannerFunc) (*ParsedGraph, error) {
	out := &ParsedGraph{}

	scanner, err := open(ctx)
	if err != nil {
		return nil, err
	}
	countWays := 0
	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Way:
			if len(o.Nodes) < 2 || !acceptOsmWay(o) {
				continue
			}
			countWays++
			if countWays%50000 == 0 {
				p.log.Info("reading openstreetmap ways", zap.Int("ways", countWays))
			}
			p.acceptedWays[int64(o.ID)] = struct{}{}
			for i, n := range o.Nodes {
				id := int64(n.ID)
				if _, ok := p.wayNodeMap[id]; !ok {
					if i == 0 || i == len(o.Nodes)-1 {
						p.wayNodeMap[id] = END_NODE
					} else {
						p.wayNodeMap[id] = BETWEEN_NODE
					}
				} else {
					p.wayNodeMap[id] = JUNCTION_NODE
				}
			}
			// way ends are always cut points
			p.markEnd(int64(o.Nodes[0].ID))
			p.markEnd(int64(o.Nodes[len(o.Nodes)-1].ID))
		case *osm.Relation:
			if tr, ok := turnRestriction(o); ok {
				out.TurnRestrictions = append(out.TurnRestrictions, tr)
			}
		}
	}
	err = scanner.Err()
	scanner.Close()
	if err != nil {
		return nil, err
	}

	scanner, err = open(ctx)
	if err != nil {
		return nil, err
	}
	defer scanner.Close()

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			id := int64(o.ID)
			if _, ok := p.wayNodeMap[id]; ok {
				p.acceptedNodes[id] = nodeCoord{lat: o.Lat, lon: o.Lon}
			}
			if o.Tags.Find("barrier") != "" || o.Tags.Find("ford") != "" {
				p.barrierNodes[id] = struct{}{}
			}
		case *osm.Way:
			if _, ok := p.acceptedWays[int64(o.ID)]; !ok {
				continue
			}
			way, info := p.processWayTags(o)
			out.Ways = append(out.Ways, way)
			p.processWay(o, info, &out.Edges)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	out.Nodes = make([]datastructure.Node, 0, len(p.usedNodes))
	for id := range p.usedNodes {
		c := p.acceptedNodes[id]
		out.Nodes = append(out.Nodes, datastructure.Node{ID: id, Lat: c.lat, Lon: c.lon})
	}

	p.log.Info("openstreetmap parsed",
		zap.Int("nodes", len(out.Nodes)), zap.Int("ways", len(out.Ways)),
		zap.Int("edges", len(out.Edges)), zap.Int("turnRestrictions", len(out.TurnRestrictions)))
	return out, nil
}

func (p *OsmParser) markEnd(id int64) {
	if p.wayNodeMap[id] == BETWEEN_NODE {
		p.wayNodeMap[id] = END_NODE
	}
}

func (p *OsmParser) isCutNode(id int64) bool {
	t := p.wayNodeMap[id]
	return t == JUNCTION_NODE || t == END_NODE
}

type wayExtraInfo struct {
	oneWay   bool
	forward  bool
	speedKmh int32
}

func (p *OsmParser) processWayTags(way *osm.Way) (datastructure.Way, wayExtraInfo) {
	highway := way.Tags.Find("highway")
	info := wayExtraInfo{forward: true}

	okvf, okmvf, okvb, okmvb := getReversedOneWay(way)
	oneway := way.Tags.Find("oneway")
	switch {
	case oneway == "-1" || okvf || okmvf:
		info.oneWay, info.forward = true, false
	case oneway == "yes" || oneway == "true" || oneway == "1" || okvb || okmvb:
		info.oneWay = true
	case oneway == "" && (way.Tags.Find("junction") == "roundabout" || highway == "motorway"):
		info.oneWay = true
	}

	maxSpeed, ok := ParseMaxSpeed(way.Tags.Find("maxspeed"))
	if ok {
		info.speedKmh = int32(maxSpeed)
	}
	wayMaxSpeed := maxSpeed
	if !ok {
		wayMaxSpeed = datastructure.RoadTypeMaxSpeed(highway)
	}

	return datastructure.Way{
		ID:            int64(way.ID),
		Name:          way.Tags.Find("name"),
		Highway:       highway,
		SpeedLimitKmh: int32(wayMaxSpeed),
	}, info
}

// ParseMaxSpeed reads an OSM maxspeed value into km/h.
func ParseMaxSpeed(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	factor := 1.0
	switch {
	case strings.HasSuffix(value, "mph"):
		factor = 1.60934
		value = strings.TrimSuffix(value, "mph")
	case strings.HasSuffix(value, "km/h"):
		value = strings.TrimSuffix(value, "km/h")
	case strings.HasSuffix(value, "knots"):
		factor = 1.852
		value = strings.TrimSuffix(value, "knots")
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || speed <= 0 {
		return 0, false
	}
	return speed * factor, true
}

func isRestricted(value string) bool {
	switch value {
	case "no", "restricted", "military", "emergency", "private", "permit":
		return true
	}
	return false
}

func getReversedOneWay(way *osm.Way) (bool, bool, bool, bool) {
	vehicleForward := way.Tags.Find("vehicle:forward")
	motorVehicleForward := way.Tags.Find("motor_vehicle:forward")
	vehicleBackward := way.Tags.Find("vehicle:backward")
	motorVehicleBackward := way.Tags.Find("motor_vehicle:backward")
	return isRestricted(vehicleForward), isRestricted(motorVehicleForward), isRestricted(vehicleBackward), isRestricted(motorVehicleBackward)
}

// processWay cuts the way at junctions, way ends and barriers.
func (p *OsmParser) processWay(way *osm.Way, info wayExtraInfo, edges *[]datastructure.EdgeRow) {
	segment := []wayNode{}
	for i, n := range way.Nodes {
		id := int64(n.ID)
		coord, ok := p.acceptedNodes[id]
		if !ok {
			// node outside the extract
			segment = segment[:0]
			continue
		}
		cur := wayNode{id: id, coord: coord}
		segment = append(segment, cur)

		_, barrier := p.barrierNodes[id]
		if len(segment) > 1 && (p.isCutNode(id) || barrier || i == len(way.Nodes)-1) {
			p.addEdge(segment, way, info, edges)
			segment = []wayNode{cur}
		}
	}
}

func (p *OsmParser) addEdge(segment []wayNode, way *osm.Way, info wayExtraInfo, edges *[]datastructure.EdgeRow) {
	from, to := segment[0], segment[len(segment)-1]
	if from.id == to.id {
		return
	}
	distance := 0.0
	for i := 1; i < len(segment); i++ {
		distance += geo.HaversineDistance(segment[i-1].coord.lat, segment[i-1].coord.lon,
			segment[i].coord.lat, segment[i].coord.lon)
	}
	p.usedNodes[from.id] = struct{}{}
	p.usedNodes[to.id] = struct{}{}

	forward := datastructure.EdgeRow{
		FromNodeID:    from.id,
		ToNodeID:      to.id,
		DistanceM:     distance,
		SpeedLimitKmh: info.speedKmh,
		WayID:         int64(way.ID),
	}
	backward := forward
	backward.FromNodeID, backward.ToNodeID = to.id, from.id

	switch {
	case info.oneWay && info.forward:
		*edges = append(*edges, forward)
	case info.oneWay:
		*edges = append(*edges, backward)
	default:
		*edges = append(*edges, forward, backward)
	}
}

func acceptOsmWay(way *osm.Way) bool {
	highway := way.Tags.Find("highway")
	if highway != "" {
		_, skip := skipHighway[highway]
		return !skip
	}
	return way.Tags.Find("route") == "road" || way.Tags.Find("junction") != ""
}

// turnRestriction reads a type=restriction relation with a from and a to way.
func turnRestriction(r *osm.Relation) (datastructure.TurnRestriction, bool) {
	if r.Tags.Find("type") != "restriction" {
		return datastructure.TurnRestriction{}, false
	}
	kind := r.Tags.Find("restriction")
	if kind == "" {
		kind = r.Tags.Find("restriction:motorcar")
	}
	tr := datastructure.TurnRestriction{RestrictionType: kind}
	for _, m := range r.Members {
		if m.Type != osm.TypeWay {
			continue
		}
		switch m.Role {
		case "from":
			tr.FromWayID = m.Ref
		case "to":
			tr.ToWayID = m.Ref
		}
	}
	if kind == "" || tr.FromWayID == 0 || tr.ToWayID == 0 {
		return datastructure.TurnRestriction{}, false
	}
	return tr, true
}
