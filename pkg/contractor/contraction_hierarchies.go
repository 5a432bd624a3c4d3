package contractor

import (
	"context"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"go.uber.org/zap"
)

const (
	DEFAULT_MAX_SETTLED_WITNESS = 500
	noVia                       = int32(-1)
)

// arc is a working-graph arc. In the in-lists, to holds the tail node.
type arc struct {
	to   int32
	cost float64
	via  int32
}

// Contractor builds a contraction hierarchy over a loaded road network.
// The working graph keeps the cheapest arc per (from, to) pair; shortcuts
// overwrite more expensive arcs in place.
type Contractor struct {
	g   RoadGraph
	log *zap.Logger

	out [][]arc
	in  [][]arc

	contracted          []bool
	order               []int32
	level               []int32
	contractedNeighbors []int32
	inDeg               []int32
	outDeg              []int32
	stamp               []int32

	maxSettledWitness int
	numShortcuts      int
}

func NewContractor(g RoadGraph, log *zap.Logger, maxSettledWitness int) *Contractor {
	if maxSettledWitness <= 0 {
		maxSettledWitness = DEFAULT_MAX_SETTLED_WITNESS
	}
	return &Contractor{g: g, log: log, maxSettledWitness: maxSettledWitness}
}

// BuildCHIndex contracts the road network. sampleSize > 0 contracts only that
// many lowest-priority nodes and leaves the rest as an uncontracted core.
func BuildCHIndex(ctx context.Context, g RoadGraph, sampleSize int, log *zap.Logger) (*CHIndex, error) {
	return NewContractor(g, log, DEFAULT_MAX_SETTLED_WITNESS).Build(ctx, sampleSize)
}

func (c *Contractor) Build(ctx context.Context, sampleSize int) (*CHIndex, error) {
	if err := c.g.WaitLoaded(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	c.initGraph()
	n := c.g.NumNodes()

	c.log.Info("contracting road network",
		zap.Int("nodes", n), zap.Int("sample_size", sampleSize))

	pq := datastructure.NewFourAryHeap[int32]()
	pq.Preallocate(n)
	for v := 0; v < n; v++ {
		pq.Insert(datastructure.NewPriorityQueueNode(c.rank(int32(v)), int32(v)))
	}

	limit := n
	if sampleSize > 0 && sampleSize < n {
		limit = sampleSize
	}

	orderNum := 0
	for orderNum < limit && !pq.IsEmpty() {
		if orderNum%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		item, err := pq.ExtractMin()
		if err != nil {
			break
		}
		v := item.GetItem()

		// lazy update: recompute, and put back if it is no longer the minimum.
		newRank := c.rank(v)
		if !pq.IsEmpty() && newRank > pq.GetMinRank() {
			pq.Insert(datastructure.NewPriorityQueueNode(newRank, v))
			continue
		}

		c.order[v] = int32(orderNum)
		c.contractNode(v)
		orderNum++

		if orderNum%100000 == 0 {
			c.log.Info("contraction progress",
				zap.Int("contracted", orderNum), zap.Int("shortcuts", c.numShortcuts))
		}
	}

	ix := c.index(orderNum)
	c.log.Info("contraction done",
		zap.Int("contracted", orderNum),
		zap.Int("core", n-orderNum),
		zap.Int("shortcuts", len(ix.Shortcuts)),
		zap.Duration("took", time.Since(start)))
	return ix, nil
}

func (c *Contractor) initGraph() {
	n := c.g.NumNodes()
	c.out = make([][]arc, n)
	c.in = make([][]arc, n)
	c.contracted = make([]bool, n)
	c.order = make([]int32, n)
	c.level = make([]int32, n)
	c.contractedNeighbors = make([]int32, n)
	c.inDeg = make([]int32, n)
	c.outDeg = make([]int32, n)
	c.stamp = make([]int32, n)
	c.numShortcuts = 0

	for u := int32(0); u < int32(n); u++ {
		c.order[u] = -1
		c.stamp[u] = -1
		for _, e := range c.g.OutEdges(u) {
			if e.To == u {
				continue
			}
			c.addArc(u, e.To, e.Cost, noVia)
		}
	}
}

// addArc inserts u->w or lowers the cost of the existing one. Live degrees
// only change when a new pair appears.
func (c *Contractor) addArc(u, w int32, cost float64, via int32) bool {
	for i := range c.out[u] {
		if c.out[u][i].to != w {
			continue
		}
		if cost < c.out[u][i].cost {
			c.out[u][i].cost = cost
			c.out[u][i].via = via
			for j := range c.in[w] {
				if c.in[w][j].to == u {
					c.in[w][j].cost = cost
					c.in[w][j].via = via
					break
				}
			}
		}
		return false
	}
	c.out[u] = append(c.out[u], arc{to: w, cost: cost, via: via})
	c.in[w] = append(c.in[w], arc{to: u, cost: cost, via: via})
	c.outDeg[u]++
	c.inDeg[w]++
	return true
}

type shortcut struct {
	from, to int32
	cost     float64
}

// findShortcuts reports every pair (u, w) around v whose only cheapest
// connection found runs through v.
func (c *Contractor) findShortcuts(v int32, handle func(s shortcut)) {
	var ins, outs []arc
	for _, a := range c.in[v] {
		if !c.contracted[a.to] {
			ins = append(ins, a)
		}
	}
	for _, a := range c.out[v] {
		if !c.contracted[a.to] {
			outs = append(outs, a)
		}
	}
	if len(ins) == 0 || len(outs) == 0 {
		return
	}

	for _, a := range ins {
		u := a.to
		pMax := 0.0
		for _, b := range outs {
			if b.to != u && a.cost+b.cost > pMax {
				pMax = a.cost + b.cost
			}
		}
		if pMax == 0 {
			continue
		}

		dist := c.dijkstraWitnessSearch(u, v, pMax)
		for _, b := range outs {
			w := b.to
			if w == u {
				continue
			}
			viaCost := a.cost + b.cost
			if d, ok := dist[w]; ok && d <= viaCost {
				continue
			}
			handle(shortcut{from: u, to: w, cost: viaCost})
		}
	}
}

func (c *Contractor) contractNode(v int32) {
	var pending []shortcut
	c.findShortcuts(v, func(s shortcut) {
		pending = append(pending, s)
	})
	for _, s := range pending {
		if c.addArc(s.from, s.to, s.cost, v) {
			c.numShortcuts++
		}
	}

	c.contracted[v] = true
	for _, a := range c.out[v] {
		if c.contracted[a.to] {
			continue
		}
		c.inDeg[a.to]--
		c.touchNeighbor(v, a.to)
	}
	for _, a := range c.in[v] {
		if c.contracted[a.to] {
			continue
		}
		c.outDeg[a.to]--
		c.touchNeighbor(v, a.to)
	}
}

func (c *Contractor) touchNeighbor(v, w int32) {
	if c.level[v]+1 > c.level[w] {
		c.level[w] = c.level[v] + 1
	}
	if c.stamp[w] == v {
		return
	}
	c.stamp[w] = v
	c.contractedNeighbors[w]++
}

// priority = 10*edgeDifference + contractedNeighbors + level.
func (c *Contractor) priority(v int32) int {
	shortcuts := 0
	c.findShortcuts(v, func(shortcut) {
		shortcuts++
	})
	edgeDiff := shortcuts - int(c.inDeg[v]+c.outDeg[v])
	return 10*edgeDiff + int(c.contractedNeighbors[v]) + int(c.level[v])
}

// rank adds a fraction below 1 so equal priorities pop in node index order.
func (c *Contractor) rank(v int32) float64 {
	return float64(c.priority(v)) + float64(v)/float64(len(c.out)+1)
}

func (c *Contractor) index(numContracted int) *CHIndex {
	ix := &CHIndex{
		NodeOrder: make(map[int64]int32, numContracted),
		Shortcuts: make([]datastructure.Shortcut, 0, c.numShortcuts),
	}
	for v, o := range c.order {
		if o >= 0 {
			ix.NodeOrder[c.g.NodeID(int32(v))] = o
		}
	}
	for u := range c.out {
		for _, a := range c.out[u] {
			if a.via == noVia {
				continue
			}
			ix.Shortcuts = append(ix.Shortcuts, datastructure.Shortcut{
				FromNode: c.g.NodeID(int32(u)),
				ToNode:   c.g.NodeID(a.to),
				Distance: a.cost,
				ViaNode:  c.g.NodeID(a.via),
			})
		}
	}
	return ix
}
