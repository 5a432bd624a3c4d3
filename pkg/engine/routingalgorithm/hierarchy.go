package routingalgorithm

import (
	"context"
	"errors"
	"math"
	"sort"

	"github.com/lintang-b-s/navigatorx-ch/pkg/contractor"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

// coreLevel ranks uncontracted nodes above every contracted one.
const coreLevel = int32(math.MaxInt32)

var ErrHierarchyMismatch = errors.New("ch index does not match the road network")

type chArc struct {
	to   int32
	cost float64
}

// pairArc is the cheapest arc for one (from, to) pair; via < 0 marks an
// original edge.
type pairArc struct {
	cost float64
	via  int32
}

// Hierarchy is the query-side form of a CHIndex over dense node indexes.
// up holds forward arcs towards higher levels, down holds reversed arcs
// (chArc.to is the tail) whose tail is higher than the head. Arcs between two
// core nodes appear in both.
type Hierarchy struct {
	level   []int32
	covered int
	up      [][]chArc
	down    [][]chArc
	pairs   map[datastructure.EdgeKey]pairArc
}

// NewHierarchy needs the complete edge set, so call it after the road
// network finished loading.
func NewHierarchy(ctx context.Context, g RoadGraph, ix *contractor.CHIndex) (*Hierarchy, error) {
	if g.WaitEdges(ctx) != roadnetwork.EdgesComplete {
		return nil, util.WrapErrorf(ctx.Err(), util.ErrInternalServerError, "edges not loaded, cannot attach hierarchy")
	}
	n := g.NumNodes()
	h := &Hierarchy{
		level: make([]int32, n),
		up:    make([][]chArc, n),
		down:  make([][]chArc, n),
		pairs: make(map[datastructure.EdgeKey]pairArc),
	}

	for v := int32(0); v < int32(n); v++ {
		if o, ok := ix.Order(g.NodeID(v)); ok {
			h.level[v] = o
			h.covered++
		} else {
			h.level[v] = coreLevel
		}
		for _, e := range g.OutEdges(v) {
			if e.To == v {
				continue
			}
			h.offer(v, e.To, e.Cost, -1)
		}
	}
	if h.covered != ix.NumContracted() {
		return nil, util.WrapErrorf(ErrHierarchyMismatch, util.ErrInternalServerError,
			"%d of %d ordered nodes exist in the graph", h.covered, ix.NumContracted())
	}

	for _, s := range ix.Shortcuts {
		from, okFrom := g.NodeIndex(s.FromNode)
		to, okTo := g.NodeIndex(s.ToNode)
		via, okVia := g.NodeIndex(s.ViaNode)
		if !okFrom || !okTo || !okVia {
			return nil, util.WrapErrorf(ErrHierarchyMismatch, util.ErrInternalServerError,
				"shortcut %d -> %d via %d", s.FromNode, s.ToNode, s.ViaNode)
		}
		h.offer(from, to, s.Distance, via)
	}

	for k, a := range h.pairs {
		lf, lt := h.level[k.From], h.level[k.To]
		bothCore := lf == coreLevel && lt == coreLevel
		if lf < lt || bothCore {
			h.up[k.From] = append(h.up[k.From], chArc{to: k.To, cost: a.cost})
		}
		if lt < lf || bothCore {
			h.down[k.To] = append(h.down[k.To], chArc{to: k.From, cost: a.cost})
		}
	}
	for v := 0; v < n; v++ {
		sortArcs(h.up[v])
		sortArcs(h.down[v])
	}
	return h, nil
}

func (h *Hierarchy) offer(from, to int32, cost float64, via int32) {
	k := datastructure.EdgeKey{From: from, To: to}
	if old, ok := h.pairs[k]; ok && old.cost <= cost {
		return
	}
	h.pairs[k] = pairArc{cost: cost, via: via}
}

func sortArcs(arcs []chArc) {
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].to != arcs[j].to {
			return arcs[i].to < arcs[j].to
		}
		return arcs[i].cost < arcs[j].cost
	})
}

// Covers reports whether idx was contracted during the build.
func (h *Hierarchy) Covers(idx int32) bool {
	return idx >= 0 && int(idx) < len(h.level) && h.level[idx] != coreLevel
}

func (h *Hierarchy) NumCovered() int {
	return h.covered
}

// unpack expands the arc a -> b into original edges and appends every node
// after a to path.
func (h *Hierarchy) unpack(a, b int32, path []int32) ([]int32, error) {
	stack := []datastructure.EdgeKey{{From: a, To: b}}
	limit := 4*len(h.level) + 16
	for steps := 0; len(stack) > 0; steps++ {
		if steps > limit {
			return path, util.WrapErrorf(ErrHierarchyMismatch, util.ErrInternalServerError, "shortcut unpacking does not terminate")
		}
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		arc, ok := h.pairs[k]
		if !ok {
			return path, util.WrapErrorf(ErrHierarchyMismatch, util.ErrInternalServerError, "missing arc %d -> %d", k.From, k.To)
		}
		if arc.via < 0 {
			path = append(path, k.To)
			continue
		}
		stack = append(stack,
			datastructure.EdgeKey{From: arc.via, To: k.To},
			datastructure.EdgeKey{From: k.From, To: arc.via})
	}
	return path, nil
}
