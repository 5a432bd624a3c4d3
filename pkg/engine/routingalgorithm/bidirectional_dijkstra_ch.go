package routingalgorithm

import (
	"context"
	"math"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

type chSide struct {
	dist   map[int32]float64
	parent map[int32]int32
	pq     *datastructure.MinHeap[int32]
	done   bool
}

func newCHSide(source int32) *chSide {
	s := &chSide{
		dist:   map[int32]float64{source: 0},
		parent: map[int32]int32{source: -1},
		pq:     datastructure.NewBinaryHeap[int32](),
	}
	s.pq.Insert(datastructure.NewPriorityQueueNode(0.0, source))
	return s
}

/*
shortestPathCH is the upward bidirectional Dijkstra of a contraction
hierarchy. The forward side only follows arcs to higher levels, the backward
side only reversed arcs from higher levels; core nodes are all at the top
level and relax every core-to-core arc. Each side stops once its smallest key
reaches the best meeting cost.

The query is bounded by ch.query_timeout and ch.max_settled_nodes; exceeding
either returns errCHBudget so the caller can fall back to bidirectional A*.
*/
func (rt *RouteAlgorithm) shortestPathCH(ctx context.Context, h *Hierarchy, from, to int32) (searchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, rt.opts.CHQueryTimeout)
	defer cancel()

	fwd, bwd := newCHSide(from), newCHSide(to)
	mu := math.Inf(1)
	meet := int32(-1)
	if from == to {
		mu, meet = 0, from
	}
	settled := 0

	turnF := true
	for iter := 0; ; iter++ {
		if iter&255 == 0 && ctx.Err() != nil {
			return searchResult{settled: settled}, errCHBudget
		}
		if settled > rt.opts.CHMaxSettledNodes {
			return searchResult{settled: settled}, errCHBudget
		}

		if fwd.pq.IsEmpty() || fwd.pq.GetMinRank() >= mu {
			fwd.done = true
		}
		if bwd.pq.IsEmpty() || bwd.pq.GetMinRank() >= mu {
			bwd.done = true
		}
		if fwd.done && bwd.done {
			break
		}

		forward := turnF
		if fwd.done {
			forward = false
		} else if bwd.done {
			forward = true
		}
		turnF = !turnF

		side, other, arcs := fwd, bwd, h.up
		if !forward {
			side, other, arcs = bwd, fwd, h.down
		}

		item, _ := side.pq.ExtractMin()
		u := item.GetItem()
		du := side.dist[u]
		if item.GetRank() > du+staleEps {
			continue
		}
		settled++

		for _, a := range arcs[u] {
			newCost := du + a.cost
			if old, ok := side.dist[a.to]; ok && old <= newCost {
				continue
			}
			side.dist[a.to] = newCost
			side.parent[a.to] = u
			side.pq.Insert(datastructure.NewPriorityQueueNode(newCost, a.to))

			if dv, ok := other.dist[a.to]; ok && newCost+dv < mu {
				mu = newCost + dv
				meet = a.to
			}
		}
	}

	if meet < 0 {
		return searchResult{settled: settled}, ErrNoPath
	}

	hops := joinPath(fwd.parent, bwd.parent, meet)
	path := []int32{hops[0]}
	var err error
	for i := 1; i < len(hops); i++ {
		path, err = h.unpack(hops[i-1], hops[i], path)
		if err != nil {
			return searchResult{settled: settled}, err
		}
	}
	return searchResult{path: path, cost: mu, settled: settled}, nil
}
