package routingalgorithm

import (
	"context"
	"math"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

const staleEps = 1e-9

type searchParams struct {
	weight    float64
	earlyStop float64
	exclusion *Exclusion
}

type searchResult struct {
	path    []int32
	cost    float64
	settled int
}

func (rt *RouteAlgorithm) searchParams(x *Exclusion) searchParams {
	return searchParams{
		weight:    rt.opts.HeuristicWeight,
		earlyStop: rt.opts.EarlyStopFactor,
		exclusion: x,
	}
}

// heuristicScale converts meters into a lower bound on cost: the fastest
// possible speed combined with the cheapest road class.
func (rt *RouteAlgorithm) heuristicScale(weight float64) float64 {
	speedKmh := math.Max(rt.opts.HeuristicSpeedKmh, rt.g.MaxSpeedKmh())
	return datastructure.MinRoadClassPenalty * weight / (speedKmh / 3.6)
}

// searchSide is one direction of the bidirectional search.
type searchSide struct {
	dist   map[int32]float64
	parent map[int32]int32
	pq     *datastructure.MinHeap[int32]
	h      func(v int32) float64
}

func newSearchSide(source int32, h func(v int32) float64) *searchSide {
	s := &searchSide{
		dist:   map[int32]float64{source: 0},
		parent: map[int32]int32{source: -1},
		pq:     datastructure.NewBinaryHeap[int32](),
		h:      h,
	}
	s.pq.Insert(datastructure.NewPriorityQueueNode(h(source), source))
	return s
}

/*
bidirectionalAStar runs A* from both ends with lazy deletion: improved nodes
are pushed again and stale heap entries are skipped on extraction.

The forward side estimates the remaining cost to `to`, the backward side the
cost from `from`. A meeting is recorded whenever a relaxed node already has a
tentative cost on the other side. The search stops when either frontier's
minimum key times earlyStop reaches the best meeting cost, when a frontier
runs dry, or when ctx ends; in the last case the best complete path found so
far is returned if there is one.

https://www.cs.princeton.edu/courses/archive/spr06/cos423/Handouts/GH05.pdf
*/
func (rt *RouteAlgorithm) bidirectionalAStar(ctx context.Context, from, to int32, p searchParams) (searchResult, error) {
	if from == to {
		return searchResult{path: []int32{from}}, nil
	}

	scale := rt.heuristicScale(p.weight)
	fwd := newSearchSide(from, func(v int32) float64 { return rt.g.HaversineDistance(v, to) * scale })
	bwd := newSearchSide(to, func(v int32) float64 { return rt.g.HaversineDistance(from, v) * scale })

	mu := math.Inf(1)
	meet := int32(-1)
	settled := 0

	for iter := 0; ; iter++ {
		if iter&255 == 0 && ctx.Err() != nil {
			if meet >= 0 {
				break
			}
			return searchResult{settled: settled}, ErrSearchTimeout
		}
		if fwd.pq.IsEmpty() || bwd.pq.IsEmpty() {
			break
		}
		if fwd.pq.GetMinRank()*p.earlyStop >= mu || bwd.pq.GetMinRank()*p.earlyStop >= mu {
			break
		}

		forward := fwd.pq.Size() <= bwd.pq.Size()
		side, other := fwd, bwd
		if !forward {
			side, other = bwd, fwd
		}

		item, _ := side.pq.ExtractMin()
		u := item.GetItem()
		du := side.dist[u]
		if item.GetRank() > du+side.h(u)+staleEps {
			continue
		}
		settled++

		edges := rt.g.OutEdges(u)
		if !forward {
			edges = rt.g.InEdges(u)
		}
		for _, e := range edges {
			v := e.To
			if forward && !p.exclusion.allows(u, v) {
				continue
			}
			if !forward && !p.exclusion.allows(v, u) {
				continue
			}

			newCost := du + e.Cost
			if old, ok := side.dist[v]; ok && old <= newCost {
				continue
			}
			side.dist[v] = newCost
			side.parent[v] = u
			side.pq.Insert(datastructure.NewPriorityQueueNode(newCost+side.h(v), v))

			if dv, ok := other.dist[v]; ok && newCost+dv < mu {
				mu = newCost + dv
				meet = v
			}
		}
	}

	if meet < 0 {
		return searchResult{settled: settled}, ErrNoPath
	}
	return searchResult{
		path:    joinPath(fwd.parent, bwd.parent, meet),
		cost:    mu,
		settled: settled,
	}, nil
}

// joinPath walks the forward parents back to the source and the backward
// parents on to the target.
func joinPath(fwdParent, bwdParent map[int32]int32, meet int32) []int32 {
	var path []int32
	for v := meet; v != -1; v = fwdParent[v] {
		path = append(path, v)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	for v := bwdParent[meet]; v != -1; v = bwdParent[v] {
		path = append(path, v)
	}
	return path
}
