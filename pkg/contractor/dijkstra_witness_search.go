package contractor

import (
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
)

/*
dijkstraWitnessSearch runs a bounded Dijkstra from source over the
uncontracted nodes, skipping ignore (the node being contracted).

It stops once the smallest key exceeds pMax (the most expensive u->v->w
path) or after maxSettledWitness settled nodes. A target missing from the
returned map has no witness, so the caller adds a shortcut; hitting the
settled bound only costs extra shortcuts, never correctness.
*/
func (c *Contractor) dijkstraWitnessSearch(source, ignore int32, pMax float64) map[int32]float64 {
	cost := map[int32]float64{source: 0}
	settled := make(map[int32]struct{})

	pq := datastructure.NewBinaryHeap[int32]()
	pq.Insert(datastructure.NewPriorityQueueNode(0.0, source))

	for !pq.IsEmpty() && len(settled) < c.maxSettledWitness {
		item, _ := pq.ExtractMin()
		u := item.GetItem()
		if item.GetRank() > pMax {
			break
		}
		if _, ok := settled[u]; ok {
			continue
		}
		settled[u] = struct{}{}

		for _, a := range c.out[u] {
			if a.to == ignore || c.contracted[a.to] {
				continue
			}
			newCost := cost[u] + a.cost
			if old, ok := cost[a.to]; ok && old <= newCost {
				continue
			}
			cost[a.to] = newCost
			pq.Insert(datastructure.NewPriorityQueueNode(newCost, a.to))
		}
	}
	return cost
}
