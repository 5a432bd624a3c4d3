package components

import (
	"context"

	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
)

// SCCStats summarises strongly connected components of the directed graph.
// Two nodes in the same weak component but different SCCs may still have no route.
type SCCStats struct {
	Count       int
	LargestSize int
	Labels      []int32
}

// StronglyConnected runs Kosaraju's algorithm with explicit stacks.
func StronglyConnected(ctx context.Context, rn *roadnetwork.RoadNetwork) (SCCStats, error) {
	if err := rn.WaitLoaded(ctx); err != nil {
		return SCCStats{}, util.WrapErrorf(err, util.ErrInternalServerError, "scc: wait for edges")
	}
	n := int32(rn.NumNodes())

	order := make([]int32, 0, n)
	visited := make([]bool, n)

	type frame struct {
		v    int32
		next int
	}
	stack := make([]frame, 0, 64)
	steps := 0

	for i := int32(0); i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		stack = append(stack[:0], frame{v: i})
		for len(stack) > 0 {
			steps++
			if steps%ctxCheckInterval == 0 && ctx.Err() != nil {
				return SCCStats{}, ctx.Err()
			}
			top := &stack[len(stack)-1]
			out := rn.OutEdges(top.v)
			if top.next < len(out) {
				to := out[top.next].To
				top.next++
				if !visited[to] {
					visited[to] = true
					stack = append(stack, frame{v: to})
				}
				continue
			}
			order = append(order, top.v)
			stack = stack[:len(stack)-1]
		}
	}

	order = util.ReverseG(order)

	labels := make([]int32, n)
	for i := range labels {
		labels[i] = Absent
	}
	stats := SCCStats{}
	dfs := make([]int32, 0, 64)
	for _, v := range order {
		if labels[v] != Absent {
			continue
		}
		comp := int32(stats.Count)
		labels[v] = comp
		size := 0
		dfs = append(dfs[:0], v)
		for len(dfs) > 0 {
			u := dfs[len(dfs)-1]
			dfs = dfs[:len(dfs)-1]
			size++
			for _, e := range rn.InEdges(u) {
				if labels[e.To] == Absent {
					labels[e.To] = comp
					dfs = append(dfs, e.To)
				}
			}
		}
		stats.Count++
		if size > stats.LargestSize {
			stats.LargestSize = size
		}
	}
	stats.Labels = labels
	return stats, nil
}
