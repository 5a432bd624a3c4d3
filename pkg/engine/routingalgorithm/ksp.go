package routingalgorithm

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/concurrent"
	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

type kspPath struct {
	nodes []int32
	cost  float64
}

type spurResult struct {
	path kspPath
	err  error
}

func pathKey(nodes []int32) string {
	var sb strings.Builder
	for i, v := range nodes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	}
	return sb.String()
}

func samePrefix(a, b []int32, n int) bool {
	if len(a) < n || len(b) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

/*
KShortestPaths returns up to k loopless routes from -> to in ascending cost
order using Yen's algorithm.

Every spur search gets its own Exclusion: the next edge of each accepted path
sharing the root, and the root nodes before the spur node. Spur searches of
one iteration run on a worker pool. The whole call is bounded by
routing.ksp_timeout, counted after the bounded edge wait; when it expires the routes found so far are returned.
*/
func (rt *RouteAlgorithm) KShortestPaths(ctx context.Context, from, to int32, k int) ([]*datastructure.RouteResult, error) {
	start := time.Now()
	if k <= 0 {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "k must be positive, got %d", k)
	}
	if err := rt.checkEndpoints(from, to); err != nil {
		rt.monitor.ObserveQuery("ksp", outcomeOf(err), time.Since(start), 0)
		return nil, err
	}

	state := rt.g.WaitEdges(ctx)
	ctx, cancel := context.WithTimeout(ctx, rt.opts.KSPTimeout)
	defer cancel()

	first, err := rt.bidirectionalAStar(ctx, from, to, rt.searchParams(nil))
	if err != nil {
		rt.monitor.ObserveQuery("ksp", outcomeOf(err), time.Since(start), first.settled)
		return nil, rt.wrapSearchError(err, from, to)
	}

	accepted := []kspPath{{nodes: first.path, cost: pathCost(rt.g, first.path)}}
	seen := map[string]struct{}{pathKey(first.path): {}}
	var candidates []kspPath

	for len(accepted) < k && ctx.Err() == nil {
		prev := accepted[len(accepted)-1].nodes
		prefixCost := make([]float64, len(prev))
		for i := 1; i < len(prev); i++ {
			prefixCost[i] = prefixCost[i-1] + pathCost(rt.g, prev[i-1:i+1])
		}

		jobs := make([]concurrent.SpurSearchParam, 0, len(prev)-1)
		for i := 0; i < len(prev)-1; i++ {
			root := prev[:i+1]
			x := NewExclusion()
			for _, p := range accepted {
				if len(p.nodes) > i+1 && samePrefix(p.nodes, root, i+1) {
					x.ExcludeEdge(p.nodes[i], p.nodes[i+1])
				}
			}
			for _, v := range root[:i] {
				x.ExcludeNode(v)
			}
			jobs = append(jobs, concurrent.NewSpurSearchParam(ctx, i, prev[i], to,
				root, prefixCost[i], x.Edges, x.Nodes))
		}

		results := concurrent.Run(rt.opts.KSPWorkers, jobs, rt.spurSearch)
		for _, r := range results {
			if r.err != nil {
				continue
			}
			key := pathKey(r.path.nodes)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			candidates = append(candidates, r.path)
		}
		if len(candidates) == 0 {
			break
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].cost != candidates[j].cost {
				return candidates[i].cost < candidates[j].cost
			}
			if len(candidates[i].nodes) != len(candidates[j].nodes) {
				return len(candidates[i].nodes) < len(candidates[j].nodes)
			}
			return pathKey(candidates[i].nodes) < pathKey(candidates[j].nodes)
		})
		accepted = append(accepted, candidates[0])
		candidates = candidates[1:]
	}

	if ctx.Err() != nil {
		rt.log.Warn("k shortest paths stopped at its deadline",
			zap.Int("found", len(accepted)), zap.Int("k", k))
	}

	routes := make([]*datastructure.RouteResult, 0, len(accepted))
	for _, p := range accepted {
		res, err := rt.buildResult(p.nodes, datastructure.AlgorithmBidirectionalAStar, 0, state)
		if err != nil {
			return nil, err
		}
		routes = append(routes, res)
	}
	rt.monitor.ObserveQuery("ksp", outcomeOf(nil), time.Since(start), first.settled)
	return routes, nil
}

func (rt *RouteAlgorithm) spurSearch(job concurrent.SpurSearchParam) spurResult {
	x := &Exclusion{Edges: job.ExcludedEdges, Nodes: job.ExcludedNodes}
	sr, err := rt.bidirectionalAStar(job.Ctx, job.SpurNode, job.TargetNode, rt.searchParams(x))
	if err != nil {
		return spurResult{err: err}
	}
	nodes := make([]int32, 0, len(job.RootPath)+len(sr.path)-1)
	nodes = append(nodes, job.RootPath[:len(job.RootPath)-1]...)
	nodes = append(nodes, sr.path...)
	return spurResult{path: kspPath{nodes: nodes, cost: job.RootCost + sr.cost}}
}
