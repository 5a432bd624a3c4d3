package components

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/roadnetwork"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

const (
	Absent = int32(-1)

	ctxCheckInterval = 4096
)

// Analyzer labels every node with its weakly connected component.
// Labels are written once by AnalyzeFull and read lock-free afterwards.
type Analyzer struct {
	rn  *roadnetwork.RoadNetwork
	log *zap.Logger

	labels []int32
	sizes  []int32
	main   int32
	ready  atomic.Bool
}

func NewAnalyzer(rn *roadnetwork.RoadNetwork, log *zap.Logger) *Analyzer {
	return &Analyzer{rn: rn, log: log, main: Absent}
}

// AnalyzeFull waits for the edge load, then runs BFS over the undirected view
// from every unvisited node. On success the analyzer is installed on the road network.
func (a *Analyzer) AnalyzeFull(ctx context.Context) error {
	if err := a.rn.WaitLoaded(ctx); err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "component analysis: wait for edges")
	}
	start := time.Now()

	n := a.rn.NumNodes()
	labels := make([]int32, n)
	for i := range labels {
		labels[i] = Absent
	}
	sizes := make([]int32, 0)
	queue := make([]int32, 0, 1024)
	steps := 0

	for s := int32(0); s < int32(n); s++ {
		if labels[s] != Absent {
			continue
		}
		comp := int32(len(sizes))
		labels[s] = comp
		size := int32(0)
		queue = append(queue[:0], s)
		for head := 0; head < len(queue); head++ {
			steps++
			if steps%ctxCheckInterval == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			v := queue[head]
			size++
			for _, e := range a.rn.OutEdges(v) {
				if labels[e.To] == Absent {
					labels[e.To] = comp
					queue = append(queue, e.To)
				}
			}
			for _, e := range a.rn.InEdges(v) {
				if labels[e.To] == Absent {
					labels[e.To] = comp
					queue = append(queue, e.To)
				}
			}
		}
		sizes = append(sizes, size)
	}

	main := Absent
	for c, size := range sizes {
		if main == Absent || size > sizes[main] {
			main = int32(c)
		}
	}

	a.labels = labels
	a.sizes = sizes
	a.main = main
	a.ready.Store(true)
	a.rn.SetComponents(a)

	mainSize := int32(0)
	if main != Absent {
		mainSize = sizes[main]
	}
	a.log.Info("component analysis done", zap.Int("components", len(sizes)), zap.Int32("mainComponentSize", mainSize),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Ready reports whether a full analysis has completed.
func (a *Analyzer) Ready() bool {
	return a.ready.Load()
}

// ComponentID returns the label of idx; false before analysis or for unknown nodes.
func (a *Analyzer) ComponentID(idx int32) (int32, bool) {
	if !a.Ready() || idx < 0 || int(idx) >= len(a.labels) || a.labels[idx] == Absent {
		return Absent, false
	}
	return a.labels[idx], true
}

// IsConnected is false when either node has no label.
func (a *Analyzer) IsConnected(u, v int32) bool {
	cu, ok := a.ComponentID(u)
	if !ok {
		return false
	}
	cv, ok := a.ComponentID(v)
	if !ok {
		return false
	}
	return cu == cv
}

func (a *Analyzer) IsInMainComponent(idx int32) bool {
	c, ok := a.ComponentID(idx)
	return ok && c == a.main
}

func (a *Analyzer) NumComponents() int {
	if !a.Ready() {
		return 0
	}
	return len(a.sizes)
}

func (a *Analyzer) ComponentSize(comp int32) int {
	if !a.Ready() || comp < 0 || int(comp) >= len(a.sizes) {
		return 0
	}
	return int(a.sizes[comp])
}

func (a *Analyzer) MainComponent() (int32, bool) {
	return a.main, a.Ready() && a.main != Absent
}
