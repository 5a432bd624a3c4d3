package components

import (
	"context"
	"sort"

	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/uber/h3-go/v4"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

const sampleH3Resolution = 5

type SampledComponent struct {
	SeedNodeID int64
	Size       int
	Capped     bool
}

// SampleStats describes components discovered from sampled seeds. Sizes of capped
// components are lower bounds. These numbers must never gate routing.
type SampleStats struct {
	Seeds        int
	Components   []SampledComponent
	CappedCount  int
	NodesCovered int
	Coverage     float64
	LargestSize  int
	H3Cells      int
}

// AnalyzeSampled runs BFS from up to sampleSize seeds, each capped at perComponentCap
// discovered nodes. Seeds are spread across H3 cells so sparse regions are sampled too.
// It does not touch the labels used by IsConnected.
func (a *Analyzer) AnalyzeSampled(ctx context.Context, sampleSize, perComponentCap int, seed uint64) (SampleStats, error) {
	if err := a.rn.WaitLoaded(ctx); err != nil {
		return SampleStats{}, util.WrapErrorf(err, util.ErrInternalServerError, "sampled analysis: wait for edges")
	}
	if sampleSize <= 0 || perComponentCap <= 0 {
		return SampleStats{}, util.WrapErrorf(nil, util.ErrBadParamInput,
			"sample size and per-component cap must be positive, got %d and %d", sampleSize, perComponentCap)
	}

	rng := rand.New(rand.NewSource(seed))
	seeds, cells := a.stratifiedSeeds(rng, sampleSize)

	seen := make(map[int32]struct{})
	stats := SampleStats{H3Cells: cells}
	queue := make([]int32, 0, 1024)
	steps := 0

	for _, s := range seeds {
		if _, ok := seen[s]; ok {
			continue
		}
		stats.Seeds++
		seen[s] = struct{}{}
		size := 0
		capped := false
		queue = append(queue[:0], s)
	bfs:
		for head := 0; head < len(queue); head++ {
			steps++
			if steps%ctxCheckInterval == 0 && ctx.Err() != nil {
				return SampleStats{}, ctx.Err()
			}
			v := queue[head]
			size++
			if size >= perComponentCap {
				capped = head < len(queue)-1 || a.hasUnseenNeighbor(v, seen)
				break bfs
			}
			for _, e := range a.rn.OutEdges(v) {
				if _, ok := seen[e.To]; !ok {
					seen[e.To] = struct{}{}
					queue = append(queue, e.To)
				}
			}
			for _, e := range a.rn.InEdges(v) {
				if _, ok := seen[e.To]; !ok {
					seen[e.To] = struct{}{}
					queue = append(queue, e.To)
				}
			}
		}

		stats.Components = append(stats.Components, SampledComponent{
			SeedNodeID: a.rn.NodeID(s),
			Size:       size,
			Capped:     capped,
		})
		stats.NodesCovered += size
		if capped {
			stats.CappedCount++
		}
		if size > stats.LargestSize {
			stats.LargestSize = size
		}
	}

	sort.Slice(stats.Components, func(i, j int) bool {
		return stats.Components[i].Size > stats.Components[j].Size
	})
	if n := a.rn.NumNodes(); n > 0 {
		stats.Coverage = float64(stats.NodesCovered) / float64(n)
	}

	a.log.Info("sampled component analysis done", zap.Int("seeds", stats.Seeds),
		zap.Int("components", len(stats.Components)), zap.Int("capped", stats.CappedCount),
		zap.Float64("coverage", stats.Coverage), zap.Int("h3Cells", stats.H3Cells))
	return stats, nil
}

func (a *Analyzer) hasUnseenNeighbor(v int32, seen map[int32]struct{}) bool {
	for _, e := range a.rn.OutEdges(v) {
		if _, ok := seen[e.To]; !ok {
			return true
		}
	}
	for _, e := range a.rn.InEdges(v) {
		if _, ok := seen[e.To]; !ok {
			return true
		}
	}
	return false
}

// stratifiedSeeds buckets nodes by H3 cell and draws round-robin across shuffled cells.
func (a *Analyzer) stratifiedSeeds(rng *rand.Rand, sampleSize int) ([]int32, int) {
	buckets := make(map[h3.Cell][]int32)
	for i := int32(0); i < int32(a.rn.NumNodes()); i++ {
		lat, lon := a.rn.LatLon(i)
		cell := h3.LatLngToCell(h3.NewLatLng(lat, lon), sampleH3Resolution)
		buckets[cell] = append(buckets[cell], i)
	}

	cells := make([]h3.Cell, 0, len(buckets))
	for c := range buckets {
		cells = append(cells, c)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })

	for _, c := range cells {
		b := buckets[c]
		rng.Shuffle(len(b), func(i, j int) { b[i], b[j] = b[j], b[i] })
	}

	seeds := make([]int32, 0, sampleSize)
	for round := 0; len(seeds) < sampleSize; round++ {
		picked := false
		for _, c := range cells {
			b := buckets[c]
			if round < len(b) {
				seeds = append(seeds, b[round])
				picked = true
				if len(seeds) == sampleSize {
					break
				}
			}
		}
		if !picked {
			break
		}
	}
	return seeds, len(cells)
}
