package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/lintang-b-s/navigatorx-ch/pkg/components"
	"github.com/lintang-b-s/navigatorx-ch/pkg/engine"
	"github.com/lintang-b-s/navigatorx-ch/pkg/logger"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/osmparser"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var (
	configDir   = flag.String("config", "", "directory holding config.yaml (default ./data/ then .)")
	storePath   = flag.String("store", "", "graph store directory, overrides store.path")
	mapFile     = flag.String("f", "", "openstreetmap file (.osm.pbf or .osm) to import before building; empty uses the store as is")
	sampleSize  = flag.Int("sample", -1, "contract only this many nodes, 0 contracts all; -1 uses ch.sample_size")
	statsSample = flag.Int("stats-sample", 1000, "seeds for the sampled component statistics, 0 skips them")
	statsCap    = flag.Int("stats-cap", 100000, "nodes discovered per sampled component")
	noCH        = flag.Bool("no-ch", false, "skip building the contraction hierarchy")
	cpuprofile  = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to this file")
)

func main() {
	flag.Parse()

	zlog, err := logger.New()
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	if *cpuprofile != "" {
		// ./bin/navigatorx-preprocessing -cpuprofile=navigatorxcpu.prof -memprofile=navigatorxmem.mprof
		f, err := os.Create(*cpuprofile)
		if err != nil {
			zlog.Fatal("create cpu profile", zap.Error(err))
		}
		defer f.Close()

		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if err := run(zlog); err != nil {
		zlog.Error("preprocessing failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(zlog *zap.Logger) error {
	var paths []string
	if *configDir != "" {
		paths = append(paths, *configDir)
	}
	cfg, err := util.ReadConfig(paths...)
	if err != nil {
		return err
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *sampleSize >= 0 {
		cfg.CH.SampleSize = *sampleSize
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := metrics.NewMonitor(prometheus.NewRegistry())

	store, err := storage.Open(cfg.Store, zlog)
	if err != nil {
		return err
	}
	defer store.Close()

	if *mapFile != "" {
		zlog.Info("reading openstreetmap file", zap.String("file", *mapFile))
		if _, err := osmparser.Import(ctx, osmparser.OpenFile(*mapFile), store, zlog); err != nil {
			return err
		}
		recordMemProfile(memprofile, "parsing_osm_data")
	}

	rn, err := engine.LoadGraph(ctx, store, cfg, zlog, monitor)
	if err != nil {
		return err
	}
	eng, err := engine.NewEngine(rn, store, cfg, zlog, monitor)
	if err != nil {
		return err
	}

	if !*noCH {
		ix, err := eng.BuildCHIndex(ctx, cfg.CH.SampleSize)
		if err != nil {
			return err
		}
		if err := eng.Save(ctx); err != nil {
			return err
		}
		zlog.Info("contraction hierarchy ready",
			zap.Int("contracted", ix.NumContracted()), zap.Int("shortcuts", ix.NumShortcuts()))
		recordMemProfile(memprofile, "finish_contracting_graph")
	}

	if *statsSample > 0 {
		stats, err := eng.Components().AnalyzeSampled(ctx, *statsSample, *statsCap, 42)
		if err != nil {
			return err
		}
		zlog.Info("sampled component statistics",
			zap.Int("seeds", stats.Seeds), zap.Int("components", len(stats.Components)),
			zap.Int("largest", stats.LargestSize), zap.Int("capped", stats.CappedCount),
			zap.Float64("coverage", stats.Coverage), zap.Int("h3Cells", stats.H3Cells))

		scc, err := components.StronglyConnected(ctx, rn)
		if err != nil {
			return err
		}
		zlog.Info("strongly connected components", zap.Int("count", scc.Count), zap.Int("largest", scc.LargestSize))
	}

	fmt.Printf("\npreprocessing done, graph store at %s\n", cfg.Store.Path)
	return nil
}

func recordMemProfile(memprofile *string, name string) {
	if *memprofile == "" {
		return
	}
	path := strings.Replace(*memprofile, ".mprof", fmt.Sprintf("%s.mprof", name), -1)
	f, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	pprof.WriteHeapProfile(f)
}
