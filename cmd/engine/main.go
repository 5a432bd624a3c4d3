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

	"github.com/lintang-b-s/navigatorx-ch/pkg/engine"
	"github.com/lintang-b-s/navigatorx-ch/pkg/logger"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/server/rest"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configDir    = flag.String("config", "", "directory holding config.yaml (default ./data/ then .)")
	storePath    = flag.String("store", "", "graph store directory, overrides store.path")
	port         = flag.Int("port", 0, "server port, overrides server.port")
	memprofile   = flag.String("memprofile", "", "write memory profile to this file")
	useRateLimit = flag.Bool("ratelimit", false, "use rate limit")
)

func main() {
	flag.Parse()

	zlog, err := logger.New()
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	var paths []string
	if *configDir != "" {
		paths = append(paths, *configDir)
	}
	cfg, err := util.ReadConfig(paths...)
	if err != nil {
		zlog.Fatal("read config", zap.Error(err))
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *useRateLimit {
		cfg.Server.UseRateLimit = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	monitor := metrics.NewMonitor(reg)

	store, err := storage.Open(cfg.Store, zlog)
	if err != nil {
		zlog.Fatal("open graph store", zap.Error(err))
	}
	defer store.Close()

	rn, err := engine.LoadGraph(ctx, store, cfg, zlog, monitor)
	if err != nil {
		zlog.Fatal("load graph", zap.Error(err))
	}
	recordMemProfile(memprofile, "load_graph", zlog)

	eng, err := engine.NewEngine(rn, store, cfg, zlog, monitor)
	if err != nil {
		zlog.Fatal("create engine", zap.Error(err))
	}
	eng.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := eng.WaitReady(gctx); err != nil {
			// routing keeps working without the component gate and CH
			zlog.Error("engine not fully prepared", zap.Error(err))
			return nil
		}
		recordMemProfile(memprofile, "engine_ready", zlog)
		zlog.Info("engine ready",
			zap.Bool("ch", eng.Router().Hierarchy() != nil),
			zap.Int("components", eng.Components().NumComponents()))
		return nil
	})
	g.Go(func() error {
		return rest.Serve(gctx, rest.NewRouter(eng, cfg.Server, monitor, zlog), cfg.Server, zlog)
	})

	if err := g.Wait(); err != nil {
		zlog.Error("server stopped", zap.Error(err))
	}
}

func recordMemProfile(memprofile *string, name string, zlog *zap.Logger) {
	if *memprofile == "" {
		return
	}
	path := strings.Replace(*memprofile, ".mprof", fmt.Sprintf("%s.mprof", name), -1)
	f, err := os.Create(path)
	if err != nil {
		zlog.Error("create heap profile", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()
	if err := pprof.WriteHeapProfile(f); err != nil {
		zlog.Error("write heap profile", zap.String("path", path), zap.Error(err))
	}
}
