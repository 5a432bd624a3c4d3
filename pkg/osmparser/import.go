package osmparser

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/storage"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

// GraphWriter is the write side of the persisted graph store.
type GraphWriter interface {
	PutNodes(ctx context.Context, nodes []datastructure.Node) error
	PutWays(ctx context.Context, ways []datastructure.Way) error
	PutEdges(ctx context.Context, edges []datastructure.EdgeRow) error
	PutTurnRestrictions(ctx context.Context, trs []datastructure.TurnRestriction) error
	DropTable(ctx context.Context, table string) error
	DropCHIndex(ctx context.Context) error
}

type ImportStats struct {
	Nodes            int
	Ways             int
	Edges            int
	TurnRestrictions int
	Took             time.Duration
}

type fileScanner struct {
	osm.Scanner
	f *os.File
}

func (s *fileScanner) Close() error {
	err := s.Scanner.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenFile reads .osm/.xml files as OSM XML and everything else as PBF.
func OpenFile(path string) ScannerFunc {
	return func(ctx context.Context) (osm.Scanner, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrBadParamInput, "open %s", path)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".osm", ".xml":
			return &fileScanner{Scanner: osmxml.New(ctx, f), f: f}, nil
		default:
			return &fileScanner{Scanner: osmpbf.New(ctx, f, runtime.GOMAXPROCS(0)), f: f}, nil
		}
	}
}

// Import parses OSM data and replaces the graph tables of the store. Any
// saved hierarchy is dropped too since it no longer matches the graph.
func Import(ctx context.Context, open ScannerFunc, store GraphWriter, log *zap.Logger) (ImportStats, error) {
	start := time.Now()
	g, err := NewOSMParser(log).Parse(ctx, open)
	if err != nil {
		return ImportStats{}, util.WrapErrorf(err, util.ErrInternalServerError, "parse openstreetmap data")
	}

	if err := store.DropCHIndex(ctx); err != nil {
		return ImportStats{}, err
	}
	for _, table := range []string{storage.TableNodes, storage.TableWays, storage.TableEdges,
		storage.TableTurnRestrictions} {
		if err := store.DropTable(ctx, table); err != nil {
			return ImportStats{}, err
		}
	}

	if err := store.PutNodes(ctx, g.Nodes); err != nil {
		return ImportStats{}, err
	}
	if err := store.PutWays(ctx, g.Ways); err != nil {
		return ImportStats{}, err
	}
	if err := store.PutTurnRestrictions(ctx, g.TurnRestrictions); err != nil {
		return ImportStats{}, err
	}
	if err := store.PutEdges(ctx, g.Edges); err != nil {
		return ImportStats{}, err
	}

	stats := ImportStats{
		Nodes:            len(g.Nodes),
		Ways:             len(g.Ways),
		Edges:            len(g.Edges),
		TurnRestrictions: len(g.TurnRestrictions),
		Took:             time.Since(start),
	}
	log.Info("openstreetmap imported",
		zap.Int("nodes", stats.Nodes), zap.Int("edges", stats.Edges), zap.Duration("took", stats.Took))
	return stats, nil
}
