package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/lintang-b-s/navigatorx-ch/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"go.uber.org/zap"
)

var (
	errKeyNotFound = errors.New("key not found")

	ErrCorruptChunk = errors.New("corrupt table chunk")
)

type kvPair struct {
	key   []byte
	value []byte
}

type kvBackend interface {
	writeBatch(ctx context.Context, kvs []kvPair) error
	get(key []byte) ([]byte, error)
	iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error
	dropPrefix(prefix []byte) error
	close() error
}

// Store persists the graph tables as sequences of compressed row chunks.
type Store struct {
	kv        kvBackend
	chunkRows int
	log       *zap.Logger

	mu   sync.Mutex // serialises chunk sequence allocation
	chMu sync.Mutex // serialises hierarchy generation swaps
}

func Open(cfg util.StoreConfig, log *zap.Logger) (*Store, error) {
	var (
		kv  kvBackend
		err error
	)
	switch cfg.Engine {
	case ENGINE_BADGER, "":
		kv, err = openBadger(cfg.Path, cfg.InMemory)
	case ENGINE_PEBBLE:
		kv, err = openPebble(cfg.Path, cfg.InMemory)
	default:
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "unknown store engine %q", cfg.Engine)
	}
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInternalServerError, "open %s store at %q", cfg.Engine, cfg.Path)
	}

	chunkRows := cfg.ChunkRows
	if chunkRows <= 0 {
		chunkRows = DEFAULT_CHUNK_ROWS
	}
	log.Info("graph store opened", zap.String("engine", cfg.Engine), zap.String("path", cfg.Path),
		zap.Bool("inMemory", cfg.InMemory))
	return &Store{kv: kv, chunkRows: chunkRows, log: log}, nil
}

func (s *Store) Close() error {
	return s.kv.close()
}

func (s *Store) readMeta(table string) (tableMeta, error) {
	b, err := s.kv.get(metaKey(table))
	if errors.Is(err, errKeyNotFound) {
		return tableMeta{}, nil
	}
	if err != nil {
		return tableMeta{}, err
	}
	return decodeTableMeta(b)
}

// putRows appends rows to table, one batch per chunkRows rows.
func putRows[T any](ctx context.Context, s *Store, table string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(table)
	if err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "read %s meta", table)
	}

	for start := 0; start < len(rows); start += s.chunkRows {
		end := util.MinInt(start+s.chunkRows, len(rows))
		val, err := encodeChunk(rows[start:end])
		if err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError, "encode %s chunk", table)
		}

		meta.nextSeq++
		meta.rows += uint64(end - start)
		batch := []kvPair{
			{key: chunkKey(table, meta.nextSeq-1), value: val},
			{key: metaKey(table), value: meta.encode()},
		}
		if err := s.kv.writeBatch(ctx, batch); err != nil {
			return util.WrapErrorf(err, util.ErrInternalServerError, "write %s chunk %d", table, meta.nextSeq-1)
		}
	}

	s.log.Debug("rows saved", zap.String("table", table), zap.Int("rows", len(rows)))
	return nil
}

// forEachRows streams table chunk by chunk; peak memory is one chunk.
func forEachRows[T any](ctx context.Context, s *Store, table string, fn func(rows []T) error) error {
	return s.kv.iterate(ctx, tablePrefix(table), func(key, value []byte) error {
		rows, err := decodeChunk[T](value)
		if err != nil {
			return util.WrapErrorf(fmt.Errorf("%w: %v", ErrCorruptChunk, err), util.ErrInternalServerError,
				"load %s chunk %x", table, key)
		}
		return fn(rows)
	})
}

func (s *Store) PutNodes(ctx context.Context, nodes []datastructure.Node) error {
	return putRows(ctx, s, TableNodes, nodes)
}

func (s *Store) PutWays(ctx context.Context, ways []datastructure.Way) error {
	return putRows(ctx, s, TableWays, ways)
}

func (s *Store) PutEdges(ctx context.Context, edges []datastructure.EdgeRow) error {
	return putRows(ctx, s, TableEdges, edges)
}

func (s *Store) PutTurnRestrictions(ctx context.Context, trs []datastructure.TurnRestriction) error {
	return putRows(ctx, s, TableTurnRestrictions, trs)
}

func (s *Store) ForEachNodeBatch(ctx context.Context, fn func([]datastructure.Node) error) error {
	return forEachRows(ctx, s, TableNodes, fn)
}

func (s *Store) ForEachWayBatch(ctx context.Context, fn func([]datastructure.Way) error) error {
	return forEachRows(ctx, s, TableWays, fn)
}

func (s *Store) ForEachEdgeBatch(ctx context.Context, fn func([]datastructure.EdgeRow) error) error {
	return forEachRows(ctx, s, TableEdges, fn)
}

func (s *Store) ForEachTurnRestrictionBatch(ctx context.Context, fn func([]datastructure.TurnRestriction) error) error {
	return forEachRows(ctx, s, TableTurnRestrictions, fn)
}

func (s *Store) ForEachCHNodeOrderBatch(ctx context.Context, fn func([]datastructure.CHNodeOrder) error) error {
	gen, err := s.chGeneration()
	if err != nil {
		return err
	}
	return forEachRows(ctx, s, chTable(TableCHNodeOrder, gen), fn)
}

func (s *Store) ForEachCHShortcutBatch(ctx context.Context, fn func([]datastructure.Shortcut) error) error {
	gen, err := s.chGeneration()
	if err != nil {
		return err
	}
	return forEachRows(ctx, s, chTable(TableCHShortcuts, gen), fn)
}

// CountRows returns the number of rows written to table.
func (s *Store) CountRows(table string) (int, error) {
	meta, err := s.readMeta(table)
	if err != nil {
		return 0, util.WrapErrorf(err, util.ErrInternalServerError, "read %s meta", table)
	}
	return int(meta.rows), nil
}

func (s *Store) CountNodes() (int, error) {
	return s.CountRows(TableNodes)
}

// HasCHIndex reports whether a hierarchy has been persisted.
func (s *Store) HasCHIndex() (bool, error) {
	gen, err := s.chGeneration()
	if err != nil {
		return false, err
	}
	n, err := s.CountRows(chTable(TableCHNodeOrder, gen))
	return n > 0, err
}

// chTable names the table holding one generation of a hierarchy table.
// Generation 0 is the unversioned table.
func chTable(table string, gen uint64) string {
	if gen == 0 {
		return table
	}
	return fmt.Sprintf("%s.%d", table, gen)
}

// chGeneration returns the generation readers see.
func (s *Store) chGeneration() (uint64, error) {
	b, err := s.kv.get([]byte(chGenerationKey))
	if errors.Is(err, errKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, util.WrapErrorf(err, util.ErrInternalServerError, "read ch generation")
	}
	if len(b) != 8 {
		return 0, util.WrapErrorf(nil, util.ErrInternalServerError, "ch generation has %d bytes, want 8", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

func (s *Store) setCHGeneration(ctx context.Context, gen uint64) error {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, gen)
	if err := s.kv.writeBatch(ctx, []kvPair{{key: []byte(chGenerationKey), value: b}}); err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "switch ch generation to %d", gen)
	}
	return nil
}

func (s *Store) dropCHGeneration(ctx context.Context, gen uint64) error {
	for _, table := range []string{TableCHNodeOrder, TableCHShortcuts} {
		if err := s.DropTable(ctx, chTable(table, gen)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DropTable(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.dropPrefix(tablePrefix(table)); err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "drop %s", table)
	}
	if err := s.kv.writeBatch(ctx, []kvPair{{key: metaKey(table), value: tableMeta{}.encode()}}); err != nil {
		return util.WrapErrorf(err, util.ErrInternalServerError, "reset %s meta", table)
	}
	return nil
}

// ReplaceCHIndex writes the given hierarchy as a new generation and then
// switches readers to it with a single key write. Until that write readers
// keep seeing the previous hierarchy in full, so a failure part way leaves
// it intact.
func (s *Store) ReplaceCHIndex(ctx context.Context, order []datastructure.CHNodeOrder, shortcuts []datastructure.Shortcut) error {
	s.chMu.Lock()
	defer s.chMu.Unlock()

	cur, err := s.chGeneration()
	if err != nil {
		return err
	}
	next := cur + 1

	// leftovers of an earlier attempt that never switched over
	if err := s.dropCHGeneration(ctx, next); err != nil {
		return err
	}
	if err := putRows(ctx, s, chTable(TableCHNodeOrder, next), order); err != nil {
		return err
	}
	if err := putRows(ctx, s, chTable(TableCHShortcuts, next), shortcuts); err != nil {
		return err
	}
	if err := s.setCHGeneration(ctx, next); err != nil {
		return err
	}

	if err := s.dropCHGeneration(ctx, cur); err != nil {
		s.log.Warn("old contraction hierarchy generation not dropped", zap.Uint64("generation", cur), zap.Error(err))
	}
	s.log.Info("contraction hierarchy saved", zap.Uint64("generation", next),
		zap.Int("nodeOrder", len(order)), zap.Int("shortcuts", len(shortcuts)))
	return nil
}

// DropCHIndex removes the persisted hierarchy.
func (s *Store) DropCHIndex(ctx context.Context) error {
	s.chMu.Lock()
	defer s.chMu.Unlock()

	cur, err := s.chGeneration()
	if err != nil {
		return err
	}
	if err := s.dropCHGeneration(ctx, 0); err != nil {
		return err
	}
	if cur == 0 {
		return nil
	}
	if err := s.setCHGeneration(ctx, 0); err != nil {
		return err
	}
	return s.dropCHGeneration(ctx, cur)
}
