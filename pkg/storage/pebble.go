package storage

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

type pebbleBackend struct {
	db *pebble.DB
}

func openPebble(path string, inMemory bool) (*pebbleBackend, error) {
	opts := &pebble.Options{}
	if inMemory {
		opts.FS = vfs.NewMem()
		path = "navigatorx-graphdb"
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &pebbleBackend{db: db}, nil
}

func (p *pebbleBackend) writeBatch(ctx context.Context, kvs []kvPair) error {
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, kv := range kvs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := batch.Set(kv.key, kv.value, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (p *pebbleBackend) get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (p *pebbleBackend) iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return err
	}

	for iter.First(); iter.Valid(); iter.Next() {
		select {
		case <-ctx.Done():
			iter.Close()
			return ctx.Err()
		default:
		}

		key := append([]byte(nil), iter.Key()...)
		val := append([]byte(nil), iter.Value()...)
		if err := fn(key, val); err != nil {
			iter.Close()
			return err
		}
	}
	return iter.Close()
}

func (p *pebbleBackend) dropPrefix(prefix []byte) error {
	return p.db.DeleteRange(prefix, prefixUpperBound(prefix), pebble.Sync)
}

func (p *pebbleBackend) close() error {
	return p.db.Close()
}
