package storage

import (
	"bytes"
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
)

type badgerBackend struct {
	db *badger.DB
}

func openBadger(path string, inMemory bool) (*badgerBackend, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &badgerBackend{db: db}, nil
}

func (k *badgerBackend) writeBatch(ctx context.Context, kvs []kvPair) error {
	batch := k.db.NewWriteBatch()
	defer batch.Cancel()

	for _, kv := range kvs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := batch.Set(kv.key, kv.value); err != nil {
			return err
		}
	}

	return batch.Flush()
}

func (k *badgerBackend) get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, errKeyNotFound
	}
	return val, err
}

func (k *badgerBackend) iterate(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	return k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = 4
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.KeyCopy(nil), val); err != nil {
				return err
			}
		}
		return nil
	})
}

func (k *badgerBackend) dropPrefix(prefix []byte) error {
	keys := make([][]byte, 0)
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return err
	}

	batch := k.db.NewWriteBatch()
	defer batch.Cancel()
	for _, key := range keys {
		if !bytes.HasPrefix(key, prefix) {
			continue
		}
		if err := batch.Delete(key); err != nil {
			return err
		}
	}
	return batch.Flush()
}

func (k *badgerBackend) close() error {
	return k.db.Close()
}
