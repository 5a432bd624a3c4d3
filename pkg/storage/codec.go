package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/DataDog/zstd"
	kbinary "github.com/kelindar/binary"
)

func encodeChunk[T any](rows []T) ([]byte, error) {
	bb, err := kbinary.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}
	return compress(bb)
}

func decodeChunk[T any](bbCompressed []byte) ([]T, error) {
	bb, err := decompress(bbCompressed)
	if err != nil {
		return nil, err
	}
	var rows []T
	if err := kbinary.Unmarshal(bb, &rows); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	return rows, nil
}

func compress(bb []byte) ([]byte, error) {
	var bbCompressed []byte
	bbCompressed, err := zstd.Compress(bbCompressed, bb)
	if err != nil {
		return []byte{}, err
	}
	return bbCompressed, nil
}

func decompress(bbCompressed []byte) ([]byte, error) {
	var bb []byte
	bb, err := zstd.Decompress(bb, bbCompressed)
	if err != nil {
		return []byte{}, err
	}

	return bb, nil
}

func tablePrefix(table string) []byte {
	return []byte(table + "/")
}

func chunkKey(table string, seq uint64) []byte {
	prefix := tablePrefix(table)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

func metaKey(table string) []byte {
	return []byte(metaPrefix + table)
}

// tableMeta is stored under meta/<table>: next chunk sequence and total row count.
type tableMeta struct {
	nextSeq uint64
	rows    uint64
}

func (m tableMeta) encode() []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], m.nextSeq)
	binary.BigEndian.PutUint64(b[8:], m.rows)
	return b
}

func decodeTableMeta(b []byte) (tableMeta, error) {
	if len(b) != 16 {
		return tableMeta{}, fmt.Errorf("table meta has %d bytes, want 16", len(b))
	}
	return tableMeta{
		nextSeq: binary.BigEndian.Uint64(b[:8]),
		rows:    binary.BigEndian.Uint64(b[8:]),
	}, nil
}

// prefixUpperBound returns the smallest key greater than every key with the prefix.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
