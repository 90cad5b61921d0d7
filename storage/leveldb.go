package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tolelom/drawchain/core"
)

// LevelDB is a DB on disk. State and blocks share one database under
// disjoint key prefixes.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens or creates the database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		Filter:             filter.NewBloomFilter(10),
		BlockCacheCapacity: 16 * opt.MiB,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, core.ErrNotFound
	}
	return v, err
}

func (l *LevelDB) Set(key, value []byte) error { return l.db.Put(key, value, nil) }
func (l *LevelDB) Delete(key []byte) error     { return l.db.Delete(key, nil) }
func (l *LevelDB) Close() error                { return l.db.Close() }

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

// NewBatch returns a batch that is written with fsync.
func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db}
}

type levelBatch struct {
	db *leveldb.DB
	b  leveldb.Batch
}

func (b *levelBatch) Set(key, value []byte) { b.b.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.b.Delete(key) }
func (b *levelBatch) Reset()                { b.b.Reset() }
func (b *levelBatch) Write() error {
	return b.db.Write(&b.b, &opt.WriteOptions{Sync: true})
}

// ---- blocks ----

var (
	keyTip         = []byte("blk:tip")
	prefixBlock    = "blk:hash:"
	prefixByHeight = "blk:height:"
)

// LevelBlockStore keeps committed blocks by hash with a height index.
type LevelBlockStore struct {
	db *LevelDB
}

func NewLevelBlockStore(db *LevelDB) *LevelBlockStore {
	return &LevelBlockStore{db: db}
}

// heightKey sorts numerically so the index iterates in chain order.
func heightKey(height int64) []byte {
	return binary.BigEndian.AppendUint64([]byte(prefixByHeight), uint64(height))
}

func (s *LevelBlockStore) GetBlock(hash string) (*core.Block, error) {
	data, err := s.db.Get([]byte(prefixBlock + hash))
	if err != nil {
		return nil, fmt.Errorf("block %s: %w", hash, err)
	}
	var b core.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode block %s: %w", hash, err)
	}
	return &b, nil
}

func (s *LevelBlockStore) GetBlockByHeight(height int64) (*core.Block, error) {
	hash, err := s.db.Get(heightKey(height))
	if err != nil {
		return nil, fmt.Errorf("block at %d: %w", height, err)
	}
	return s.GetBlock(string(hash))
}

func (s *LevelBlockStore) GetTip() (string, error) {
	v, err := s.db.Get(keyTip)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	return string(v), err
}

func (s *LevelBlockStore) CommitBlock(block *core.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	batch.Set([]byte(prefixBlock+block.Hash), data)
	batch.Set(heightKey(block.Header.Height), []byte(block.Hash))
	batch.Set(keyTip, []byte(block.Hash))
	return batch.Write()
}
