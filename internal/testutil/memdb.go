// Package testutil holds in-memory storage and a transaction harness for
// package tests. Production code must not import it.
package testutil

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/storage"
)

// MemDB is a storage.DB kept in a map. Iteration is in key order, like
// LevelDB.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

// NewStateDB returns a StateDB over a fresh MemDB.
func NewStateDB() *storage.StateDB {
	return storage.NewStateDB(NewMemDB())
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemDB) Set(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = slices.Clone(value)
	return nil
}

func (m *MemDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemDB) Close() error { return nil }

// NewIterator snapshots the matching keys at call time.
func (m *MemDB) NewIterator(prefix []byte) storage.Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it := &memIter{pos: -1}
	for _, k := range slices.Sorted(maps.Keys(m.data)) {
		if strings.HasPrefix(k, string(prefix)) {
			it.keys = append(it.keys, k)
			it.vals = append(it.vals, slices.Clone(m.data[k]))
		}
	}
	return it
}

type memIter struct {
	keys []string
	vals [][]byte
	pos  int
}

func (it *memIter) Next() bool    { it.pos++; return it.pos < len(it.keys) }
func (it *memIter) Key() []byte   { return []byte(it.keys[it.pos]) }
func (it *memIter) Value() []byte { return it.vals[it.pos] }
func (it *memIter) Release()      {}
func (it *memIter) Error() error  { return nil }

func (m *MemDB) NewBatch() storage.Batch { return &memBatch{db: m} }

// memBatch queues writes; a nil value marks a delete.
type memBatch struct {
	db   *MemDB
	keys []string
	vals [][]byte
}

func (b *memBatch) Set(key, value []byte) {
	b.keys = append(b.keys, string(key))
	b.vals = append(b.vals, append([]byte{}, value...))
}

func (b *memBatch) Delete(key []byte) {
	b.keys = append(b.keys, string(key))
	b.vals = append(b.vals, nil)
}

func (b *memBatch) Reset() { b.keys, b.vals = nil, nil }

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for i, k := range b.keys {
		if b.vals[i] == nil {
			delete(b.db.data, k)
			continue
		}
		b.db.data[k] = b.vals[i]
	}
	return nil
}

// MemBlockStore is a core.BlockStore for tests.
type MemBlockStore struct {
	mu       sync.RWMutex
	byHash   map[string]*core.Block
	byHeight map[int64]*core.Block
	tip      string
}

func NewMemBlockStore() *MemBlockStore {
	return &MemBlockStore{
		byHash:   make(map[string]*core.Block),
		byHeight: make(map[int64]*core.Block),
	}
}

func (s *MemBlockStore) GetBlock(hash string) (*core.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.byHash[hash]; ok {
		return b, nil
	}
	return nil, core.ErrNotFound
}

func (s *MemBlockStore) GetBlockByHeight(height int64) (*core.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.byHeight[height]; ok {
		return b, nil
	}
	return nil, core.ErrNotFound
}

func (s *MemBlockStore) GetTip() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tip, nil
}

func (s *MemBlockStore) CommitBlock(b *core.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[b.Hash] = b
	s.byHeight[b.Header.Height] = b
	s.tip = b.Hash
	return nil
}
