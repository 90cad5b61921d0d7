package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixAccount    = registerPrefix("acct:")
	prefixConfig     = registerPrefix("cfg:")
	prefixRound      = registerPrefix("round:")
	prefixCard       = registerPrefix("card:")
	prefixEntries    = registerPrefix("entries:")
	prefixClaim      = registerPrefix("claim:")
	prefixRandomness = registerPrefix("vrf:")
	prefixKeno       = registerPrefix("keno:")
	prefixBet        = registerPrefix("bet:")
	prefixTable      = registerPrefix("table:")
	prefixReceipt    = registerPrefix("rcpt:")
)

// Singleton keys live under their own registered prefixes.
var (
	keyGameConfig = prefixConfig + "game"
	keyBingoState = prefixConfig + "bingo"
	keyKenoState  = prefixKeno + "state"
)

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

// load decodes the record at key into a fresh T.
func load[T any](s *StateDB, key string) (*T, error) {
	data, err := s.get(key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// loadOrZero is load, returning a zero T when the key is absent.
func loadOrZero[T any](s *StateDB, key string) (*T, error) {
	v, err := load[T](s, key)
	if errors.Is(err, core.ErrNotFound) {
		return new(T), nil
	}
	return v, err
}

func (s *StateDB) store(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// u64Key renders ids fixed-width so prefix scans return them in order.
func u64Key(prefix string, id uint64) string {
	return fmt.Sprintf("%s%020d", prefix, id)
}

// ---- Account ----

func (s *StateDB) GetAccount(address string) (*core.Account, error) {
	acc, err := load[core.Account](s, prefixAccount+address)
	if errors.Is(err, core.ErrNotFound) {
		return &core.Account{Address: address}, nil // zero-value account
	}
	return acc, err
}

func (s *StateDB) SetAccount(acc *core.Account) error {
	return s.store(prefixAccount+acc.Address, acc)
}

// ---- Configuration ----

func (s *StateDB) GetGameConfig() (*core.GameConfig, error) {
	return loadOrZero[core.GameConfig](s, keyGameConfig)
}

func (s *StateDB) SetGameConfig(cfg *core.GameConfig) error {
	return s.store(keyGameConfig, cfg)
}

// ---- Rounds ----

func (s *StateDB) GetBingoState() (*core.BingoState, error) {
	return loadOrZero[core.BingoState](s, keyBingoState)
}

func (s *StateDB) SetBingoState(bs *core.BingoState) error {
	return s.store(keyBingoState, bs)
}

func (s *StateDB) GetRound(id uint64) (*core.Round, error) {
	return load[core.Round](s, u64Key(prefixRound, id))
}

func (s *StateDB) SetRound(r *core.Round) error {
	return s.store(u64Key(prefixRound, r.ID), r)
}

func cardKey(roundID uint64, index uint32) string {
	return fmt.Sprintf("%s%020d:%010d", prefixCard, roundID, index)
}

func (s *StateDB) GetCard(roundID uint64, index uint32) (*core.Card, error) {
	return load[core.Card](s, cardKey(roundID, index))
}

func (s *StateDB) SetCard(c *core.Card) error {
	return s.store(cardKey(c.RoundID, c.Index), c)
}

func playerKey(prefix string, roundID uint64, player string) string {
	return fmt.Sprintf("%s%020d:%s", prefix, roundID, player)
}

func (s *StateDB) GetPlayerEntries(roundID uint64, player string) (uint32, error) {
	n, err := loadOrZero[uint32](s, playerKey(prefixEntries, roundID, player))
	if err != nil {
		return 0, err
	}
	return *n, nil
}

func (s *StateDB) SetPlayerEntries(roundID uint64, player string, count uint32) error {
	return s.store(playerKey(prefixEntries, roundID, player), count)
}

func (s *StateDB) GetClaim(roundID uint64, player string) (*core.Claim, error) {
	c, err := load[core.Claim](s, playerKey(prefixClaim, roundID, player))
	if errors.Is(err, core.ErrNotFound) {
		return &core.Claim{RoundID: roundID, Player: player}, nil
	}
	return c, err
}

func (s *StateDB) SetClaim(c *core.Claim) error {
	return s.store(playerKey(prefixClaim, c.RoundID, c.Player), c)
}

// ---- Randomness ----

func (s *StateDB) GetRandomnessRequest(id string) (*core.RandomnessRequest, error) {
	return load[core.RandomnessRequest](s, prefixRandomness+id)
}

func (s *StateDB) SetRandomnessRequest(req *core.RandomnessRequest) error {
	return s.store(prefixRandomness+req.ID, req)
}

// ---- Keno ----

func (s *StateDB) GetKenoState() (*core.KenoState, error) {
	return loadOrZero[core.KenoState](s, keyKenoState)
}

func (s *StateDB) SetKenoState(ks *core.KenoState) error {
	return s.store(keyKenoState, ks)
}

func (s *StateDB) GetKenoBet(id uint64) (*core.KenoBet, error) {
	return load[core.KenoBet](s, u64Key(prefixBet, id))
}

func (s *StateDB) SetKenoBet(b *core.KenoBet) error {
	return s.store(u64Key(prefixBet, b.ID), b)
}

func (s *StateDB) GetPayoutTable(version uint32) (*core.PayoutTable, error) {
	return load[core.PayoutTable](s, u64Key(prefixTable, uint64(version)))
}

func (s *StateDB) SetPayoutTable(t *core.PayoutTable) error {
	return s.store(u64Key(prefixTable, uint64(t.Version)), t)
}

// ---- Receipts ----

func (s *StateDB) GetReceipt(txID string) (*core.Receipt, error) {
	return load[core.Receipt](s, prefixReceipt+txID)
}

func (s *StateDB) SetReceipt(r *core.Receipt) error {
	return s.store(prefixReceipt+r.TxID, r)
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot.
// The snapshot maps are deep-copied so that subsequent writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete world state.
// It merges all persisted state entries (scanned from DB by the known state
// prefixes) with the current write buffer, then hashes the sorted key-value
// pairs using length-prefix encoding.  It does NOT flush or modify state,
// so it is safe to call before signing a block.
func (s *StateDB) ComputeRoot() string {
	// Step 1: collect all persisted state entries from DB.
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		it := s.db.NewIterator([]byte(prefix))
		for it.Next() {
			k := string(it.Key())
			v := make([]byte, len(it.Value()))
			copy(v, it.Value())
			merged[k] = v
		}
		it.Release()
	}

	// Step 2: apply in-memory write buffer (uncommitted changes this block).
	for k, v := range s.dirty {
		merged[k] = v
	}

	// Step 3: exclude deleted keys.
	for k := range s.deleted {
		delete(merged, k)
	}

	// Step 4: sort keys for determinism.
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Step 5: length-prefix encode each key-value pair and hash.
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes())
}

// Commit atomically flushes the write buffer to the underlying DB via a
// WriteBatch and then clears it. Call ComputeRoot() before signing the block,
// then call Commit() after the block is safely stored.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
