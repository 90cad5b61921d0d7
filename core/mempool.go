package core

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"time"
)

const (
	mempoolCap  = 10_000
	maxTxAge    = int64(time.Hour)
	maxTxFuture = int64(5 * time.Minute)
)

type slot struct {
	from  string
	nonce uint64
}

// Mempool holds signed transactions waiting for a block. A sender has at
// most one transaction per nonce.
type Mempool struct {
	mu      sync.RWMutex
	byID    map[string]*Transaction
	bySlot  map[slot]string
	senders []string // in order of first arrival
	count   map[string]int
}

func NewMempool() *Mempool {
	return &Mempool{
		byID:   make(map[string]*Transaction),
		bySlot: make(map[slot]string),
		count:  make(map[string]int),
	}
}

// Add admits tx after checking its signature and that its timestamp lies
// within an hour in the past and five minutes in the future.
func (m *Mempool) Add(tx *Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("invalid tx signature: %v: %w", err, ErrUnauthorized)
	}
	now := time.Now().UnixNano()
	switch {
	case now-tx.Timestamp > maxTxAge:
		return fmt.Errorf("transaction expired: %w", ErrInvalid)
	case tx.Timestamp-now > maxTxFuture:
		return fmt.Errorf("transaction timestamp too far in the future: %w", ErrInvalid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[tx.ID]; ok {
		return fmt.Errorf("tx %s already pending: %w", tx.ID, ErrAlreadyDone)
	}
	s := slot{tx.From, tx.Nonce}
	if other, ok := m.bySlot[s]; ok {
		return fmt.Errorf("nonce %d of %s taken by pending tx %s: %w", tx.Nonce, tx.From, other, ErrAlreadyDone)
	}
	if len(m.byID) >= mempoolCap {
		return fmt.Errorf("mempool full: %w", ErrInsufficient)
	}
	if m.count[tx.From] == 0 {
		m.senders = append(m.senders, tx.From)
	}
	m.count[tx.From]++
	m.byID[tx.ID] = tx
	m.bySlot[s] = tx.ID
	return nil
}

func (m *Mempool) Get(id string) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.byID[id]
	return tx, ok
}

// Pending returns up to n transactions. Senders are served in arrival order
// and each sender's transactions in nonce order, so a burst submitted out of
// order still executes.
func (m *Mempool) Pending(n int) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bySender := make(map[string][]*Transaction, len(m.senders))
	for _, tx := range m.byID {
		bySender[tx.From] = append(bySender[tx.From], tx)
	}
	out := make([]*Transaction, 0, min(n, len(m.byID)))
	for _, from := range m.senders {
		txs := bySender[from]
		slices.SortFunc(txs, func(a, b *Transaction) int { return cmp.Compare(a.Nonce, b.Nonce) })
		for _, tx := range txs {
			if len(out) == n {
				return out
			}
			out = append(out, tx)
		}
	}
	return out
}

// Remove drops the given transactions, typically after they were offered
// to a block.
func (m *Mempool) Remove(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if tx, ok := m.byID[id]; ok {
			delete(m.bySlot, slot{tx.From, tx.Nonce})
			delete(m.byID, id)
			if m.count[tx.From]--; m.count[tx.From] == 0 {
				delete(m.count, tx.From)
			}
		}
	}
	m.senders = slices.DeleteFunc(m.senders, func(from string) bool { return m.count[from] == 0 })
}

func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
