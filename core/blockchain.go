package core

import (
	"fmt"
	"sync"
)

// BlockStore persists committed blocks. Implementations live in the storage
// package.
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	GetBlockByHeight(height int64) (*Block, error)
	// GetTip returns the tip hash, or ("", nil) before genesis.
	GetTip() (string, error)
	// CommitBlock writes the block, its height entry and the new tip in a
	// single batch.
	CommitBlock(block *Block) error
}

// Blockchain tracks the canonical tip. Block timestamps are the clock every
// round deadline and oracle timeout is measured against, so AddBlock refuses
// a block whose time does not move forward.
type Blockchain struct {
	mu    sync.RWMutex
	store BlockStore
	tip   *Block
}

// NewBlockchain returns a Blockchain over store. Init restores an existing
// tip.
func NewBlockchain(store BlockStore) *Blockchain {
	return &Blockchain{store: store}
}

// Init loads the persisted tip, if any.
func (bc *Blockchain) Init() error {
	hash, err := bc.store.GetTip()
	if err != nil {
		return fmt.Errorf("read tip: %w", err)
	}
	if hash == "" {
		return nil
	}
	tip, err := bc.store.GetBlock(hash)
	if err != nil {
		return fmt.Errorf("tip %s: %w", hash, err)
	}
	bc.mu.Lock()
	bc.tip = tip
	bc.mu.Unlock()
	return nil
}

// AddBlock persists block as the new tip.
func (bc *Blockchain) AddBlock(block *Block) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if err := extends(bc.tip, block); err != nil {
		return err
	}
	if err := bc.store.CommitBlock(block); err != nil {
		return fmt.Errorf("commit block %d: %w", block.Header.Height, err)
	}
	bc.tip = block
	return nil
}

func extends(tip, b *Block) error {
	if tip == nil {
		return nil
	}
	h := b.Header
	switch {
	case h.Height != tip.Header.Height+1:
		return fmt.Errorf("height %d does not follow %d: %w", h.Height, tip.Header.Height, ErrInvalid)
	case h.PrevHash != tip.Hash:
		return fmt.Errorf("prev hash %s is not the tip %s: %w", h.PrevHash, tip.Hash, ErrInvalid)
	case h.Timestamp <= tip.Header.Timestamp:
		return fmt.Errorf("block time %d not after tip time %d: %w", h.Timestamp, tip.Header.Timestamp, ErrInvalid)
	}
	return nil
}

func (bc *Blockchain) GetBlock(hash string) (*Block, error) {
	return bc.store.GetBlock(hash)
}

func (bc *Blockchain) GetBlockByHeight(height int64) (*Block, error) {
	return bc.store.GetBlockByHeight(height)
}

// Tip returns the latest block, or nil before genesis.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// Height is the tip height, 0 before genesis.
func (bc *Blockchain) Height() int64 {
	if tip := bc.Tip(); tip != nil {
		return tip.Header.Height
	}
	return 0
}
