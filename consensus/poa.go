// Package consensus implements single-authority block production. The
// configured proposer orders mempool transactions into blocks, executes
// them and commits the resulting state.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/config"
	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/vm"
)

// PoA is the Proof-of-Authority block producer.
type PoA struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	privKey crypto.PrivateKey
	address string

	// Clock supplies block timestamps. Handlers read it as the current time.
	Clock func() time.Time
}

// New creates a PoA engine for the local proposer identified by privKey.
func New(
	cfg *config.Config,
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	privKey crypto.PrivateKey,
) *PoA {
	return &PoA{
		cfg:     cfg,
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		privKey: privKey,
		address: privKey.Address(),
		Clock:   time.Now,
	}
}

// Address is the proposer identity blocks are signed with.
func (p *PoA) Address() string { return p.address }

// IsProposer reports whether this node is the configured authority.
func (p *PoA) IsProposer() bool {
	return p.cfg.Proposer != "" && p.cfg.Proposer == p.address
}

// ProduceBlock builds, executes, signs and commits the next block. The
// receipts cover every transaction included in the block.
func (p *PoA) ProduceBlock() (*core.Block, []*core.Receipt, error) {
	if !p.IsProposer() {
		return nil, nil, errors.New("not the configured proposer")
	}

	limit := p.cfg.MaxBlockTxs
	if limit <= 0 {
		limit = 500
	}
	txs := p.mempool.Pending(limit)

	tip := p.bc.Tip()
	prevHash, nextHeight, ts := config.GenesisHash, int64(1), p.Clock().UnixNano()
	if tip != nil {
		prevHash = tip.Hash
		nextHeight = tip.Header.Height + 1
		// Block time never goes backwards, so deadlines stay monotonic.
		ts = max(ts, tip.Header.Timestamp+1)
	}

	block := core.NewBlockAt(nextHeight, prevHash, p.address, txs, ts)
	receipts := p.exec.ExecuteBlock(block)

	// Compute root from the write buffer BEFORE flushing so that if AddBlock
	// fails the state has not yet been persisted and the node stays consistent.
	block.Header.StateRoot = p.state.ComputeRoot()
	block.Sign(p.privKey)

	if err := p.bc.AddBlock(block); err != nil {
		return nil, nil, fmt.Errorf("add block: %w", err)
	}

	// Flush state only after the block is safely stored.
	if err := p.state.Commit(); err != nil {
		log.Fatalf("block %d stored but state commit failed: %v", block.Header.Height, err)
	}

	// Emit after Sign() so block.Hash is set correctly.
	if p.emitter != nil {
		p.emitter.Emit(events.Event{
			Type:        events.EventBlockCommit,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"hash": block.Hash, "txs": len(block.Transactions)},
		})
	}

	// Transactions dropped at pre-check leave the pool too; they can be
	// resubmitted with a corrected nonce or fee.
	txIDs := make([]string, len(txs))
	for i, tx := range txs {
		txIDs[i] = tx.ID
	}
	p.mempool.Remove(txIDs)

	return block, receipts, nil
}

// ValidateBlock checks that block was signed by the configured proposer and
// links to the current tip.
func (p *PoA) ValidateBlock(block *core.Block) error {
	if block.Header.Proposer != p.cfg.Proposer {
		return fmt.Errorf("wrong proposer: got %s want %s", block.Header.Proposer, p.cfg.Proposer)
	}
	if err := block.Verify(); err != nil {
		return fmt.Errorf("block signature invalid: %w", err)
	}

	tip := p.bc.Tip()
	if tip == nil {
		if !config.IsGenesisHash(block.Header.PrevHash) {
			return errors.New("first block must reference genesis prev-hash")
		}
		return nil
	}
	if block.Header.PrevHash != tip.Hash {
		return fmt.Errorf("prev_hash mismatch: got %s want %s", block.Header.PrevHash, tip.Hash)
	}
	if block.Header.Height != tip.Header.Height+1 {
		return fmt.Errorf("height mismatch: got %d want %d", block.Header.Height, tip.Header.Height+1)
	}
	return nil
}

// Run produces a block every interval until ctx is cancelled. Empty
// intervals still produce a block so time-based operations can proceed.
func (p *PoA) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.IsProposer() {
				continue
			}
			block, receipts, err := p.ProduceBlock()
			if err != nil {
				log.Errorf("produce block: %v", err)
				continue
			}
			failed := 0
			for _, r := range receipts {
				if !r.Success {
					failed++
				}
			}
			log.WithFields(log.Fields{
				"height": block.Header.Height,
				"time":   block.Time().UTC().Format(time.RFC3339),
				"txs":    len(block.Transactions),
				"failed": failed,
			}).Debug("block committed")
		}
	}
}
