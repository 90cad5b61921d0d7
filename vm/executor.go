package vm

import (
	"fmt"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
)

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	emitter *events.Emitter

	mu    sync.RWMutex
	hooks map[string]ReceiveHook
}

// NewExecutor creates an Executor with the given state and event emitter.
// emitter may be nil.
func NewExecutor(state core.State, emitter *events.Emitter) *Executor {
	return &Executor{state: state, emitter: emitter, hooks: make(map[string]ReceiveHook)}
}

// SetReceiveHook installs h to run whenever an engine payout credits addr.
// A nil h removes the hook.
func (e *Executor) SetReceiveHook(addr string, h ReceiveHook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if h == nil {
		delete(e.hooks, addr)
		return
	}
	e.hooks[addr] = h
}

func (e *Executor) receiveHook(addr string) ReceiveHook {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hooks[addr]
}

// ExecuteBlock applies the block's transactions in order. Transactions that
// fail pre-checks are dropped from the block; handler failures stay in the
// block with a failed receipt. EventBlockCommit is emitted by the caller
// (consensus) after signing so the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) []*core.Receipt {
	included := make([]*core.Transaction, 0, len(block.Transactions))
	receipts := make([]*core.Receipt, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		rec, err := e.ExecuteTx(block, tx)
		if rec == nil {
			log.WithFields(log.Fields{"tx": tx.ID, "type": tx.Type}).Warnf("dropping tx: %v", err)
			continue
		}
		included = append(included, tx)
		receipts = append(receipts, rec)
	}
	block.SetTransactions(included)
	return receipts
}

// ExecuteTx verifies and executes a single transaction. A nil receipt means
// the transaction failed pre-checks and left no trace. Otherwise the nonce
// and fee are consumed, the handler's effects are kept only on success, and
// the handler error (if any) is returned alongside the failed receipt.
func (e *Executor) ExecuteTx(block *core.Block, tx *core.Transaction) (*core.Receipt, error) {
	if err := tx.Verify(); err != nil {
		return nil, fmt.Errorf("signature: %w: %w", err, core.ErrUnauthorized)
	}
	if err := e.charge(tx); err != nil {
		return nil, err
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	var pending []events.Event
	ctx := &Context{
		State:   e.state,
		Block:   block,
		Tx:      tx,
		exec:    e,
		events:  &pending,
		entered: make(map[string]bool),
	}
	herr := dispatch(tx.Type, ctx, tx.Payload)
	if herr != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", herr, revertErr)
		}
		pending = nil
	}

	rec := &core.Receipt{
		TxID:        tx.ID,
		Type:        tx.Type,
		From:        tx.From,
		BlockHeight: block.Header.Height,
		Success:     herr == nil,
	}
	if herr != nil {
		rec.Error = herr.Error()
		rec.Category = core.Category(herr)
	}
	if err := e.state.SetReceipt(rec); err != nil {
		return nil, fmt.Errorf("store receipt: %w", err)
	}

	if e.emitter != nil {
		for _, ev := range pending {
			e.emitter.Emit(ev)
		}
		typ := events.EventTxExecuted
		if herr != nil {
			typ = events.EventTxFailed
		}
		e.emitter.Emit(events.Event{
			Type:        typ,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From, "category": rec.Category},
		})
	}
	if herr != nil {
		return rec, fmt.Errorf("%s: %w", tx.Type, herr)
	}
	return rec, nil
}

// charge deducts the fee and increments the nonce.
func (e *Executor) charge(tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d: %w", acc.Nonce, tx.Nonce, core.ErrInvalid)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("insufficient balance for fee: have %d need %d: %w", acc.Balance, tx.Fee, core.ErrInsufficient)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	return e.state.SetAccount(acc)
}
