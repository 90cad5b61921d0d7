package vm

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
)

// ReceiveHook runs after an engine payout credits the hooked address. An
// error rolls the payout back and the payer observes a failed transfer.
type ReceiveHook func(ctx *Context, from string, amount uint64) error

// Context is passed to every Handler and provides access to the chain state,
// the current block, the triggering transaction, the payment ledger and the
// event buffer.
type Context struct {
	State core.State
	Block *core.Block
	Tx    *core.Transaction

	exec    *Executor
	events  *[]events.Event
	entered map[string]bool
}

// Now is the block timestamp in unix nanoseconds.
func (c *Context) Now() int64 { return c.Block.Header.Timestamp }

// Sender is the address that signed the transaction.
func (c *Context) Sender() string { return c.Tx.From }

// Emit buffers an event. Buffered events are delivered only if the
// transaction succeeds.
func (c *Context) Emit(typ events.EventType, data map[string]any) {
	*c.events = append(*c.events, events.Event{
		Type:        typ,
		TxID:        c.Tx.ID,
		BlockHeight: c.Block.Header.Height,
		Data:        data,
	})
}

// Enter marks key as held until release is called. It fails with
// core.ErrReentrant if key is already held further up the call stack.
func (c *Context) Enter(key string) (release func(), err error) {
	if c.entered[key] {
		return nil, fmt.Errorf("%s: %w", key, core.ErrReentrant)
	}
	c.entered[key] = true
	return func() { delete(c.entered, key) }, nil
}

// Atomic runs fn and undoes its state writes and buffered events if it fails.
func (c *Context) Atomic(fn func() error) error {
	snap, err := c.State.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	mark := len(*c.events)
	if err := fn(); err != nil {
		if rerr := c.State.RevertToSnapshot(snap); rerr != nil {
			return fmt.Errorf("revert: %v (after %w)", rerr, err)
		}
		*c.events = (*c.events)[:mark]
		return err
	}
	return nil
}

// BalanceOf returns the ledger balance of addr.
func (c *Context) BalanceOf(addr string) (uint64, error) {
	acc, err := c.State.GetAccount(addr)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// TransferFrom collects amount from a payer who authorised it by signing the
// transaction. Failure aborts the caller.
func (c *Context) TransferFrom(from, to string, amount uint64) error {
	return c.move(from, to, amount)
}

// Transfer pays amount out of an engine escrow. It is all-or-nothing: a
// frozen recipient, an insufficient balance or a failing receive hook leave
// no trace, and the returned error lets the caller defer the payment.
func (c *Context) Transfer(from, to string, amount uint64) error {
	return c.Atomic(func() error {
		recipient, err := c.State.GetAccount(to)
		if err != nil {
			return err
		}
		if recipient.Frozen {
			return fmt.Errorf("recipient %s is frozen: %w", to, core.ErrTransferRejected)
		}
		if err := c.move(from, to, amount); err != nil {
			return err
		}
		if hook := c.exec.receiveHook(to); hook != nil {
			if err := hook(c, from, amount); err != nil {
				return fmt.Errorf("receive hook of %s: %w: %w", to, core.ErrTransferRejected, err)
			}
		}
		return nil
	})
}

func (c *Context) move(from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	payer, err := c.State.GetAccount(from)
	if err != nil {
		return err
	}
	if payer.Balance < amount {
		return fmt.Errorf("%s has %d, needs %d: %w", from, payer.Balance, amount, core.ErrInsufficient)
	}
	payer.Balance -= amount
	if err := c.State.SetAccount(payer); err != nil {
		return err
	}
	payee, err := c.State.GetAccount(to)
	if err != nil {
		return err
	}
	if payee.Balance > math.MaxUint64-amount {
		return fmt.Errorf("balance overflow for %s: %w", to, core.ErrInvalid)
	}
	payee.Balance += amount
	return c.State.SetAccount(payee)
}

// Call dispatches a nested operation on behalf of from within the current
// transaction. Receive hooks use it to act like contracts calling back into
// the engine.
func (c *Context) Call(from string, typ core.TxType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal call payload: %w", err)
	}
	nested := *c
	nested.Tx = &core.Transaction{
		ID:      c.Tx.ID,
		ChainID: c.Tx.ChainID,
		Type:    typ,
		From:    from,
		Payload: raw,
	}
	return dispatch(typ, &nested, raw)
}
