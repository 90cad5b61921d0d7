// Package economy implements plain balance transfers between accounts. House
// liquidity for instant games is funded this way, by transferring to the
// keno escrow address.
package economy

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/vm"
)

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	if p.Amount == 0 {
		return fmt.Errorf("transfer amount must be > 0: %w", core.ErrInvalid)
	}
	to, err := crypto.NormalizeAddress(p.To)
	if err != nil || crypto.IsZeroAddress(to) {
		return fmt.Errorf("transfer to %q: %w", p.To, core.ErrInvalid)
	}
	if err := ctx.TransferFrom(ctx.Sender(), to, p.Amount); err != nil {
		return err
	}
	ctx.Emit(events.EventTokenTransfer, map[string]any{
		"from":   ctx.Sender(),
		"to":     to,
		"amount": p.Amount,
	})
	return nil
}
