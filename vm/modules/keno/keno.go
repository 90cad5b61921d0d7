// Package keno implements the instant single-entry mode. Each bet asks the
// randomness gateway for its own draw and is settled against the payout
// table version that was active when it was placed.
package keno

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/vm"
	"github.com/tolelom/drawchain/vm/modules/admin"
	"github.com/tolelom/drawchain/vm/modules/randomness"
)

// Escrow holds stakes, the house bankroll and unpaid wins.
var Escrow = core.EscrowAddress(core.ModuleKeno)

func init() {
	handlers := map[core.TxType]vm.Handler{
		core.TxKenoStageRow:    handleStageRow,
		core.TxKenoCommitTable: handleCommitTable,
		core.TxKenoPlaceBet:    handlePlaceBet,
		core.TxKenoRetryPayout: handleRetryPayout,
		core.TxKenoCancelBet:   handleCancelBet,
		core.TxKenoWithdraw:    handleWithdraw,
	}
	for typ, h := range handlers {
		vm.Register(typ, vm.NonReentrant(core.ModuleKeno, h))
	}
	randomness.RegisterConsumer(core.ModuleKeno, onRandomness)
}

func decodeBet(ctx *vm.Context, payload json.RawMessage) (*core.KenoBet, error) {
	var p core.KenoBetPayload
	if err := vm.Decode(payload, &p); err != nil {
		return nil, err
	}
	b, err := ctx.State.GetKenoBet(p.BetID)
	if err != nil {
		return nil, fmt.Errorf("bet %d: %w", p.BetID, err)
	}
	return b, nil
}

// Liquidity is the part of the escrow not owed to players.
func Liquidity(ctx *vm.Context, ks *core.KenoState) (uint64, error) {
	bal, err := ctx.BalanceOf(Escrow)
	if err != nil {
		return 0, err
	}
	if reserved := ks.Reserved(); bal > reserved {
		return bal - reserved, nil
	}
	return 0, nil
}

func handleWithdraw(ctx *vm.Context, payload json.RawMessage) error {
	if _, err := admin.RequireOwner(ctx); err != nil {
		return err
	}
	var p core.WithdrawPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	to, err := crypto.NormalizeAddress(p.To)
	if err != nil || crypto.IsZeroAddress(to) {
		return fmt.Errorf("recipient %q: %w", p.To, core.ErrInvalid)
	}
	if p.Amount == 0 {
		return fmt.Errorf("withdraw amount must be > 0: %w", core.ErrInvalid)
	}
	ks, err := ctx.State.GetKenoState()
	if err != nil {
		return err
	}
	free, err := Liquidity(ctx, ks)
	if err != nil {
		return err
	}
	if p.Amount > free {
		return fmt.Errorf("withdraw %d exceeds free liquidity %d: %w", p.Amount, free, core.ErrInsufficient)
	}
	if err := ctx.Transfer(Escrow, to, p.Amount); err != nil {
		return fmt.Errorf("bankroll withdrawal: %w", err)
	}
	ctx.Emit(events.EventFeesWithdrawn, map[string]any{"module": core.ModuleKeno, "to": to, "amount": p.Amount})
	return nil
}
