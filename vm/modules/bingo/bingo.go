// Package bingo implements the multi-participant round mode: rounds are
// opened by the operator, players buy cards, the oracle supplies the ball
// order, a trusted resolver signs the winners, and the engine distributes
// revenue using the configuration frozen when the round opened.
package bingo

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/vm"
	"github.com/tolelom/drawchain/vm/modules/randomness"
)

// Escrow holds ticket revenue, the jackpot, accrued fees and deferred prizes.
var Escrow = core.EscrowAddress(core.ModuleBingo)

func init() {
	handlers := map[core.TxType]vm.Handler{
		core.TxBingoOpen:              handleOpen,
		core.TxBingoJoin:              handleJoin,
		core.TxBingoClose:             handleClose,
		core.TxBingoRequestRandomness: handleRequestRandomness,
		core.TxBingoResolve:           handleResolve,
		core.TxBingoCancel:            handleCancel,
		core.TxBingoEmergencyCancel:   handleEmergencyCancel,
		core.TxBingoClaim:             handleClaim,
	}
	for typ, h := range handlers {
		vm.Register(typ, vm.NonReentrant(core.ModuleBingo, h))
	}
	randomness.RegisterConsumer(core.ModuleBingo, onRandomness)
}

func loadRound(ctx *vm.Context, id uint64) (*core.Round, error) {
	r, err := ctx.State.GetRound(id)
	if err != nil {
		return nil, fmt.Errorf("round %d: %w", id, err)
	}
	return r, nil
}

func decodeRound(ctx *vm.Context, payload json.RawMessage) (*core.Round, error) {
	var p core.RoundPayload
	if err := vm.Decode(payload, &p); err != nil {
		return nil, err
	}
	return loadRound(ctx, p.RoundID)
}

func requireOperator(ctx *vm.Context) (*core.GameConfig, error) {
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Operator == "" || ctx.Sender() != cfg.Operator {
		return nil, fmt.Errorf("%s is not the operator: %w", ctx.Sender(), core.ErrUnauthorized)
	}
	return cfg, nil
}

func wrongState(r *core.Round, op string) error {
	return fmt.Errorf("cannot %s round %d in status %s: %w", op, r.ID, r.Status, core.ErrWrongState)
}
