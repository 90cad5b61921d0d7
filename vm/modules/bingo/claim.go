package bingo

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/vm"
)

// handleClaim pays the caller everything the round owes them: deferred
// prizes, plus a one-time refund of their cards if the round was cancelled.
func handleClaim(ctx *vm.Context, payload json.RawMessage) error {
	r, err := decodeRound(ctx, payload)
	if err != nil {
		return err
	}
	player := ctx.Sender()
	claim, err := ctx.State.GetClaim(r.ID, player)
	if err != nil {
		return err
	}

	var refund uint64
	if r.Status == core.RoundCancelled && !claim.RefundClaimed {
		cards, err := ctx.State.GetPlayerEntries(r.ID, player)
		if err != nil {
			return err
		}
		if cards > 0 {
			refund = uint64(cards) * r.Snapshot.EntryPrice
			claim.RefundClaimed = true
		}
	}
	prize := claim.PendingPrize
	total := refund + prize
	if total == 0 {
		if claim.RefundClaimed || claim.PaidPrize > 0 {
			return fmt.Errorf("round %d: nothing left to claim: %w", r.ID, core.ErrAlreadyDone)
		}
		return fmt.Errorf("round %d: nothing to claim: %w", r.ID, core.ErrInvalid)
	}

	claim.PendingPrize = 0
	claim.PaidPrize += prize
	claim.PaidRefund += refund
	if err := ctx.State.SetClaim(claim); err != nil {
		return err
	}
	if err := ctx.Transfer(Escrow, player, total); err != nil {
		return fmt.Errorf("claim payout: %w", err)
	}
	ctx.Emit(events.EventClaimPaid, map[string]any{
		"round_id": r.ID,
		"player":   player,
		"prize":    prize,
		"refund":   refund,
	})
	return nil
}
