package keno

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/draw"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/settlement"
	"github.com/tolelom/drawchain/vm"
	"github.com/tolelom/drawchain/vm/modules/randomness"
)

// validateSelection checks 1..KenoMaxSpots distinct numbers in 1..KenoNumbers.
func validateSelection(nums []int) error {
	if len(nums) < 1 || len(nums) > core.KenoMaxSpots {
		return fmt.Errorf("pick 1..%d numbers, got %d: %w", core.KenoMaxSpots, len(nums), core.ErrInvalid)
	}
	var seen draw.Bitmap
	for _, n := range nums {
		if n < 1 || n > core.KenoNumbers {
			return fmt.Errorf("number %d out of range 1..%d: %w", n, core.KenoNumbers, core.ErrInvalid)
		}
		if seen.Has(n) {
			return fmt.Errorf("number %d picked twice: %w", n, core.ErrInvalid)
		}
		seen.Set(n)
	}
	return nil
}

func handlePlaceBet(ctx *vm.Context, payload json.RawMessage) error {
	var p core.KenoPlaceBetPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return err
	}
	if cfg.Paused {
		return fmt.Errorf("engine paused: %w", core.ErrWrongState)
	}
	ks, err := ctx.State.GetKenoState()
	if err != nil {
		return err
	}
	if !ks.HasCommitted {
		return fmt.Errorf("no payout table is active: %w", core.ErrWrongState)
	}
	if err := validateSelection(p.Numbers); err != nil {
		return err
	}
	if p.Amount < cfg.Keno.MinBet || p.Amount > cfg.Keno.MaxBet {
		return fmt.Errorf("bet %d outside %d..%d: %w", p.Amount, cfg.Keno.MinBet, cfg.Keno.MaxBet, core.ErrInvalid)
	}

	player := ctx.Sender()
	if err := ctx.TransferFrom(player, Escrow, p.Amount); err != nil {
		return err
	}
	ks.NextBetID++
	b := &core.KenoBet{
		ID:           ks.NextBetID,
		Player:       player,
		Numbers:      append([]int(nil), p.Numbers...),
		Amount:       p.Amount,
		TableVersion: ks.ActiveVersion,
		Status:       core.BetPending,
		PlacedAt:     ctx.Now(),
	}
	req, err := randomness.Request(ctx, core.ModuleKeno, b.ID)
	if err != nil {
		return err
	}
	b.RequestID = req.ID
	ks.InFlight++
	ks.InFlightStake += b.Amount
	if err := ctx.State.SetKenoBet(b); err != nil {
		return err
	}
	if err := ctx.State.SetKenoState(ks); err != nil {
		return err
	}
	ctx.Emit(events.EventKenoBetPlaced, map[string]any{
		"bet_id":        b.ID,
		"player":        player,
		"numbers":       b.Numbers,
		"amount":        b.Amount,
		"table_version": b.TableVersion,
		"request_id":    b.RequestID,
	})
	return nil
}

// onRandomness settles a pending bet. Bets that were cancelled while the
// draw was outstanding are left alone.
func onRandomness(ctx *vm.Context, req *core.RandomnessRequest, value []byte) error {
	release, err := ctx.Enter(core.ModuleKeno)
	if err != nil {
		return err
	}
	defer release()

	b, err := ctx.State.GetKenoBet(req.Subject)
	if err != nil {
		return err
	}
	if b.Status != core.BetPending || b.RequestID != req.ID {
		log.WithFields(log.Fields{"bet": b.ID, "status": b.Status}).Debug("ignoring late keno draw")
		return nil
	}
	t, err := ctx.State.GetPayoutTable(b.TableVersion)
	if err != nil {
		return err
	}
	b.Drawn = draw.Keno(value)
	b.Hits = uint8(draw.Hits(b.Numbers, b.Drawn))
	mult, err := t.Multiplier(uint8(len(b.Numbers)), b.Hits)
	if err != nil {
		return err
	}
	payout, ok := settlement.MulDiv(b.Amount, mult, core.MultiplierScale)
	if !ok {
		return fmt.Errorf("bet %d payout overflows: %w", b.ID, core.ErrInvalid)
	}
	b.Payout = payout
	b.Status = core.BetSettled
	b.SettledAt = ctx.Now()

	ks, err := ctx.State.GetKenoState()
	if err != nil {
		return err
	}
	ks.InFlight--
	ks.InFlightStake -= b.Amount
	ctx.Emit(events.EventKenoBetSettled, map[string]any{
		"bet_id": b.ID,
		"drawn":  b.Drawn,
		"hits":   b.Hits,
		"payout": b.Payout,
		"seed":   "0x" + hex.EncodeToString(value),
	})

	// The bet is stored as settled and owed before any payout leaves the
	// escrow; a successful transfer then clears the liability.
	canPay := false
	if payout > 0 {
		free, err := Liquidity(ctx, ks)
		if err != nil {
			return err
		}
		canPay = payout <= free
		ks.Unpaid += payout
	}
	if err := store(ctx, b, ks); err != nil {
		return err
	}
	if payout == 0 {
		return nil
	}
	if canPay {
		if err := ctx.Transfer(Escrow, b.Player, payout); err == nil {
			b.Paid = true
			ks.Unpaid -= payout
			ctx.Emit(events.EventKenoBetPaid, map[string]any{"bet_id": b.ID, "player": b.Player, "amount": payout})
			return store(ctx, b, ks)
		}
	}
	log.WithFields(log.Fields{"bet": b.ID, "amount": payout}).Warn("keno payout recorded as unpaid")
	return nil
}

func store(ctx *vm.Context, b *core.KenoBet, ks *core.KenoState) error {
	if err := ctx.State.SetKenoBet(b); err != nil {
		return err
	}
	return ctx.State.SetKenoState(ks)
}

func handleRetryPayout(ctx *vm.Context, payload json.RawMessage) error {
	b, err := decodeBet(ctx, payload)
	if err != nil {
		return err
	}
	if b.Status != core.BetSettled {
		return fmt.Errorf("bet %d is %s: %w", b.ID, b.Status, core.ErrWrongState)
	}
	if b.Paid {
		return fmt.Errorf("bet %d already paid: %w", b.ID, core.ErrAlreadyDone)
	}
	if b.Payout == 0 {
		return fmt.Errorf("bet %d won nothing: %w", b.ID, core.ErrInvalid)
	}
	ks, err := ctx.State.GetKenoState()
	if err != nil {
		return err
	}
	bal, err := ctx.BalanceOf(Escrow)
	if err != nil {
		return err
	}
	// Stakes of bets still in flight stay refundable; unpaid wins are
	// served in the order they are retried.
	if bal < ks.InFlightStake || bal-ks.InFlightStake < b.Payout {
		return fmt.Errorf("escrow cannot cover bet %d payout of %d: %w", b.ID, b.Payout, core.ErrInsufficient)
	}

	b.Paid = true
	ks.Unpaid -= b.Payout
	if err := ctx.State.SetKenoBet(b); err != nil {
		return err
	}
	if err := ctx.State.SetKenoState(ks); err != nil {
		return err
	}
	if err := ctx.Transfer(Escrow, b.Player, b.Payout); err != nil {
		return fmt.Errorf("bet %d payout: %w", b.ID, err)
	}
	ctx.Emit(events.EventKenoBetPaid, map[string]any{"bet_id": b.ID, "player": b.Player, "amount": b.Payout})
	return nil
}

// handleCancelBet refunds a bet whose draw never arrived.
func handleCancelBet(ctx *vm.Context, payload json.RawMessage) error {
	b, err := decodeBet(ctx, payload)
	if err != nil {
		return err
	}
	switch b.Status {
	case core.BetPending:
	case core.BetCancelled:
		return fmt.Errorf("bet %d already cancelled: %w", b.ID, core.ErrAlreadyDone)
	default:
		return fmt.Errorf("bet %d is %s: %w", b.ID, b.Status, core.ErrWrongState)
	}
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return err
	}
	deadline := b.PlacedAt + cfg.Keno.BetTimeout().Nanoseconds()
	if ctx.Now() < deadline {
		return fmt.Errorf("bet %d cannot be cancelled before %d: %w", b.ID, deadline, core.ErrTooEarly)
	}
	ks, err := ctx.State.GetKenoState()
	if err != nil {
		return err
	}
	b.Status = core.BetCancelled
	b.SettledAt = ctx.Now()
	ks.InFlight--
	ks.InFlightStake -= b.Amount
	if err := ctx.State.SetKenoBet(b); err != nil {
		return err
	}
	if err := ctx.State.SetKenoState(ks); err != nil {
		return err
	}
	if err := ctx.Transfer(Escrow, b.Player, b.Amount); err != nil {
		return fmt.Errorf("bet %d refund: %w", b.ID, err)
	}
	ctx.Emit(events.EventKenoBetCancelled, map[string]any{"bet_id": b.ID, "player": b.Player, "refund": b.Amount})
	return nil
}
