package bingo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/draw"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/vm"
	"github.com/tolelom/drawchain/vm/modules/randomness"
)

func handleOpen(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BingoOpenPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	cfg, err := requireOperator(ctx)
	if err != nil {
		return err
	}
	if cfg.Paused {
		return fmt.Errorf("engine paused: %w", core.ErrWrongState)
	}
	bs, err := ctx.State.GetBingoState()
	if err != nil {
		return err
	}
	if uint32(len(bs.OpenRounds)) >= cfg.Bingo.MaxOpenRounds {
		return fmt.Errorf("%d rounds already open: %w", len(bs.OpenRounds), core.ErrInvalid)
	}
	if p.CloseAt <= ctx.Now() {
		return fmt.Errorf("close time %d is not in the future: %w", p.CloseAt, core.ErrInvalid)
	}

	bs.NextRoundID++
	r := &core.Round{
		ID:             bs.NextRoundID,
		Status:         core.RoundOpen,
		Snapshot:       core.SnapshotOf(cfg),
		ScheduledClose: p.CloseAt,
		CreatedAt:      ctx.Now(),
	}
	bs.OpenRounds = append(bs.OpenRounds, r.ID)
	if err := ctx.State.SetRound(r); err != nil {
		return err
	}
	if err := ctx.State.SetBingoState(bs); err != nil {
		return err
	}
	ctx.Emit(events.EventRoundOpened, map[string]any{
		"round_id":    r.ID,
		"close_at":    r.ScheduledClose,
		"entry_price": r.Snapshot.EntryPrice,
	})
	return nil
}

func handleJoin(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BingoJoinPayload
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
	r, err := loadRound(ctx, p.RoundID)
	if err != nil {
		return err
	}
	if r.Status != core.RoundOpen {
		return wrongState(r, "join")
	}
	if ctx.Now() >= r.ScheduledClose {
		return fmt.Errorf("round %d passed its close time: %w", r.ID, core.ErrWrongState)
	}
	if p.Count == 0 || p.Count < cfg.Bingo.MinCardsPerJoin || p.Count > cfg.Bingo.MaxCardsPerJoin {
		return fmt.Errorf("card count %d outside %d..%d: %w",
			p.Count, cfg.Bingo.MinCardsPerJoin, cfg.Bingo.MaxCardsPerJoin, core.ErrInvalid)
	}
	player := ctx.Sender()
	held, err := ctx.State.GetPlayerEntries(r.ID, player)
	if err != nil {
		return err
	}
	if held+p.Count > cfg.Bingo.MaxCardsPerPlayer {
		return fmt.Errorf("player would hold %d cards, limit %d: %w",
			held+p.Count, cfg.Bingo.MaxCardsPerPlayer, core.ErrInvalid)
	}
	price := r.Snapshot.EntryPrice
	if price > math.MaxUint64/uint64(p.Count) {
		return fmt.Errorf("cost overflow: %w", core.ErrInvalid)
	}
	cost := price * uint64(p.Count)
	if err := ctx.TransferFrom(player, Escrow, cost); err != nil {
		return err
	}

	entropy := append([]byte(ctx.Block.Header.PrevHash+ctx.Tx.ID), binary.BigEndian.AppendUint64(nil, uint64(ctx.Now()))...)
	first := r.EntryCount
	for i := uint32(0); i < p.Count; i++ {
		idx := r.EntryCount
		card := &core.Card{
			ID:      core.CardID(r.ID, idx),
			RoundID: r.ID,
			Index:   idx,
			Owner:   player,
			Numbers: draw.CardLayout(entropy, r.ID, player, idx),
		}
		if err := ctx.State.SetCard(card); err != nil {
			return err
		}
		r.EntryCount++
	}
	r.Revenue += cost
	if err := ctx.State.SetPlayerEntries(r.ID, player, held+p.Count); err != nil {
		return err
	}
	if err := ctx.State.SetRound(r); err != nil {
		return err
	}
	ctx.Emit(events.EventCardsBought, map[string]any{
		"round_id":    r.ID,
		"player":      player,
		"count":       p.Count,
		"first_index": first,
		"cost":        cost,
	})
	return nil
}

func handleClose(ctx *vm.Context, payload json.RawMessage) error {
	if _, err := requireOperator(ctx); err != nil {
		return err
	}
	r, err := decodeRound(ctx, payload)
	if err != nil {
		return err
	}
	if r.Status != core.RoundOpen {
		return wrongState(r, "close")
	}
	bs, err := ctx.State.GetBingoState()
	if err != nil {
		return err
	}
	bs.RemoveOpen(r.ID)
	if err := ctx.State.SetBingoState(bs); err != nil {
		return err
	}
	r.ClosedAt = ctx.Now()

	if r.EntryCount == 0 {
		return cancel(ctx, r, "no entries")
	}
	r.Status = core.RoundClosed
	if err := ctx.State.SetRound(r); err != nil {
		return err
	}
	ctx.Emit(events.EventRoundClosed, map[string]any{"round_id": r.ID, "entries": r.EntryCount, "revenue": r.Revenue})

	err = requestRandomness(ctx, r)
	if errors.Is(err, randomness.ErrNoOracle) {
		log.WithField("round", r.ID).Warn("round closed without randomness request: no oracle configured")
		return nil
	}
	return err
}

func handleRequestRandomness(ctx *vm.Context, payload json.RawMessage) error {
	if _, err := requireOperator(ctx); err != nil {
		return err
	}
	r, err := decodeRound(ctx, payload)
	if err != nil {
		return err
	}
	if r.Status != core.RoundClosed {
		return wrongState(r, "request randomness for")
	}
	return requestRandomness(ctx, r)
}

func requestRandomness(ctx *vm.Context, r *core.Round) error {
	req, err := randomness.Request(ctx, core.ModuleBingo, r.ID)
	if err != nil {
		return err
	}
	r.Status = core.RoundRandomnessRequested
	r.RequestID = req.ID
	r.RequestedAt = ctx.Now()
	return ctx.State.SetRound(r)
}

// onRandomness accepts the value only for the request the round is waiting
// on; anything else is a silent no-op.
func onRandomness(ctx *vm.Context, req *core.RandomnessRequest, value []byte) error {
	release, err := ctx.Enter(core.ModuleBingo)
	if err != nil {
		return err
	}
	defer release()

	r, err := loadRound(ctx, req.Subject)
	if err != nil {
		return err
	}
	if r.Status != core.RoundRandomnessRequested || r.RequestID != req.ID {
		return nil
	}
	r.Status = core.RoundRandomnessFulfilled
	r.RandomValue = req.Value
	r.FulfilledAt = ctx.Now()
	if err := ctx.State.SetRound(r); err != nil {
		return err
	}
	ctx.Emit(events.EventRoundFulfilled, map[string]any{"round_id": r.ID, "random_value": r.RandomValue})
	return nil
}

func handleCancel(ctx *vm.Context, payload json.RawMessage) error {
	if _, err := requireOperator(ctx); err != nil {
		return err
	}
	r, err := decodeRound(ctx, payload)
	if err != nil {
		return err
	}
	switch r.Status {
	case core.RoundOpen:
		bs, err := ctx.State.GetBingoState()
		if err != nil {
			return err
		}
		bs.RemoveOpen(r.ID)
		if err := ctx.State.SetBingoState(bs); err != nil {
			return err
		}
	case core.RoundClosed:
	default:
		return wrongState(r, "cancel")
	}
	return cancel(ctx, r, "operator")
}

// handleEmergencyCancel lets anyone rescue a round whose randomness never
// arrived (after T) or whose resolution never arrived (after 2T).
func handleEmergencyCancel(ctx *vm.Context, payload json.RawMessage) error {
	r, err := decodeRound(ctx, payload)
	if err != nil {
		return err
	}
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return err
	}
	timeout := int64(cfg.Randomness.Timeout())
	var deadline int64
	switch r.Status {
	case core.RoundRandomnessRequested:
		deadline = r.RequestedAt + timeout
	case core.RoundRandomnessFulfilled:
		deadline = r.RequestedAt + 2*timeout
	default:
		return wrongState(r, "emergency-cancel")
	}
	if ctx.Now() < deadline {
		return fmt.Errorf("round %d can be cancelled at %d, now %d: %w", r.ID, deadline, ctx.Now(), core.ErrTooEarly)
	}
	return cancel(ctx, r, "timeout")
}

// cancel marks r cancelled. Refunds are pulled later through claims.
func cancel(ctx *vm.Context, r *core.Round, reason string) error {
	r.Status = core.RoundCancelled
	r.CancelledAt = ctx.Now()
	if err := ctx.State.SetRound(r); err != nil {
		return err
	}
	ctx.Emit(events.EventRoundCancelled, map[string]any{"round_id": r.ID, "reason": reason, "revenue": r.Revenue})
	return nil
}
