package keno

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/vm"
	"github.com/tolelom/drawchain/vm/modules/admin"
)

// stagingTable returns the table currently being edited, creating the
// first one on demand.
func stagingTable(ctx *vm.Context, ks *core.KenoState) (*core.PayoutTable, error) {
	if ks.StagingVersion == 0 {
		ks.StagingVersion = 1
	}
	t, err := ctx.State.GetPayoutTable(ks.StagingVersion)
	if errors.Is(err, core.ErrNotFound) {
		return &core.PayoutTable{Version: ks.StagingVersion, Rows: make(map[uint8][]uint64)}, nil
	}
	return t, err
}

func handleStageRow(ctx *vm.Context, payload json.RawMessage) error {
	if _, err := admin.RequireOwner(ctx); err != nil {
		return err
	}
	var p core.KenoStageRowPayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	if p.Spots < 1 || p.Spots > core.KenoMaxSpots {
		return fmt.Errorf("spots %d out of range 1..%d: %w", p.Spots, core.KenoMaxSpots, core.ErrInvalid)
	}
	if len(p.Multipliers) != int(p.Spots)+1 {
		return fmt.Errorf("row for %d spots needs %d multipliers, got %d: %w",
			p.Spots, p.Spots+1, len(p.Multipliers), core.ErrInvalid)
	}
	ks, err := ctx.State.GetKenoState()
	if err != nil {
		return err
	}
	t, err := stagingTable(ctx, ks)
	if err != nil {
		return err
	}
	t.Rows[p.Spots] = append([]uint64(nil), p.Multipliers...)
	if err := ctx.State.SetPayoutTable(t); err != nil {
		return err
	}
	if err := ctx.State.SetKenoState(ks); err != nil {
		return err
	}
	ctx.Emit(events.EventKenoTableStaged, map[string]any{"version": t.Version, "spots": p.Spots})
	return nil
}

// handleCommitTable activates the staging table. After the first commit a
// new table may only go live once the timelock has passed and no bet is
// waiting on the old one.
func handleCommitTable(ctx *vm.Context, _ json.RawMessage) error {
	cfg, err := admin.RequireOwner(ctx)
	if err != nil {
		return err
	}
	ks, err := ctx.State.GetKenoState()
	if err != nil {
		return err
	}
	t, err := stagingTable(ctx, ks)
	if err != nil {
		return err
	}
	if !t.Complete() {
		return fmt.Errorf("payout table v%d is incomplete: %w", t.Version, core.ErrInvalid)
	}
	if ks.HasCommitted {
		unlock := ks.LastCommitAt + cfg.Keno.TableTimelock().Nanoseconds()
		if ctx.Now() < unlock {
			return fmt.Errorf("payout table locked until %d: %w", unlock, core.ErrTooEarly)
		}
		if ks.InFlight > 0 {
			return fmt.Errorf("%d bets still in flight: %w", ks.InFlight, core.ErrWrongState)
		}
	}

	t.Committed = true
	t.CommittedAt = ctx.Now()
	if err := ctx.State.SetPayoutTable(t); err != nil {
		return err
	}
	next := t.Clone()
	next.Version = t.Version + 1
	if err := ctx.State.SetPayoutTable(next); err != nil {
		return err
	}
	ks.ActiveVersion = t.Version
	ks.StagingVersion = next.Version
	ks.HasCommitted = true
	ks.LastCommitAt = ctx.Now()
	if err := ctx.State.SetKenoState(ks); err != nil {
		return err
	}
	ctx.Emit(events.EventKenoTableCommitted, map[string]any{"version": t.Version})
	return nil
}
