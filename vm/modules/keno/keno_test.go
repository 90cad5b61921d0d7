package keno_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/draw"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/internal/testutil"
	"github.com/tolelom/drawchain/oracle"
	"github.com/tolelom/drawchain/vm"
	_ "github.com/tolelom/drawchain/vm/modules/admin"
	_ "github.com/tolelom/drawchain/vm/modules/economy"
	"github.com/tolelom/drawchain/vm/modules/keno"
	_ "github.com/tolelom/drawchain/vm/modules/randomness"
)

// stageFlat stages a table paying mult (scaled) for any number of hits.
func stageFlat(t *testing.T, c *testutil.Chain, mult uint64) {
	t.Helper()
	for s := uint8(1); s <= core.KenoMaxSpots; s++ {
		row := make([]uint64, s+1)
		for i := range row {
			row[i] = mult
		}
		c.MustSend(c.Owner, core.TxKenoStageRow, core.KenoStageRowPayload{Spots: s, Multipliers: row})
	}
}

func kenoState(t *testing.T, c *testutil.Chain) *core.KenoState {
	t.Helper()
	ks, err := c.State.GetKenoState()
	require.NoError(t, err)
	return ks
}

func bet(t *testing.T, c *testutil.Chain, id uint64) *core.KenoBet {
	t.Helper()
	b, err := c.State.GetKenoBet(id)
	require.NoError(t, err)
	return b
}

// place funds p and places a bet, returning its id.
func place(t *testing.T, c *testutil.Chain, p *testutil.Actor, amount uint64, numbers ...int) uint64 {
	t.Helper()
	c.Fund(p.Address, amount)
	c.MustSend(p, core.TxKenoPlaceBet, core.KenoPlaceBetPayload{Numbers: numbers, Amount: amount})
	return kenoState(t, c).NextBetID
}

func newGame(t *testing.T, mult uint64) *testutil.Chain {
	c := testutil.NewChain(t, nil)
	stageFlat(t, c, mult)
	c.MustSend(c.Owner, core.TxKenoCommitTable, struct{}{})
	return c
}

func TestPayoutTableLifecycle(t *testing.T) {
	c := testutil.NewChain(t, nil)
	p := testutil.NewActor(t)
	c.Fund(p.Address, 100)

	_, err := c.Send(p, core.TxKenoPlaceBet, core.KenoPlaceBetPayload{Numbers: []int{1}, Amount: 100})
	assert.ErrorIs(t, err, core.ErrWrongState, "no table committed yet")

	_, err = c.Send(p, core.TxKenoStageRow, core.KenoStageRowPayload{Spots: 1, Multipliers: []uint64{0, 1}})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = c.Send(c.Owner, core.TxKenoStageRow, core.KenoStageRowPayload{Spots: 2, Multipliers: []uint64{0, 1}})
	assert.ErrorIs(t, err, core.ErrInvalid)
	_, err = c.Send(c.Owner, core.TxKenoStageRow, core.KenoStageRowPayload{Spots: 11, Multipliers: make([]uint64, 12)})
	assert.ErrorIs(t, err, core.ErrInvalid)

	c.MustSend(c.Owner, core.TxKenoStageRow, core.KenoStageRowPayload{Spots: 1, Multipliers: []uint64{0, 30_000}})
	_, err = c.Send(c.Owner, core.TxKenoCommitTable, struct{}{})
	assert.ErrorIs(t, err, core.ErrInvalid, "incomplete table")

	// The first commit is not subject to the timelock.
	stageFlat(t, c, core.MultiplierScale)
	c.MustSend(c.Owner, core.TxKenoCommitTable, struct{}{})
	ks := kenoState(t, c)
	assert.Equal(t, uint32(1), ks.ActiveVersion)
	assert.Equal(t, uint32(2), ks.StagingVersion)
	active, err := c.State.GetPayoutTable(1)
	require.NoError(t, err)
	assert.True(t, active.Committed)

	// Staging continues from a copy of the active table.
	c.MustSend(c.Owner, core.TxKenoStageRow, core.KenoStageRowPayload{Spots: 1, Multipliers: []uint64{0, 20_000}})
	staged, err := c.State.GetPayoutTable(2)
	require.NoError(t, err)
	assert.True(t, staged.Complete())
	assert.Equal(t, uint64(core.MultiplierScale), active.Rows[1][1])

	_, err = c.Send(c.Owner, core.TxKenoCommitTable, struct{}{})
	assert.ErrorIs(t, err, core.ErrTooEarly)

	c.Advance(c.Config().Keno.TableTimelock())
	id := place(t, c, p, 100, 7)
	_, err = c.Send(c.Owner, core.TxKenoCommitTable, struct{}{})
	assert.ErrorIs(t, err, core.ErrWrongState, "bet in flight")

	c.Fulfill(bet(t, c, id).RequestID)
	c.MustSend(c.Owner, core.TxKenoCommitTable, struct{}{})
	assert.Equal(t, uint32(2), kenoState(t, c).ActiveVersion)
	assert.Len(t, c.Events(events.EventKenoTableCommitted), 2)
}

func TestBetSettlesAndPays(t *testing.T) {
	c := newGame(t, 2*core.MultiplierScale)
	house := testutil.NewActor(t)
	c.Fund(house.Address, 1_000)
	c.MustSend(house, core.TxTransfer, core.TransferPayload{To: keno.Escrow, Amount: 1_000})

	p := testutil.NewActor(t)
	id := place(t, c, p, 100, 3, 14, 15, 72)
	b := bet(t, c, id)
	assert.Equal(t, core.BetPending, b.Status)
	assert.Equal(t, uint32(1), b.TableVersion)
	ks := kenoState(t, c)
	assert.Equal(t, uint64(1), ks.InFlight)
	assert.Equal(t, uint64(100), ks.InFlightStake)
	assert.Zero(t, c.Balance(p.Address))

	req, err := c.State.GetRandomnessRequest(b.RequestID)
	require.NoError(t, err)
	_, value, err := oracle.Prove(c.Oracle.Key, req.Seed)
	require.NoError(t, err)
	c.Fulfill(b.RequestID)

	b = bet(t, c, id)
	assert.Equal(t, core.BetSettled, b.Status)
	assert.Equal(t, draw.Keno(value), b.Drawn)
	assert.Equal(t, uint8(draw.Hits(b.Numbers, b.Drawn)), b.Hits)
	assert.Equal(t, uint64(200), b.Payout)
	assert.True(t, b.Paid)
	assert.Equal(t, uint64(200), c.Balance(p.Address))
	assert.Equal(t, uint64(900), c.Balance(keno.Escrow))

	ks = kenoState(t, c)
	assert.Zero(t, ks.InFlight)
	assert.Zero(t, ks.Reserved())
	require.Len(t, c.Events(events.EventKenoBetPaid), 1)

	_, err = c.Send(p, core.TxKenoRetryPayout, core.KenoBetPayload{BetID: id})
	assert.ErrorIs(t, err, core.ErrAlreadyDone)
	_, err = c.Send(p, core.TxKenoCancelBet, core.KenoBetPayload{BetID: id})
	assert.ErrorIs(t, err, core.ErrWrongState)
}

func TestBetIsSettledBeforePayoutLeavesEscrow(t *testing.T) {
	c := newGame(t, 2*core.MultiplierScale)
	c.Fund(keno.Escrow, 1_000)
	p := testutil.NewActor(t)
	id := place(t, c, p, 100, 5, 6)

	var seen *core.KenoBet
	var seenState *core.KenoState
	c.Exec.SetReceiveHook(p.Address, func(ctx *vm.Context, _ string, _ uint64) error {
		b, err := ctx.State.GetKenoBet(id)
		require.NoError(t, err)
		ks, err := ctx.State.GetKenoState()
		require.NoError(t, err)
		seen, seenState = b, ks
		return nil
	})
	c.Fulfill(bet(t, c, id).RequestID)

	require.NotNil(t, seen)
	assert.Equal(t, core.BetSettled, seen.Status)
	assert.False(t, seen.Paid)
	assert.Zero(t, seenState.InFlight)
	assert.Equal(t, uint64(200), seenState.Unpaid)

	assert.True(t, bet(t, c, id).Paid)
	assert.Zero(t, kenoState(t, c).Unpaid)
	assert.Equal(t, uint64(200), c.Balance(p.Address))
}

func TestRejectedPayoutStaysOwed(t *testing.T) {
	c := newGame(t, 2*core.MultiplierScale)
	c.Fund(keno.Escrow, 1_000)
	p := testutil.NewActor(t)
	id := place(t, c, p, 100, 5, 6)

	c.Exec.SetReceiveHook(p.Address, func(*vm.Context, string, uint64) error {
		return errors.New("not accepting")
	})
	c.Fulfill(bet(t, c, id).RequestID)

	b := bet(t, c, id)
	assert.Equal(t, core.BetSettled, b.Status)
	assert.False(t, b.Paid)
	assert.Equal(t, uint64(200), kenoState(t, c).Unpaid)
	assert.Zero(t, c.Balance(p.Address))

	c.Exec.SetReceiveHook(p.Address, nil)
	c.MustSend(p, core.TxKenoRetryPayout, core.KenoBetPayload{BetID: id})
	assert.Equal(t, uint64(200), c.Balance(p.Address))
	assert.Zero(t, kenoState(t, c).Unpaid)
}

func TestUnpaidWinIsRetried(t *testing.T) {
	c := newGame(t, 3*core.MultiplierScale)
	p := testutil.NewActor(t)
	id := place(t, c, p, 100, 1, 2, 3)
	c.Fulfill(bet(t, c, id).RequestID)

	b := bet(t, c, id)
	assert.Equal(t, core.BetSettled, b.Status)
	assert.Equal(t, uint64(300), b.Payout)
	assert.False(t, b.Paid)
	assert.Equal(t, uint64(300), kenoState(t, c).Unpaid)
	assert.Equal(t, uint64(100), c.Balance(keno.Escrow))

	_, err := c.Send(p, core.TxKenoRetryPayout, core.KenoBetPayload{BetID: id})
	assert.ErrorIs(t, err, core.ErrInsufficient)
	_, err = c.Send(c.Owner, core.TxKenoWithdraw, core.WithdrawPayload{To: c.Owner.Address, Amount: 1})
	assert.ErrorIs(t, err, core.ErrInsufficient, "escrow is owed to the winner")

	c.Fund(keno.Escrow, 200)
	c.MustSend(testutil.NewActor(t), core.TxKenoRetryPayout, core.KenoBetPayload{BetID: id})
	assert.Equal(t, uint64(300), c.Balance(p.Address), "anyone may push the payout to its owner")
	assert.True(t, bet(t, c, id).Paid)
	assert.Zero(t, kenoState(t, c).Unpaid)
	assert.Zero(t, c.Balance(keno.Escrow))
}

func TestLosingBet(t *testing.T) {
	c := newGame(t, 0)
	p := testutil.NewActor(t)
	id := place(t, c, p, 50, 80)
	c.Fulfill(bet(t, c, id).RequestID)

	b := bet(t, c, id)
	assert.Equal(t, core.BetSettled, b.Status)
	assert.Zero(t, b.Payout)
	assert.False(t, b.Paid)
	assert.Equal(t, uint64(50), c.Balance(keno.Escrow))
	_, err := c.Send(p, core.TxKenoRetryPayout, core.KenoBetPayload{BetID: id})
	assert.ErrorIs(t, err, core.ErrInvalid)

	// The lost stake is house liquidity.
	c.MustSend(c.Owner, core.TxKenoWithdraw, core.WithdrawPayload{To: c.Owner.Address, Amount: 50})
	assert.Equal(t, uint64(50), c.Balance(c.Owner.Address))
	ev := c.Events(events.EventFeesWithdrawn)
	require.Len(t, ev, 1)
	assert.Equal(t, core.ModuleKeno, ev[0].Data["module"])
}

func TestCancelStaleBet(t *testing.T) {
	c := newGame(t, 2*core.MultiplierScale)
	p := testutil.NewActor(t)
	id := place(t, c, p, 100, 5, 6)

	_, err := c.Send(p, core.TxKenoCancelBet, core.KenoBetPayload{BetID: id})
	assert.ErrorIs(t, err, core.ErrTooEarly)

	c.Advance(c.Config().Keno.BetTimeout())
	c.MustSend(testutil.NewActor(t), core.TxKenoCancelBet, core.KenoBetPayload{BetID: id})
	assert.Equal(t, core.BetCancelled, bet(t, c, id).Status)
	assert.Equal(t, uint64(100), c.Balance(p.Address))
	assert.Zero(t, kenoState(t, c).Reserved())

	// The draw arriving afterwards changes nothing.
	c.Fulfill(bet(t, c, id).RequestID)
	b := bet(t, c, id)
	assert.Equal(t, core.BetCancelled, b.Status)
	assert.Empty(t, b.Drawn)
	assert.Equal(t, uint64(100), c.Balance(p.Address))
	assert.Zero(t, kenoState(t, c).InFlight)

	_, err = c.Send(p, core.TxKenoCancelBet, core.KenoBetPayload{BetID: id})
	assert.ErrorIs(t, err, core.ErrAlreadyDone)
	_, err = c.Send(p, core.TxKenoCancelBet, core.KenoBetPayload{BetID: 99})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestBetValidation(t *testing.T) {
	c := newGame(t, core.MultiplierScale)
	p := testutil.NewActor(t)
	c.Fund(p.Address, 100_000)

	cases := map[string]core.KenoPlaceBetPayload{
		"no numbers":   {Amount: 100},
		"too many":     {Numbers: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, Amount: 100},
		"duplicate":    {Numbers: []int{4, 4}, Amount: 100},
		"zero":         {Numbers: []int{0}, Amount: 100},
		"out of range": {Numbers: []int{81}, Amount: 100},
		"below min":    {Numbers: []int{1}, Amount: 9},
		"above max":    {Numbers: []int{1}, Amount: 10_001},
	}
	for name, payload := range cases {
		_, err := c.Send(p, core.TxKenoPlaceBet, payload)
		assert.ErrorIs(t, err, core.ErrInvalid, name)
	}

	c.MustSend(c.Owner, core.TxAdminSetPause, core.SetPausePayload{Paused: true})
	_, err := c.Send(p, core.TxKenoPlaceBet, core.KenoPlaceBetPayload{Numbers: []int{1}, Amount: 100})
	assert.ErrorIs(t, err, core.ErrWrongState)
	assert.Equal(t, uint64(100_000), c.Balance(p.Address))
}

func TestNoOracleRejectsBets(t *testing.T) {
	c := testutil.NewChain(t, func(g *core.GameConfig) { g.Oracle = "" })
	stageFlat(t, c, core.MultiplierScale)
	c.MustSend(c.Owner, core.TxKenoCommitTable, struct{}{})
	p := testutil.NewActor(t)
	c.Fund(p.Address, 100)
	_, err := c.Send(p, core.TxKenoPlaceBet, core.KenoPlaceBetPayload{Numbers: []int{1}, Amount: 100})
	assert.ErrorIs(t, err, core.ErrWrongState)
	assert.Equal(t, uint64(100), c.Balance(p.Address))
}

func TestWithdrawKeepsStakesReserved(t *testing.T) {
	c := newGame(t, core.MultiplierScale)
	c.Fund(keno.Escrow, 1_000)
	place(t, c, testutil.NewActor(t), 100, 9)

	_, err := c.Send(c.Operator, core.TxKenoWithdraw, core.WithdrawPayload{To: c.Operator.Address, Amount: 1})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = c.Send(c.Owner, core.TxKenoWithdraw, core.WithdrawPayload{To: c.Owner.Address, Amount: 1_001})
	assert.ErrorIs(t, err, core.ErrInsufficient)
	c.MustSend(c.Owner, core.TxKenoWithdraw, core.WithdrawPayload{To: c.Owner.Address, Amount: 1_000})
	assert.Equal(t, uint64(100), c.Balance(keno.Escrow))
}
