package admin_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/internal/testutil"
	_ "github.com/tolelom/drawchain/vm/modules/admin"
)

func TestOwnerOnly(t *testing.T) {
	c := testutil.NewChain(t, nil)
	changes := map[core.TxType]any{
		core.TxAdminSetEntryPrice:     core.SetEntryPricePayload{Price: 5},
		core.TxAdminSetFees:           core.SetFeesPayload{FeeBps: 100, LineBps: 5000, BingoBps: 5000},
		core.TxAdminSetRoles:          core.SetRolesPayload{Operator: c.Owner.Address},
		core.TxAdminSetPause:          core.SetPausePayload{Paused: true},
		core.TxAdminSetRandomness:     core.RandomnessParams{TimeoutSecs: 60},
		core.TxAdminTransferOwnership: core.TransferOwnershipPayload{NewOwner: c.Operator.Address},
		core.TxAdminFreezeAccount:     core.FreezeAccountPayload{Address: c.Owner.Address, Frozen: true},
		core.TxAdminWithdrawFees:      core.WithdrawPayload{To: c.Operator.Address, Amount: 1},
	}
	for typ, payload := range changes {
		rec, err := c.Send(c.Operator, typ, payload)
		assert.ErrorIs(t, err, core.ErrUnauthorized, typ)
		require.NotNil(t, rec)
		assert.Equal(t, core.CategoryUnauthorized, rec.Category)
	}
	assert.Equal(t, uint64(1), c.Config().Version)
}

func TestEveryChangeBumpsVersion(t *testing.T) {
	c := testutil.NewChain(t, nil)

	c.MustSend(c.Owner, core.TxAdminSetEntryPrice, core.SetEntryPricePayload{Price: 250})
	cfg := c.Config()
	assert.Equal(t, uint64(2), cfg.Version)
	assert.Equal(t, uint64(250), cfg.Bingo.EntryPrice)
	assert.Equal(t, c.Now.UnixNano(), cfg.UpdatedAt)

	c.MustSend(c.Owner, core.TxAdminSetLimits, core.SetLimitsPayload{
		JackpotBallLimit:  50,
		MaxOpenRounds:     2,
		MinCardsPerJoin:   1,
		MaxCardsPerJoin:   5,
		MaxCardsPerPlayer: 20,
		MaxCoWinners:      8,
	})
	c.MustSend(c.Owner, core.TxAdminSetKenoParams, core.KenoParams{MinBet: 1, MaxBet: 5, BetTimeoutSecs: 10, TableTimelockSecs: 0})
	cfg = c.Config()
	assert.Equal(t, uint64(4), cfg.Version)
	assert.Equal(t, uint8(50), cfg.Bingo.JackpotBallLimit)
	assert.Equal(t, uint64(5), cfg.Keno.MaxBet)

	changed := c.Events(events.EventConfigChanged)
	require.Len(t, changed, 3)
	assert.Equal(t, uint64(4), changed[2].Data["version"])
}

func TestInvalidChangesAreRejected(t *testing.T) {
	c := testutil.NewChain(t, nil)
	invalid := map[core.TxType]any{
		core.TxAdminSetEntryPrice:     core.SetEntryPricePayload{Price: 0},
		core.TxAdminSetFees:           core.SetFeesPayload{FeeBps: 9000, ReserveBps: 1000, LineBps: 5000, BingoBps: 5000},
		core.TxAdminSetRoles:          core.SetRolesPayload{},
		core.TxAdminSetRandomness:     core.RandomnessParams{},
		core.TxAdminSetLimits:         core.SetLimitsPayload{JackpotBallLimit: 76},
		core.TxAdminSetKenoParams:     core.KenoParams{MinBet: 10, MaxBet: 1},
		core.TxAdminTransferOwnership: core.TransferOwnershipPayload{NewOwner: crypto.ZeroAddress},
		core.TxAdminFreezeAccount:     core.FreezeAccountPayload{Address: "nobody"},
	}
	for typ, payload := range invalid {
		_, err := c.Send(c.Owner, typ, payload)
		assert.ErrorIs(t, err, core.ErrInvalid, typ)
	}
	_, err := c.Send(c.Owner, core.TxAdminSetRoles, core.SetRolesPayload{Resolver: crypto.ZeroAddress})
	assert.ErrorIs(t, err, core.ErrInvalid)
	// A timeout this large would overflow the emergency cancel deadline.
	_, err = c.Send(c.Owner, core.TxAdminSetRandomness, core.RandomnessParams{TimeoutSecs: 1 << 40})
	assert.ErrorIs(t, err, core.ErrInvalid)
	_, err = c.Send(c.Owner, core.TxAdminSetKenoParams, core.KenoParams{MinBet: 1, MaxBet: 5, BetTimeoutSecs: 1 << 40})
	assert.ErrorIs(t, err, core.ErrInvalid)
	c.MustSend(c.Owner, core.TxAdminSetRandomness, core.RandomnessParams{TimeoutSecs: core.MaxDurationSecs})
	assert.Equal(t, uint64(2), c.Config().Version)
}

func TestSetRolesNormalizes(t *testing.T) {
	c := testutil.NewChain(t, nil)
	next := testutil.NewActor(t)
	c.MustSend(c.Owner, core.TxAdminSetRoles, core.SetRolesPayload{Resolver: strings.ToLower(next.Address)})
	cfg := c.Config()
	assert.Equal(t, next.Address, cfg.Resolver)
	assert.Equal(t, c.Operator.Address, cfg.Operator, "roles left empty are kept")
}

func TestTransferOwnership(t *testing.T) {
	c := testutil.NewChain(t, nil)
	heir := testutil.NewActor(t)
	c.MustSend(c.Owner, core.TxAdminTransferOwnership, core.TransferOwnershipPayload{NewOwner: heir.Address})
	assert.Equal(t, heir.Address, c.Config().Owner)

	_, err := c.Send(c.Owner, core.TxAdminSetPause, core.SetPausePayload{Paused: true})
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	c.MustSend(heir, core.TxAdminSetPause, core.SetPausePayload{Paused: true})
	assert.True(t, c.Config().Paused)
}

func TestFreezeAccount(t *testing.T) {
	c := testutil.NewChain(t, nil)
	target := testutil.NewActor(t)
	c.MustSend(c.Owner, core.TxAdminFreezeAccount, core.FreezeAccountPayload{Address: target.Address, Frozen: true})
	acc, err := c.State.GetAccount(target.Address)
	require.NoError(t, err)
	assert.True(t, acc.Frozen)
	// Freezing is an account flag, not a config change.
	assert.Equal(t, uint64(1), c.Config().Version)
}
