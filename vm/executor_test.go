package vm_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/internal/testutil"
	"github.com/tolelom/drawchain/vm"
	_ "github.com/tolelom/drawchain/vm/modules/economy"
)

const (
	txScribble core.TxType = "test_scribble"
	txPayout   core.TxType = "test_payout"
	txLoop     core.TxType = "test_loop"
)

var testEscrow = core.EscrowAddress("test")

type payoutPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

func init() {
	// Writes state and an event, then fails.
	vm.Register(txScribble, func(ctx *vm.Context, _ json.RawMessage) error {
		if err := ctx.State.SetAccount(&core.Account{Address: testEscrow, Balance: 1}); err != nil {
			return err
		}
		ctx.Emit(events.EventTokenTransfer, map[string]any{"scribble": true})
		return errors.New("boom")
	})
	vm.Register(txPayout, vm.NonReentrant("test", func(ctx *vm.Context, payload json.RawMessage) error {
		var p payoutPayload
		if err := vm.Decode(payload, &p); err != nil {
			return err
		}
		return ctx.Transfer(testEscrow, p.To, p.Amount)
	}))
	vm.Register(txLoop, vm.NonReentrant("test", func(ctx *vm.Context, _ json.RawMessage) error {
		return ctx.Call(ctx.Sender(), txLoop, struct{}{})
	}))
}

func TestFailedHandlerLeavesNoTrace(t *testing.T) {
	c := testutil.NewChain(t, nil)
	user := testutil.NewActor(t)
	root := c.State.ComputeRoot()

	rec, err := c.Send(user, txScribble, struct{}{})
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Success)
	assert.Equal(t, core.CategoryInternal, rec.Category)

	assert.Zero(t, c.Balance(testEscrow))
	assert.Empty(t, c.Events(events.EventTokenTransfer))
	assert.Len(t, c.Events(events.EventTxFailed), 1)

	// The nonce is consumed and the receipt stored.
	acc, err := c.State.GetAccount(user.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), acc.Nonce)
	stored, err := c.State.GetReceipt(rec.TxID)
	require.NoError(t, err)
	assert.False(t, stored.Success)
	assert.NotEqual(t, root, c.State.ComputeRoot())
}

func TestPrecheckFailureHasNoReceipt(t *testing.T) {
	c := testutil.NewChain(t, nil)
	user := testutil.NewActor(t)

	tx, err := core.NewTransaction(testutil.ChainID, core.TxTransfer, user.Address, 5, 0, core.TransferPayload{})
	require.NoError(t, err)
	tx.Sign(user.Key)
	rec, err := c.Include(tx)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, core.ErrInvalid)

	tx.Nonce = 0
	rec, err = c.Include(tx)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, core.ErrUnauthorized, "signature no longer matches the body")

	acc, err := c.State.GetAccount(user.Address)
	require.NoError(t, err)
	assert.Zero(t, acc.Nonce)
}

func TestUnknownTxType(t *testing.T) {
	c := testutil.NewChain(t, nil)
	rec, err := c.Send(testutil.NewActor(t), "no_such_type", struct{}{})
	assert.ErrorIs(t, err, core.ErrInvalid)
	require.NotNil(t, rec)
	assert.Equal(t, core.CategoryValidation, rec.Category)
	assert.Contains(t, vm.Registered(), core.TxTransfer)
	assert.NotContains(t, vm.Registered(), core.TxType("no_such_type"))
	assert.Panics(t, func() { vm.Register(txScribble, nil) })
}

func TestTransferFromEconomy(t *testing.T) {
	c := testutil.NewChain(t, nil)
	alice, bob := testutil.NewActor(t), testutil.NewActor(t)
	c.Fund(alice.Address, 100)

	c.MustSend(alice, core.TxTransfer, core.TransferPayload{To: bob.Address, Amount: 40})
	assert.Equal(t, uint64(60), c.Balance(alice.Address))
	assert.Equal(t, uint64(40), c.Balance(bob.Address))

	rec, err := c.Send(alice, core.TxTransfer, core.TransferPayload{To: bob.Address, Amount: 61})
	assert.ErrorIs(t, err, core.ErrInsufficient)
	assert.Equal(t, core.CategoryInsufficient, rec.Category)

	_, err = c.Send(alice, core.TxTransfer, core.TransferPayload{To: "nobody", Amount: 1})
	assert.ErrorIs(t, err, core.ErrInvalid)
}

func TestTransferToFrozenAccountIsRejected(t *testing.T) {
	c := testutil.NewChain(t, nil)
	user := testutil.NewActor(t)
	c.Fund(testEscrow, 50)
	require.NoError(t, c.State.SetAccount(&core.Account{Address: user.Address, Frozen: true}))

	_, err := c.Send(user, txPayout, payoutPayload{To: user.Address, Amount: 10})
	assert.ErrorIs(t, err, core.ErrTransferRejected)
	assert.Equal(t, uint64(50), c.Balance(testEscrow))
	assert.Zero(t, c.Balance(user.Address))
}

func TestReceiveHook(t *testing.T) {
	c := testutil.NewChain(t, nil)
	user := testutil.NewActor(t)
	c.Fund(testEscrow, 50)

	var got uint64
	c.Exec.SetReceiveHook(user.Address, func(ctx *vm.Context, from string, amount uint64) error {
		got = amount
		return errors.New("not accepting")
	})
	_, err := c.Send(user, txPayout, payoutPayload{To: user.Address, Amount: 10})
	assert.ErrorIs(t, err, core.ErrTransferRejected)
	assert.Equal(t, uint64(10), got)
	assert.Equal(t, uint64(50), c.Balance(testEscrow), "rejected payout is rolled back")

	c.Exec.SetReceiveHook(user.Address, nil)
	c.MustSend(user, txPayout, payoutPayload{To: user.Address, Amount: 10})
	assert.Equal(t, uint64(10), c.Balance(user.Address))
}

func TestReentrantCallIsRejected(t *testing.T) {
	c := testutil.NewChain(t, nil)
	rec, err := c.Send(testutil.NewActor(t), txLoop, struct{}{})
	assert.ErrorIs(t, err, core.ErrReentrant)
	assert.Equal(t, core.CategoryReentrant, rec.Category)

	// A hook calling back into the paying module is rejected too.
	user := testutil.NewActor(t)
	c.Fund(testEscrow, 50)
	c.Exec.SetReceiveHook(user.Address, func(ctx *vm.Context, _ string, _ uint64) error {
		return ctx.Call(user.Address, txPayout, payoutPayload{To: user.Address, Amount: 10})
	})
	_, err = c.Send(user, txPayout, payoutPayload{To: user.Address, Amount: 10})
	assert.ErrorIs(t, err, core.ErrReentrant)
	assert.Equal(t, uint64(50), c.Balance(testEscrow))
}
