package randomness_test

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/internal/testutil"
	"github.com/tolelom/drawchain/oracle"
	"github.com/tolelom/drawchain/vm"
	"github.com/tolelom/drawchain/vm/modules/randomness"
)

const txProbe core.TxType = "test_probe_request"

var (
	delivered [][]byte
	rejectAll bool
)

func init() {
	vm.Register(txProbe, func(ctx *vm.Context, _ json.RawMessage) error {
		_, err := randomness.Request(ctx, "probe", 7)
		return err
	})
	randomness.RegisterConsumer("probe", func(ctx *vm.Context, req *core.RandomnessRequest, value []byte) error {
		if err := ctx.State.SetAccount(&core.Account{Address: core.EscrowAddress("probe"), Balance: 1}); err != nil {
			return err
		}
		if rejectAll {
			return errors.New("consumer refuses")
		}
		delivered = append(delivered, value)
		return nil
	})
}

func request(t *testing.T, c *testutil.Chain) *core.RandomnessRequest {
	t.Helper()
	c.ResetEvents()
	c.MustSend(testutil.NewActor(t), txProbe, struct{}{})
	evs := c.Events(events.EventRandomnessRequested)
	require.Len(t, evs, 1)
	req, err := c.State.GetRandomnessRequest(evs[0].Data["request_id"].(string))
	require.NoError(t, err)
	return req
}

func fulfill(t *testing.T, c *testutil.Chain, relayer *testutil.Actor, id, proof string) {
	t.Helper()
	c.MustSend(relayer, core.TxRandomnessFulfill, core.FulfillRandomnessPayload{RequestID: id, Proof: proof})
}

func TestRequestAndFulfill(t *testing.T) {
	delivered, rejectAll = nil, false
	c := testutil.NewChain(t, func(g *core.GameConfig) { g.Randomness.KeyHash = "0xkey" })
	req := request(t, c)
	assert.Equal(t, "probe", req.Consumer)
	assert.Equal(t, uint64(7), req.Subject)
	assert.Equal(t, "0xkey", req.KeyHash)
	assert.Equal(t, c.Now.UnixNano(), req.RequestedAt)
	assert.False(t, req.Fulfilled)

	proof, value, err := oracle.Prove(c.Oracle.Key, req.Seed)
	require.NoError(t, err)

	// Anyone may relay a valid proof.
	fulfill(t, c, testutil.NewActor(t), req.ID, proof)
	require.Len(t, delivered, 1)
	assert.Equal(t, value, delivered[0])

	got, err := c.State.GetRandomnessRequest(req.ID)
	require.NoError(t, err)
	assert.True(t, got.Fulfilled)
	assert.Equal(t, "0x"+hex.EncodeToString(value), got.Value)
	assert.Equal(t, uint64(1), c.Balance(core.EscrowAddress("probe")))

	// A repeated fulfillment is a no-op.
	fulfill(t, c, c.Oracle, req.ID, proof)
	assert.Len(t, delivered, 1)
}

func TestBadFulfillmentsAreIgnored(t *testing.T) {
	delivered, rejectAll = nil, false
	c := testutil.NewChain(t, nil)
	req := request(t, c)

	fulfill(t, c, c.Oracle, "0xunknown", "0x00")
	fulfill(t, c, c.Oracle, req.ID, "not-hex")

	impostor := testutil.NewActor(t)
	forged, _, err := oracle.Prove(impostor.Key, req.Seed)
	require.NoError(t, err)
	fulfill(t, c, impostor, req.ID, forged)

	other, _, err := oracle.Prove(c.Oracle.Key, "0x1234")
	require.NoError(t, err)
	fulfill(t, c, c.Oracle, req.ID, other)

	c.MustSend(c.Oracle, core.TxRandomnessFulfill, json.RawMessage(`"garbage"`))

	got, err := c.State.GetRandomnessRequest(req.ID)
	require.NoError(t, err)
	assert.False(t, got.Fulfilled)
	assert.Empty(t, delivered)
	assert.Empty(t, c.Events(events.EventRandomnessFulfilled))

	c.Fulfill(req.ID)
	assert.Len(t, delivered, 1)
}

func TestConsumerFailureKeepsFulfillment(t *testing.T) {
	delivered, rejectAll = nil, true
	defer func() { rejectAll = false }()
	c := testutil.NewChain(t, nil)
	req := request(t, c)
	c.Fulfill(req.ID)

	got, err := c.State.GetRandomnessRequest(req.ID)
	require.NoError(t, err)
	assert.True(t, got.Fulfilled)
	assert.Zero(t, c.Balance(core.EscrowAddress("probe")), "consumer writes are rolled back")
	assert.Len(t, c.Events(events.EventRandomnessFulfilled), 1)
}

func TestRequestWithoutOracle(t *testing.T) {
	c := testutil.NewChain(t, func(g *core.GameConfig) { g.Oracle = "" })
	_, err := c.Send(testutil.NewActor(t), txProbe, struct{}{})
	assert.ErrorIs(t, err, randomness.ErrNoOracle)
	assert.ErrorIs(t, err, core.ErrWrongState)
}

func TestRequestIDIsDeterministic(t *testing.T) {
	a := randomness.RequestID("tx", "bingo", 1)
	assert.Equal(t, a, randomness.RequestID("tx", "bingo", 1))
	assert.NotEqual(t, a, randomness.RequestID("tx", "keno", 1))
	assert.NotEqual(t, a, randomness.RequestID("tx", "bingo", 2))
	assert.NotEqual(t, a, randomness.RequestID("tx2", "bingo", 1))
}
