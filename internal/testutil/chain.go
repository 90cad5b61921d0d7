package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/config"
	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/oracle"
	"github.com/tolelom/drawchain/storage"
	"github.com/tolelom/drawchain/vm"
)

// ChainID is the chain id every harness transaction is bound to.
const ChainID = "drawchain-test"

// Actor is a keyed participant.
type Actor struct {
	Key     crypto.PrivateKey
	Address string
}

// NewActor generates a fresh identity.
func NewActor(t testing.TB) *Actor {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return &Actor{Key: priv, Address: priv.Address()}
}

// Chain executes signed transactions one per block against in-memory state
// at a controllable block time. Modules under test must be imported by the
// test package for their handlers to be registered.
type Chain struct {
	t        testing.TB
	DB       *MemDB
	State    *storage.StateDB
	Exec     *vm.Executor
	Emitter  *events.Emitter
	Proposer *Actor

	Owner, Operator, Resolver, Oracle *Actor

	Now      time.Time
	height   int64
	prevHash string

	mu     sync.Mutex
	events []events.Event
}

// Game returns a valid configuration with the given roles.
func Game(owner, operator, resolver, oracle string) core.GameConfig {
	g := config.DefaultGame()
	g.Owner, g.Operator, g.Resolver, g.Oracle = owner, operator, resolver, oracle
	return g
}

// NewChain builds a chain whose genesis assigns fresh owner, operator,
// resolver and oracle actors. edit, if non-nil, adjusts the game config
// before genesis is applied.
func NewChain(t testing.TB, edit func(*core.GameConfig)) *Chain {
	t.Helper()
	db := NewMemDB()
	c := &Chain{
		t:        t,
		DB:       db,
		State:    storage.NewStateDB(db),
		Emitter:  events.NewEmitter(),
		Proposer: NewActor(t),
		Owner:    NewActor(t),
		Operator: NewActor(t),
		Resolver: NewActor(t),
		Oracle:   NewActor(t),
		Now:      time.Unix(1_700_000_000, 0),
		prevHash: config.GenesisHash,
	}
	c.Exec = vm.NewExecutor(c.State, c.Emitter)
	c.Emitter.SubscribeAll(func(ev events.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, ev)
	})

	game := Game(c.Owner.Address, c.Operator.Address, c.Resolver.Address, c.Oracle.Address)
	if edit != nil {
		edit(&game)
	}
	g := &config.GenesisConfig{ChainID: ChainID, Game: game}
	require.NoError(t, config.ApplyGenesis(g, c.State))
	require.NoError(t, c.State.Commit())
	return c
}

// Fund credits addr directly, outside any transaction.
func (c *Chain) Fund(addr string, amount uint64) {
	c.t.Helper()
	acc, err := c.State.GetAccount(addr)
	require.NoError(c.t, err)
	acc.Balance += amount
	require.NoError(c.t, c.State.SetAccount(acc))
	require.NoError(c.t, c.State.Commit())
}

// Advance moves block time forward.
func (c *Chain) Advance(d time.Duration) { c.Now = c.Now.Add(d) }

// Send signs payload as from and executes it in its own block. The receipt
// is nil if the transaction failed pre-checks.
func (c *Chain) Send(from *Actor, typ core.TxType, payload any) (*core.Receipt, error) {
	c.t.Helper()
	acc, err := c.State.GetAccount(from.Address)
	require.NoError(c.t, err)
	tx, err := core.NewTransaction(ChainID, typ, from.Address, acc.Nonce, 0, payload)
	require.NoError(c.t, err)
	tx.Timestamp = c.Now.UnixNano()
	tx.Sign(from.Key)
	return c.Include(tx)
}

// Include executes an already signed transaction in the next block.
func (c *Chain) Include(tx *core.Transaction) (*core.Receipt, error) {
	c.t.Helper()
	c.height++
	block := core.NewBlockAt(c.height, c.prevHash, c.Proposer.Address, []*core.Transaction{tx}, c.Now.UnixNano())
	rec, err := c.Exec.ExecuteTx(block, tx)
	block.Header.StateRoot = c.State.ComputeRoot()
	block.Sign(c.Proposer.Key)
	c.prevHash = block.Hash
	require.NoError(c.t, c.State.Commit())
	return rec, err
}

// MustSend is Send that fails the test unless the transaction succeeds.
func (c *Chain) MustSend(from *Actor, typ core.TxType, payload any) *core.Receipt {
	c.t.Helper()
	rec, err := c.Send(from, typ, payload)
	require.NoError(c.t, err)
	require.True(c.t, rec.Success)
	return rec
}

// Fulfill answers a randomness request with a valid oracle proof.
func (c *Chain) Fulfill(requestID string) *core.Receipt {
	c.t.Helper()
	req, err := c.State.GetRandomnessRequest(requestID)
	require.NoError(c.t, err)
	proof, _, err := oracle.Prove(c.Oracle.Key, req.Seed)
	require.NoError(c.t, err)
	return c.MustSend(c.Oracle, core.TxRandomnessFulfill, core.FulfillRandomnessPayload{RequestID: requestID, Proof: proof})
}

// Balance returns addr's ledger balance.
func (c *Chain) Balance(addr string) uint64 {
	c.t.Helper()
	acc, err := c.State.GetAccount(addr)
	require.NoError(c.t, err)
	return acc.Balance
}

// Config returns the current game configuration.
func (c *Chain) Config() *core.GameConfig {
	c.t.Helper()
	cfg, err := c.State.GetGameConfig()
	require.NoError(c.t, err)
	return cfg
}

// Events returns every delivered event of type typ, in order.
func (c *Chain) Events(typ events.EventType) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// ResetEvents forgets recorded events.
func (c *Chain) ResetEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}
