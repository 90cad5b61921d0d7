package config_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/config"
	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/internal/testutil"
)

func newOwner(t *testing.T) string {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return priv.Address()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Proposer = newOwner(t)
	cfg.Genesis.Game.Owner = newOwner(t)
	cfg.Genesis.Alloc[cfg.Proposer] = 1_000
	cfg.BlockIntervalMs = 500

	for _, name := range []string{"node.json", "node.toml", "NODE.TOML"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, config.Save(cfg, path))
			got, err := config.Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Proposer, got.Proposer)
			assert.Equal(t, cfg.Genesis.Game, got.Genesis.Game)
			assert.Equal(t, cfg.Genesis.Alloc, got.Genesis.Alloc)
			assert.Equal(t, 500*time.Millisecond, got.BlockInterval())
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
	_, err = config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestBlockIntervalDefault(t *testing.T) {
	cfg := &config.Config{}
	assert.Equal(t, 2*time.Second, cfg.BlockInterval())
}

func TestApplyGenesis(t *testing.T) {
	owner := newOwner(t)
	player := newOwner(t)
	state := testutil.NewStateDB()

	g := &config.GenesisConfig{
		ChainID: "test",
		Alloc:   map[string]uint64{strings.ToLower(player): 500},
		Game:    config.DefaultGame(),
	}
	g.Game.Owner = strings.ToLower(owner)
	g.Game.Version = 0
	require.NoError(t, config.ApplyGenesis(g, state))

	cfg, err := state.GetGameConfig()
	require.NoError(t, err)
	assert.Equal(t, owner, cfg.Owner, "roles are checksummed")
	assert.EqualValues(t, 1, cfg.Version)
	acc, err := state.GetAccount(player)
	require.NoError(t, err)
	assert.EqualValues(t, 500, acc.Balance)
}

func TestApplyGenesisRejectsInvalid(t *testing.T) {
	tests := map[string]func(g *config.GenesisConfig){
		"no owner":      func(g *config.GenesisConfig) { g.Game.Owner = "" },
		"bad role":      func(g *config.GenesisConfig) { g.Game.Oracle = "oracle" },
		"bad alloc":     func(g *config.GenesisConfig) { g.Alloc = map[string]uint64{"xyz": 1} },
		"split too big": func(g *config.GenesisConfig) { g.Game.Bingo.FeeBps = core.BpsDenominator },
	}
	for name, edit := range tests {
		t.Run(name, func(t *testing.T) {
			g := &config.GenesisConfig{ChainID: "test", Game: config.DefaultGame()}
			g.Game.Owner = newOwner(t)
			edit(g)
			err := config.ApplyGenesis(g, testutil.NewStateDB())
			assert.Error(t, err)
		})
	}
}

func TestCreateGenesisBlock(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	cfg := config.DefaultConfig()
	cfg.Genesis.Game.Owner = priv.Address()
	state := testutil.NewStateDB()

	block, err := config.CreateGenesisBlock(cfg, state, priv)
	require.NoError(t, err)
	assert.Zero(t, block.Header.Height)
	assert.True(t, config.IsGenesisHash(block.Header.PrevHash))
	assert.Equal(t, state.ComputeRoot(), block.Header.StateRoot)
	require.NoError(t, block.Verify())
}

func TestIsGenesisHash(t *testing.T) {
	assert.True(t, config.IsGenesisHash(config.GenesisHash))
	assert.False(t, config.IsGenesisHash(config.GenesisHash[1:]))
	assert.False(t, config.IsGenesisHash("1"+config.GenesisHash[1:]))
}
