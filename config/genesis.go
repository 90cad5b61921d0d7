package config

import (
	"fmt"
	"strings"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
)

// GenesisHash is a canonical all-zeros previous hash for the genesis block.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ApplyGenesis writes the alloc balances and the initial game configuration
// into state without committing.
func ApplyGenesis(g *GenesisConfig, state core.State) error {
	for addr, balance := range g.Alloc {
		norm, err := crypto.NormalizeAddress(addr)
		if err != nil {
			return fmt.Errorf("alloc: %w", err)
		}
		if err := state.SetAccount(&core.Account{Address: norm, Balance: balance}); err != nil {
			return err
		}
	}

	game := g.Game
	for _, role := range []*string{&game.Owner, &game.Operator, &game.Resolver, &game.Oracle} {
		if *role == "" {
			continue
		}
		norm, err := crypto.NormalizeAddress(*role)
		if err != nil {
			return fmt.Errorf("game roles: %w", err)
		}
		*role = norm
	}
	if err := game.Validate(); err != nil {
		return fmt.Errorf("game config: %w", err)
	}
	if game.Version == 0 {
		game.Version = 1
	}
	return state.SetGameConfig(&game)
}

// CreateGenesisBlock builds and signs block #0 from the genesis section,
// applies it to state and commits.
func CreateGenesisBlock(cfg *Config, state core.State, proposerPriv crypto.PrivateKey) (*core.Block, error) {
	if err := ApplyGenesis(&cfg.Genesis, state); err != nil {
		return nil, err
	}
	stateRoot := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return nil, err
	}

	block := core.NewBlock(0, GenesisHash, proposerPriv.Address(), nil)
	block.Header.StateRoot = stateRoot
	// The genesis TxRoot identifies the chain.
	block.Header.TxRoot = crypto.Hash([]byte(cfg.Genesis.ChainID))
	block.Sign(proposerPriv)
	return block, nil
}

// IsGenesisHash returns true if the hash is the canonical genesis prev-hash.
func IsGenesisHash(h string) bool {
	return strings.Count(h, "0") == len(h) && len(h) == 64
}
