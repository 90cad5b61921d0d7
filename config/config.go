package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tolelom/drawchain/core"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `json:"chain_id" toml:"chain_id"`
	Alloc   map[string]uint64 `json:"alloc" toml:"alloc"` // address → initial balance
	Game    core.GameConfig   `json:"game" toml:"game"`
}

// Config holds all node configuration.
type Config struct {
	NodeID          string        `json:"node_id" toml:"node_id"`
	DataDir         string        `json:"data_dir" toml:"data_dir"`
	RPCAddr         string        `json:"rpc_addr" toml:"rpc_addr"`
	RPCAuthToken    string        `json:"rpc_auth_token,omitempty" toml:"rpc_auth_token"` // empty → no auth
	LogLevel        string        `json:"log_level" toml:"log_level"`
	LogFormat       string        `json:"log_format" toml:"log_format"` // text or json
	BlockIntervalMs int64         `json:"block_interval_ms" toml:"block_interval_ms"`
	MaxBlockTxs     int           `json:"max_block_txs" toml:"max_block_txs"` // max transactions per block; 0 → 500
	Proposer        string        `json:"proposer" toml:"proposer"`           // authorised block producer address
	OracleKeyPath   string        `json:"oracle_key_path,omitempty" toml:"oracle_key_path"`
	Genesis         GenesisConfig `json:"genesis" toml:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         "./data",
		RPCAddr:         ":8545",
		LogLevel:        "info",
		LogFormat:       "text",
		BlockIntervalMs: 2000,
		MaxBlockTxs:     500,
		Genesis: GenesisConfig{
			ChainID: "drawchain-dev",
			Alloc:   map[string]uint64{},
			Game:    DefaultGame(),
		},
	}
}

// DefaultGame is a playable starting configuration. Roles are left unset
// and must be filled in before the chain starts.
func DefaultGame() core.GameConfig {
	return core.GameConfig{
		Version: 1,
		ChainID: 1,
		Bingo: core.BingoParams{
			EntryPrice:        100,
			FeeBps:            1000,
			ReserveBps:        500,
			LineBps:           3000,
			BingoBps:          7000,
			JackpotBallLimit:  40,
			MaxOpenRounds:     4,
			MinCardsPerJoin:   1,
			MaxCardsPerJoin:   10,
			MaxCardsPerPlayer: 50,
			MaxCoWinners:      16,
		},
		Randomness: core.RandomnessParams{
			MinConfirmations: 1,
			CallbackGasLimit: 500_000,
			TimeoutSecs:      3600,
		},
		Keno: core.KenoParams{
			MinBet:            10,
			MaxBet:            10_000,
			BetTimeoutSecs:    3600,
			TableTimelockSecs: 86_400,
		},
	}
}

// BlockInterval is the configured block period.
func (c *Config) BlockInterval() time.Duration {
	if c.BlockIntervalMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.BlockIntervalMs) * time.Millisecond
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a config file from path. Files ending in .toml are decoded as
// TOML, everything else as JSON.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if isTOML(path) {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, as TOML or formatted JSON by extension.
func Save(cfg *Config, path string) error {
	if isTOML(path) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return toml.NewEncoder(f).Encode(cfg)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
