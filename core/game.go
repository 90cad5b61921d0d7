package core

import (
	"fmt"
	"time"

	"github.com/tolelom/drawchain/crypto"
)

// BpsDenominator is the basis-point scale used by every percentage.
const BpsDenominator = 10_000

// Engine modules that hold escrowed funds.
const (
	ModuleBingo = "bingo"
	ModuleKeno  = "keno"
)

// EscrowAddress is the account holding a module's funds.
func EscrowAddress(module string) string {
	return crypto.ModuleAddress(module)
}

// BingoParams are the round-mode parameters copied into each round at open.
type BingoParams struct {
	EntryPrice        uint64 `json:"entry_price" toml:"entry_price"`
	FeeBps            uint64 `json:"fee_bps" toml:"fee_bps"`
	ReserveBps        uint64 `json:"reserve_bps" toml:"reserve_bps"`
	LineBps           uint64 `json:"line_bps" toml:"line_bps"`
	BingoBps          uint64 `json:"bingo_bps" toml:"bingo_bps"`
	JackpotBallLimit  uint8  `json:"jackpot_ball_limit" toml:"jackpot_ball_limit"`
	MaxOpenRounds     uint32 `json:"max_open_rounds" toml:"max_open_rounds"`
	MinCardsPerJoin   uint32 `json:"min_cards_per_join" toml:"min_cards_per_join"`
	MaxCardsPerJoin   uint32 `json:"max_cards_per_join" toml:"max_cards_per_join"`
	MaxCardsPerPlayer uint32 `json:"max_cards_per_player" toml:"max_cards_per_player"`
	MaxCoWinners      uint32 `json:"max_co_winners" toml:"max_co_winners"`
}

// ValidateSplit checks the percentage parameters.
func (p BingoParams) ValidateSplit() error {
	if p.FeeBps+p.ReserveBps >= BpsDenominator {
		return fmt.Errorf("fee %d + reserve %d bps must be below %d: %w", p.FeeBps, p.ReserveBps, BpsDenominator, ErrInvalid)
	}
	if p.LineBps+p.BingoBps != BpsDenominator {
		return fmt.Errorf("line %d + bingo %d bps must equal %d: %w", p.LineBps, p.BingoBps, BpsDenominator, ErrInvalid)
	}
	return nil
}

// Validate checks the full parameter set.
func (p BingoParams) Validate() error {
	if p.EntryPrice == 0 {
		return fmt.Errorf("entry price must be > 0: %w", ErrInvalid)
	}
	if err := p.ValidateSplit(); err != nil {
		return err
	}
	return p.ValidateLimits()
}

// ValidateLimits checks the admission and co-winner bounds.
func (p BingoParams) ValidateLimits() error {
	switch {
	case p.JackpotBallLimit == 0 || p.JackpotBallLimit > BingoBalls:
		return fmt.Errorf("jackpot ball limit %d outside 1..%d: %w", p.JackpotBallLimit, BingoBalls, ErrInvalid)
	case p.MaxOpenRounds == 0:
		return fmt.Errorf("max open rounds must be > 0: %w", ErrInvalid)
	case p.MinCardsPerJoin == 0 || p.MinCardsPerJoin > p.MaxCardsPerJoin:
		return fmt.Errorf("cards per join range %d..%d invalid: %w", p.MinCardsPerJoin, p.MaxCardsPerJoin, ErrInvalid)
	case p.MaxCardsPerPlayer < p.MaxCardsPerJoin:
		return fmt.Errorf("max cards per player %d below max per join %d: %w", p.MaxCardsPerPlayer, p.MaxCardsPerJoin, ErrInvalid)
	case p.MaxCoWinners == 0:
		return fmt.Errorf("max co-winners must be > 0: %w", ErrInvalid)
	}
	return nil
}

// RandomnessParams are forwarded to the oracle with every request.
type RandomnessParams struct {
	KeyHash          string `json:"key_hash" toml:"key_hash"`
	MinConfirmations uint32 `json:"min_confirmations" toml:"min_confirmations"`
	CallbackGasLimit uint32 `json:"callback_gas_limit" toml:"callback_gas_limit"`
	TimeoutSecs      int64  `json:"timeout_secs" toml:"timeout_secs"`
}

// MaxDurationSecs bounds every configured timeout and timelock, so deadlines
// such as requested_at + 2T stay within int64 nanoseconds.
const MaxDurationSecs = 365 * 24 * 60 * 60

// Validate checks the timeout.
func (p RandomnessParams) Validate() error {
	if p.TimeoutSecs <= 0 || p.TimeoutSecs > MaxDurationSecs {
		return fmt.Errorf("randomness timeout %ds outside 1..%d: %w", p.TimeoutSecs, MaxDurationSecs, ErrInvalid)
	}
	return nil
}

// Timeout is the base randomness timeout T.
func (p RandomnessParams) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

// KenoParams bound instant-mode bets.
type KenoParams struct {
	MinBet            uint64 `json:"min_bet" toml:"min_bet"`
	MaxBet            uint64 `json:"max_bet" toml:"max_bet"`
	BetTimeoutSecs    int64  `json:"bet_timeout_secs" toml:"bet_timeout_secs"`
	TableTimelockSecs int64  `json:"table_timelock_secs" toml:"table_timelock_secs"`
}

// Validate checks the bet bounds and durations.
func (p KenoParams) Validate() error {
	if p.MinBet == 0 || p.MinBet > p.MaxBet {
		return fmt.Errorf("bet range %d..%d invalid: %w", p.MinBet, p.MaxBet, ErrInvalid)
	}
	if p.BetTimeoutSecs <= 0 || p.BetTimeoutSecs > MaxDurationSecs ||
		p.TableTimelockSecs < 0 || p.TableTimelockSecs > MaxDurationSecs {
		return fmt.Errorf("keno durations invalid: %w", ErrInvalid)
	}
	return nil
}

// BetTimeout is how long a bet may wait for randomness before it can be cancelled.
func (p KenoParams) BetTimeout() time.Duration {
	return time.Duration(p.BetTimeoutSecs) * time.Second
}

// TableTimelock is the minimum delay between payout table commits.
func (p KenoParams) TableTimelock() time.Duration {
	return time.Duration(p.TableTimelockSecs) * time.Second
}

// GameConfig is the engine's configuration store. Version increases on
// every change so rounds can record which configuration they copied.
type GameConfig struct {
	Version    uint64           `json:"version" toml:"version"`
	ChainID    uint64           `json:"chain_id" toml:"chain_id"` // bound into signed resolutions
	Owner      string           `json:"owner" toml:"owner"`
	Operator   string           `json:"operator" toml:"operator"`
	Resolver   string           `json:"resolver" toml:"resolver"`
	Oracle     string           `json:"oracle" toml:"oracle"`
	Paused     bool             `json:"paused" toml:"paused"`
	Bingo      BingoParams      `json:"bingo" toml:"bingo"`
	Randomness RandomnessParams `json:"randomness" toml:"randomness"`
	Keno       KenoParams       `json:"keno" toml:"keno"`
	UpdatedAt  int64            `json:"updated_at" toml:"-"`
}

// Validate checks a complete configuration, as loaded at genesis. The
// operator, resolver and oracle may be left unset and assigned later.
func (c *GameConfig) Validate() error {
	if crypto.IsZeroAddress(c.Owner) {
		return fmt.Errorf("owner must be set: %w", ErrInvalid)
	}
	if err := c.Randomness.Validate(); err != nil {
		return err
	}
	if err := c.Bingo.Validate(); err != nil {
		return err
	}
	return c.Keno.Validate()
}
