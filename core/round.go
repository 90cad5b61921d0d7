package core

import "fmt"

// Bingo board geometry.
const (
	BingoBalls = 75
	CardSize   = 25
	CardCenter = 12
	ColumnSpan = 15
	CardWidth  = 5
)

// RoundStatus is a round's position in its lifecycle.
type RoundStatus string

const (
	RoundOpen                RoundStatus = "open"
	RoundClosed              RoundStatus = "closed"
	RoundRandomnessRequested RoundStatus = "randomness_requested"
	RoundRandomnessFulfilled RoundStatus = "randomness_fulfilled"
	RoundResolved            RoundStatus = "resolved"
	RoundCancelled           RoundStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s RoundStatus) Terminal() bool {
	return s == RoundResolved || s == RoundCancelled
}

// RoundSnapshot is the configuration frozen into a round at creation.
// Later configuration changes never touch it.
type RoundSnapshot struct {
	ConfigVersion    uint64 `json:"config_version"`
	EntryPrice       uint64 `json:"entry_price"`
	FeeBps           uint64 `json:"fee_bps"`
	ReserveBps       uint64 `json:"reserve_bps"`
	LineBps          uint64 `json:"line_bps"`
	BingoBps         uint64 `json:"bingo_bps"`
	JackpotBallLimit uint8  `json:"jackpot_ball_limit"`
}

// SnapshotOf copies the round-relevant parameters out of cfg.
func SnapshotOf(cfg *GameConfig) RoundSnapshot {
	return RoundSnapshot{
		ConfigVersion:    cfg.Version,
		EntryPrice:       cfg.Bingo.EntryPrice,
		FeeBps:           cfg.Bingo.FeeBps,
		ReserveBps:       cfg.Bingo.ReserveBps,
		LineBps:          cfg.Bingo.LineBps,
		BingoBps:         cfg.Bingo.BingoBps,
		JackpotBallLimit: cfg.Bingo.JackpotBallLimit,
	}
}

// Round is one multi-participant bingo game.
type Round struct {
	ID             uint64        `json:"id"`
	Status         RoundStatus   `json:"status"`
	Snapshot       RoundSnapshot `json:"snapshot"`
	ScheduledClose int64         `json:"scheduled_close"`
	EntryCount     uint32        `json:"entry_count"`
	Revenue        uint64        `json:"revenue"`

	RequestID   string `json:"request_id,omitempty"`
	RequestedAt int64  `json:"requested_at,omitempty"`
	RandomValue string `json:"random_value,omitempty"`

	LineWinners  []string `json:"line_winners,omitempty"`
	LineBall     uint8    `json:"line_ball,omitempty"`
	BingoWinners []string `json:"bingo_winners,omitempty"`
	BingoBall    uint8    `json:"bingo_ball,omitempty"`
	Resolved     bool     `json:"resolved"`

	Fee         uint64 `json:"fee"`
	Reserve     uint64 `json:"reserve"`
	LinePool    uint64 `json:"line_pool"`
	BingoPool   uint64 `json:"bingo_pool"`
	ToJackpot   uint64 `json:"to_jackpot"`
	JackpotWon  bool   `json:"jackpot_won"`
	JackpotPaid uint64 `json:"jackpot_paid"`

	CreatedAt   int64 `json:"created_at"`
	ClosedAt    int64 `json:"closed_at,omitempty"`
	FulfilledAt int64 `json:"fulfilled_at,omitempty"`
	ResolvedAt  int64 `json:"resolved_at,omitempty"`
	CancelledAt int64 `json:"cancelled_at,omitempty"`
}

// Card is a bingo entry. Numbers are row-major with 0 at the free centre.
type Card struct {
	ID      string          `json:"id"`
	RoundID uint64          `json:"round_id"`
	Index   uint32          `json:"index"`
	Owner   string          `json:"owner"`
	Numbers [CardSize]uint8 `json:"numbers"`
}

// CardID formats the identity of the index-th card in a round.
func CardID(roundID uint64, index uint32) string {
	return fmt.Sprintf("%d-%d", roundID, index)
}

// Claim is a participant's pull-payment record for one round.
type Claim struct {
	RoundID       uint64 `json:"round_id"`
	Player        string `json:"player"`
	PendingPrize  uint64 `json:"pending_prize"`
	RefundClaimed bool   `json:"refund_claimed"`
	PaidPrize     uint64 `json:"paid_prize"`
	PaidRefund    uint64 `json:"paid_refund"`
}

// BingoState is the engine-wide round-mode ledger.
type BingoState struct {
	NextRoundID uint64   `json:"next_round_id"`
	OpenRounds  []uint64 `json:"open_rounds"`
	Jackpot     uint64   `json:"jackpot"`
	AccruedFees uint64   `json:"accrued_fees"`
}

// RemoveOpen drops id from the open-round set.
func (bs *BingoState) RemoveOpen(id uint64) {
	out := bs.OpenRounds[:0]
	for _, r := range bs.OpenRounds {
		if r != id {
			out = append(out, r)
		}
	}
	bs.OpenRounds = out
}
