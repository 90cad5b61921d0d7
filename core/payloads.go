package core

// TransferPayload transfers native tokens.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// ---- admin ----

// SetEntryPricePayload changes the price of one card for future rounds.
type SetEntryPricePayload struct {
	Price uint64 `json:"price"`
}

// SetFeesPayload changes the revenue split for future rounds.
type SetFeesPayload struct {
	FeeBps     uint64 `json:"fee_bps"`
	ReserveBps uint64 `json:"reserve_bps"`
	LineBps    uint64 `json:"line_bps"`
	BingoBps   uint64 `json:"bingo_bps"`
}

// SetRolesPayload replaces any non-empty role identity.
type SetRolesPayload struct {
	Operator string `json:"operator,omitempty"`
	Resolver string `json:"resolver,omitempty"`
	Oracle   string `json:"oracle,omitempty"`
}

// SetPausePayload toggles admission of new rounds, cards and bets.
type SetPausePayload struct {
	Paused bool `json:"paused"`
}

// WithdrawPayload moves accrued funds out of an engine escrow.
type WithdrawPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// SetLimitsPayload replaces the round-mode admission bounds.
type SetLimitsPayload struct {
	JackpotBallLimit  uint8  `json:"jackpot_ball_limit"`
	MaxOpenRounds     uint32 `json:"max_open_rounds"`
	MinCardsPerJoin   uint32 `json:"min_cards_per_join"`
	MaxCardsPerJoin   uint32 `json:"max_cards_per_join"`
	MaxCardsPerPlayer uint32 `json:"max_cards_per_player"`
	MaxCoWinners      uint32 `json:"max_co_winners"`
}

// FreezeAccountPayload blocks or unblocks payouts to an address.
type FreezeAccountPayload struct {
	Address string `json:"address"`
	Frozen  bool   `json:"frozen"`
}

// TransferOwnershipPayload hands the owner role to a new identity.
type TransferOwnershipPayload struct {
	NewOwner string `json:"new_owner"`
}

// ---- bingo ----

// BingoOpenPayload opens a round scheduled to close at CloseAt (unix nanos).
type BingoOpenPayload struct {
	CloseAt int64 `json:"close_at"`
}

// BingoJoinPayload buys Count cards in a round.
type BingoJoinPayload struct {
	RoundID uint64 `json:"round_id"`
	Count   uint32 `json:"count"`
}

// RoundPayload addresses a single round.
type RoundPayload struct {
	RoundID uint64 `json:"round_id"`
}

// BingoResolvePayload carries the resolver-signed outcome of a round.
type BingoResolvePayload struct {
	RoundID      uint64   `json:"round_id"`
	LineWinners  []string `json:"line_winners"`
	LineBall     uint8    `json:"line_ball"`
	BingoWinners []string `json:"bingo_winners"`
	BingoBall    uint8    `json:"bingo_ball"`
	Signature    string   `json:"signature"`
}

// ---- randomness ----

// FulfillRandomnessPayload relays an oracle proof for a pending request.
type FulfillRandomnessPayload struct {
	RequestID string `json:"request_id"`
	Proof     string `json:"proof"`
}

// ---- keno ----

// KenoStageRowPayload writes one row of the staging payout table.
type KenoStageRowPayload struct {
	Spots       uint8    `json:"spots"`
	Multipliers []uint64 `json:"multipliers"`
}

// KenoPlaceBetPayload places an instant bet on 1..10 numbers.
type KenoPlaceBetPayload struct {
	Numbers []int  `json:"numbers"`
	Amount  uint64 `json:"amount"`
}

// KenoBetPayload addresses a single bet.
type KenoBetPayload struct {
	BetID uint64 `json:"bet_id"`
}
