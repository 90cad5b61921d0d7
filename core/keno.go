package core

import "fmt"

// Keno board geometry and payout scale.
const (
	KenoNumbers     = 80
	KenoDraws       = 20
	KenoMaxSpots    = 10
	MultiplierScale = 10_000
)

// BetStatus is a keno bet's lifecycle position.
type BetStatus string

const (
	BetPending   BetStatus = "pending"
	BetSettled   BetStatus = "settled"
	BetCancelled BetStatus = "cancelled"
)

// KenoBet is an instant-mode entry.
type KenoBet struct {
	ID           uint64    `json:"id"`
	Player       string    `json:"player"`
	Numbers      []int     `json:"numbers"`
	Amount       uint64    `json:"amount"`
	TableVersion uint32    `json:"table_version"`
	RequestID    string    `json:"request_id"`
	Status       BetStatus `json:"status"`
	Drawn        []int     `json:"drawn,omitempty"`
	Hits         uint8     `json:"hits"`
	Payout       uint64    `json:"payout"`
	Paid         bool      `json:"paid"`
	PlacedAt     int64     `json:"placed_at"`
	SettledAt    int64     `json:"settled_at,omitempty"`
}

// PayoutTable maps spots picked to a multiplier per hit count, scaled by
// MultiplierScale. Rows[s] has s+1 entries indexed by hits.
type PayoutTable struct {
	Version     uint32             `json:"version"`
	Rows        map[uint8][]uint64 `json:"rows"`
	Committed   bool               `json:"committed"`
	CommittedAt int64              `json:"committed_at,omitempty"`
}

// Complete reports whether every spot count has a row.
func (t *PayoutTable) Complete() bool {
	for s := uint8(1); s <= KenoMaxSpots; s++ {
		if len(t.Rows[s]) != int(s)+1 {
			return false
		}
	}
	return true
}

// Multiplier returns the scaled multiplier for the given spots and hits.
func (t *PayoutTable) Multiplier(spots, hits uint8) (uint64, error) {
	row := t.Rows[spots]
	if int(hits) >= len(row) {
		return 0, fmt.Errorf("table v%d has no entry for %d/%d: %w", t.Version, hits, spots, ErrNotFound)
	}
	return row[hits], nil
}

// Clone deep-copies the table.
func (t *PayoutTable) Clone() *PayoutTable {
	cp := &PayoutTable{Version: t.Version, Rows: make(map[uint8][]uint64, len(t.Rows))}
	for s, row := range t.Rows {
		cp.Rows[s] = append([]uint64(nil), row...)
	}
	return cp
}

// KenoState is the engine-wide instant-mode ledger.
type KenoState struct {
	NextBetID      uint64 `json:"next_bet_id"`
	ActiveVersion  uint32 `json:"active_version"`
	StagingVersion uint32 `json:"staging_version"`
	HasCommitted   bool   `json:"has_committed"`
	LastCommitAt   int64  `json:"last_commit_at"`
	InFlight       uint64 `json:"in_flight"`
	InFlightStake  uint64 `json:"in_flight_stake"`
	Unpaid         uint64 `json:"unpaid"`
}

// Reserved is the escrow balance that belongs to players, either as
// refundable stakes or as recorded but unpaid wins.
func (ks *KenoState) Reserved() uint64 {
	return ks.InFlightStake + ks.Unpaid
}

// RandomnessRequest tracks one oracle round trip.
type RandomnessRequest struct {
	ID               string `json:"id"`
	Consumer         string `json:"consumer"`
	Subject          uint64 `json:"subject"`
	Seed             string `json:"seed"`
	KeyHash          string `json:"key_hash"`
	MinConfirmations uint32 `json:"min_confirmations"`
	CallbackGasLimit uint32 `json:"callback_gas_limit"`
	RequestedAt      int64  `json:"requested_at"`
	Fulfilled        bool   `json:"fulfilled"`
	Value            string `json:"value,omitempty"`
	FulfilledAt      int64  `json:"fulfilled_at,omitempty"`
}
