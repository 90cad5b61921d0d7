// Package settlement computes how a round's revenue is divided. It only does
// arithmetic; moving funds is the caller's job.
package settlement

import (
	"math/bits"

	"github.com/tolelom/drawchain/core"
)

// MulDiv returns a*b/d using a 128-bit intermediate. ok is false when d is
// zero or the quotient does not fit in 64 bits.
func MulDiv(a, b, d uint64) (q uint64, ok bool) {
	if d == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, false
	}
	q, _ = bits.Div64(hi, lo, d)
	return q, true
}

// bps applies a basis-point rate that is known to be at most 100%.
func bps(amount, rate uint64) uint64 {
	q, _ := MulDiv(amount, min(rate, core.BpsDenominator), core.BpsDenominator)
	return q
}

// Split divides amount into n equal shares. The remainder (dust) goes to the
// first share so the shares always sum to amount.
func Split(amount uint64, n int) []uint64 {
	if n <= 0 {
		return nil
	}
	shares := make([]uint64, n)
	base := amount / uint64(n)
	for i := range shares {
		shares[i] = base
	}
	shares[0] += amount - base*uint64(n)
	return shares
}

// Sum adds up shares.
func Sum(shares []uint64) uint64 {
	var total uint64
	for _, s := range shares {
		total += s
	}
	return total
}

// Input describes a round being resolved.
type Input struct {
	Revenue      uint64
	Snapshot     core.RoundSnapshot
	LineWinners  int
	BingoWinners int
	BingoBall    uint8
	Jackpot      uint64 // jackpot balance before this round
}

// Distribution is the full breakdown of one round's settlement.
type Distribution struct {
	Fee       uint64
	Reserve   uint64
	LinePool  uint64
	BingoPool uint64
	// ToJackpot is what the round adds to the jackpot: the reserve, plus the
	// line pool when nobody completed a line, or everything after fees when
	// nobody completed a card.
	ToJackpot uint64

	LineShares  []uint64
	BingoShares []uint64

	JackpotWon    bool
	JackpotShares []uint64
	JackpotAfter  uint64
}

// JackpotPaid is the total jackpot handed to bingo winners.
func (d Distribution) JackpotPaid() uint64 { return Sum(d.JackpotShares) }

// Conserves reports whether every unit of revenue is accounted for.
func (d Distribution) Conserves(revenue uint64) bool {
	return d.Fee+d.ToJackpot+Sum(d.LineShares)+Sum(d.BingoShares) == revenue
}

// JackpotEligible reports whether a card completed at bingoBall wins the
// jackpot under snap.
func JackpotEligible(snap core.RoundSnapshot, bingoBall uint8) bool {
	return bingoBall > 0 && bingoBall <= snap.JackpotBallLimit
}

// Distribute settles a round using only the frozen snapshot.
func Distribute(in Input) Distribution {
	snap := in.Snapshot
	d := Distribution{
		Fee:     bps(in.Revenue, snap.FeeBps),
		Reserve: bps(in.Revenue, snap.ReserveBps),
	}
	if in.BingoWinners == 0 {
		d.ToJackpot = in.Revenue - d.Fee
		d.JackpotAfter = in.Jackpot + d.ToJackpot
		return d
	}

	pot := in.Revenue - d.Fee - d.Reserve
	d.LinePool = bps(pot, snap.LineBps)
	d.BingoPool = pot - d.LinePool
	d.ToJackpot = d.Reserve
	if in.LineWinners > 0 {
		d.LineShares = Split(d.LinePool, in.LineWinners)
	} else {
		d.ToJackpot += d.LinePool
	}
	d.BingoShares = Split(d.BingoPool, in.BingoWinners)

	d.JackpotAfter = in.Jackpot + d.ToJackpot
	if JackpotEligible(snap, in.BingoBall) {
		d.JackpotWon = true
		d.JackpotShares = Split(d.JackpotAfter, in.BingoWinners)
		d.JackpotAfter = 0
	}
	return d
}
