package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/core"
)

func snapshot() core.RoundSnapshot {
	return core.RoundSnapshot{
		ConfigVersion:    1,
		EntryPrice:       100,
		FeeBps:           1000,
		ReserveBps:       500,
		LineBps:          3000,
		BingoBps:         7000,
		JackpotBallLimit: 40,
	}
}

func TestMulDiv(t *testing.T) {
	q, ok := MulDiv(math.MaxUint64, 3, 4)
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64/4*3+2), q)

	_, ok = MulDiv(math.MaxUint64, 2, 1)
	assert.False(t, ok)
	_, ok = MulDiv(1, 1, 0)
	assert.False(t, ok)
}

func TestSplitDustToFirst(t *testing.T) {
	shares := Split(100, 3)
	assert.Equal(t, []uint64{34, 33, 33}, shares)
	assert.Equal(t, uint64(100), Sum(shares))
	assert.Nil(t, Split(100, 0))
	assert.Equal(t, []uint64{0, 0}, Split(0, 2))
}

func TestDistribute(t *testing.T) {
	d := Distribute(Input{
		Revenue:      1000,
		Snapshot:     snapshot(),
		LineWinners:  2,
		BingoWinners: 1,
		BingoBall:    50,
		Jackpot:      200,
	})
	assert.Equal(t, uint64(100), d.Fee)
	assert.Equal(t, uint64(50), d.Reserve)
	assert.Equal(t, uint64(255), d.LinePool)
	assert.Equal(t, uint64(595), d.BingoPool)
	assert.Equal(t, []uint64{128, 127}, d.LineShares)
	assert.Equal(t, []uint64{595}, d.BingoShares)
	assert.False(t, d.JackpotWon)
	assert.Equal(t, uint64(250), d.JackpotAfter)
	assert.True(t, d.Conserves(1000))
}

func TestDistributeJackpotWon(t *testing.T) {
	d := Distribute(Input{
		Revenue:      1000,
		Snapshot:     snapshot(),
		LineWinners:  1,
		BingoWinners: 2,
		BingoBall:    40,
		Jackpot:      201,
	})
	require.True(t, d.JackpotWon)
	// The round's reserve is added before the jackpot is shared.
	assert.Equal(t, []uint64{126, 125}, d.JackpotShares)
	assert.Equal(t, uint64(251), d.JackpotPaid())
	assert.Zero(t, d.JackpotAfter)
	assert.True(t, d.Conserves(1000))
}

func TestDistributeNoLineWinners(t *testing.T) {
	d := Distribute(Input{
		Revenue:      1000,
		Snapshot:     snapshot(),
		BingoWinners: 1,
		BingoBall:    60,
	})
	assert.Empty(t, d.LineShares)
	assert.Equal(t, d.Reserve+d.LinePool, d.ToJackpot)
	assert.True(t, d.Conserves(1000))
}

func TestDistributeNoBingoWinners(t *testing.T) {
	d := Distribute(Input{
		Revenue:     1000,
		Snapshot:    snapshot(),
		LineWinners: 2,
		Jackpot:     10,
	})
	assert.Equal(t, uint64(100), d.Fee)
	assert.Equal(t, uint64(900), d.ToJackpot)
	assert.Equal(t, uint64(910), d.JackpotAfter)
	assert.Empty(t, d.BingoShares)
	assert.Empty(t, d.LineShares, "line winners without a bingo are not paid")
	assert.True(t, d.Conserves(1000))
}

func TestDistributeConservesAcrossInputs(t *testing.T) {
	snap := snapshot()
	for revenue := uint64(0); revenue < 2_000; revenue += 37 {
		for lines := 0; lines <= 4; lines++ {
			for bingos := 0; bingos <= 3; bingos++ {
				for _, ball := range []uint8{0, 5, 40, 41, 75} {
					d := Distribute(Input{
						Revenue:      revenue,
						Snapshot:     snap,
						LineWinners:  lines,
						BingoWinners: bingos,
						BingoBall:    ball,
						Jackpot:      revenue / 3,
					})
					require.Truef(t, d.Conserves(revenue), "revenue=%d lines=%d bingos=%d ball=%d", revenue, lines, bingos, ball)
				}
			}
		}
	}
}

func TestJackpotEligible(t *testing.T) {
	snap := snapshot()
	assert.False(t, JackpotEligible(snap, 0))
	assert.True(t, JackpotEligible(snap, 1))
	assert.True(t, JackpotEligible(snap, 40))
	assert.False(t, JackpotEligible(snap, 41))
}
