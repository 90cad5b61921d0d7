package resolver

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/draw"
)

// Outcome evaluates a fulfilled round off-chain: it replays the ball order
// from the round's random value and finds the winning cards. cards must be
// the round's complete card set.
func Outcome(r *core.Round, cards []core.Card) (Resolution, error) {
	if r.Status != core.RoundRandomnessFulfilled {
		return Resolution{}, fmt.Errorf("round %d is %s: %w", r.ID, r.Status, core.ErrWrongState)
	}
	if uint32(len(cards)) != r.EntryCount {
		return Resolution{}, fmt.Errorf("round %d has %d cards, got %d: %w", r.ID, r.EntryCount, len(cards), core.ErrInvalid)
	}
	seed, err := hexutil.Decode(r.RandomValue)
	if err != nil {
		return Resolution{}, fmt.Errorf("random value: %v: %w", err, core.ErrInvalid)
	}
	res := draw.Evaluate(cards, draw.BallOrder(seed))
	return Resolution{
		RoundID:      r.ID,
		LineWinners:  res.LineWinners,
		LineBall:     res.LineBall,
		BingoWinners: res.BingoWinners,
		BingoBall:    res.BingoBall,
	}, nil
}

// Payload turns a signed resolution into a resolve transaction payload.
func (r Resolution) Payload(sig string) core.BingoResolvePayload {
	return core.BingoResolvePayload{
		RoundID:      r.RoundID,
		LineWinners:  r.LineWinners,
		LineBall:     r.LineBall,
		BingoWinners: r.BingoWinners,
		BingoBall:    r.BingoBall,
		Signature:    sig,
	}
}
