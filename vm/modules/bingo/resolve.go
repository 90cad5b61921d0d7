package bingo

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/resolver"
	"github.com/tolelom/drawchain/settlement"
	"github.com/tolelom/drawchain/vm"
)

// Domain is the signing domain resolutions must be bound to.
func Domain(cfg *core.GameConfig) resolver.Domain {
	return resolver.Domain{ChainID: cfg.ChainID, VerifyingContract: Escrow}
}

func handleResolve(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BingoResolvePayload
	if err := vm.Decode(payload, &p); err != nil {
		return err
	}
	r, err := loadRound(ctx, p.RoundID)
	if err != nil {
		return err
	}
	if r.Resolved || r.Status == core.RoundResolved {
		return fmt.Errorf("round %d: %w", r.ID, core.ErrAlreadyDone)
	}
	if r.Status != core.RoundRandomnessFulfilled {
		return wrongState(r, "resolve")
	}
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return err
	}

	res := resolver.FromPayload(p)
	if err := res.Validate(cfg.Bingo.MaxCoWinners); err != nil {
		return err
	}
	if err := resolver.Verify(cfg.Resolver, Domain(cfg), res, p.Signature); err != nil {
		return err
	}
	lineWinners, err := normalize(res.LineWinners)
	if err != nil {
		return err
	}
	bingoWinners, err := normalize(res.BingoWinners)
	if err != nil {
		return err
	}

	bs, err := ctx.State.GetBingoState()
	if err != nil {
		return err
	}
	d := settlement.Distribute(settlement.Input{
		Revenue:      r.Revenue,
		Snapshot:     r.Snapshot,
		LineWinners:  len(lineWinners),
		BingoWinners: len(bingoWinners),
		BingoBall:    res.BingoBall,
		Jackpot:      bs.Jackpot,
	})
	if !d.Conserves(r.Revenue) {
		return fmt.Errorf("round %d: distribution does not conserve revenue %d", r.ID, r.Revenue)
	}

	// All bookkeeping is written before any payout leaves the escrow.
	r.Status = core.RoundResolved
	r.Resolved = true
	r.ResolvedAt = ctx.Now()
	r.LineWinners, r.LineBall = lineWinners, res.LineBall
	r.BingoWinners, r.BingoBall = bingoWinners, res.BingoBall
	r.Fee, r.Reserve = d.Fee, d.Reserve
	r.LinePool, r.BingoPool = d.LinePool, d.BingoPool
	r.ToJackpot = d.ToJackpot
	r.JackpotWon, r.JackpotPaid = d.JackpotWon, d.JackpotPaid()
	bs.Jackpot = d.JackpotAfter
	bs.AccruedFees += d.Fee
	if err := ctx.State.SetRound(r); err != nil {
		return err
	}
	if err := ctx.State.SetBingoState(bs); err != nil {
		return err
	}

	for _, po := range payouts(lineWinners, d.LineShares, bingoWinners, d.BingoShares, d.JackpotShares) {
		if err := pay(ctx, r.ID, po.to, po.amount); err != nil {
			return err
		}
	}
	ctx.Emit(events.EventRoundResolved, map[string]any{
		"round_id":      r.ID,
		"line_winners":  lineWinners,
		"line_ball":     r.LineBall,
		"bingo_winners": bingoWinners,
		"bingo_ball":    r.BingoBall,
		"fee":           r.Fee,
		"to_jackpot":    r.ToJackpot,
		"jackpot_paid":  r.JackpotPaid,
	})
	return nil
}

func normalize(addrs []string) ([]string, error) {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		n, err := crypto.NormalizeAddress(a)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, core.ErrInvalid)
		}
		out[i] = n
	}
	return out, nil
}

type payout struct {
	to     string
	amount uint64
}

// payouts merges every share owed to the same address into one payment,
// in order of first appearance (line winners, then bingo winners). Winners
// without a share are skipped: with no bingo winner there are no line shares
// and the whole pot went to the jackpot.
func payouts(lineWinners []string, lineShares []uint64, bingoWinners []string, bingoShares, jackpotShares []uint64) []payout {
	var out []payout
	index := make(map[string]int)
	add := func(to string, amount uint64) {
		if i, ok := index[to]; ok {
			out[i].amount += amount
			return
		}
		index[to] = len(out)
		out = append(out, payout{to: to, amount: amount})
	}
	for i, w := range lineWinners {
		if i < len(lineShares) {
			add(w, lineShares[i])
		}
	}
	for i, w := range bingoWinners {
		if i < len(bingoShares) {
			add(w, bingoShares[i])
		}
		if i < len(jackpotShares) {
			add(w, jackpotShares[i])
		}
	}
	return out
}

// pay pushes a prize. A failed transfer is not an error: the amount is
// credited to the winner's claim and can be pulled later.
func pay(ctx *vm.Context, roundID uint64, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	err := ctx.Transfer(Escrow, to, amount)
	if err == nil {
		ctx.Emit(events.EventPrizePaid, map[string]any{"round_id": roundID, "winner": to, "amount": amount})
		return nil
	}
	claim, cerr := ctx.State.GetClaim(roundID, to)
	if cerr != nil {
		return cerr
	}
	claim.PendingPrize += amount
	if cerr := ctx.State.SetClaim(claim); cerr != nil {
		return cerr
	}
	log.WithFields(log.Fields{"round": roundID, "winner": to, "amount": amount}).Warnf("prize deferred: %v", err)
	ctx.Emit(events.EventPrizeDeferred, map[string]any{
		"round_id": roundID,
		"winner":   to,
		"amount":   amount,
		"reason":   core.Category(err),
	})
	return nil
}
