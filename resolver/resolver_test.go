package resolver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/draw"
)

func newKey(t *testing.T) crypto.PrivateKey {
	t.Helper()
	priv, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return priv
}

func sample(t *testing.T) (Domain, Resolution) {
	d := Domain{ChainID: 7, VerifyingContract: crypto.ModuleAddress(core.ModuleBingo)}
	r := Resolution{
		RoundID:      3,
		LineWinners:  []string{newKey(t).Address()},
		LineBall:     12,
		BingoWinners: []string{newKey(t).Address(), newKey(t).Address()},
		BingoBall:    44,
	}
	return d, r
}

func TestSignVerify(t *testing.T) {
	key := newKey(t)
	d, r := sample(t)
	sig, err := Sign(key, d, r)
	require.NoError(t, err)
	assert.NoError(t, Verify(key.Address(), d, r, sig))

	signer, err := Recover(d, r, sig)
	require.NoError(t, err)
	assert.Equal(t, key.Address(), signer)
}

func TestForgedSignatureRejected(t *testing.T) {
	key, forger := newKey(t), newKey(t)
	d, r := sample(t)
	sig, err := Sign(forger, d, r)
	require.NoError(t, err)
	assert.ErrorIs(t, Verify(key.Address(), d, r, sig), core.ErrUnauthorized)
	assert.ErrorIs(t, Verify(crypto.ZeroAddress, d, r, sig), core.ErrUnauthorized)
	assert.ErrorIs(t, Verify(key.Address(), d, r, "0xdead"), core.ErrUnauthorized)
}

func TestDigestBindsEveryField(t *testing.T) {
	d, r := sample(t)
	base, err := Digest(d, r)
	require.NoError(t, err)

	mutations := map[string]func(*Domain, *Resolution){
		"round":    func(_ *Domain, r *Resolution) { r.RoundID++ },
		"chain":    func(d *Domain, _ *Resolution) { d.ChainID++ },
		"contract": func(d *Domain, _ *Resolution) { d.VerifyingContract = crypto.ModuleAddress(core.ModuleKeno) },
		"lineBall": func(_ *Domain, r *Resolution) { r.LineBall++ },
		"bingoBall": func(_ *Domain, r *Resolution) {
			r.BingoBall++
		},
		"winners": func(_ *Domain, r *Resolution) {
			r.BingoWinners = []string{r.BingoWinners[1], r.BingoWinners[0]}
		},
		"dropped": func(_ *Domain, r *Resolution) { r.LineWinners = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			d2, r2 := d, r
			r2.LineWinners = append([]string(nil), r.LineWinners...)
			r2.BingoWinners = append([]string(nil), r.BingoWinners...)
			mutate(&d2, &r2)
			got, err := Digest(d2, r2)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := newKey(t).Address()
	cases := []struct {
		name string
		r    Resolution
		ok   bool
	}{
		{"both tiers", Resolution{LineWinners: []string{valid}, LineBall: 5, BingoWinners: []string{valid}, BingoBall: 30}, true},
		{"no winners", Resolution{}, true},
		{"same ball", Resolution{LineWinners: []string{valid}, LineBall: 30, BingoWinners: []string{valid}, BingoBall: 30}, true},
		{"ball without winners", Resolution{LineBall: 5}, false},
		{"winners without ball", Resolution{BingoWinners: []string{valid}}, false},
		{"ball out of range", Resolution{BingoWinners: []string{valid}, BingoBall: 76}, false},
		{"line after bingo", Resolution{LineWinners: []string{valid}, LineBall: 31, BingoWinners: []string{valid}, BingoBall: 30}, false},
		{"zero identity", Resolution{BingoWinners: []string{crypto.ZeroAddress}, BingoBall: 30}, false},
		{"malformed identity", Resolution{BingoWinners: []string{"bob"}, BingoBall: 30}, false},
		{"too many", Resolution{BingoWinners: []string{valid, valid, valid}, BingoBall: 30}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.r.Validate(2)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrInvalid)
			}
		})
	}
}

func TestOutcome(t *testing.T) {
	alice, bob := newKey(t).Address(), newKey(t).Address()
	entropy := []byte("entropy")
	var cards []core.Card
	for i, owner := range []string{alice, bob, alice} {
		cards = append(cards, core.Card{
			RoundID: 1,
			Index:   uint32(i),
			Owner:   owner,
			Numbers: draw.CardLayout(entropy, 1, owner, uint32(i)),
		})
	}
	r := &core.Round{
		ID:          1,
		Status:      core.RoundRandomnessFulfilled,
		EntryCount:  uint32(len(cards)),
		RandomValue: crypto.Keccak256Hex([]byte("value")),
	}

	res, err := Outcome(r, cards)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.RoundID)
	assert.NotEmpty(t, res.BingoWinners)
	assert.NotZero(t, res.LineBall)
	require.NoError(t, res.Validate(16))

	want := draw.Evaluate(cards, draw.BallOrder(crypto.Keccak256([]byte("value"))))
	assert.Equal(t, want.BingoWinners, res.BingoWinners)
	assert.Equal(t, want.BingoBall, res.BingoBall)

	p := res.Payload("0xsig")
	assert.Equal(t, "0xsig", p.Signature)
	assert.Equal(t, res, FromPayload(p))

	_, err = Outcome(r, cards[:2])
	assert.ErrorIs(t, err, core.ErrInvalid)

	r.Status = core.RoundClosed
	_, err = Outcome(r, cards)
	assert.ErrorIs(t, err, core.ErrWrongState)
}

func TestTypedDataUsesDomain(t *testing.T) {
	d, r := sample(t)
	td := r.TypedData(d)
	assert.Equal(t, DomainName, td.Domain.Name)
	assert.True(t, strings.EqualFold(d.VerifyingContract, td.Domain.VerifyingContract))
	assert.Equal(t, PrimaryType, td.PrimaryType)
}
