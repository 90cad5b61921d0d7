// Package resolver authenticates round outcomes. A trusted off-chain
// resolver signs an EIP-712 typed-data digest of the winners; the engine
// recomputes the digest and recovers the signer before moving any funds.
package resolver

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
)

// Domain separator constants.
const (
	DomainName    = "drawchain-bingo"
	DomainVersion = "1"
	PrimaryType   = "Resolution"
)

// Domain binds a signature to one chain and one engine instance.
type Domain struct {
	ChainID           uint64
	VerifyingContract string
}

// Resolution is the signed outcome of a round.
type Resolution struct {
	RoundID      uint64
	LineWinners  []string
	LineBall     uint8
	BingoWinners []string
	BingoBall    uint8
}

// FromPayload extracts the signed fields of a resolve transaction.
func FromPayload(p core.BingoResolvePayload) Resolution {
	return Resolution{
		RoundID:      p.RoundID,
		LineWinners:  p.LineWinners,
		LineBall:     p.LineBall,
		BingoWinners: p.BingoWinners,
		BingoBall:    p.BingoBall,
	}
}

var typedDataTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "roundId", Type: "uint256"},
		{Name: "lineWinners", Type: "address[]"},
		{Name: "lineBall", Type: "uint8"},
		{Name: "bingoWinners", Type: "address[]"},
		{Name: "bingoBall", Type: "uint8"},
	},
}

func addresses(list []string) []interface{} {
	out := make([]interface{}, len(list))
	for i, a := range list {
		out[i] = a
	}
	return out
}

func uint256(v uint64) *math.HexOrDecimal256 {
	return (*math.HexOrDecimal256)(new(big.Int).SetUint64(v))
}

// TypedData renders r as EIP-712 typed data under d.
func (r Resolution) TypedData(d Domain) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       typedDataTypes,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           uint256(d.ChainID),
			VerifyingContract: d.VerifyingContract,
		},
		Message: apitypes.TypedDataMessage{
			"roundId":      uint256(r.RoundID),
			"lineWinners":  addresses(r.LineWinners),
			"lineBall":     uint256(uint64(r.LineBall)),
			"bingoWinners": addresses(r.BingoWinners),
			"bingoBall":    uint256(uint64(r.BingoBall)),
		},
	}
}

// Digest is keccak256("\x19\x01" || domainSeparator || hashStruct(r)).
func Digest(d Domain, r Resolution) ([]byte, error) {
	hash, _, err := apitypes.TypedDataAndHash(r.TypedData(d))
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %v: %w", err, core.ErrInvalid)
	}
	return hash, nil
}

// Sign produces the resolver signature for r.
func Sign(priv crypto.PrivateKey, d Domain, r Resolution) (string, error) {
	hash, err := Digest(d, r)
	if err != nil {
		return "", err
	}
	return crypto.SignHash(priv, hash)
}

// Recover returns the address that signed r.
func Recover(d Domain, r Resolution, sig string) (string, error) {
	hash, err := Digest(d, r)
	if err != nil {
		return "", err
	}
	signer, err := crypto.RecoverAddress(hash, sig)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, core.ErrUnauthorized)
	}
	return signer, nil
}

// Verify checks that sig over r was produced by the expected resolver.
func Verify(expected string, d Domain, r Resolution, sig string) error {
	signer, err := Recover(d, r, sig)
	if err != nil {
		return err
	}
	if crypto.IsZeroAddress(expected) || signer != common.HexToAddress(expected).Hex() {
		return fmt.Errorf("resolution signed by %s, not the resolver: %w", signer, core.ErrUnauthorized)
	}
	return nil
}

// Validate checks that r is internally coherent before any signature work.
func (r Resolution) Validate(maxCoWinners uint32) error {
	if err := validateTier("line", r.LineWinners, r.LineBall, maxCoWinners); err != nil {
		return err
	}
	if err := validateTier("bingo", r.BingoWinners, r.BingoBall, maxCoWinners); err != nil {
		return err
	}
	if r.LineBall > 0 && r.BingoBall > 0 && r.LineBall > r.BingoBall {
		return fmt.Errorf("line ball %d after bingo ball %d: %w", r.LineBall, r.BingoBall, core.ErrInvalid)
	}
	return nil
}

func validateTier(name string, winners []string, ball uint8, maxCoWinners uint32) error {
	if (len(winners) == 0) != (ball == 0) {
		return fmt.Errorf("%s: %d winners with ball %d: %w", name, len(winners), ball, core.ErrInvalid)
	}
	if ball > core.BingoBalls {
		return fmt.Errorf("%s ball %d out of range: %w", name, ball, core.ErrInvalid)
	}
	if uint32(len(winners)) > maxCoWinners {
		return fmt.Errorf("%s: %d winners exceeds limit %d: %w", name, len(winners), maxCoWinners, core.ErrInvalid)
	}
	for _, w := range winners {
		if !common.IsHexAddress(w) || crypto.IsZeroAddress(w) {
			return fmt.Errorf("%s winner %q is not a valid identity: %w", name, w, core.ErrInvalid)
		}
	}
	return nil
}
