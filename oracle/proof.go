// Package oracle implements the attested randomness used by the engine.
//
// A request carries a seed. The oracle attests to it by signing
// keccak256(seed) with its secp256k1 key and the random value is
// keccak256(r || s). The proof shows which key produced the value; it is not
// a VRF. The oracle role is trusted, since a key holder could sign with a
// nonce other than the RFC 6979 one.
package oracle

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/tolelom/drawchain/crypto"
)

func seedMessage(seedHex string) ([]byte, error) {
	seed, err := hex.DecodeString(strings.TrimPrefix(seedHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid seed hex: %w", err)
	}
	return crypto.Keccak256(seed), nil
}

// Prove returns the proof and the random value for seedHex.
func Prove(priv crypto.PrivateKey, seedHex string) (proof string, value []byte, err error) {
	msg, err := seedMessage(seedHex)
	if err != nil {
		return "", nil, err
	}
	proof, err = crypto.SignHash(priv, msg)
	if err != nil {
		return "", nil, err
	}
	sig, err := crypto.DecodeSignature(proof)
	if err != nil {
		return "", nil, err
	}
	return proof, crypto.Keccak256(sig[:64]), nil
}

// Verify checks that proof was produced by oracle for seedHex and returns
// the random value it encodes.
func Verify(oracle, seedHex, proof string) ([]byte, error) {
	msg, err := seedMessage(seedHex)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.DecodeSignature(proof)
	if err != nil {
		return nil, err
	}
	r, s := new(big.Int).SetBytes(sig[:32]), new(big.Int).SetBytes(sig[32:64])
	if !ethcrypto.ValidateSignatureValues(sig[64], r, s, true) {
		return nil, errors.New("proof is not a canonical low-s signature")
	}
	if err := crypto.VerifyHash(oracle, msg, proof); err != nil {
		return nil, err
	}
	return crypto.Keccak256(sig[:64]), nil
}
