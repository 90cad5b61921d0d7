package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
// Used for block and transaction identifiers.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Keccak256 returns the legacy Keccak-256 digest of the concatenated inputs.
// Everything that must be reproducible by EVM-style tooling (request ids,
// seeds, signatures, module addresses) hashes with this.
func Keccak256(data ...[]byte) []byte {
	return ethcrypto.Keccak256(data...)
}

// Keccak256Hex is Keccak256 rendered as 0x-prefixed hex.
func Keccak256Hex(data ...[]byte) string {
	return "0x" + hex.EncodeToString(Keccak256(data...))
}
