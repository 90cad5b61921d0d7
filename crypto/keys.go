package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PrivateKey holds the 32-byte secp256k1 scalar.
type PrivateKey []byte

// PublicKey holds the 65-byte uncompressed secp256k1 point.
type PublicKey []byte

// ZeroAddress is the null identity.
var ZeroAddress = common.Address{}.Hex()

// GenerateKeyPair generates a new secp256k1 key pair.
func GenerateKeyPair() (PrivateKey, PublicKey, error) {
	k, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	priv := PrivateKey(ethcrypto.FromECDSA(k))
	return priv, PublicKey(ethcrypto.FromECDSAPub(&k.PublicKey)), nil
}

// ECDSA converts the key for use with go-ethereum helpers.
func (priv PrivateKey) ECDSA() (*ecdsa.PrivateKey, error) {
	return ethcrypto.ToECDSA(priv)
}

// Public derives the public key from the private key.
func (priv PrivateKey) Public() PublicKey {
	k, err := priv.ECDSA()
	if err != nil {
		return nil
	}
	return PublicKey(ethcrypto.FromECDSAPub(&k.PublicKey))
}

// Address returns the checksummed address owning priv.
func (priv PrivateKey) Address() string {
	return priv.Public().Address()
}

// Hex returns the hex-encoded private key.
func (priv PrivateKey) Hex() string {
	return hex.EncodeToString(priv)
}

// Address returns the EIP-55 checksummed address of the public key.
func (pub PublicKey) Address() string {
	k, err := ethcrypto.UnmarshalPubkey(pub)
	if err != nil {
		return ZeroAddress
	}
	return ethcrypto.PubkeyToAddress(*k).Hex()
}

// Hex returns the hex-encoded uncompressed public key.
func (pub PublicKey) Hex() string {
	return hex.EncodeToString(pub)
}

// PrivKeyFromHex decodes a hex-encoded private key.
func PrivKeyFromHex(s string) (PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid privkey hex: %w", err)
	}
	if _, err := ethcrypto.ToECDSA(b); err != nil {
		return nil, fmt.Errorf("invalid privkey: %w", err)
	}
	return PrivateKey(b), nil
}

// NormalizeAddress validates s and returns its checksummed form.
func NormalizeAddress(s string) (string, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s).Hex(), nil
}

// IsZeroAddress reports whether s is empty or the null identity.
func IsZeroAddress(s string) bool {
	return s == "" || common.HexToAddress(s) == (common.Address{})
}

// ModuleAddress derives the escrow address owned by an engine module.
func ModuleAddress(name string) string {
	return common.BytesToAddress(Keccak256([]byte("drawchain/module/" + name))[12:]).Hex()
}
