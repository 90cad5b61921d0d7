package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// SignHash signs a 32-byte digest and returns the 65-byte [R || S || V]
// signature as hex. Signing is deterministic (RFC 6979).
func SignHash(priv PrivateKey, hash []byte) (string, error) {
	k, err := priv.ECDSA()
	if err != nil {
		return "", err
	}
	sig, err := ethcrypto.Sign(hash, k)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Sign signs the Keccak-256 digest of data.
func Sign(priv PrivateKey, data []byte) string {
	sig, err := SignHash(priv, Keccak256(data))
	if err != nil {
		return ""
	}
	return sig
}

// DecodeSignature parses a hex signature and checks its length.
func DecodeSignature(sigHex string) ([]byte, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != ethcrypto.SignatureLength {
		return nil, fmt.Errorf("signature must be %d bytes, got %d", ethcrypto.SignatureLength, len(sig))
	}
	// Accept wallets that encode V as 27/28.
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	return sig, nil
}

// RecoverAddress returns the address that produced sigHex over hash.
func RecoverAddress(hash []byte, sigHex string) (string, error) {
	sig, err := DecodeSignature(sigHex)
	if err != nil {
		return "", err
	}
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return "", fmt.Errorf("recover signer: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

// VerifyHash checks that sigHex over hash was produced by address.
func VerifyHash(address string, hash []byte, sigHex string) error {
	signer, err := RecoverAddress(hash, sigHex)
	if err != nil {
		return err
	}
	want, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	if signer != want {
		return errors.New("signature verification failed")
	}
	return nil
}

// Verify checks a signature produced by Sign.
func Verify(address string, data []byte, sigHex string) error {
	return VerifyHash(address, Keccak256(data), sigHex)
}
