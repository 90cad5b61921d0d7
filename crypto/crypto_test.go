package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Len(t, pub, 65)
	assert.Equal(t, pub.Hex(), priv.Public().Hex())

	addr := pub.Address()
	assert.True(t, strings.HasPrefix(addr, "0x"))
	assert.Len(t, addr, 42)
	assert.Equal(t, addr, priv.Address())

	back, err := PrivKeyFromHex("0x" + priv.Hex())
	require.NoError(t, err)
	assert.Equal(t, addr, back.Address())
}

func TestSignVerify(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)
	data := []byte("hello drawchain")

	sig := Sign(priv, data)
	require.NotEmpty(t, sig)
	assert.NoError(t, Verify(priv.Address(), data, sig))
	assert.Error(t, Verify(priv.Address(), []byte("tampered"), sig))

	other, _, err := GenerateKeyPair()
	require.NoError(t, err)
	assert.Error(t, Verify(other.Address(), data, sig))
}

func TestSignatureAcceptsLegacyV(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)
	hash := Keccak256([]byte("v27"))
	sig, err := SignHash(priv, hash)
	require.NoError(t, err)

	raw, err := DecodeSignature(sig)
	require.NoError(t, err)
	raw[64] += 27
	signer, err := RecoverAddress(hash, "0x"+hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Equal(t, priv.Address(), signer)

	_, err = DecodeSignature("abcd")
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)
	want := priv.Address()

	got, err := NormalizeAddress(strings.ToLower(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = NormalizeAddress("not-an-address")
	assert.Error(t, err)
	_, err = NormalizeAddress("0x1234")
	assert.Error(t, err)

	assert.True(t, IsZeroAddress(""))
	assert.True(t, IsZeroAddress(ZeroAddress))
	assert.False(t, IsZeroAddress(want))
}

func TestModuleAddress(t *testing.T) {
	a, b := ModuleAddress("bingo"), ModuleAddress("keno")
	assert.Equal(t, a, ModuleAddress("bingo"))
	assert.NotEqual(t, a, b)
	norm, err := NormalizeAddress(a)
	require.NoError(t, err)
	assert.Equal(t, a, norm)
}

func TestKeccakHex(t *testing.T) {
	// keccak256("") is a well known constant.
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Keccak256Hex(nil))
	assert.Len(t, Hash([]byte("x")), 64)
}
