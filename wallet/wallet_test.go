package wallet

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/drawchain/core"
)

func TestKeystoreRoundTrip(t *testing.T) {
	w, err := Generate("chain")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")

	require.NoError(t, SaveKey(path, "hunter2", w.Key()))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	var file map[string]any
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &file))
	assert.EqualValues(t, 3, file["version"])
	assert.Contains(t, file, "crypto")

	opened, err := Open(path, "hunter2", "chain")
	require.NoError(t, err)
	assert.Equal(t, w.Address(), opened.Address())
	assert.Equal(t, w.Key(), opened.Key())

	_, err = LoadKey(path, "wrong")
	assert.ErrorIs(t, err, ErrBadPassword)
}

func TestKeystoreDetectsSwappedAddress(t *testing.T) {
	a, err := Generate("")
	require.NoError(t, err)
	b, err := Generate("")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, SaveKey(path, "pw", a.Key()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	stored := strings.ToLower(a.Address()[2:])
	require.Contains(t, string(data), stored)
	tampered := strings.Replace(string(data), stored, strings.ToLower(b.Address()[2:]), 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0600))

	_, err = LoadKey(path, "pw")
	assert.ErrorContains(t, err, "address mismatch")
}

func TestCreateKeyFileNeverOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.key")
	addr, err := CreateKeyFile(path, "pw")
	require.NoError(t, err)

	_, err = CreateKeyFile(path, "pw")
	assert.ErrorIs(t, err, fs.ErrExist)

	w, err := Open(path, "pw", "")
	require.NoError(t, err)
	assert.Equal(t, addr, w.Address())
}

func TestSignBindsChain(t *testing.T) {
	w, err := Generate("chain")
	require.NoError(t, err)

	tx, err := w.Sign(core.TxBingoJoin, 4, 1, core.BingoJoinPayload{RoundID: 2, Count: 3})
	require.NoError(t, err)
	require.NoError(t, tx.Verify())
	assert.Equal(t, "chain", tx.ChainID)
	assert.Equal(t, w.Address(), tx.From)
	assert.EqualValues(t, 4, tx.Nonce)
	assert.JSONEq(t, `{"round_id":2,"count":3}`, string(tx.Payload))

	transfer, err := w.Transfer(w.Address(), 10, 5, 0)
	require.NoError(t, err)
	require.NoError(t, transfer.Verify())
	assert.Equal(t, core.TxTransfer, transfer.Type)
}
