package core

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tolelom/drawchain/crypto"
)

// BlockHeader is the signed part of a block. Timestamp is the engine's
// notion of "now" for every transaction in the block.
type BlockHeader struct {
	Height    int64  `json:"height"`
	PrevHash  string `json:"prev_hash"`
	StateRoot string `json:"state_root"`
	TxRoot    string `json:"tx_root"`
	Timestamp int64  `json:"timestamp"` // unix nanoseconds
	Proposer  string `json:"proposer"`
}

// Block is an ordered batch of transactions sealed by the proposer.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	Hash         string         `json:"hash"`
	Signature    string         `json:"signature"`
}

// NewBlock creates an unsigned block stamped with the wall clock.
func NewBlock(height int64, prevHash, proposer string, txs []*Transaction) *Block {
	return NewBlockAt(height, prevHash, proposer, txs, time.Now().UnixNano())
}

// NewBlockAt creates an unsigned block at ts.
func NewBlockAt(height int64, prevHash, proposer string, txs []*Transaction, ts int64) *Block {
	b := &Block{Header: BlockHeader{Height: height, PrevHash: prevHash, Timestamp: ts, Proposer: proposer}}
	b.SetTransactions(txs)
	return b
}

// Time is the block timestamp.
func (b *Block) Time() time.Time { return time.Unix(0, b.Header.Timestamp) }

// SetTransactions replaces the body and its root. The producer drops
// transactions that failed pre-checks this way.
func (b *Block) SetTransactions(txs []*Transaction) {
	b.Transactions = txs
	b.Header.TxRoot = ComputeTxRoot(txs)
}

// ComputeHash is the keccak256 of the JSON header.
func (b *Block) ComputeHash() string {
	data, err := json.Marshal(b.Header)
	if err != nil {
		return ""
	}
	return crypto.Keccak256Hex(data)
}

// Sign seals the header with the proposer's key.
func (b *Block) Sign(priv crypto.PrivateKey) {
	b.Hash = b.ComputeHash()
	b.Signature = crypto.Sign(priv, []byte(b.Hash))
}

// Verify checks the hash and that the header's proposer signed it.
func (b *Block) Verify() error {
	if want := b.ComputeHash(); b.Hash != want {
		return fmt.Errorf("block hash %s, header hashes to %s", b.Hash, want)
	}
	return crypto.Verify(b.Header.Proposer, []byte(b.Hash), b.Signature)
}

// ComputeTxRoot is a binary keccak merkle root over the transaction ids. An
// odd node at any level is paired with itself.
func ComputeTxRoot(txs []*Transaction) string {
	if len(txs) == 0 {
		return crypto.Keccak256Hex()
	}
	level := make([][]byte, len(txs))
	for i, tx := range txs {
		level[i] = crypto.Keccak256([]byte(tx.ID))
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, crypto.Keccak256(level[i], right))
		}
		level = next
	}
	return crypto.Keccak256Hex(level[0])
}
