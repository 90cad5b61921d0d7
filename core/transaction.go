package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/drawchain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer TxType = "transfer"

	TxAdminSetEntryPrice     TxType = "admin_set_entry_price"
	TxAdminSetFees           TxType = "admin_set_fees"
	TxAdminSetRoles          TxType = "admin_set_roles"
	TxAdminSetPause          TxType = "admin_set_pause"
	TxAdminWithdrawFees      TxType = "admin_withdraw_fees"
	TxAdminSetRandomness     TxType = "admin_set_randomness"
	TxAdminSetLimits         TxType = "admin_set_limits"
	TxAdminSetKenoParams     TxType = "admin_set_keno_params"
	TxAdminFreezeAccount     TxType = "admin_freeze_account"
	TxAdminTransferOwnership TxType = "admin_transfer_ownership"

	TxBingoOpen              TxType = "bingo_open"
	TxBingoJoin              TxType = "bingo_join"
	TxBingoClose             TxType = "bingo_close"
	TxBingoRequestRandomness TxType = "bingo_request_randomness"
	TxBingoResolve           TxType = "bingo_resolve"
	TxBingoCancel            TxType = "bingo_cancel"
	TxBingoEmergencyCancel   TxType = "bingo_emergency_cancel"
	TxBingoClaim             TxType = "bingo_claim"

	TxRandomnessFulfill TxType = "randomness_fulfill"

	TxKenoStageRow    TxType = "keno_stage_row"
	TxKenoCommitTable TxType = "keno_commit_table"
	TxKenoPlaceBet    TxType = "keno_place_bet"
	TxKenoRetryPayout TxType = "keno_retry_payout"
	TxKenoCancelBet   TxType = "keno_cancel_bet"
	TxKenoWithdraw    TxType = "keno_withdraw"
)

// Transaction is the atomic unit of work on the chain.
// From is the sender's checksummed address; the signature is recoverable,
// so no public key travels with the transaction.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks that the signature recovers to From.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	norm, err := crypto.NormalizeAddress(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from: %w", err)
	}
	if norm != tx.From {
		return fmt.Errorf("from must be checksummed: want %s", norm)
	}
	hash := tx.Hash()
	if tx.ID != hash {
		return fmt.Errorf("tx id %s does not match body hash", tx.ID)
	}
	return crypto.Verify(tx.From, []byte(hash), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}
