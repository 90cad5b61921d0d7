package core

// Account holds a participant's balance and replay-protection nonce.
// Address is an EIP-55 checksummed secp256k1 address. A frozen account
// rejects incoming engine payouts.
type Account struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
	Frozen  bool   `json:"frozen,omitempty"`
}

// State is the full chain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
//
// Singleton records (GameConfig, BingoState, KenoState) and per-key ledger
// records (PlayerEntries, Claim) return a zero value when absent; everything
// else returns ErrNotFound.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Configuration store
	GetGameConfig() (*GameConfig, error)
	SetGameConfig(cfg *GameConfig) error

	// Round mode
	GetBingoState() (*BingoState, error)
	SetBingoState(bs *BingoState) error
	GetRound(id uint64) (*Round, error)
	SetRound(r *Round) error
	GetCard(roundID uint64, index uint32) (*Card, error)
	SetCard(c *Card) error
	GetPlayerEntries(roundID uint64, player string) (uint32, error)
	SetPlayerEntries(roundID uint64, player string, count uint32) error
	GetClaim(roundID uint64, player string) (*Claim, error)
	SetClaim(c *Claim) error

	// Randomness gateway
	GetRandomnessRequest(id string) (*RandomnessRequest, error)
	SetRandomnessRequest(req *RandomnessRequest) error

	// Instant mode
	GetKenoState() (*KenoState, error)
	SetKenoState(ks *KenoState) error
	GetKenoBet(id uint64) (*KenoBet, error)
	SetKenoBet(b *KenoBet) error
	GetPayoutTable(version uint32) (*PayoutTable, error)
	SetPayoutTable(t *PayoutTable) error

	// Receipts
	GetReceipt(txID string) (*Receipt, error)
	SetReceipt(r *Receipt) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}

// Receipt records the outcome of an included transaction.
type Receipt struct {
	TxID        string `json:"tx_id"`
	Type        TxType `json:"type"`
	From        string `json:"from"`
	BlockHeight int64  `json:"block_height"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
	Category    string `json:"category,omitempty"`
}
