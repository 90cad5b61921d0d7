package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/indexer"
)

// maxCardsPage bounds a single listCards response.
const maxCardsPage = 500

// Handler holds all dependencies needed to serve RPC methods. state should
// be a view over committed data only.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	state   core.State
	indexer *indexer.Indexer
	chainID string // expected chain_id; used to reject cross-chain replay transactions

	methods map[string]method
}

type method func(params json.RawMessage) (any, error)

// NewHandler creates an RPC Handler.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, state core.State, idx *indexer.Indexer, chainID string) *Handler {
	h := &Handler{bc: bc, mempool: mempool, state: state, indexer: idx, chainID: chainID}
	h.methods = map[string]method{
		"sendTx":               h.sendTx,
		"getBlockHeight":       func(json.RawMessage) (any, error) { return h.bc.Height(), nil },
		"getMempoolSize":       func(json.RawMessage) (any, error) { return h.mempool.Size(), nil },
		"getBlock":             h.getBlock,
		"getBalance":           h.getBalance,
		"getReceipt":           h.getReceipt,
		"getConfig":            func(json.RawMessage) (any, error) { return h.state.GetGameConfig() },
		"getRound":             h.getRound,
		"listCards":            h.listCards,
		"getOpenRounds":        func(json.RawMessage) (any, error) { return h.OpenRounds() },
		"getClaim":             h.getClaim,
		"getBingoState":        func(json.RawMessage) (any, error) { return h.state.GetBingoState() },
		"getKenoBet":           h.getKenoBet,
		"getPayoutTable":       h.getPayoutTable,
		"getKenoState":         func(json.RawMessage) (any, error) { return h.state.GetKenoState() },
		"getRandomnessRequest": h.getRandomnessRequest,
		"getCardsByOwner":      h.getCardsByOwner,
		"getRoundsByPlayer":    h.getRoundsByPlayer,
		"getBetsByPlayer":      h.getBetsByPlayer,
	}
	return h
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	m, ok := h.methods[req.Method]
	if !ok {
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
	result, err := m(req.Params)
	if err != nil {
		return engineError(req.ID, err)
	}
	return okResponse(req.ID, result)
}

func decode(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return fmt.Errorf("params are required: %w", core.ErrInvalid)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("params: %v: %w", err, core.ErrInvalid)
	}
	return nil
}

func address(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("address is required: %w", core.ErrInvalid)
	}
	norm, err := crypto.NormalizeAddress(s)
	if err != nil {
		return "", fmt.Errorf("%v: %w", err, core.ErrInvalid)
	}
	return norm, nil
}

// ---- queries shared with the REST routes ----

// Block returns the block by hash, by height, or the tip.
func (h *Handler) Block(hash string, height *int64) (*core.Block, error) {
	var block *core.Block
	var err error
	switch {
	case hash != "":
		block, err = h.bc.GetBlock(hash)
	case height != nil:
		block, err = h.bc.GetBlockByHeight(*height)
	default:
		block = h.bc.Tip()
	}
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("no block: %w", core.ErrNotFound)
	}
	return block, nil
}

// Account returns the ledger account for addr.
func (h *Handler) Account(addr string) (*core.Account, error) {
	norm, err := address(addr)
	if err != nil {
		return nil, err
	}
	return h.state.GetAccount(norm)
}

// Cards pages through a round's cards in index order.
func (h *Handler) Cards(roundID uint64, offset, limit uint32) ([]*core.Card, error) {
	r, err := h.state.GetRound(roundID)
	if err != nil {
		return nil, err
	}
	if limit == 0 || limit > maxCardsPage {
		limit = maxCardsPage
	}
	end := min(uint64(offset)+uint64(limit), uint64(r.EntryCount))
	cards := make([]*core.Card, 0, limit)
	for i := uint64(offset); i < end; i++ {
		c, err := h.state.GetCard(roundID, uint32(i))
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// OpenRounds returns every round currently accepting entries.
func (h *Handler) OpenRounds() ([]*core.Round, error) {
	bs, err := h.state.GetBingoState()
	if err != nil {
		return nil, err
	}
	rounds := make([]*core.Round, 0, len(bs.OpenRounds))
	for _, id := range bs.OpenRounds {
		r, err := h.state.GetRound(id)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, nil
}

// Claim returns what a round owes player.
func (h *Handler) Claim(roundID uint64, player string) (*core.Claim, error) {
	norm, err := address(player)
	if err != nil {
		return nil, err
	}
	if _, err := h.state.GetRound(roundID); err != nil {
		return nil, err
	}
	return h.state.GetClaim(roundID, norm)
}

// ---- JSON-RPC adapters ----

func (h *Handler) getBlock(params json.RawMessage) (any, error) {
	var p struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if len(params) > 0 {
		if err := decode(params, &p); err != nil {
			return nil, err
		}
	}
	return h.Block(p.Hash, p.Height)
}

func (h *Handler) getBalance(params json.RawMessage) (any, error) {
	var p struct {
		Address string `json:"address"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return h.Account(p.Address)
}

func (h *Handler) getReceipt(params json.RawMessage) (any, error) {
	var p struct {
		TxID string `json:"tx_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return h.state.GetReceipt(p.TxID)
}

type roundParams struct {
	RoundID uint64 `json:"round_id"`
	Address string `json:"address"`
	Offset  uint32 `json:"offset"`
	Limit   uint32 `json:"limit"`
}

func (h *Handler) getRound(params json.RawMessage) (any, error) {
	var p roundParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return h.state.GetRound(p.RoundID)
}

func (h *Handler) listCards(params json.RawMessage) (any, error) {
	var p roundParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return h.Cards(p.RoundID, p.Offset, p.Limit)
}

func (h *Handler) getClaim(params json.RawMessage) (any, error) {
	var p roundParams
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return h.Claim(p.RoundID, p.Address)
}

func (h *Handler) getKenoBet(params json.RawMessage) (any, error) {
	var p core.KenoBetPayload
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return h.state.GetKenoBet(p.BetID)
}

func (h *Handler) getPayoutTable(params json.RawMessage) (any, error) {
	var p struct {
		Version uint32 `json:"version"`
	}
	if len(params) > 0 {
		if err := decode(params, &p); err != nil {
			return nil, err
		}
	}
	if p.Version == 0 {
		ks, err := h.state.GetKenoState()
		if err != nil {
			return nil, err
		}
		p.Version = ks.ActiveVersion
	}
	return h.state.GetPayoutTable(p.Version)
}

func (h *Handler) getRandomnessRequest(params json.RawMessage) (any, error) {
	var p struct {
		RequestID string `json:"request_id"`
	}
	if err := decode(params, &p); err != nil {
		return nil, err
	}
	return h.state.GetRandomnessRequest(p.RequestID)
}

type ownerParams struct {
	Owner string `json:"owner"`
}

func (h *Handler) owner(params json.RawMessage) (string, error) {
	if h.indexer == nil {
		return "", fmt.Errorf("indexer disabled: %w", core.ErrNotFound)
	}
	var p ownerParams
	if err := decode(params, &p); err != nil {
		return "", err
	}
	return address(p.Owner)
}

func (h *Handler) getCardsByOwner(params json.RawMessage) (any, error) {
	owner, err := h.owner(params)
	if err != nil {
		return nil, err
	}
	return h.indexer.CardsByOwner(owner)
}

func (h *Handler) getRoundsByPlayer(params json.RawMessage) (any, error) {
	owner, err := h.owner(params)
	if err != nil {
		return nil, err
	}
	return h.indexer.RoundsByPlayer(owner)
}

func (h *Handler) getBetsByPlayer(params json.RawMessage) (any, error) {
	owner, err := h.owner(params)
	if err != nil {
		return nil, err
	}
	return h.indexer.BetsByPlayer(owner)
}

func (h *Handler) sendTx(params json.RawMessage) (any, error) {
	var tx core.Transaction
	if err := decode(params, &tx); err != nil {
		return nil, err
	}
	// Reject transactions destined for a different network to prevent
	// cross-chain replay attacks.
	if tx.ChainID != h.chainID {
		return nil, fmt.Errorf("chain ID mismatch: got %q want %q: %w", tx.ChainID, h.chainID, core.ErrInvalid)
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	tx.ID = tx.Hash()
	if err := h.mempool.Add(&tx); err != nil {
		return nil, err
	}
	return map[string]string{"tx_id": tx.ID}, nil
}
