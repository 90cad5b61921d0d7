package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tolelom/drawchain/core"
)

// Client calls a node's JSON-RPC endpoint.
type Client struct {
	url       string
	authToken string
	http      *http.Client
	nextID    atomic.Int64
}

// NewClient creates a Client for the node at url (e.g. http://localhost:8545).
func NewClient(url, authToken string) *Client {
	return &Client{url: url, authToken: authToken, http: &http.Client{Timeout: 30 * time.Second}}
}

// Call invokes method and decodes the result into out. Engine failures come
// back as *Error, which matches the engine sentinels with errors.Is.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: raw})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var r Response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("%s: decode response: %w", method, err)
	}
	if r.Error != nil {
		return r.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(r.Result, out)
}

// SendTx submits a signed transaction and returns its id.
func (c *Client) SendTx(ctx context.Context, tx *core.Transaction) (string, error) {
	var res struct {
		TxID string `json:"tx_id"`
	}
	if err := c.Call(ctx, "sendTx", tx, &res); err != nil {
		return "", err
	}
	return res.TxID, nil
}

// Account fetches the ledger account for addr.
func (c *Client) Account(ctx context.Context, addr string) (*core.Account, error) {
	var acc core.Account
	err := c.Call(ctx, "getBalance", map[string]string{"address": addr}, &acc)
	return &acc, err
}

// Receipt fetches the outcome of an included transaction.
func (c *Client) Receipt(ctx context.Context, txID string) (*core.Receipt, error) {
	var rec core.Receipt
	err := c.Call(ctx, "getReceipt", map[string]string{"tx_id": txID}, &rec)
	return &rec, err
}

// WaitReceipt polls for txID's receipt until it appears or ctx ends.
func (c *Client) WaitReceipt(ctx context.Context, txID string, every time.Duration) (*core.Receipt, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		rec, err := c.Receipt(ctx, txID)
		if err == nil {
			return rec, nil
		}
		if core.Category(err) != core.CategoryNotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Config fetches the current game configuration.
func (c *Client) Config(ctx context.Context) (*core.GameConfig, error) {
	var cfg core.GameConfig
	err := c.Call(ctx, "getConfig", nil, &cfg)
	return &cfg, err
}

// Round fetches a round.
func (c *Client) Round(ctx context.Context, id uint64) (*core.Round, error) {
	var r core.Round
	err := c.Call(ctx, "getRound", map[string]uint64{"round_id": id}, &r)
	return &r, err
}

// AllCards fetches every card of a round, page by page.
func (c *Client) AllCards(ctx context.Context, roundID uint64) ([]*core.Card, error) {
	var all []*core.Card
	for {
		var page []*core.Card
		params := map[string]any{"round_id": roundID, "offset": len(all), "limit": maxCardsPage}
		if err := c.Call(ctx, "listCards", params, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < maxCardsPage {
			return all, nil
		}
	}
}

// RandomnessRequest fetches an oracle request record.
func (c *Client) RandomnessRequest(ctx context.Context, id string) (*core.RandomnessRequest, error) {
	var req core.RandomnessRequest
	err := c.Call(ctx, "getRandomnessRequest", map[string]string{"request_id": id}, &req)
	return &req, err
}

// KenoBet fetches a keno bet.
func (c *Client) KenoBet(ctx context.Context, id uint64) (*core.KenoBet, error) {
	var b core.KenoBet
	err := c.Call(ctx, "getKenoBet", core.KenoBetPayload{BetID: id}, &b)
	return &b, err
}
