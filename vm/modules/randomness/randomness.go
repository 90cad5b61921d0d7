// Package randomness is the on-chain side of the oracle protocol. Consumers
// call Request to obtain a request id; the oracle later relays a proof in a
// randomness_fulfill transaction, and the gateway hands the verified value
// to the consumer that asked for it.
package randomness

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/oracle"
	"github.com/tolelom/drawchain/vm"
)

// ErrNoOracle is returned by Request when no oracle identity is configured.
var ErrNoOracle = fmt.Errorf("no randomness oracle configured: %w", core.ErrWrongState)

// Consumer receives the verified random value for one of its requests. It
// runs inside a snapshot; returning an error discards its effects but the
// request stays fulfilled.
type Consumer func(ctx *vm.Context, req *core.RandomnessRequest, value []byte) error

var (
	mu        sync.RWMutex
	consumers = make(map[string]Consumer)
)

// RegisterConsumer binds a module name to its callback. Panics on duplicates.
func RegisterConsumer(name string, c Consumer) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := consumers[name]; ok {
		panic(fmt.Sprintf("randomness: consumer %q already registered", name))
	}
	consumers[name] = c
}

func consumer(name string) Consumer {
	mu.RLock()
	defer mu.RUnlock()
	return consumers[name]
}

func init() {
	vm.Register(core.TxRandomnessFulfill, vm.NonReentrant("randomness", handleFulfill))
}

// RequestID is the deterministic id of the request a transaction makes for
// (consumer, subject).
func RequestID(txID, consumer string, subject uint64) string {
	return crypto.Keccak256Hex([]byte(txID), []byte(consumer), binary.BigEndian.AppendUint64(nil, subject))
}

// Request records a new randomness request on behalf of consumer.
func Request(ctx *vm.Context, consumer string, subject uint64) (*core.RandomnessRequest, error) {
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return nil, err
	}
	if crypto.IsZeroAddress(cfg.Oracle) {
		return nil, ErrNoOracle
	}
	id := RequestID(ctx.Tx.ID, consumer, subject)
	if _, err := ctx.State.GetRandomnessRequest(id); err == nil {
		return nil, fmt.Errorf("request %s: %w", id, core.ErrAlreadyDone)
	} else if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}
	req := &core.RandomnessRequest{
		ID:               id,
		Consumer:         consumer,
		Subject:          subject,
		Seed:             crypto.Keccak256Hex([]byte(id), []byte(ctx.Block.Header.PrevHash), binary.BigEndian.AppendUint64(nil, uint64(ctx.Now()))),
		KeyHash:          cfg.Randomness.KeyHash,
		MinConfirmations: cfg.Randomness.MinConfirmations,
		CallbackGasLimit: cfg.Randomness.CallbackGasLimit,
		RequestedAt:      ctx.Now(),
	}
	if err := ctx.State.SetRandomnessRequest(req); err != nil {
		return nil, err
	}
	ctx.Emit(events.EventRandomnessRequested, map[string]any{
		"request_id": req.ID,
		"consumer":   consumer,
		"subject":    subject,
		"seed":       req.Seed,
	})
	return req, nil
}

// handleFulfill never fails on bad input: unknown ids, repeated
// fulfillments, invalid proofs and consumer errors are logged and ignored,
// so a misbehaving relayer cannot wedge a round.
func handleFulfill(ctx *vm.Context, payload json.RawMessage) error {
	logger := log.WithFields(log.Fields{"tx": ctx.Tx.ID, "relayer": ctx.Sender()})
	var p core.FulfillRandomnessPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		logger.Warnf("ignoring undecodable fulfillment: %v", err)
		return nil
	}
	logger = logger.WithField("request", p.RequestID)

	req, err := ctx.State.GetRandomnessRequest(p.RequestID)
	if errors.Is(err, core.ErrNotFound) {
		logger.Warn("ignoring fulfillment for unknown request")
		return nil
	}
	if err != nil {
		return err
	}
	if req.Fulfilled {
		logger.Debug("ignoring repeated fulfillment")
		return nil
	}
	cfg, err := ctx.State.GetGameConfig()
	if err != nil {
		return err
	}
	value, err := oracle.Verify(cfg.Oracle, req.Seed, p.Proof)
	if err != nil {
		logger.Warnf("ignoring fulfillment with bad proof: %v", err)
		return nil
	}

	req.Fulfilled = true
	req.Value = "0x" + hex.EncodeToString(value)
	req.FulfilledAt = ctx.Now()
	if err := ctx.State.SetRandomnessRequest(req); err != nil {
		return err
	}
	ctx.Emit(events.EventRandomnessFulfilled, map[string]any{
		"request_id": req.ID,
		"consumer":   req.Consumer,
		"subject":    req.Subject,
		"value":      req.Value,
	})

	c := consumer(req.Consumer)
	if c == nil {
		logger.Warnf("no consumer registered for %q", req.Consumer)
		return nil
	}
	if err := ctx.Atomic(func() error { return c(ctx, req, value) }); err != nil {
		logger.WithField("consumer", req.Consumer).Warnf("consumer rejected randomness: %v", err)
	}
	return nil
}
