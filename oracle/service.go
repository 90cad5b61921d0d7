package oracle

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/crypto"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/wallet"
)

const queueSize = 1024

// Submitter accepts signed transactions, typically the node mempool.
type Submitter interface {
	Add(tx *core.Transaction) error
}

// Service is a development oracle. It watches for randomness requests and
// answers each with a fulfillment transaction signed by its key.
type Service struct {
	wallet *wallet.Wallet
	pool   Submitter
	queue   chan events.Event

	mu    sync.Mutex
	nonce uint64
}

// NewService creates a Service. nonce is the oracle account's next nonce.
func NewService(key crypto.PrivateKey, chainID string, nonce uint64, pool Submitter) *Service {
	return &Service{
		wallet: wallet.New(key, chainID),
		pool:   pool,
		queue:  make(chan events.Event, queueSize),
		nonce:  nonce,
	}
}

// Address is the identity the engine must trust as its oracle.
func (s *Service) Address() string { return s.wallet.Address() }

// Attach subscribes the service to randomness requests.
func (s *Service) Attach(em *events.Emitter) {
	em.Subscribe(events.EventRandomnessRequested, func(ev events.Event) {
		select {
		case s.queue <- ev:
		default:
			log.WithField("tx", ev.TxID).Warn("oracle queue full, request left to time out")
		}
	})
}

// Run answers queued requests until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.queue:
			if err := s.Fulfill(ev); err != nil {
				log.WithFields(log.Fields{"tx": ev.TxID, "request": ev.Data["request_id"]}).
					Errorf("oracle fulfillment failed: %v", err)
			}
		}
	}
}

// Fulfill builds and submits the fulfillment for one request event.
func (s *Service) Fulfill(ev events.Event) error {
	id, _ := ev.Data["request_id"].(string)
	seed, _ := ev.Data["seed"].(string)
	proof, _, err := Prove(s.wallet.Key(), seed)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.wallet.Sign(core.TxRandomnessFulfill, s.nonce, 0, core.FulfillRandomnessPayload{
		RequestID: id,
		Proof:     proof,
	})
	if err != nil {
		return err
	}
	if err := s.pool.Add(tx); err != nil {
		return err
	}
	s.nonce++
	log.WithFields(log.Fields{"request": id, "tx": tx.ID}).Debug("randomness fulfillment submitted")
	return nil
}
