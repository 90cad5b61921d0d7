package events

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit   EventType = "block_commit"
	EventTxExecuted    EventType = "tx_executed"
	EventTxFailed      EventType = "tx_failed"
	EventTokenTransfer EventType = "token_transfer"
	EventConfigChanged EventType = "config_changed"
	EventFeesWithdrawn EventType = "fees_withdrawn"

	EventRoundOpened    EventType = "round_opened"
	EventCardsBought    EventType = "cards_bought"
	EventRoundClosed    EventType = "round_closed"
	EventRoundFulfilled EventType = "round_fulfilled"
	EventRoundResolved  EventType = "round_resolved"
	EventRoundCancelled EventType = "round_cancelled"
	EventPrizePaid      EventType = "prize_paid"
	EventPrizeDeferred  EventType = "prize_deferred"
	EventClaimPaid      EventType = "claim_paid"

	EventRandomnessRequested EventType = "randomness_requested"
	EventRandomnessFulfilled EventType = "randomness_fulfilled"

	EventKenoTableStaged    EventType = "keno_table_staged"
	EventKenoTableCommitted EventType = "keno_table_committed"
	EventKenoBetPlaced      EventType = "keno_bet_placed"
	EventKenoBetSettled     EventType = "keno_bet_settled"
	EventKenoBetPaid        EventType = "keno_bet_paid"
	EventKenoBetCancelled   EventType = "keno_bet_cancelled"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type        EventType      `json:"type"`
	TxID        string         `json:"tx_id"`
	BlockHeight int64          `json:"block_height"`
	Data        map[string]any `json:"data"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// A panicking subscriber is logged and skipped so it cannot halt block
// production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := append(append([]Handler(nil), e.handlers[ev.Type]...), e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{"event": ev.Type, "tx": ev.TxID}).Errorf("event handler panicked: %v", r)
				}
			}()
			h(ev)
		}()
	}
}
