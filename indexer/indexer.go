// Package indexer maintains secondary indexes over committed blocks so game
// frontends can look up cards, rounds and bets by participant without
// scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/tolelom/drawchain/core"
	"github.com/tolelom/drawchain/events"
	"github.com/tolelom/drawchain/storage"
)

const (
	prefixOwnerCards   = "idx:owner:card:"
	prefixPlayerRounds = "idx:player:round:"
	prefixPlayerBets   = "idx:player:bet:"
)

// Indexer subscribes to chain events and updates secondary lookup tables.
type Indexer struct {
	mu sync.Mutex
	db storage.DB
}

// New creates an Indexer backed by db and subscribes to relevant events.
func New(db storage.DB, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db}
	emitter.Subscribe(events.EventCardsBought, idx.onCardsBought)
	emitter.Subscribe(events.EventKenoBetPlaced, idx.onBetPlaced)
	return idx
}

// CardsByOwner returns the ids of every card owner has bought.
func (idx *Indexer) CardsByOwner(owner string) ([]string, error) {
	return idx.getList(prefixOwnerCards + owner)
}

// RoundsByPlayer returns the rounds player has bought cards in.
func (idx *Indexer) RoundsByPlayer(player string) ([]uint64, error) {
	return getIDs(idx, prefixPlayerRounds+player)
}

// BetsByPlayer returns the keno bets player has placed.
func (idx *Indexer) BetsByPlayer(player string) ([]uint64, error) {
	return getIDs(idx, prefixPlayerBets+player)
}

// ---- event handlers ----

func (idx *Indexer) onCardsBought(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	roundID, _ := ev.Data["round_id"].(uint64)
	count, _ := ev.Data["count"].(uint32)
	first, _ := ev.Data["first_index"].(uint32)
	if player == "" || roundID == 0 || count == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ids := make([]string, 0, count)
	for i := first; i < first+count; i++ {
		ids = append(ids, core.CardID(roundID, i))
	}
	if err := idx.addToList(prefixOwnerCards+player, ids...); err != nil {
		log.WithField("round", roundID).Errorf("index cards: %v", err)
	}
	if err := addID(idx, prefixPlayerRounds+player, roundID); err != nil {
		log.WithField("round", roundID).Errorf("index round: %v", err)
	}
}

func (idx *Indexer) onBetPlaced(ev events.Event) {
	player, _ := ev.Data["player"].(string)
	betID, _ := ev.Data["bet_id"].(uint64)
	if player == "" || betID == 0 {
		return
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if err := addID(idx, prefixPlayerBets+player, betID); err != nil {
		log.WithField("bet", betID).Errorf("index bet: %v", err)
	}
}

// ---- list helpers ----

func load[T any](db storage.DB, key string) ([]T, error) {
	data, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return list, nil
}

func save[T any](db storage.DB, key string, list []T) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return db.Set([]byte(key), data)
}

func (idx *Indexer) getList(key string) ([]string, error) {
	return load[string](idx.db, key)
}

func (idx *Indexer) addToList(key string, values ...string) error {
	list, err := load[string](idx.db, key)
	if err != nil {
		return err
	}
	return save(idx.db, key, append(list, values...))
}

func getIDs(idx *Indexer, key string) ([]uint64, error) {
	return load[uint64](idx.db, key)
}

// addID appends id unless it is already present.
func addID(idx *Indexer, key string, id uint64) error {
	list, err := load[uint64](idx.db, key)
	if err != nil {
		return err
	}
	if slices.Contains(list, id) {
		return nil
	}
	return save(idx.db, key, append(list, id))
}
