package winnerstore

import (
	"fmt"

	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/infra"
)

const winnerPrefix = "winners"

// Positions are zero-padded so iteration order matches draw order.
func winnerKey(gameID string, position uint32) string {
	return fmt.Sprintf("%s/%s/%06d", winnerPrefix, gameID, position)
}

func listKey(gameID string) string {
	return fmt.Sprintf("%s/%s/", winnerPrefix, gameID)
}

// Store is the claim ledger: winners keyed by dense draw position, created
// only at end-game, mutated only by the has_claimed flip.
type Store interface {
	Get(gameID string, position uint32) (*game.Winner, bool, error)
	All(gameID string) ([]game.Winner, error)
	Stage(b *infra.Batch, gameID string, w game.Winner)
}

type winnerStore struct {
	store infra.KVStore
	codec infra.Codec
}

func New(store infra.KVStore) Store {
	return &winnerStore{store: store, codec: infra.JSON}
}

func (ws *winnerStore) Get(gameID string, position uint32) (*game.Winner, bool, error) {
	var w game.Winner
	found, err := ws.store.GetAny(winnerKey(gameID, position), &w)
	if err != nil {
		return nil, false, fmt.Errorf("load winner %d: %w", position, err)
	}
	if !found {
		return nil, false, nil
	}
	return &w, true, nil
}

func (ws *winnerStore) All(gameID string) ([]game.Winner, error) {
	kvs, err := ws.store.List(listKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("list winners for %s: %w", gameID, err)
	}

	winners := make([]game.Winner, 0, len(kvs))
	for _, kv := range kvs {
		var w game.Winner
		if err := ws.codec.Unmarshal(kv.Value, &w); err != nil {
			return nil, fmt.Errorf("decode winner %s: %w", kv.Key, err)
		}
		winners = append(winners, w)
	}
	return winners, nil
}

func (ws *winnerStore) Stage(b *infra.Batch, gameID string, w game.Winner) {
	b.Set(winnerKey(gameID, w.Position), w)
}
