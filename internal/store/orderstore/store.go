package orderstore

import (
	"fmt"

	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/infra"
)

const orderPrefix = "orders"

// Sequence numbers are zero-padded so badger's byte-ordered iteration
// returns orders in draw order.
func orderKey(gameID string, seq uint64) string {
	return fmt.Sprintf("%s/%s/%012d", orderPrefix, gameID, seq)
}

func listKey(gameID string) string {
	return fmt.Sprintf("%s/%s/", orderPrefix, gameID)
}

// Store persists the append-only ticket order sequence. Orders are only
// ever appended; List returns the full snapshot in append order.
type Store interface {
	List(gameID string) ([]game.TicketOrder, error)
	Stage(b *infra.Batch, gameID string, seq uint64, o game.TicketOrder)
}

type orderStore struct {
	store infra.KVStore
	codec infra.Codec
}

func New(store infra.KVStore) Store {
	return &orderStore{store: store, codec: infra.JSON}
}

func (os *orderStore) List(gameID string) ([]game.TicketOrder, error) {
	kvs, err := os.store.List(listKey(gameID))
	if err != nil {
		return nil, fmt.Errorf("list orders for %s: %w", gameID, err)
	}

	orders := make([]game.TicketOrder, 0, len(kvs))
	for _, kv := range kvs {
		var o game.TicketOrder
		if err := os.codec.Unmarshal(kv.Value, &o); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", kv.Key, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (os *orderStore) Stage(b *infra.Batch, gameID string, seq uint64, o game.TicketOrder) {
	b.Set(orderKey(gameID, seq), o)
}
