package playerstore

import (
	"fmt"
	"strings"

	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/infra"
)

const (
	playerPrefix  = "players"
	addrIdxPrefix = "addridx"
)

func playerKey(gameID, addr string) string {
	return fmt.Sprintf("%s/%s/%s", playerPrefix, gameID, addr)
}

func playerListKey(gameID string) string {
	return fmt.Sprintf("%s/%s/", playerPrefix, gameID)
}

func addrToIndexKey(gameID, addr string) string {
	return fmt.Sprintf("%s/%s/a2i/%s", addrIdxPrefix, gameID, addr)
}

func indexToAddrKey(gameID string, index uint32) string {
	return fmt.Sprintf("%s/%s/i2a/%010d", addrIdxPrefix, gameID, index)
}

// Store is the player directory: per-address aggregate ticket counts plus
// the stable bidirectional address index assigned on first purchase.
type Store interface {
	Get(gameID, addr string) (*game.Player, bool, error)
	All(gameID string) ([]game.PlayerInfo, error)
	Stage(b *infra.Batch, gameID, addr string, p game.Player)

	Index(gameID, addr string) (uint32, bool, error)
	AddressAt(gameID string, index uint32) (string, bool, error)
	StageIndex(b *infra.Batch, gameID, addr string, index uint32)
}

type playerStore struct {
	store infra.KVStore
	codec infra.Codec
}

func New(store infra.KVStore) Store {
	return &playerStore{store: store, codec: infra.JSON}
}

func (ps *playerStore) Get(gameID, addr string) (*game.Player, bool, error) {
	var p game.Player
	found, err := ps.store.GetAny(playerKey(gameID, addr), &p)
	if err != nil {
		return nil, false, fmt.Errorf("load player %s: %w", addr, err)
	}
	if !found {
		return nil, false, nil
	}
	return &p, true, nil
}

func (ps *playerStore) All(gameID string) ([]game.PlayerInfo, error) {
	prefix := playerListKey(gameID)
	kvs, err := ps.store.List(prefix)
	if err != nil {
		return nil, fmt.Errorf("list players for %s: %w", gameID, err)
	}

	players := make([]game.PlayerInfo, 0, len(kvs))
	for _, kv := range kvs {
		var p game.Player
		if err := ps.codec.Unmarshal(kv.Value, &p); err != nil {
			return nil, fmt.Errorf("decode player %s: %w", kv.Key, err)
		}
		// The address is the key segment after the list prefix. The store
		// may prepend its own namespace, so match from the right.
		i := strings.LastIndex(kv.Key, prefix)
		if i < 0 {
			continue
		}
		players = append(players, game.PlayerInfo{
			Address:     kv.Key[i+len(prefix):],
			TicketCount: p.TicketCount,
		})
	}
	return players, nil
}

func (ps *playerStore) Stage(b *infra.Batch, gameID, addr string, p game.Player) {
	b.Set(playerKey(gameID, addr), p)
}

func (ps *playerStore) Index(gameID, addr string) (uint32, bool, error) {
	var index uint32
	found, err := ps.store.GetAny(addrToIndexKey(gameID, addr), &index)
	if err != nil {
		return 0, false, fmt.Errorf("load address index for %s: %w", addr, err)
	}
	return index, found, nil
}

func (ps *playerStore) AddressAt(gameID string, index uint32) (string, bool, error) {
	var addr string
	found, err := ps.store.GetAny(indexToAddrKey(gameID, index), &addr)
	if err != nil {
		return "", false, fmt.Errorf("load address at index %d: %w", index, err)
	}
	return addr, found, nil
}

func (ps *playerStore) StageIndex(b *infra.Batch, gameID, addr string, index uint32) {
	b.Set(addrToIndexKey(gameID, addr), index)
	b.Set(indexToAddrKey(gameID, index), addr)
}
