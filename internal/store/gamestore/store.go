package gamestore

import (
	"fmt"

	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/infra"
)

const gamePrefix = "game"

func gameKey(id string) string {
	return fmt.Sprintf("%s/%s", gamePrefix, id)
}

// Store persists the singleton Game record. The record is loaded at the
// start of each operation and staged back at the end; it is never ambient
// mutable state.
type Store interface {
	Get(id string) (*game.Game, bool, error)
	Stage(b *infra.Batch, g *game.Game)
}

type gameStore struct {
	store infra.KVStore
}

func New(store infra.KVStore) Store {
	return &gameStore{store: store}
}

func (gs *gameStore) Get(id string) (*game.Game, bool, error) {
	var g game.Game
	found, err := gs.store.GetAny(gameKey(id), &g)
	if err != nil {
		return nil, false, fmt.Errorf("load game %s: %w", id, err)
	}
	if !found {
		return nil, false, nil
	}
	return &g, true, nil
}

func (gs *gameStore) Stage(b *infra.Batch, g *game.Game) {
	b.Set(gameKey(g.ID), g)
}
