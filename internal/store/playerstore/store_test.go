package playerstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gelotto/lottery-engine/internal/game"
	"github.com/gelotto/lottery-engine/pkg/infra"
	"github.com/gelotto/lottery-engine/pkg/kvstore"
)

func newTestStore(t *testing.T) (Store, infra.KVStore) {
	t.Helper()
	kv, err := kvstore.NewInMemoryStore("test", infra.JSON)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return New(kv), kv
}

func TestGetRoundtrip(t *testing.T) {
	store, kv := newTestStore(t)

	b := &infra.Batch{}
	store.Stage(b, "g1", "alice", game.Player{TicketCount: 7})
	require.NoError(t, kv.Commit(b))

	p, found, err := store.Get("g1", "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(7), p.TicketCount)

	_, found, err = store.Get("g1", "bob")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAllExtractsAddresses(t *testing.T) {
	store, kv := newTestStore(t)

	b := &infra.Batch{}
	store.Stage(b, "g1", "alice", game.Player{TicketCount: 2})
	store.Stage(b, "g1", "bob", game.Player{TicketCount: 3})
	store.Stage(b, "g2", "carol", game.Player{TicketCount: 9})
	require.NoError(t, kv.Commit(b))

	players, err := store.All("g1")
	require.NoError(t, err)
	require.Len(t, players, 2)

	byAddr := map[string]uint32{}
	for _, p := range players {
		byAddr[p.Address] = p.TicketCount
	}
	assert.Equal(t, uint32(2), byAddr["alice"])
	assert.Equal(t, uint32(3), byAddr["bob"])
}

func TestIndexRoundtrip(t *testing.T) {
	store, kv := newTestStore(t)

	b := &infra.Batch{}
	store.StageIndex(b, "g1", "alice", 1)
	store.StageIndex(b, "g1", "bob", 2)
	require.NoError(t, kv.Commit(b))

	idx, found, err := store.Index("g1", "bob")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint32(2), idx)

	addr, found, err := store.AddressAt("g1", 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "alice", addr)

	_, found, err = store.Index("g1", "nobody")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = store.AddressAt("g1", 99)
	require.NoError(t, err)
	assert.False(t, found)
}
