package infra

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchAccumulatesInOrder(t *testing.T) {
	b := &Batch{}
	assert.Zero(t, b.Len())

	b.Set("a", 1)
	b.Set("b", "two")
	b.Set("a", 3) // staging the same key again appends, last write wins at commit

	require.Equal(t, 3, b.Len())
	writes := b.Writes()
	assert.Equal(t, "a", writes[0].Key)
	assert.Equal(t, "b", writes[1].Key)
	assert.Equal(t, 3, writes[2].Value)
}

func TestCodecs(t *testing.T) {
	type payload struct {
		Name  string
		Count uint32
	}
	in := payload{Name: "alice", Count: 7}

	for name, codec := range map[string]Codec{"json": JSON, "gob": Gob} {
		t.Run(name, func(t *testing.T) {
			data, err := codec.Marshal(in)
			require.NoError(t, err)

			var out payload
			require.NoError(t, codec.Unmarshal(data, &out))
			assert.Equal(t, in, out)
		})
	}
}
