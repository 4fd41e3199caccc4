package infra

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
)

// KVStore is the host-storage contract the settlement engine runs on: atomic
// load/save of single records, ordered range iteration by key prefix, and an
// atomic multi-key commit for the mutation set of one operation.
// Badger is the only backend shipped; the interface keeps the engine
// independent of it.

type KVPair struct {
	Key   string
	Value []byte
}

type KVStore interface {
	GetName() string
	Set(k string, v string) error
	Get(k string) (v string, err error)
	// SetAny/GetAny marshal structured values through the store's codec.
	SetAny(k string, v any) error
	GetAny(k string, v any) (found bool, err error)

	// List returns all pairs under prefix in ascending key order.
	List(prefix string) ([]*KVPair, error)
	Delete(k string) error

	// Commit applies every staged write atomically. Either all writes land
	// or none do.
	Commit(b *Batch) error

	Close() error
}

// Write is one staged key/value pair awaiting commit.
type Write struct {
	Key   string
	Value any
}

// Batch accumulates the writes of a single engine operation so they can be
// committed in one storage transaction.
type Batch struct {
	writes []Write
}

func (b *Batch) Set(key string, value any) {
	b.writes = append(b.writes, Write{Key: key, Value: value})
}

func (b *Batch) Writes() []Write {
	return b.writes
}

func (b *Batch) Len() int {
	return len(b.writes)
}

// Codec encodes/decodes Go values to/from slices of bytes.
type Codec interface {
	// Marshal encodes a Go value to a slice of bytes.
	Marshal(v any) ([]byte, error)
	// Unmarshal decodes a slice of bytes into a Go value.
	Unmarshal(data []byte, v any) error
}

// Convenience variables
var (
	// JSON is a JSONcodec that encodes/decodes Go values to/from JSON.
	JSON = JSONcodec{}
	// Gob is a GobCodec that encodes/decodes Go values to/from gob.
	Gob = GobCodec{}
)

// JSONcodec encodes/decodes Go values to/from JSON.
type JSONcodec struct{}

// Marshal encodes a Go value to JSON.
func (c JSONcodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes a JSON value into a Go value.
func (c JSONcodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// GobCodec encodes/decodes Go values to/from gob.
type GobCodec struct{}

// Marshal encodes a Go value to gob.
func (c GobCodec) Marshal(v any) ([]byte, error) {
	buffer := new(bytes.Buffer)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(v)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// Unmarshal decodes a gob value into a Go value.
func (c GobCodec) Unmarshal(data []byte, v any) error {
	reader := bytes.NewReader(data)
	decoder := gob.NewDecoder(reader)
	return decoder.Decode(v)
}
