// Package random provides the engine's randomness source: a SHA-256 chain
// over public purchase data, expanded through a PCG64 generator at
// settlement time. Outcomes are reproducible by anyone replaying the full
// transaction history; unpredictability rests entirely on the purchase
// order being locked in before an adversary can compute forward.
package random

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
)

// SeedSize is the digest length carried in Game.Seed, pre-encoding.
const SeedSize = sha256.Size

// InitSeed derives the initial accumulator digest from the game identity
// and the instantiation block height.
func InitSeed(gameID string, blockHeight uint64) string {
	h := sha256.New()
	h.Write([]byte(gameID))
	h.Write(le64(blockHeight))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// UpdateSeed folds one purchase into the accumulator. The chain is strict:
// each update hashes the previous seed text, so later updates depend on
// every earlier one.
func UpdateSeed(seed, buyer string, ticketCount uint32, blockHeight uint64, phrase string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write([]byte(buyer))
	h.Write(le32(ticketCount))
	h.Write(le64(blockHeight))
	if phrase != "" {
		h.Write([]byte(phrase))
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// FinalizeSeed applies the one extra hash step taken when the game ends,
// mixing in the ending caller and block height.
func FinalizeSeed(seed, ender string, blockHeight uint64, phrase string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	h.Write([]byte(ender))
	h.Write(le64(blockHeight))
	if phrase != "" {
		h.Write([]byte(phrase))
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func le32(n uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	return b[:]
}

func le64(n uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], n)
	return b[:]
}
