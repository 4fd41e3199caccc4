package random

import (
	"encoding/base64"
	"encoding/binary"
	"math/bits"

	"github.com/gelotto/lottery-engine/internal/game"
)

// Pcg64 is the Lcg128Xsl64 generator: 128-bit LCG state with the XSL-RR
// output permutation ("xorshift low, random rotation") producing 64-bit
// values. The construction is pinned so that winner selection replays
// identically across implementations; a stock library PRNG would not.
type Pcg64 struct {
	stateHi, stateLo uint64
	incHi, incLo     uint64
}

// 128-bit LCG multiplier, split into 64-bit halves.
const (
	pcgMulHi = 0x2360ED051FC65DA4
	pcgMulLo = 0x4385DF649FCCF645
)

// NewPcg64 seeds the generator from a 32-byte digest: the first 16 bytes
// become the state, the next 16 the increment. The increment's lowest bit
// is forced odd, so that bit of the seed is ignored.
func NewPcg64(seed [32]byte) *Pcg64 {
	s0 := binary.LittleEndian.Uint64(seed[0:8])
	s1 := binary.LittleEndian.Uint64(seed[8:16])
	s2 := binary.LittleEndian.Uint64(seed[16:24])
	s3 := binary.LittleEndian.Uint64(seed[24:32])

	p := &Pcg64{
		stateHi: s1,
		stateLo: s0,
		incHi:   s3,
		incLo:   s2 | 1,
	}
	// Move away from the raw seed value, then one warm-up step.
	p.addInc()
	p.step()
	return p
}

// FromGameSeed decodes a finalized game seed into a generator. Seed text
// that is not base64 for exactly 32 bytes is fatal.
func FromGameSeed(seed string) (*Pcg64, error) {
	raw, err := base64.StdEncoding.DecodeString(seed)
	if err != nil || len(raw) != SeedSize {
		return nil, &game.InvalidSeedError{Seed: seed}
	}
	var b [32]byte
	copy(b[:], raw)
	return NewPcg64(b), nil
}

// Next64 advances the LCG and permutes the new state into one output.
func (p *Pcg64) Next64() uint64 {
	p.step()
	return outputXslRr(p.stateHi, p.stateLo)
}

// state = state*mul + inc, mod 2^128.
func (p *Pcg64) step() {
	hi, lo := mul128(p.stateHi, p.stateLo, pcgMulHi, pcgMulLo)
	p.stateHi, p.stateLo = hi, lo
	p.addInc()
}

func (p *Pcg64) addInc() {
	lo, carry := bits.Add64(p.stateLo, p.incLo, 0)
	p.stateLo = lo
	p.stateHi = p.stateHi + p.incHi + carry
}

// mul128 returns the low 128 bits of (aHi:aLo) * (bHi:bLo).
func mul128(aHi, aLo, bHi, bLo uint64) (hi, lo uint64) {
	hi, lo = bits.Mul64(aLo, bLo)
	hi += aHi*bLo + aLo*bHi
	return hi, lo
}

// XSL-RR output permutation for 128-bit state, 64-bit output: xorshift the
// high half into the low, rotate right by the state's top six bits.
func outputXslRr(stateHi, stateLo uint64) uint64 {
	rot := int(stateHi >> 58)
	xsl := stateHi ^ stateLo
	return bits.RotateLeft64(xsl, -rot)
}
