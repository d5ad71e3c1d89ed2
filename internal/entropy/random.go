// Package entropy provides the seeded random source threaded through every
// stochastic call site: success rolls, softmax sampling, leap draws and
// movement tie-breaks all pull from one Source in a fixed order.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Source is the random stream consumed by agents and the environment.
type Source interface {
	Float64() float64     // uniform in [0, 1)
	Intn(n int) int       // uniform in [0, n)
	NormFloat64() float64 // standard normal
}

// Seeded is a reproducible Source backed by math/rand.
// It counts draws so a run can report how much of the stream it consumed.
type Seeded struct {
	rng   *mrand.Rand
	seed  int64
	draws uint64
}

// NewSeeded creates a Source from seed. A zero seed picks one from crypto/rand;
// Seed() reports the value actually used so the run can be replayed.
func NewSeeded(seed int64) *Seeded {
	if seed == 0 {
		seed = CryptoSeed()
	}
	return &Seeded{
		rng:  mrand.New(mrand.NewSource(seed)),
		seed: seed,
	}
}

// Float64 returns a uniform float in [0, 1).
func (s *Seeded) Float64() float64 {
	s.draws++
	return s.rng.Float64()
}

// Intn returns a uniform int in [0, n). Panics if n <= 0, like math/rand.
func (s *Seeded) Intn(n int) int {
	s.draws++
	return s.rng.Intn(n)
}

// NormFloat64 returns a standard normal sample.
func (s *Seeded) NormFloat64() float64 {
	s.draws++
	return s.rng.NormFloat64()
}

// Seed returns the seed the stream was created with.
func (s *Seeded) Seed() int64 { return s.seed }

// Draws returns how many values have been taken from the stream.
func (s *Seeded) Draws() uint64 { return s.draws }

// Derive offsets a base seed for an independent sub-stream (world generation,
// environment rolls), so subsystems never share a sequence.
func Derive(seed int64, offset int64) int64 {
	return seed + offset
}

// Stream returns the source for one tick of a sub-stream. Because the stream
// depends only on (seed, offset, tick), a run resumed from a saved tick draws
// exactly what an uninterrupted run would have.
func Stream(seed, offset int64, tick uint64) *Seeded {
	return NewSeeded(mix(uint64(Derive(seed, offset)) ^ (tick * 0x9E3779B97F4A7C15)))
}

// mix is the splitmix64 finalizer, forced non-zero so NewSeeded never falls
// back to crypto/rand.
func mix(x uint64) int64 {
	x ^= x >> 30
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 27
	x *= 0x94D049BB133111EB
	x ^= x >> 31
	return int64(x>>1) | 1
}

// Uniform returns a value in [lo, hi) drawn from src.
func Uniform(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// This should never happen; fall back to a fixed seed.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
