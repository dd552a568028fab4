// Package rng provides the per-run random streams used by the simulation.
//
// Every run gets its own PCG generator whose 128-bit state is derived from the
// batch's base seed and the run index. The derivation is a bijection in the run
// index, so two runs of the same batch never start from the same state and a
// run's sequence depends only on (base seed, run index).
package rng

import "math/rand/v2"

// Stream is the random source consumed by the model.
type Stream interface {
	// Uniform01 returns a float64 in [0, 1).
	Uniform01() float64

	// Bounded returns an int in [0, n). It panics if n <= 0.
	Bounded(n int) int
}

// PCG is a Stream backed by math/rand/v2's PCG-DXSM generator.
// It is not safe for concurrent use; each run owns exactly one.
type PCG struct {
	r     *rand.Rand
	draws uint64
}

// New returns the stream for run index of a batch seeded with baseSeed.
func New(baseSeed uint64, index uint64) *PCG {
	hi, lo := Derive(baseSeed, index)
	return &PCG{r: rand.New(rand.NewPCG(hi, lo))}
}

// Uniform01 returns a float64 in [0, 1).
func (p *PCG) Uniform01() float64 {
	p.draws++
	return p.r.Float64()
}

// Bounded returns an int in [0, n).
func (p *PCG) Bounded(n int) int {
	p.draws++
	return p.r.IntN(n)
}

// Draws reports how many values the stream has produced.
func (p *PCG) Draws() uint64 {
	return p.draws
}

// Derive maps (baseSeed, index) to the two PCG seed words.
// For a fixed baseSeed the low word is a bijection of index, so distinct runs
// always get distinct generator states.
func Derive(baseSeed, index uint64) (hi, lo uint64) {
	hi = splitmix64(baseSeed)
	lo = splitmix64(baseSeed ^ splitmix64(index))
	return hi, lo
}

// splitmix64 is the SplitMix64 finalizer; it is a bijection on uint64.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
