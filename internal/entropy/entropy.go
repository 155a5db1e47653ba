// Package entropy provides the kernel's deterministic per-worker substream
// RNG, derived from the master seed so that a given (seed, worker_count)
// pair always reproduces the same trajectory. The belief write pass draws
// its innovation noise from it; the other tick phases draw from the
// kernel's own generator seeded with the same master seed.
package entropy

import (
	"math/bits"
	mrand "math/rand"
)

// Substream returns a deterministic *math/rand.Rand seeded from
// (masterSeed, workerID, tick), matching this kernel's shared-resource
// policy: the RNG is never shared across parallel workers, and the same
// (seed, worker_count) pair reproduces the same trajectory.
func Substream(masterSeed int64, workerID int, tick uint64) *mrand.Rand {
	h := mix(uint64(masterSeed), uint64(workerID), tick)
	return mrand.New(mrand.NewSource(int64(h)))
}

// mix combines three 64-bit values into one seed via a SplitMix64-style
// avalanche, so nearby (worker, tick) pairs don't produce correlated seeds.
func mix(a, b, c uint64) uint64 {
	x := a ^ (b + 0x9E3779B97F4A7C15 + (a << 6) + (a >> 2))
	x ^= (c + 0x9E3779B97F4A7C15 + (x << 6) + (x >> 2))
	x = bits.RotateLeft64(x, 17) * 0xBF58476D1CE4E5B9
	x ^= x >> 33
	return x
}
