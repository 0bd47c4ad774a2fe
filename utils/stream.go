package utils

import (
	"hash/fnv"
	"math/rand/v2"
)

// stream labels shared by the model and the drivers
const (
	StreamNetwork    = "network"
	StreamHousehold  = "household"
	StreamActivation = "activation"
	StreamShock      = "shock"
)

// NewStream derives a PCG source from a run seed, a label and an index.
// Sources derived from the same triple always produce the same sequence.
func NewStream(seed uint64, label string, index uint64) *rand.PCG {
	h := fnv.New64a()
	h.Write([]byte(label))
	return rand.NewPCG(seed, h.Sum64()^(index*0x9E3779B97F4A7C15))
}

// NewRand wraps NewStream in a *rand.Rand.
func NewRand(seed uint64, label string, index uint64) *rand.Rand {
	return rand.New(NewStream(seed, label, index))
}

// DeriveSeed mixes a base seed with a run index (splitmix64 finalizer).
func DeriveSeed(base uint64, index uint64) uint64 {
	z := base + (index+1)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
