package engine

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// Jitter draws a random delta in [lo, hi].
type Jitter func(lo, hi float64) float64

// UniformJitter draws from a uniform distribution over src.
// The source is only touched under the engine lock.
func UniformJitter(src rand.Source) Jitter {
	return func(lo, hi float64) float64 {
		return distuv.Uniform{Min: lo, Max: hi, Src: src}.Rand()
	}
}

// NoJitter always returns zero. Used by tests that need exact readings.
func NoJitter(lo, hi float64) float64 { return 0 }

func defaultJitter() Jitter {
	seed := uint64(time.Now().UnixNano())
	return UniformJitter(rand.NewPCG(seed, seed>>1|1))
}
