package sensors

import (
	"math"
	"math/rand"
	"time"
)

// NewRand returns a source seeded with seed, or from the clock when seed is 0
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Round rounds x half away from zero to places decimals
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
