package sensors

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Rain event model
const (
	DryProbability  = 0.85
	MinIntensityMM  = 0.2  // mm/h
	MaxIntensityMM  = 30.0 // mm/h
	DefaultBucketMM = 0.2
)

// tipEpsilon absorbs float error so 1.0/0.2 counts as 5 tips
const tipEpsilon = 1e-9

// RainReading is one tipping-bucket observation
type RainReading struct {
	IntensityMMH float64
	BucketMM     float64
	TipsTotal    int
	CumulativeMM float64
}

// RainSimulator models a tipping-bucket gauge. Rain that has fallen but
// not yet filled a bucket is carried forward to the next sample.
type RainSimulator struct {
	bucketMM     float64
	cumulativeMM float64 // tips * bucket
	rainfallMM   float64 // everything that has fallen
	tips         int
	rng          *rand.Rand
}

// NewRainSimulator starts an empty gauge with the given bucket size
func NewRainSimulator(bucketMM float64, rng *rand.Rand) (*RainSimulator, error) {
	if !(bucketMM > 0) || math.IsInf(bucketMM, 0) {
		return nil, fmt.Errorf("bucket size must be positive, got %v", bucketMM)
	}
	return &RainSimulator{bucketMM: bucketMM, rng: rng}, nil
}

// Sample draws an intensity for the period and accumulates it. Most
// periods are dry; otherwise intensity is uniform in [0.2, 30] mm/h.
func (r *RainSimulator) Sample(period time.Duration) RainReading {
	intensity := 0.0
	if r.rng.Float64() >= DryProbability {
		intensity = Round(MinIntensityMM+r.rng.Float64()*(MaxIntensityMM-MinIntensityMM), 2)
	}
	return r.Accumulate(intensity, period)
}

// Accumulate applies a known intensity in mm/h over period
func (r *RainSimulator) Accumulate(intensity float64, period time.Duration) RainReading {
	if intensity < 0 {
		intensity = 0
	}
	deltaMM := intensity * period.Seconds() / 3600

	residual := r.rainfallMM - r.cumulativeMM
	newTips := int(math.Floor((deltaMM+residual)/r.bucketMM + tipEpsilon))
	if newTips < 0 {
		newTips = 0
	}

	r.rainfallMM += deltaMM
	r.tips += newTips
	r.cumulativeMM = float64(r.tips) * r.bucketMM
	// a tip granted within tipEpsilon counts the shortfall as fallen
	if r.rainfallMM < r.cumulativeMM {
		r.rainfallMM = r.cumulativeMM
	}

	return RainReading{
		IntensityMMH: Round(intensity, 3),
		BucketMM:     r.bucketMM,
		TipsTotal:    r.tips,
		CumulativeMM: Round(r.cumulativeMM, 3),
	}
}

// BucketMM returns the configured bucket size
func (r *RainSimulator) BucketMM() float64 { return r.bucketMM }

// Tips returns the tip count so far
func (r *RainSimulator) Tips() int { return r.tips }

// CumulativeMM returns registered rainfall at full precision
func (r *RainSimulator) CumulativeMM() float64 { return r.cumulativeMM }

// ResidualMM returns rain that has fallen but not yet tipped the bucket
func (r *RainSimulator) ResidualMM() float64 { return r.rainfallMM - r.cumulativeMM }
