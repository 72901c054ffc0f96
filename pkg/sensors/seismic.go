package sensors

import (
	"math"
	"math/rand"
)

// NoiseSigmaG is the ambient noise on each axis
const NoiseSigmaG = 0.005

// SeismicSample is one 3-axis acceleration reading in g
type SeismicSample struct {
	AX, AY, AZ float64
	PGA        float64
	RMS        float64
}

// NewSeismicSample derives peak and RMS from the three axes
func NewSeismicSample(ax, ay, az float64) SeismicSample {
	return SeismicSample{
		AX:  ax,
		AY:  ay,
		AZ:  az,
		PGA: math.Max(math.Abs(ax), math.Max(math.Abs(ay), math.Abs(az))),
		RMS: math.Sqrt((ax*ax + ay*ay + az*az) / 3),
	}
}

// Rounded returns the sample rounded to 5 decimals for reporting
func (s SeismicSample) Rounded() SeismicSample {
	return SeismicSample{
		AX:  Round(s.AX, 5),
		AY:  Round(s.AY, 5),
		AZ:  Round(s.AZ, 5),
		PGA: Round(s.PGA, 5),
		RMS: Round(s.RMS, 5),
	}
}

// SeismicSimulator draws independent gaussian noise per axis
type SeismicSimulator struct {
	sigma float64
	rng   *rand.Rand
}

// NewSeismicSimulator uses NoiseSigmaG
func NewSeismicSimulator(rng *rand.Rand) *SeismicSimulator {
	return &SeismicSimulator{sigma: NoiseSigmaG, rng: rng}
}

// Sample returns one unrounded reading
func (s *SeismicSimulator) Sample() SeismicSample {
	return NewSeismicSample(
		s.rng.NormFloat64()*s.sigma,
		s.rng.NormFloat64()*s.sigma,
		s.rng.NormFloat64()*s.sigma,
	)
}
