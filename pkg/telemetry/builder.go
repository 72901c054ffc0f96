package telemetry

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/dougsko/lorahat/pkg/sensors"
)

// Payload modes
const (
	ModeSensors = "sensors"
	ModeRandom  = "random"
	ModeText    = "text"
)

// Options selects what the builder produces
type Options struct {
	Mode     string
	Station  string
	Period   time.Duration
	Rain     bool
	Seismic  bool
	BucketMM float64
	Seed     int64
}

// Builder produces one payload per call with a monotonic sequence number
type Builder struct {
	opts    Options
	rng     *rand.Rand
	rain    *sensors.RainSimulator
	seismic *sensors.SeismicSimulator
	seq     uint64
	now     func() time.Time
}

// NewBuilder validates opts and creates fresh simulator state
func NewBuilder(opts Options) (*Builder, error) {
	if opts.Mode == "" {
		opts.Mode = ModeSensors
	}
	if opts.Period <= 0 {
		return nil, fmt.Errorf("period must be positive")
	}
	if !opts.Rain && !opts.Seismic {
		opts.Rain, opts.Seismic = true, true
	}

	b := &Builder{
		opts: opts,
		rng:  sensors.NewRand(opts.Seed),
		now:  time.Now,
	}

	switch opts.Mode {
	case ModeSensors:
		if opts.Rain {
			rain, err := sensors.NewRainSimulator(opts.BucketMM, b.rng)
			if err != nil {
				return nil, err
			}
			b.rain = rain
		}
		if opts.Seismic {
			b.seismic = sensors.NewSeismicSimulator(b.rng)
		}
	case ModeRandom, ModeText:
	default:
		return nil, fmt.Errorf("unknown payload mode %q", opts.Mode)
	}
	return b, nil
}

// Mode returns the payload mode
func (b *Builder) Mode() string {
	return b.opts.Mode
}

// Seq returns the sequence number the next payload will carry
func (b *Builder) Seq() uint64 {
	return b.seq
}

// Next builds the next payload
func (b *Builder) Next() ([]byte, error) {
	var (
		payload []byte
		err     error
	)

	switch b.opts.Mode {
	case ModeSensors:
		payload, err = json.Marshal(b.sensorRecord())
	case ModeRandom:
		payload, err = json.Marshal(RandomRecord{
			TS:   b.now().UTC().Format(UTCLayout),
			Seq:  b.seq,
			Rand: b.rng.Intn(1_000_001),
			Val:  sensors.Round(b.rng.Float64()*100, 3),
		})
	case ModeText:
		payload = []byte(fmt.Sprintf("MSG|%06d|%s|%d",
			b.seq, b.now().UTC().Format(UTCLayout), b.rng.Intn(10000)))
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", b.opts.Mode, err)
	}

	b.seq++
	return payload, nil
}

func (b *Builder) sensorRecord() SensorRecord {
	rec := SensorRecord{
		TS:      b.now().Format(LocalLayout),
		Seq:     b.seq,
		Station: b.opts.Station,
	}
	if b.rain != nil {
		rec.Rain = newRainBlock(b.rain.Sample(b.opts.Period))
	}
	if b.seismic != nil {
		rec.Seismic = newSeismicBlock(b.seismic.Sample())
	}
	return rec
}
