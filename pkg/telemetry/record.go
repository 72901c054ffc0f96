package telemetry

import "github.com/dougsko/lorahat/pkg/sensors"

// Timestamp layouts carried in payloads
const (
	LocalLayout = "2006-01-02 15:04:05"
	UTCLayout   = "2006-01-02T15:04:05-07:00"
)

// RainBlock is the tipping-bucket part of a sensor record
type RainBlock struct {
	IntensityMMH    float64 `json:"intensity_mm_h"`
	BucketMM        float64 `json:"bucket_mm"`
	BucketTipsTotal int     `json:"bucket_tips_total"`
	RainMMTotal     float64 `json:"rain_mm_total"`
}

// SeismicBlock is the accelerometer part of a sensor record, in g
type SeismicBlock struct {
	AX  float64 `json:"ax_g"`
	AY  float64 `json:"ay_g"`
	AZ  float64 `json:"az_g"`
	PGA float64 `json:"pga_g"`
	RMS float64 `json:"rms_g"`
}

// SensorRecord is the JSON payload sent in sensors mode
type SensorRecord struct {
	TS      string        `json:"ts"`
	Seq     uint64        `json:"seq"`
	Station string        `json:"station,omitempty"`
	Rain    *RainBlock    `json:"rain,omitempty"`
	Seismic *SeismicBlock `json:"seismic,omitempty"`
}

// RandomRecord is the JSON payload sent in random mode
type RandomRecord struct {
	TS   string  `json:"ts"`
	Seq  uint64  `json:"seq"`
	Rand int     `json:"rand"`
	Val  float64 `json:"val"`
}

func newRainBlock(r sensors.RainReading) *RainBlock {
	return &RainBlock{
		IntensityMMH:    r.IntensityMMH,
		BucketMM:        r.BucketMM,
		BucketTipsTotal: r.TipsTotal,
		RainMMTotal:     r.CumulativeMM,
	}
}

func newSeismicBlock(s sensors.SeismicSample) *SeismicBlock {
	s = s.Rounded()
	return &SeismicBlock{AX: s.AX, AY: s.AY, AZ: s.AZ, PGA: s.PGA, RMS: s.RMS}
}
