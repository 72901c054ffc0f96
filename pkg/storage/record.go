package storage

import (
	"errors"
	"time"
)

// Frame directions
const (
	DirectionRX = "RX"
	DirectionTX = "TX"
)

// FrameRecord is one logged frame
type FrameRecord struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Direction    string    `json:"direction"`
	Source       int       `json:"source"`
	Destination  int       `json:"destination,omitempty"`
	Channel      int       `json:"channel"`
	FrequencyMHz int       `json:"frequency_mhz"`
	Payload      []byte    `json:"-"`
	Text         string    `json:"text"`
	RSSI         *int      `json:"rssi,omitempty"`
	Session      string    `json:"session,omitempty"`
}

// Sink receives frame records
type Sink interface {
	Record(rec FrameRecord) error
	Close() error
}

// MultiSink fans a record out to every sink. One failing sink does not
// stop the others.
type MultiSink []Sink

func (m MultiSink) Record(rec FrameRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
