package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/radio"
	"github.com/dougsko/lorahat/pkg/storage"
	"github.com/dougsko/lorahat/pkg/telemetry"
)

// TransmitterConfig addresses outbound frames
type TransmitterConfig struct {
	Destination radio.Address
	Source      radio.Address
	Channel     radio.Channel
	BaseMHz     int
	Period      time.Duration
	Count       int // 0 runs until cancelled
	Lines       string
}

// Transmitter sends one telemetry frame per period
type Transmitter struct {
	cfg     TransmitterConfig
	link    *radio.Link
	builder *telemetry.Builder
	sink    storage.Sink
	stats   *counters
	log     *logging.FieldLogger
	now     func() time.Time
}

// NewTransmitter wires a builder to a link. sink may be nil.
func NewTransmitter(cfg TransmitterConfig, link *radio.Link, builder *telemetry.Builder, sink storage.Sink) *Transmitter {
	freq := radio.FormatFrequency(cfg.BaseMHz + int(cfg.Channel))
	stats := newCounters(RoleTransmitter, freq, cfg.Lines)
	return &Transmitter{
		cfg:     cfg,
		link:    link,
		builder: builder,
		sink:    sink,
		stats:   stats,
		log:     logging.GetGlobalLogger().WithFields(logging.Fields{"session": stats.session[:8]}),
		now:     time.Now,
	}
}

// Status returns a snapshot of the loop
func (t *Transmitter) Status() Status {
	return t.stats.snapshot()
}

// Session returns the session id
func (t *Transmitter) Session() string {
	return t.stats.session
}

// Run transmits until ctx is cancelled or Count frames are sent. A frame
// write is never interrupted; cancellation is seen between frames.
func (t *Transmitter) Run(ctx context.Context) error {
	t.log.Infof("tx", "TX %s -> dest=0x%04x @ %s MHz | period=%s",
		t.builder.Mode(), uint16(t.cfg.Destination), t.stats.frequency, t.cfg.Period)

	for sent := 0; t.cfg.Count == 0 || sent < t.cfg.Count; sent++ {
		if ctx.Err() != nil {
			return nil
		}

		if err := t.sendOne(); err != nil {
			t.stats.fail()
			return err
		}

		if t.cfg.Count != 0 && sent+1 == t.cfg.Count {
			break
		}
		if err := sleepCtx(ctx, t.cfg.Period); err != nil {
			return nil
		}
	}
	return nil
}

func (t *Transmitter) sendOne() error {
	payload, err := t.builder.Next()
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	frame := radio.Encode(t.cfg.Destination, t.cfg.Source, t.cfg.Channel, payload)
	if err := t.link.Send(frame); err != nil {
		return err
	}

	rec := storage.FrameRecord{
		Timestamp:    t.now(),
		Direction:    storage.DirectionTX,
		Source:       int(t.cfg.Source),
		Destination:  int(t.cfg.Destination),
		Channel:      int(t.cfg.Channel),
		FrequencyMHz: t.cfg.BaseMHz + int(t.cfg.Channel),
		Payload:      payload,
		Text:         radio.PayloadText(payload),
		Session:      t.stats.session,
	}
	t.stats.frame(rec)
	t.log.Info("tx", "TX "+rec.Text)

	if t.sink != nil {
		if err := t.sink.Record(rec); err != nil {
			t.log.Warnf("tx", "sink: %v", err)
		}
	}
	return nil
}
