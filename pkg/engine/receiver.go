package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/radio"
	"github.com/dougsko/lorahat/pkg/storage"
)

// ReceiverConfig controls the receive loop
type ReceiverConfig struct {
	RSSI         bool
	BaseMHz      int
	Channel      radio.Channel
	PollInterval time.Duration
	SettleDelay  time.Duration // wait after the first bytes so the frame is complete
	Debug        bool
	Lines        string
}

// Receiver polls the link, decodes frames and forwards them to a sink
type Receiver struct {
	cfg   ReceiverConfig
	link  *radio.Link
	sink  storage.Sink
	stats *counters
	log   *logging.FieldLogger
	now   func() time.Time
}

// NewReceiver creates a receive loop. sink may be nil.
func NewReceiver(cfg ReceiverConfig, link *radio.Link, sink storage.Sink) *Receiver {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = radio.DefaultPollInterval
	}
	freq := radio.FormatFrequency(cfg.BaseMHz + int(cfg.Channel))
	stats := newCounters(RoleReceiver, freq, cfg.Lines)
	return &Receiver{
		cfg:   cfg,
		link:  link,
		sink:  sink,
		stats: stats,
		log:   logging.GetGlobalLogger().WithFields(logging.Fields{"session": stats.session[:8]}),
		now:   time.Now,
	}
}

// Status returns a snapshot of the loop
func (r *Receiver) Status() Status {
	return r.stats.snapshot()
}

// Session returns the session id
func (r *Receiver) Session() string {
	return r.stats.session
}

// Run polls until ctx is cancelled. Only transport failures end it early.
func (r *Receiver) Run(ctx context.Context) error {
	r.log.Infof("rx", "RX @ %s MHz | rssi=%t", r.stats.frequency, r.cfg.RSSI)

	for ctx.Err() == nil {
		chunk, err := r.link.Poll()
		if err != nil {
			r.stats.fail()
			return err
		}

		if len(chunk) > 0 {
			if r.cfg.SettleDelay > 0 {
				if sleepCtx(ctx, r.cfg.SettleDelay) != nil {
					return nil
				}
			}
			rest, err := r.link.Drain()
			if err != nil {
				r.stats.fail()
				return err
			}
			r.handle(append(chunk, rest...))
		}

		if sleepCtx(ctx, r.cfg.PollInterval) != nil {
			return nil
		}
	}
	return nil
}

// handle decodes one burst and forwards it
func (r *Receiver) handle(raw []byte) (storage.FrameRecord, bool) {
	if r.cfg.Debug {
		r.log.Info("rx", fmt.Sprintf("DEBUG raw len=%d data=%s", len(raw), hex.EncodeToString(raw)))
	}

	frame, ok := radio.Decode(raw, r.cfg.RSSI)
	if !ok {
		r.stats.discard()
		r.log.Debug("rx", "short frame discarded", logging.Fields{"len": len(raw)})
		return storage.FrameRecord{}, false
	}

	rec := storage.FrameRecord{
		Timestamp:    r.now(),
		Direction:    storage.DirectionRX,
		Source:       int(frame.Source),
		Channel:      int(frame.Channel),
		FrequencyMHz: frame.FrequencyMHz(r.cfg.BaseMHz),
		Payload:      frame.Payload,
		Text:         frame.Text(),
		Session:      r.stats.session,
	}
	if frame.HasRSSI {
		rssi := int(frame.RSSI)
		rec.RSSI = &rssi
	}
	r.stats.frame(rec)

	line := fmt.Sprintf("RX %s | src=%d @ %s MHz | %s",
		rec.Timestamp.Format("2006-01-02T15:04:05"), rec.Source, radio.FormatFrequency(rec.FrequencyMHz), rec.Text)
	if frame.HasRSSI {
		r.log.Info("rx", line, logging.Fields{"dbm": frame.SignalDBm()})
	} else {
		r.log.Info("rx", line)
	}

	if r.sink != nil {
		if err := r.sink.Record(rec); err != nil {
			r.log.Warnf("rx", "sink: %v", err)
		}
	}
	return rec, true
}
