package radio

import (
	"context"
	"sync"
	"time"

	"github.com/dougsko/lorahat/pkg/hardware"
)

// DefaultPollInterval separates serial polls
const DefaultPollInterval = 50 * time.Millisecond

// Link serializes all traffic to one module. Probe traffic and data frames
// never interleave.
type Link struct {
	mu           sync.Mutex
	transport    hardware.SerialTransport
	pollInterval time.Duration
	now          func() time.Time
}

// NewLink wraps an open transport
func NewLink(t hardware.SerialTransport) *Link {
	return &Link{
		transport:    t,
		pollInterval: DefaultPollInterval,
		now:          time.Now,
	}
}

// SetPollInterval changes the gap between reads during a probe
func (l *Link) SetPollInterval(d time.Duration) {
	if d > 0 {
		l.pollInterval = d
	}
}

// PollInterval returns the gap between reads
func (l *Link) PollInterval() time.Duration {
	return l.pollInterval
}

// Send writes one complete frame
func (l *Link) Send(frame []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.transport.Write(frame); err != nil {
		return wrap(KindTransport, "write frame", err)
	}
	return nil
}

// Poll returns whatever bytes are waiting, possibly none
func (l *Link) Poll() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := l.transport.ReadAvailable()
	if err != nil {
		return nil, wrap(KindTransport, "read", err)
	}
	return data, nil
}

// Drain keeps reading until a poll comes back empty, so a frame split
// across reads is returned whole.
func (l *Link) Drain() ([]byte, error) {
	var buf []byte
	for {
		chunk, err := l.Poll()
		if err != nil {
			return buf, err
		}
		if len(chunk) == 0 {
			return buf, nil
		}
		buf = append(buf, chunk...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
