package engine

import (
	"context"
	"sync"
	"time"

	"github.com/dougsko/lorahat/pkg/storage"
	"github.com/google/uuid"
)

// Roles
const (
	RoleTransmitter = "tx"
	RoleReceiver    = "rx"
)

// Status is a snapshot of a running loop
type Status struct {
	Session   string               `json:"session"`
	Role      string               `json:"role"`
	Started   time.Time            `json:"started"`
	Uptime    string               `json:"uptime"`
	Frequency string               `json:"frequency_mhz"`
	Lines     string               `json:"lines"`
	Frames    uint64               `json:"frames"`
	Discarded uint64               `json:"discarded"`
	Errors    uint64               `json:"errors"`
	LastFrame *storage.FrameRecord `json:"last_frame,omitempty"`
}

// counters is shared bookkeeping for both loops
type counters struct {
	mu        sync.RWMutex
	session   string
	role      string
	started   time.Time
	frequency string
	lines     string
	frames    uint64
	discarded uint64
	errors    uint64
	last      *storage.FrameRecord
}

func newCounters(role, frequency, lines string) *counters {
	return &counters{
		session:   uuid.New().String(),
		role:      role,
		started:   time.Now(),
		frequency: frequency,
		lines:     lines,
	}
}

func (c *counters) frame(rec storage.FrameRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	c.last = &rec
}

func (c *counters) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded++
}

func (c *counters) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors++
}

func (c *counters) snapshot() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		Session:   c.session,
		Role:      c.role,
		Started:   c.started,
		Uptime:    time.Since(c.started).Truncate(time.Second).String(),
		Frequency: c.frequency,
		Lines:     c.lines,
		Frames:    c.frames,
		Discarded: c.discarded,
		Errors:    c.errors,
	}
	if c.last != nil {
		last := *c.last
		s.LastFrame = &last
	}
	return s
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
