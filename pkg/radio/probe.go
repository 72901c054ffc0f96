package radio

import (
	"context"
	"encoding/hex"
	"time"
)

// DefaultProbeTimeout bounds how long a probe waits for the reply
const DefaultProbeTimeout = 1500 * time.Millisecond

// ProbeCommand asks the module for its parameter block
var ProbeCommand = []byte{0xC1, 0x00, 0x09}

// ProbeResult is what came back from a parameter read
type ProbeResult struct {
	Response []byte
	Matched  bool
	Elapsed  time.Duration
}

// Hex renders the raw reply, "nothing" when empty
func (r ProbeResult) Hex() string {
	if len(r.Response) == 0 {
		return "nothing"
	}
	return hex.EncodeToString(r.Response)
}

// ProbeMatched reports whether buf starts with the echoed C1 ?? 09 header
func ProbeMatched(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xC1 && buf[2] == 0x09
}

// Probe sends the parameter-read command and collects the reply until it
// matches or timeout elapses. The module must already be in config mode.
// A timeout is not an error: the result holds whatever arrived.
func (l *Link) Probe(ctx context.Context, timeout time.Duration) (ProbeResult, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	start := l.now()
	deadline := start.Add(timeout)

	if err := l.transport.ResetInput(); err != nil {
		return ProbeResult{}, wrap(KindTransport, "probe reset input", err)
	}
	if _, err := l.transport.Write(ProbeCommand); err != nil {
		return ProbeResult{}, wrap(KindTransport, "probe write", err)
	}

	var result ProbeResult
	for l.now().Before(deadline) {
		chunk, err := l.transport.ReadAvailable()
		if err != nil {
			result.Elapsed = l.now().Sub(start)
			return result, wrap(KindTransport, "probe read", err)
		}
		result.Response = append(result.Response, chunk...)
		if ProbeMatched(result.Response) {
			result.Matched = true
			break
		}
		if err := sleepCtx(ctx, l.pollInterval); err != nil {
			result.Elapsed = l.now().Sub(start)
			return result, err
		}
	}

	result.Elapsed = l.now().Sub(start)
	return result, nil
}

// ProbeInConfig enters config mode, probes, and always returns the module
// to normal mode. With a nil controller the lines are assumed to be
// jumpered into config mode already.
func ProbeInConfig(ctx context.Context, mc *ModeController, link *Link, timeout time.Duration) (ProbeResult, error) {
	if mc != nil {
		if err := mc.EnterConfig(); err != nil {
			// best effort back to normal before giving up
			_ = mc.EnterNormal()
			return ProbeResult{}, err
		}
	}

	result, err := link.Probe(ctx, timeout)

	if mc != nil {
		if restoreErr := mc.EnterNormal(); restoreErr != nil && err == nil {
			err = restoreErr
		}
	}
	return result, err
}
