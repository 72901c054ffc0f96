package radio

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dougsko/lorahat/pkg/hardware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeMatched(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
		want bool
	}{
		{"full reply", []byte{0xC1, 0x00, 0x09, 0xAA, 0xBB}, true},
		{"header only", []byte{0xC1, 0x00, 0x09}, true},
		{"any second byte", []byte{0xC1, 0x7F, 0x09}, true},
		{"zeros", []byte{0x00, 0x00, 0x00}, false},
		{"too short", []byte{0xC1, 0x00}, false},
		{"empty", nil, false},
		{"wrong length byte", []byte{0xC1, 0x00, 0x08, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProbeMatched(tt.buf))
		})
	}
}

// replyTo answers the probe command with reply, split in two chunks
func replyTo(serial *hardware.MockSerial, reply []byte) {
	serial.OnWrite(func(p []byte) {
		if bytes.Equal(p, ProbeCommand) {
			serial.QueueRead(reply[:2])
			serial.QueueRead(reply[2:])
		}
	})
}

func TestLinkProbe(t *testing.T) {
	ctx := context.Background()

	t.Run("Matching Reply", func(t *testing.T) {
		serial := hardware.NewMockSerial()
		serial.QueueRead([]byte("stale"))
		replyTo(serial, []byte{0xC1, 0x00, 0x09, 0xAA, 0xBB})
		link := NewLink(serial)
		link.SetPollInterval(time.Millisecond)

		result, err := link.Probe(ctx, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.Equal(t, []byte{0xC1, 0x00, 0x09, 0xAA, 0xBB}, result.Response)
		assert.Equal(t, "c10009aabb", result.Hex())
		assert.Equal(t, 1, serial.Resets())
		assert.Equal(t, [][]byte{ProbeCommand}, serial.Written())
	})

	t.Run("Mismatch Times Out Without Error", func(t *testing.T) {
		serial := hardware.NewMockSerial()
		replyTo(serial, []byte{0x00, 0x00, 0x00})
		link := NewLink(serial)
		link.SetPollInterval(5 * time.Millisecond)

		result, err := link.Probe(ctx, 60*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, result.Matched)
		assert.Equal(t, []byte{0x00, 0x00, 0x00}, result.Response)
		assert.GreaterOrEqual(t, result.Elapsed, 60*time.Millisecond)
	})

	t.Run("Silence", func(t *testing.T) {
		link := NewLink(hardware.NewMockSerial())
		link.SetPollInterval(5 * time.Millisecond)

		result, err := link.Probe(ctx, 30*time.Millisecond)
		require.NoError(t, err)
		assert.False(t, result.Matched)
		assert.Equal(t, "nothing", result.Hex())
	})

	t.Run("Write Failure", func(t *testing.T) {
		serial := hardware.NewMockSerial()
		serial.FailWrites(errors.New("EIO"))
		_, err := NewLink(serial).Probe(ctx, 30*time.Millisecond)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindTransport))
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		link := NewLink(hardware.NewMockSerial())
		_, err := link.Probe(cctx, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestProbeInConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("Restores Normal After Success", func(t *testing.T) {
		gpio := hardware.NewMockGPIO()
		mc, _ := newTestController(gpio)
		serial := hardware.NewMockSerial()
		replyTo(serial, []byte{0xC1, 0x00, 0x09, 0x12, 0x34})
		link := NewLink(serial)
		link.SetPollInterval(time.Millisecond)

		result, err := ProbeInConfig(ctx, mc, link, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Matched)
		assert.Equal(t, ModeNormal, mc.State())

		writes := gpio.Writes()
		require.Len(t, writes, 4)
		assert.Equal(t, hardware.High, writes[1].Level, "probe ran in config mode")
	})

	t.Run("Restores Normal After Transport Failure", func(t *testing.T) {
		gpio := hardware.NewMockGPIO()
		mc, _ := newTestController(gpio)
		serial := hardware.NewMockSerial()
		serial.FailReads(errors.New("unplugged"))

		_, err := ProbeInConfig(ctx, mc, NewLink(serial), time.Second)
		require.Error(t, err)
		assert.True(t, IsKind(err, KindTransport))
		assert.Equal(t, ModeNormal, mc.State())

		m0, m1 := lines(t, gpio)
		assert.Equal(t, hardware.Low, m0)
		assert.Equal(t, hardware.Low, m1)
	})

	t.Run("Fixed Wiring", func(t *testing.T) {
		serial := hardware.NewMockSerial()
		replyTo(serial, []byte{0xC1, 0x00, 0x09})
		link := NewLink(serial)
		link.SetPollInterval(time.Millisecond)

		result, err := ProbeInConfig(ctx, nil, link, time.Second)
		require.NoError(t, err)
		assert.True(t, result.Matched)
	})
}
