package radio

import (
	"errors"
	"testing"
	"time"

	"github.com/dougsko/lorahat/pkg/hardware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(gpio *hardware.MockGPIO) (*ModeController, *[]time.Duration) {
	mc := NewModeController(gpio, 22, 27, 0)
	var slept []time.Duration
	mc.sleep = func(d time.Duration) { slept = append(slept, d) }
	return mc, &slept
}

func lines(t *testing.T, gpio *hardware.MockGPIO) (hardware.Level, hardware.Level) {
	t.Helper()
	m0, err := gpio.GetPin(22)
	require.NoError(t, err)
	m1, err := gpio.GetPin(27)
	require.NoError(t, err)
	return m0, m1
}

func TestModeController(t *testing.T) {
	t.Run("Starts Unknown", func(t *testing.T) {
		mc, _ := newTestController(hardware.NewMockGPIO())
		assert.Equal(t, ModeUnknown, mc.State())
		assert.Equal(t, DefaultSettle, mc.Settle())
	})

	t.Run("Config Then Normal", func(t *testing.T) {
		gpio := hardware.NewMockGPIO()
		mc, slept := newTestController(gpio)

		require.NoError(t, mc.EnterConfig())
		m0, m1 := lines(t, gpio)
		assert.Equal(t, hardware.Low, m0)
		assert.Equal(t, hardware.High, m1)
		assert.Equal(t, ModeConfig, mc.State())

		require.NoError(t, mc.EnterNormal())
		m0, m1 = lines(t, gpio)
		assert.Equal(t, hardware.Low, m0)
		assert.Equal(t, hardware.Low, m1)
		assert.Equal(t, ModeNormal, mc.State())

		assert.Equal(t, []time.Duration{DefaultSettle, DefaultSettle}, *slept)
		assert.Equal(t, []hardware.PinWrite{
			{Pin: 22, Level: hardware.Low},
			{Pin: 27, Level: hardware.High},
			{Pin: 22, Level: hardware.Low},
			{Pin: 27, Level: hardware.Low},
		}, gpio.Writes())
	})

	t.Run("Normal From Any State", func(t *testing.T) {
		gpio := hardware.NewMockGPIO()
		gpio.SetPin(22, hardware.High)
		gpio.SetPin(27, hardware.High)
		mc, _ := newTestController(gpio)

		require.NoError(t, mc.EnterNormal())
		m0, m1 := lines(t, gpio)
		assert.Equal(t, hardware.Low, m0)
		assert.Equal(t, hardware.Low, m1)
	})

	t.Run("Failed Write Is Fatal", func(t *testing.T) {
		gpio := hardware.NewMockGPIO()
		mc, slept := newTestController(gpio)
		require.NoError(t, mc.EnterNormal())

		boom := errors.New("line claimed elsewhere")
		gpio.FailPin(27, boom)

		err := mc.EnterConfig()
		require.Error(t, err)
		assert.True(t, IsKind(err, KindModeControl))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, ModeUnknown, mc.State())
		assert.Len(t, *slept, 1, "no settle after a failed transition")
	})

	t.Run("Custom Settle", func(t *testing.T) {
		mc := NewModeController(hardware.NewMockGPIO(), 5, 6, 20*time.Millisecond)
		start := time.Now()
		require.NoError(t, mc.EnterNormal())
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}

func TestModeStateString(t *testing.T) {
	assert.Equal(t, "config", ModeConfig.String())
	assert.Equal(t, "normal", ModeNormal.String())
	assert.Equal(t, "unknown", ModeUnknown.String())
}
