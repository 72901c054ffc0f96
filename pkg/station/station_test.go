package station

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dougsko/lorahat/pkg/config"
	"github.com/dougsko/lorahat/pkg/hardware"
	"github.com/dougsko/lorahat/pkg/radio"
)

func testConfig(control string) *config.Config {
	cfg := config.Default()
	cfg.Lines.Control = control
	cfg.Lines.Backend = hardware.BackendMock
	cfg.Lines.Settle = time.Millisecond
	return cfg
}

func TestOpenWithGPIO(t *testing.T) {
	serial := hardware.NewMockSerial()
	s, err := Open(testConfig(config.ControlGPIO), hardware.OpenMockSerial(serial))
	require.NoError(t, err)

	require.NotNil(t, s.Mode)
	assert.True(t, s.Lines.IsControlled())
	assert.Equal(t, radio.ModeNormal, s.Mode.State())
	assert.Equal(t, 850, s.Base)
	assert.Equal(t, radio.Channel(65), s.Channel)
	assert.Equal(t, 915, s.FrequencyMHz())
	assert.Contains(t, s.String(), "915.125 MHz")

	gpio, err := s.Hardware.AcquireGPIO()
	require.NoError(t, err)
	mock := gpio.(*hardware.MockGPIO)
	// claimed low on acquire, then driven to normal mode
	assert.Equal(t, []hardware.PinWrite{
		{Pin: 22, Level: hardware.Low},
		{Pin: 27, Level: hardware.Low},
		{Pin: 22, Level: hardware.Low},
		{Pin: 27, Level: hardware.Low},
	}, mock.Writes())

	require.NoError(t, s.Close())
	assert.True(t, serial.IsClosed())
	assert.True(t, mock.IsClosed())
}

func TestOpenFixed(t *testing.T) {
	s, err := Open(testConfig(config.ControlFixed), hardware.OpenMockSerial(hardware.NewMockSerial()))
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Mode)
	assert.False(t, s.Lines.IsControlled())
	assert.Empty(t, s.Advisories)
}

func TestOpenAutoOnUSB(t *testing.T) {
	cfg := testConfig(config.ControlAuto)
	cfg.Radio.Serial = "/dev/ttyUSB0"

	s, err := Open(cfg, hardware.OpenMockSerial(hardware.NewMockSerial()))
	require.NoError(t, err)
	defer s.Close()

	assert.Nil(t, s.Mode)
	require.Len(t, s.Advisories, 1)
	assert.Contains(t, s.Advisories[0], "USB")
}

func TestOpenLowBand(t *testing.T) {
	cfg := testConfig(config.ControlFixed)
	cfg.Radio.Frequency = 433

	s, err := Open(cfg, hardware.OpenMockSerial(hardware.NewMockSerial()))
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 410, s.Base)
	assert.Equal(t, radio.Channel(23), s.Channel)
}

func testManager(cfg *config.Config, serial *hardware.MockSerial, gpio *hardware.MockGPIO) *hardware.Manager {
	mgr := hardware.NewManager(hardware.Config{
		SerialDevice: cfg.Radio.Serial,
		BaudRate:     cfg.Radio.BaudRate,
		GPIOBackend:  cfg.Lines.Backend,
	})
	mgr.SetSerialOpener(hardware.OpenMockSerial(serial))
	mgr.SetGPIOBackend(gpio)
	return mgr
}

func TestOpenPinsUnreachable(t *testing.T) {
	unreachable := errors.New("GPIO22 not exported")

	t.Run("Auto Falls Back To Jumpers", func(t *testing.T) {
		cfg := testConfig(config.ControlAuto)
		cfg.Radio.Serial = "/dev/serial0"
		serial := hardware.NewMockSerial()
		gpio := hardware.NewMockGPIO()
		gpio.FailPin(22, unreachable)

		s, err := open(cfg, testManager(cfg, serial, gpio))
		require.NoError(t, err)
		defer s.Close()

		assert.Nil(t, s.Mode)
		assert.False(t, s.Lines.IsControlled())
		require.Len(t, s.Advisories, 1)
		assert.Contains(t, s.Advisories[0], "GPIO not available")
		assert.Contains(t, s.Advisories[0], "GPIO22 not exported")
		assert.True(t, gpio.IsClosed(), "unusable GPIO should be released")
		assert.False(t, serial.IsClosed())

		require.NoError(t, s.Link.Send([]byte("hi")))
		assert.Len(t, serial.Written(), 1)
	})

	t.Run("GPIO Policy Is Fatal", func(t *testing.T) {
		cfg := testConfig(config.ControlGPIO)
		serial := hardware.NewMockSerial()
		gpio := hardware.NewMockGPIO()
		gpio.FailPin(27, unreachable)

		_, err := open(cfg, testManager(cfg, serial, gpio))
		assert.True(t, radio.IsKind(err, radio.KindModeControl), "got %v", err)
		assert.ErrorIs(t, err, unreachable)
		assert.True(t, serial.IsClosed(), "serial should be released on failure")
		assert.True(t, gpio.IsClosed())
	})
}

func TestOpenErrors(t *testing.T) {
	t.Run("Bad Frequency", func(t *testing.T) {
		cfg := testConfig(config.ControlFixed)
		cfg.Radio.Frequency = 600
		_, err := Open(cfg, hardware.OpenMockSerial(hardware.NewMockSerial()))
		assert.True(t, radio.IsKind(err, radio.KindConfig), "got %v", err)
	})

	t.Run("Serial Open Failure", func(t *testing.T) {
		boom := errors.New("no such device")
		opener := func(string, int, time.Duration) (hardware.SerialTransport, error) { return nil, boom }
		_, err := Open(testConfig(config.ControlFixed), opener)
		assert.True(t, radio.IsKind(err, radio.KindTransport), "got %v", err)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("GPIO Required But Unavailable", func(t *testing.T) {
		cfg := testConfig(config.ControlGPIO)
		cfg.Lines.Backend = "bogus"
		serial := hardware.NewMockSerial()

		_, err := Open(cfg, hardware.OpenMockSerial(serial))
		assert.True(t, radio.IsKind(err, radio.KindModeControl), "got %v", err)
		assert.True(t, serial.IsClosed(), "serial should be released on failure")
	})
}
