// Package station assembles the hardware, link and line control for one
// HAT from a loaded configuration.
package station

import (
	"fmt"

	"github.com/dougsko/lorahat/pkg/config"
	"github.com/dougsko/lorahat/pkg/hardware"
	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/radio"
)

// Station is an opened HAT. Close releases everything it holds.
type Station struct {
	Hardware   *hardware.Manager
	Link       *radio.Link
	Lines      radio.LineControl
	Mode       *radio.ModeController // nil when the lines are externally fixed
	Base       int
	Channel    radio.Channel
	Device     string
	Advisories []string
}

// Open resolves the channel plan, opens the serial device and decides how
// M0/M1 are controlled. A nil opener uses the real serial port. When the
// lines are controlled the module is left in normal mode.
func Open(cfg *config.Config, opener hardware.SerialOpener) (*Station, error) {
	mgr := hardware.NewManager(hardware.Config{
		SerialDevice: cfg.Radio.Serial,
		BaudRate:     cfg.Radio.BaudRate,
		GPIOBackend:  cfg.Lines.Backend,
		SysfsBase:    cfg.Lines.SysfsBase,
	})
	if opener != nil {
		mgr.SetSerialOpener(opener)
	}
	return open(cfg, mgr)
}

func open(cfg *config.Config, mgr *hardware.Manager) (*Station, error) {
	base, ch, err := radio.ChannelFor(cfg.Radio.Frequency)
	if err != nil {
		return nil, err
	}
	policy, err := radio.ParsePolicy(cfg.Lines.Control)
	if err != nil {
		return nil, err
	}

	if err := mgr.Initialize(); err != nil {
		return nil, &radio.Error{Kind: radio.KindTransport, Op: "open serial", Err: err}
	}

	lines, advisories, err := radio.ResolveLineControl(policy, cfg.Radio.Serial, func() (hardware.DigitalOutput, error) {
		return claimLines(mgr, cfg.Lines.M0, cfg.Lines.M1)
	})
	if err != nil {
		mgr.Close()
		return nil, err
	}

	s := &Station{
		Hardware:   mgr,
		Link:       radio.NewLink(mgr.Serial()),
		Lines:      lines,
		Mode:       lines.ModeController(cfg.Lines.M0, cfg.Lines.M1, cfg.Lines.Settle),
		Base:       base,
		Channel:    ch,
		Device:     cfg.Radio.Serial,
		Advisories: advisories,
	}
	s.Link.SetPollInterval(cfg.Receiver.PollInterval)

	for _, advisory := range advisories {
		logging.Warn("station", advisory)
	}

	if s.Mode != nil {
		if err := s.Mode.EnterNormal(); err != nil {
			mgr.Close()
			return nil, err
		}
	}
	return s, nil
}

// claimLines acquires the GPIO backend and drives M0 and M1 low, so a
// backend that initializes but cannot reach the pins fails here rather
// than on the first mode change.
func claimLines(mgr *hardware.Manager, m0, m1 int) (hardware.DigitalOutput, error) {
	gpio, err := mgr.AcquireGPIO()
	if err != nil {
		return nil, err
	}
	for _, pin := range []int{m0, m1} {
		if err := gpio.SetPin(pin, hardware.Low); err != nil {
			if releaseErr := mgr.ReleaseGPIO(); releaseErr != nil {
				logging.Warnf("station", "release GPIO: %v", releaseErr)
			}
			return nil, fmt.Errorf("claim GPIO%d: %w", pin, err)
		}
	}
	return gpio, nil
}

// FrequencyMHz is the carrier in whole MHz
func (s *Station) FrequencyMHz() int {
	return s.Base + int(s.Channel)
}

// String describes the station for startup banners
func (s *Station) String() string {
	return fmt.Sprintf("%s @ %s MHz | lines=%s", s.Device, radio.FormatFrequency(s.FrequencyMHz()), s.Lines)
}

// Close releases the GPIO lines and the serial device
func (s *Station) Close() error {
	return s.Hardware.Close()
}
