package radio

import (
	"fmt"
	"strings"
	"time"

	"github.com/dougsko/lorahat/pkg/hardware"
)

// Policy says whether M0/M1 should be driven from GPIO
type Policy string

const (
	PolicyAuto  Policy = "auto"
	PolicyGPIO  Policy = "gpio"
	PolicyFixed Policy = "fixed"
)

// ParsePolicy accepts auto, gpio or fixed
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAuto, PolicyGPIO, PolicyFixed:
		return p, nil
	default:
		return "", wrap(KindConfig, "line control", fmt.Errorf("unknown policy %q", s))
	}
}

// LineControl is decided once at startup: either the lines are driven
// through a DigitalOutput, or they are fixed by external wiring.
type LineControl struct {
	out hardware.DigitalOutput
}

// Controlled drives the lines through out
func Controlled(out hardware.DigitalOutput) LineControl {
	return LineControl{out: out}
}

// ExternallyFixed leaves the lines to jumpers or wiring
func ExternallyFixed() LineControl {
	return LineControl{}
}

// IsControlled reports whether the lines are driven from GPIO
func (lc LineControl) IsControlled() bool {
	return lc.out != nil
}

func (lc LineControl) String() string {
	if lc.IsControlled() {
		return "gpio"
	}
	return "fixed"
}

// ModeController returns a controller for the lines, or nil when they are
// externally fixed.
func (lc LineControl) ModeController(m0, m1 int, settle time.Duration) *ModeController {
	if !lc.IsControlled() {
		return nil
	}
	return NewModeController(lc.out, m0, m1, settle)
}

// ResolveLineControl applies policy for the given serial device. acquire
// claims the GPIO backend and is only called when GPIO may be used.
// With PolicyGPIO a failed acquire is fatal; with PolicyAuto it degrades
// to ExternallyFixed and the reason is returned as an advisory.
func ResolveLineControl(policy Policy, device string, acquire func() (hardware.DigitalOutput, error)) (LineControl, []string, error) {
	switch policy {
	case PolicyFixed:
		return ExternallyFixed(), nil, nil

	case PolicyGPIO:
		out, err := acquire()
		if err != nil {
			return LineControl{}, nil, wrap(KindModeControl, "claim M0/M1", err)
		}
		return Controlled(out), nil, nil

	case PolicyAuto, "":
		if hardware.IsUSBSerial(device) {
			return ExternallyFixed(), []string{
				fmt.Sprintf("%s is a USB adapter, not driving M0/M1 from GPIO", device),
			}, nil
		}
		out, err := acquire()
		if err != nil {
			return ExternallyFixed(), []string{
				fmt.Sprintf("GPIO not available (%v), assuming M0/M1 are set by jumpers", err),
			}, nil
		}
		return Controlled(out), nil, nil

	default:
		return LineControl{}, nil, wrap(KindConfig, "line control", fmt.Errorf("unknown policy %q", policy))
	}
}

// JumperAdvice tells the operator how to set the HAT jumpers when the
// lines are not driven from GPIO.
func JumperAdvice(device string, configMode bool) string {
	if hardware.IsUSBSerial(device) {
		if configMode {
			return "with USB and no GPIO, set jumpers: A closed; M0 closed, M1 open (config mode)"
		}
		return "with USB and no GPIO, set jumpers: A closed; M0 closed, M1 closed (normal mode)"
	}
	return fmt.Sprintf("without GPIO using %s, ensure M0/M1 are set by jumpers (LOW/LOW for normal, LOW/HIGH for config)", device)
}
