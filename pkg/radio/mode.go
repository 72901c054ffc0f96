package radio

import (
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/lorahat/pkg/hardware"
)

// DefaultSettle is how long the module needs to latch new M0/M1 levels
const DefaultSettle = 500 * time.Millisecond

// ModeState is the module operating mode as last commanded
type ModeState int

const (
	ModeUnknown ModeState = iota
	ModeConfig
	ModeNormal
)

func (m ModeState) String() string {
	switch m {
	case ModeConfig:
		return "config"
	case ModeNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// ModeController sequences the M0/M1 lines. Config is M0 low, M1 high;
// normal is both low.
type ModeController struct {
	out    hardware.DigitalOutput
	m0, m1 int
	settle time.Duration
	sleep  func(time.Duration)

	mu    sync.Mutex
	state ModeState
}

// NewModeController drives m0 and m1 on out. A zero settle uses DefaultSettle.
func NewModeController(out hardware.DigitalOutput, m0, m1 int, settle time.Duration) *ModeController {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &ModeController{
		out:    out,
		m0:     m0,
		m1:     m1,
		settle: settle,
		sleep:  time.Sleep,
	}
}

// EnterConfig switches to configuration mode and waits for the module to settle
func (mc *ModeController) EnterConfig() error {
	return mc.transition(ModeConfig, hardware.Low, hardware.High)
}

// EnterNormal switches to normal mode and waits for the module to settle
func (mc *ModeController) EnterNormal() error {
	return mc.transition(ModeNormal, hardware.Low, hardware.Low)
}

// State returns the last commanded mode
func (mc *ModeController) State() ModeState {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.state
}

// Settle returns the post-transition delay
func (mc *ModeController) Settle() time.Duration {
	return mc.settle
}

func (mc *ModeController) transition(target ModeState, m0, m1 hardware.Level) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if err := mc.out.SetPin(mc.m0, m0); err != nil {
		mc.state = ModeUnknown
		return wrap(KindModeControl, fmt.Sprintf("enter %s: M0 (GPIO%d) %s", target, mc.m0, m0), err)
	}
	if err := mc.out.SetPin(mc.m1, m1); err != nil {
		mc.state = ModeUnknown
		return wrap(KindModeControl, fmt.Sprintf("enter %s: M1 (GPIO%d) %s", target, mc.m1, m1), err)
	}

	mc.sleep(mc.settle)
	mc.state = target
	return nil
}
