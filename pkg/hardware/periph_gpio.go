package hardware

import (
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphGPIO implements GPIOInterface on top of periph.io. Lines are
// claimed by BCM number on first use.
type PeriphGPIO struct {
	mutex   sync.Mutex
	claimed map[int]gpio.PinIO
}

// NewPeriphGPIO creates a periph.io backed GPIO interface
func NewPeriphGPIO() *PeriphGPIO {
	return &PeriphGPIO{claimed: make(map[int]gpio.PinIO)}
}

// Initialize loads the periph host drivers
func (g *PeriphGPIO) Initialize() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

func (g *PeriphGPIO) claim(pin int) (gpio.PinIO, error) {
	if p, ok := g.claimed[pin]; ok {
		return p, nil
	}
	p := gpioreg.ByName(strconv.Itoa(pin))
	if p == nil {
		return nil, fmt.Errorf("GPIO%d not found", pin)
	}
	g.claimed[pin] = p
	return p, nil
}

// SetPin drives a line
func (g *PeriphGPIO) SetPin(pin int, level Level) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	p, err := g.claim(pin)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Level(level)); err != nil {
		return fmt.Errorf("GPIO%d out %s: %w", pin, level, err)
	}
	return nil
}

// GetPin samples a line
func (g *PeriphGPIO) GetPin(pin int) (Level, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	p, err := g.claim(pin)
	if err != nil {
		return Low, err
	}
	return Level(p.Read()), nil
}

// Close drives claimed lines low and halts them
func (g *PeriphGPIO) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	var firstErr error
	for pin, p := range g.claimed {
		_ = p.Out(gpio.Low)
		if err := p.Halt(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("GPIO%d halt: %w", pin, err)
		}
		delete(g.claimed, pin)
	}
	return firstErr
}
