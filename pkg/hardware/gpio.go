package hardware

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dougsko/lorahat/pkg/logging"
)

const defaultSysfsRoot = "/sys/class/gpio"

// LinuxGPIO implements GPIOInterface using Linux sysfs GPIO.
// Pin numbers are BCM offsets added to base, the gpiochip's first line.
type LinuxGPIO struct {
	root         string
	base         int
	exportedPins map[int]bool
	mutex        sync.Mutex
}

// NewLinuxGPIO creates a new Linux GPIO interface
func NewLinuxGPIO(base int) *LinuxGPIO {
	return &LinuxGPIO{
		root:         defaultSysfsRoot,
		base:         base,
		exportedPins: make(map[int]bool),
	}
}

// Initialize checks that sysfs GPIO is present
func (g *LinuxGPIO) Initialize() error {
	if _, err := os.Stat(g.root); os.IsNotExist(err) {
		return fmt.Errorf("GPIO not available on this system")
	}
	return nil
}

// Close drives exported pins low and unexports them
func (g *LinuxGPIO) Close() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	for pin := range g.exportedPins {
		g.writeValue(pin, Low)
		if err := g.unexportPin(pin); err != nil {
			logging.Warnf("gpio", "%v", err)
		}
		delete(g.exportedPins, pin)
	}
	return nil
}

// SetPin sets a GPIO pin value
func (g *LinuxGPIO) SetPin(pin int, level Level) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !g.exportedPins[pin] {
		if err := g.exportPin(pin); err != nil {
			return fmt.Errorf("failed to export pin %d: %w", pin, err)
		}
		if err := g.setPinDirection(pin, "out"); err != nil {
			return fmt.Errorf("failed to set pin %d direction: %w", pin, err)
		}
		g.exportedPins[pin] = true
	}

	return g.writeValue(pin, level)
}

// GetPin reads back a GPIO pin value
func (g *LinuxGPIO) GetPin(pin int) (Level, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if !g.exportedPins[pin] {
		if err := g.exportPin(pin); err != nil {
			return Low, fmt.Errorf("failed to export pin %d: %w", pin, err)
		}
		if err := g.setPinDirection(pin, "in"); err != nil {
			return Low, fmt.Errorf("failed to set pin %d direction: %w", pin, err)
		}
		g.exportedPins[pin] = true
	}

	data, err := os.ReadFile(g.pinPath(pin, "value"))
	if err != nil {
		return Low, fmt.Errorf("failed to read pin %d value: %w", pin, err)
	}
	return Level(strings.TrimSpace(string(data)) == "1"), nil
}

func (g *LinuxGPIO) line(pin int) int {
	return g.base + pin
}

func (g *LinuxGPIO) pinPath(pin int, file string) string {
	return filepath.Join(g.root, fmt.Sprintf("gpio%d", g.line(pin)), file)
}

func (g *LinuxGPIO) writeValue(pin int, level Level) error {
	value := "0"
	if level == High {
		value = "1"
	}
	if err := os.WriteFile(g.pinPath(pin, "value"), []byte(value), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d value: %w", pin, err)
	}
	return nil
}

func (g *LinuxGPIO) exportPin(pin int) error {
	pinDir := filepath.Dir(g.pinPath(pin, "value"))
	if _, err := os.Stat(pinDir); err == nil {
		return nil
	}

	exportPath := filepath.Join(g.root, "export")
	if err := os.WriteFile(exportPath, []byte(strconv.Itoa(g.line(pin))), 0644); err != nil {
		return fmt.Errorf("failed to export GPIO line %d: %w", g.line(pin), err)
	}

	// udev needs a moment to create the directory
	for i := 0; i < 10; i++ {
		if _, err := os.Stat(pinDir); err == nil {
			logging.Debugf("gpio", "Exported line %d", g.line(pin))
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}

	return fmt.Errorf("line %d directory did not appear after export", g.line(pin))
}

func (g *LinuxGPIO) unexportPin(pin int) error {
	unexportPath := filepath.Join(g.root, "unexport")
	if err := os.WriteFile(unexportPath, []byte(strconv.Itoa(g.line(pin))), 0644); err != nil {
		return fmt.Errorf("failed to unexport GPIO line %d: %w", g.line(pin), err)
	}
	return nil
}

func (g *LinuxGPIO) setPinDirection(pin int, direction string) error {
	if err := os.WriteFile(g.pinPath(pin, "direction"), []byte(direction), 0644); err != nil {
		return fmt.Errorf("failed to set pin %d direction to %s: %w", pin, direction, err)
	}
	return nil
}
