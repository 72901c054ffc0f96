package hardware

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dougsko/lorahat/pkg/logging"
)

// Level is the logic level of a digital line
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "high"
	}
	return "low"
}

// GPIO backend names
const (
	BackendPeriph = "periph"
	BackendSysfs  = "sysfs"
	BackendMock   = "mock"
)

// DigitalOutput drives a numbered line low or high
type DigitalOutput interface {
	SetPin(pin int, level Level) error
}

// GPIOInterface defines GPIO operations
type GPIOInterface interface {
	DigitalOutput
	Initialize() error
	Close() error
	GetPin(pin int) (Level, error)
}

// SerialTransport is the byte link to the module
type SerialTransport interface {
	Write(p []byte) (int, error)
	// ReadAvailable returns whatever bytes arrived since the last call.
	// An empty result with a nil error means nothing is waiting.
	ReadAvailable() ([]byte, error)
	ResetInput() error
	Close() error
}

// SerialOpener opens a serial transport
type SerialOpener func(device string, baudRate int, readTimeout time.Duration) (SerialTransport, error)

// Config represents hardware configuration
type Config struct {
	SerialDevice string
	BaudRate     int
	ReadTimeout  time.Duration
	GPIOBackend  string
	SysfsBase    int
}

// Manager owns the serial port and the GPIO backend for one module
type Manager struct {
	config Config
	mutex  sync.Mutex

	serial     SerialTransport
	gpio       GPIOInterface
	openSerial SerialOpener
	newGPIO    func() (GPIOInterface, error)

	initialized bool
}

// NewManager creates a new hardware manager
func NewManager(config Config) *Manager {
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 100 * time.Millisecond
	}
	m := &Manager{
		config:     config,
		openSerial: OpenSerialPort,
	}
	m.newGPIO = func() (GPIOInterface, error) {
		return NewGPIOBackend(m.config.GPIOBackend, m.config.SysfsBase)
	}
	return m
}

// SetGPIOBackend makes AcquireGPIO use gpio instead of the configured backend
func (m *Manager) SetGPIOBackend(gpio GPIOInterface) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.newGPIO = func() (GPIOInterface, error) { return gpio, nil }
}

// SetSerialOpener replaces the function used to open the serial device
func (m *Manager) SetSerialOpener(opener SerialOpener) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.openSerial = opener
}

// Initialize opens the serial device
func (m *Manager) Initialize() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.initialized {
		return nil
	}

	logging.Infof("hardware", "Opening %s @ %d bps", m.config.SerialDevice, m.config.BaudRate)
	port, err := m.openSerial(m.config.SerialDevice, m.config.BaudRate, m.config.ReadTimeout)
	if err != nil {
		return fmt.Errorf("failed to open serial %s: %w", m.config.SerialDevice, err)
	}

	m.serial = port
	m.initialized = true
	return nil
}

// Serial returns the open serial transport, nil before Initialize
func (m *Manager) Serial() SerialTransport {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.serial
}

// AcquireGPIO initializes the configured GPIO backend on first use.
// The manager releases it on Close.
func (m *Manager) AcquireGPIO() (GPIOInterface, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.gpio != nil {
		return m.gpio, nil
	}

	gpio, err := m.newGPIO()
	if err != nil {
		return nil, err
	}
	if err := gpio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize GPIO: %w", err)
	}

	logging.Infof("hardware", "GPIO initialized (%s backend)", m.config.GPIOBackend)
	m.gpio = gpio
	return gpio, nil
}

// ReleaseGPIO closes the GPIO backend, if acquired, so the lines are left
// to external wiring.
func (m *Manager) ReleaseGPIO() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.gpio == nil {
		return nil
	}
	err := m.gpio.Close()
	m.gpio = nil
	return err
}

// Close releases the GPIO lines and the serial device
func (m *Manager) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var errs []error

	if m.gpio != nil {
		if err := m.gpio.Close(); err != nil {
			logging.Warnf("hardware", "Error closing GPIO: %v", err)
			errs = append(errs, err)
		}
		m.gpio = nil
	}

	if m.serial != nil {
		if err := m.serial.Close(); err != nil {
			logging.Warnf("hardware", "Error closing serial: %v", err)
			errs = append(errs, err)
		}
		m.serial = nil
	}

	if m.initialized {
		logging.Info("hardware", "Hardware released")
	}
	m.initialized = false
	return errors.Join(errs...)
}

// IsInitialized returns whether the serial device is open
func (m *Manager) IsInitialized() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.initialized
}

// GetConfig returns the hardware configuration
func (m *Manager) GetConfig() Config {
	return m.config
}

// NewGPIOBackend creates an uninitialized GPIO backend by name
func NewGPIOBackend(backend string, sysfsBase int) (GPIOInterface, error) {
	switch backend {
	case BackendPeriph, "":
		return NewPeriphGPIO(), nil
	case BackendSysfs:
		return NewLinuxGPIO(sysfsBase), nil
	case BackendMock:
		return NewMockGPIO(), nil
	default:
		return nil, fmt.Errorf("unknown GPIO backend %q", backend)
	}
}
