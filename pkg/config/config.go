package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Config represents the lorahat configuration
type Config struct {
	Station struct {
		ID string `yaml:"id"`
	} `yaml:"station"`

	Radio struct {
		// Serial link to the HAT
		Serial   string `yaml:"serial"`
		BaudRate int    `yaml:"baud_rate"`

		// Module parameters
		Frequency   int   `yaml:"frequency"` // MHz
		Address     int   `yaml:"address"`
		Destination int   `yaml:"destination"`
		Power       int   `yaml:"power"`
		AirSpeed    int   `yaml:"air_speed"`
		RSSI        *bool `yaml:"rssi"`
	} `yaml:"radio"`

	Lines struct {
		Control   string        `yaml:"control"` // auto, gpio, fixed
		Backend   string        `yaml:"backend"` // periph, sysfs, mock
		SysfsBase int           `yaml:"sysfs_base"`
		M0        int           `yaml:"m0"`
		M1        int           `yaml:"m1"`
		Settle    time.Duration `yaml:"settle"`
	} `yaml:"lines"`

	Telemetry struct {
		Mode     string        `yaml:"mode"` // sensors, random, text
		Period   time.Duration `yaml:"period"`
		Rain     bool          `yaml:"rain"`
		Seismic  bool          `yaml:"seismic"`
		BucketMM float64       `yaml:"bucket_mm"`
		Seed     int64         `yaml:"seed"`
	} `yaml:"telemetry"`

	Receiver struct {
		PollInterval time.Duration `yaml:"poll_interval"`
		SettleDelay  time.Duration `yaml:"settle_delay"`
		CSV          string        `yaml:"csv"`
		Debug        bool          `yaml:"debug"`
	} `yaml:"receiver"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxFrames    int    `yaml:"max_frames"`
	} `yaml:"storage"`

	Web struct {
		Enabled     bool   `yaml:"enabled"`
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig controls the logging package
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	Structured bool   `yaml:"structured"`
	MaxSize    int    `yaml:"max_size"`    // megabytes
	MaxBackups int    `yaml:"max_backups"` // rotated files kept
	MaxAge     int    `yaml:"max_age"`     // days
	Compress   bool   `yaml:"compress"`
}

// Line control policies
const (
	ControlAuto  = "auto"
	ControlGPIO  = "gpio"
	ControlFixed = "fixed"
)

// Telemetry payload modes
const (
	ModeSensors = "sensors"
	ModeRandom  = "random"
	ModeText    = "text"
)

var (
	validPowers    = []int{10, 13, 17, 22}
	validAirSpeeds = []int{1200, 2400, 4800, 9600, 19200, 38400, 62500}
	validBaudRates = []int{1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200}
)

// Default returns a configuration with every default applied
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

// LoadConfig loads configuration from a YAML file. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Station.ID == "" {
		c.Station.ID = "tx01"
	}
	if c.Radio.Serial == "" {
		c.Radio.Serial = "/dev/serial0"
	}
	if c.Radio.BaudRate == 0 {
		c.Radio.BaudRate = 9600
	}
	if c.Radio.Frequency == 0 {
		c.Radio.Frequency = 915
	}
	if c.Radio.Address == 0 {
		c.Radio.Address = 101
	}
	if c.Radio.Destination == 0 {
		c.Radio.Destination = 65535
	}
	if c.Radio.Power == 0 {
		c.Radio.Power = 22
	}
	if c.Radio.AirSpeed == 0 {
		c.Radio.AirSpeed = 2400
	}
	if c.Radio.RSSI == nil {
		enabled := true
		c.Radio.RSSI = &enabled
	}
	if c.Lines.Control == "" {
		c.Lines.Control = ControlAuto
	}
	if c.Lines.Backend == "" {
		c.Lines.Backend = "periph"
	}
	if c.Lines.M0 == 0 {
		c.Lines.M0 = 22
	}
	if c.Lines.M1 == 0 {
		c.Lines.M1 = 27
	}
	if c.Lines.Settle == 0 {
		c.Lines.Settle = 500 * time.Millisecond
	}
	if c.Telemetry.Mode == "" {
		c.Telemetry.Mode = ModeSensors
	}
	if c.Telemetry.Period == 0 {
		c.Telemetry.Period = time.Second
	}
	if !c.Telemetry.Rain && !c.Telemetry.Seismic {
		// neither block selected means both
		c.Telemetry.Rain = true
		c.Telemetry.Seismic = true
	}
	if c.Telemetry.BucketMM == 0 {
		c.Telemetry.BucketMM = 0.2
	}
	if c.Receiver.PollInterval == 0 {
		c.Receiver.PollInterval = 50 * time.Millisecond
	}
	if c.Receiver.SettleDelay == 0 {
		c.Receiver.SettleDelay = 500 * time.Millisecond
	}
	if c.Storage.MaxFrames == 0 {
		c.Storage.MaxFrames = 10000
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.BindAddress == "" {
		c.Web.BindAddress = "0.0.0.0"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

// RSSIEnabled reports whether inbound frames carry a trailing signal byte
func (c *Config) RSSIEnabled() bool {
	return c.Radio.RSSI != nil && *c.Radio.RSSI
}

// SetRSSI overrides the RSSI flag
func (c *Config) SetRSSI(enabled bool) {
	c.Radio.RSSI = &enabled
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Radio.Serial == "" {
		return fmt.Errorf("radio serial device is required")
	}
	if !contains(validBaudRates, c.Radio.BaudRate) {
		return fmt.Errorf("unsupported baud rate %d", c.Radio.BaudRate)
	}
	if !((c.Radio.Frequency >= 410 && c.Radio.Frequency <= 493) ||
		(c.Radio.Frequency >= 850 && c.Radio.Frequency <= 930)) {
		return fmt.Errorf("frequency %d MHz outside 410-493 and 850-930", c.Radio.Frequency)
	}
	if c.Radio.Address < 0 || c.Radio.Address > 0xFFFF {
		return fmt.Errorf("address %d out of range 0-65535", c.Radio.Address)
	}
	if c.Radio.Destination < 0 || c.Radio.Destination > 0xFFFF {
		return fmt.Errorf("destination %d out of range 0-65535", c.Radio.Destination)
	}
	if !contains(validPowers, c.Radio.Power) {
		return fmt.Errorf("unsupported transmit power %d dBm", c.Radio.Power)
	}
	if !contains(validAirSpeeds, c.Radio.AirSpeed) {
		return fmt.Errorf("unsupported air data rate %d bps", c.Radio.AirSpeed)
	}

	switch c.Lines.Control {
	case ControlAuto, ControlGPIO, ControlFixed:
	default:
		return fmt.Errorf("lines.control must be auto, gpio or fixed (got %q)", c.Lines.Control)
	}
	switch c.Lines.Backend {
	case "periph", "sysfs", "mock":
	default:
		return fmt.Errorf("lines.backend must be periph, sysfs or mock (got %q)", c.Lines.Backend)
	}
	if c.Lines.M0 == c.Lines.M1 {
		return fmt.Errorf("M0 and M1 must be different pins")
	}
	if c.Lines.Settle < 0 {
		return fmt.Errorf("lines.settle must not be negative")
	}

	switch strings.ToLower(c.Telemetry.Mode) {
	case ModeSensors, ModeRandom, ModeText:
		c.Telemetry.Mode = strings.ToLower(c.Telemetry.Mode)
	default:
		return fmt.Errorf("telemetry mode must be sensors, random or text (got %q)", c.Telemetry.Mode)
	}
	if c.Telemetry.Period <= 0 {
		return fmt.Errorf("telemetry period must be positive")
	}
	if c.Telemetry.BucketMM <= 0 {
		return fmt.Errorf("bucket size must be positive")
	}
	if c.Receiver.PollInterval <= 0 {
		return fmt.Errorf("receiver poll interval must be positive")
	}
	if c.Storage.MaxFrames < 0 {
		return fmt.Errorf("storage max_frames must not be negative")
	}
	if c.Web.Enabled && (c.Web.Port <= 0 || c.Web.Port > 65535) {
		return fmt.Errorf("web port %d out of range", c.Web.Port)
	}
	return nil
}

func contains(values []int, v int) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
