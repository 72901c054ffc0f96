package hardware

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewManager(t *testing.T) {
	manager := NewManager(Config{SerialDevice: "/dev/ttyUSB0", BaudRate: 9600, GPIOBackend: BackendMock})

	if manager == nil {
		t.Fatal("Expected non-nil hardware manager")
	}
	if manager.IsInitialized() {
		t.Error("Expected manager to not be initialized initially")
	}
	if manager.GetConfig().ReadTimeout != 100*time.Millisecond {
		t.Errorf("Expected default read timeout 100ms, got %v", manager.GetConfig().ReadTimeout)
	}
	if manager.Serial() != nil {
		t.Error("Expected no serial before Initialize")
	}
}

func TestManagerLifecycle(t *testing.T) {
	mock := NewMockSerial()
	manager := NewManager(Config{SerialDevice: "/dev/serial0", BaudRate: 9600, GPIOBackend: BackendMock})
	manager.SetSerialOpener(OpenMockSerial(mock))

	t.Run("Initialize", func(t *testing.T) {
		if err := manager.Initialize(); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !manager.IsInitialized() {
			t.Error("Expected manager to be initialized")
		}
		if manager.Serial() != mock {
			t.Error("Expected the opened mock serial")
		}
	})

	t.Run("Double Initialization", func(t *testing.T) {
		if err := manager.Initialize(); err != nil {
			t.Errorf("Expected no error on double initialization, got: %v", err)
		}
	})

	t.Run("Acquire GPIO Once", func(t *testing.T) {
		first, err := manager.AcquireGPIO()
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		second, err := manager.AcquireGPIO()
		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if first != second {
			t.Error("Expected the same GPIO backend on repeated acquire")
		}
	})

	t.Run("Close Releases Everything", func(t *testing.T) {
		gpio, _ := manager.AcquireGPIO()
		if err := manager.Close(); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if !mock.IsClosed() {
			t.Error("Expected serial to be closed")
		}
		if !gpio.(*MockGPIO).IsClosed() {
			t.Error("Expected GPIO to be closed")
		}
		if manager.IsInitialized() {
			t.Error("Expected manager to be uninitialized after Close")
		}
	})

	t.Run("Double Close", func(t *testing.T) {
		if err := manager.Close(); err != nil {
			t.Errorf("Expected no error on double close, got: %v", err)
		}
	})
}

func TestManagerOpenFailure(t *testing.T) {
	manager := NewManager(Config{SerialDevice: "/dev/missing", BaudRate: 9600})
	manager.SetSerialOpener(func(string, int, time.Duration) (SerialTransport, error) {
		return nil, errors.New("no such device")
	})

	err := manager.Initialize()
	if err == nil {
		t.Fatal("Expected error opening serial")
	}
	if manager.IsInitialized() {
		t.Error("Expected manager to stay uninitialized")
	}
}

func TestNewGPIOBackend(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{BackendPeriph, false},
		{BackendSysfs, false},
		{BackendMock, false},
		{"", false},
		{"wiringpi", true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			gpio, err := NewGPIOBackend(tt.backend, 0)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error for unknown backend")
				}
				return
			}
			if err != nil || gpio == nil {
				t.Errorf("Expected backend, got %v / %v", gpio, err)
			}
		})
	}
}

func TestLinuxGPIOSysfs(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"export", "unexport"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	// line 512+22 already exported, as udev would leave it
	lineDir := filepath.Join(root, "gpio534")
	if err := os.MkdirAll(lineDir, 0755); err != nil {
		t.Fatal(err)
	}

	gpio := NewLinuxGPIO(512)
	gpio.root = root

	if err := gpio.Initialize(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if err := gpio.SetPin(22, High); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	direction, _ := os.ReadFile(filepath.Join(lineDir, "direction"))
	if string(direction) != "out" {
		t.Errorf("Expected direction out, got %q", direction)
	}
	value, _ := os.ReadFile(filepath.Join(lineDir, "value"))
	if string(value) != "1" {
		t.Errorf("Expected value 1, got %q", value)
	}

	level, err := gpio.GetPin(22)
	if err != nil || level != High {
		t.Errorf("Expected high read back, got %v / %v", level, err)
	}

	if err := gpio.Close(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	value, _ = os.ReadFile(filepath.Join(lineDir, "value"))
	if string(value) != "0" {
		t.Errorf("Expected line driven low on close, got %q", value)
	}
	unexported, _ := os.ReadFile(filepath.Join(root, "unexport"))
	if string(unexported) != "534" {
		t.Errorf("Expected line 534 unexported, got %q", unexported)
	}
}

func TestLinuxGPIOUnavailable(t *testing.T) {
	gpio := NewLinuxGPIO(0)
	gpio.root = filepath.Join(t.TempDir(), "absent")
	if err := gpio.Initialize(); err == nil {
		t.Error("Expected error when sysfs GPIO is missing")
	}
}

func TestDetectSerialDevice(t *testing.T) {
	t.Run("Prefers USB", func(t *testing.T) {
		glob := func(string) ([]string, error) {
			return []string{"/dev/ttyUSB1", "/dev/ttyUSB0"}, nil
		}
		if got := detectSerialDevice(glob); got != "/dev/ttyUSB0" {
			t.Errorf("Expected /dev/ttyUSB0, got %s", got)
		}
	})

	t.Run("Falls Back To UART", func(t *testing.T) {
		glob := func(string) ([]string, error) { return nil, nil }
		if got := detectSerialDevice(glob); got != DefaultSerialDevice {
			t.Errorf("Expected %s, got %s", DefaultSerialDevice, got)
		}
	})
}

// chunkReader hands out one chunk per Read, then times out empty
type chunkReader struct {
	chunks [][]byte
	reads  int
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.reads++
	if r.err != nil {
		return 0, r.err
	}
	if len(r.chunks) == 0 {
		return 0, nil
	}
	n := copy(p, r.chunks[0])
	r.chunks = r.chunks[1:]
	return n, nil
}

func TestDiscardInput(t *testing.T) {
	buf := make([]byte, readChunk)

	t.Run("Reads Until Empty", func(t *testing.T) {
		r := &chunkReader{chunks: [][]byte{{0xC1, 0x00}, {0x09}}}
		if err := discardInput(r, buf, maxDiscardReads); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(r.chunks) != 0 {
			t.Errorf("Expected all input consumed, %d chunks left", len(r.chunks))
		}
		if r.reads != 3 {
			t.Errorf("Expected 3 reads, got %d", r.reads)
		}
	})

	t.Run("Bounded", func(t *testing.T) {
		r := &chunkReader{}
		for i := 0; i < 10; i++ {
			r.chunks = append(r.chunks, []byte{byte(i)})
		}
		if err := discardInput(r, buf, 4); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if r.reads != 4 {
			t.Errorf("Expected 4 reads, got %d", r.reads)
		}
	})

	t.Run("EOF Is Empty", func(t *testing.T) {
		r := &chunkReader{err: io.EOF}
		if err := discardInput(r, buf, maxDiscardReads); err != nil {
			t.Errorf("Expected no error, got: %v", err)
		}
	})

	t.Run("Read Error", func(t *testing.T) {
		boom := errors.New("device gone")
		r := &chunkReader{err: boom}
		if err := discardInput(r, buf, maxDiscardReads); !errors.Is(err, boom) {
			t.Errorf("Expected %v, got %v", boom, err)
		}
	})
}

func TestManagerGPIOOverride(t *testing.T) {
	manager := NewManager(Config{SerialDevice: "/dev/serial0", BaudRate: 9600, GPIOBackend: "bogus"})
	mock := NewMockGPIO()
	manager.SetGPIOBackend(mock)

	gpio, err := manager.AcquireGPIO()
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if gpio != mock {
		t.Error("Expected the injected GPIO backend")
	}

	if err := manager.ReleaseGPIO(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !mock.IsClosed() {
		t.Error("Expected GPIO to be closed on release")
	}
	if err := manager.ReleaseGPIO(); err != nil {
		t.Errorf("Expected no error on double release, got: %v", err)
	}
}

func TestIsUSBSerial(t *testing.T) {
	if !IsUSBSerial("/dev/ttyUSB0") {
		t.Error("Expected ttyUSB0 to be USB")
	}
	if IsUSBSerial("/dev/serial0") {
		t.Error("Expected serial0 not to be USB")
	}
}

func TestLevelString(t *testing.T) {
	if Low.String() != "low" || High.String() != "high" {
		t.Errorf("Unexpected level names %s/%s", Low, High)
	}
}
