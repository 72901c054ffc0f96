package hardware

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tarm/serial"
)

// DefaultSerialDevice is the Pi's primary UART
const DefaultSerialDevice = "/dev/serial0"

const readChunk = 256

// maxDiscardReads bounds ResetInput against a sender that never pauses
const maxDiscardReads = 64

// SerialPort implements SerialTransport over a tarm/serial port
type SerialPort struct {
	port   *serial.Port
	device string
	buf    []byte
}

// OpenSerialPort opens device 8N1 at baudRate. Reads block for at most
// readTimeout, rounded up to the driver's 100 ms granularity.
func OpenSerialPort(device string, baudRate int, readTimeout time.Duration) (SerialTransport, error) {
	if readTimeout <= 0 {
		readTimeout = 100 * time.Millisecond
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        baudRate,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &SerialPort{port: port, device: device, buf: make([]byte, readChunk)}, nil
}

// Write writes p in full
func (s *SerialPort) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		n, err := s.port.Write(p[written:])
		written += n
		if err != nil {
			return written, fmt.Errorf("write %s: %w", s.device, err)
		}
	}
	return written, nil
}

// ReadAvailable returns the bytes received within one read timeout
func (s *SerialPort) ReadAvailable() ([]byte, error) {
	n, err := s.port.Read(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", s.device, err)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

// ResetInput reads and drops input until a read times out empty. Bytes
// still queued for transmission are left alone, unlike tcflush on the
// whole port.
func (s *SerialPort) ResetInput() error {
	if err := discardInput(s.port, s.buf, maxDiscardReads); err != nil {
		return fmt.Errorf("reset input %s: %w", s.device, err)
	}
	return nil
}

func discardInput(r io.Reader, buf []byte, maxReads int) error {
	for i := 0; i < maxReads; i++ {
		n, err := r.Read(buf)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
	return nil
}

// Close closes the port
func (s *SerialPort) Close() error {
	return s.port.Close()
}

// DetectSerialDevice prefers the first USB adapter and falls back to the
// Pi UART.
func DetectSerialDevice() string {
	return detectSerialDevice(filepath.Glob)
}

func detectSerialDevice(glob func(string) ([]string, error)) string {
	matches, err := glob("/dev/ttyUSB*")
	if err == nil && len(matches) > 0 {
		sort.Strings(matches)
		return matches[0]
	}
	return DefaultSerialDevice
}

// IsUSBSerial reports whether device is a USB-UART adapter
func IsUSBSerial(device string) bool {
	return strings.HasPrefix(device, "/dev/ttyUSB")
}
