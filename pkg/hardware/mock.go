package hardware

import (
	"errors"
	"sync"
	"time"
)

// PinWrite is one recorded SetPin call
type PinWrite struct {
	Pin   int
	Level Level
}

// MockGPIO implements GPIOInterface for testing
type MockGPIO struct {
	mu      sync.RWMutex
	pins    map[int]Level
	writes  []PinWrite
	failPin map[int]error
	closed  bool
}

// NewMockGPIO creates a new mock GPIO interface
func NewMockGPIO() *MockGPIO {
	return &MockGPIO{
		pins:    make(map[int]Level),
		failPin: make(map[int]error),
	}
}

func (g *MockGPIO) Initialize() error {
	return nil
}

func (g *MockGPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}

// FailPin makes every later SetPin on pin return err
func (g *MockGPIO) FailPin(pin int, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failPin[pin] = err
}

func (g *MockGPIO) SetPin(pin int, level Level) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err, ok := g.failPin[pin]; ok {
		return err
	}
	g.pins[pin] = level
	g.writes = append(g.writes, PinWrite{Pin: pin, Level: level})
	return nil
}

func (g *MockGPIO) GetPin(pin int) (Level, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.pins[pin], nil
}

// Writes returns every SetPin call in order
func (g *MockGPIO) Writes() []PinWrite {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]PinWrite, len(g.writes))
	copy(out, g.writes)
	return out
}

// IsClosed reports whether Close was called
func (g *MockGPIO) IsClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

// ErrMockClosed is returned by MockSerial after Close
var ErrMockClosed = errors.New("mock serial closed")

// MockSerial implements SerialTransport for testing. Queued chunks are
// handed out one per ReadAvailable call.
type MockSerial struct {
	mu       sync.Mutex
	txLog    [][]byte
	rxQueue  [][]byte
	resets   int
	closed   bool
	writeErr error
	readErr  error
	onWrite  func(p []byte)
}

// NewMockSerial creates a new mock serial transport
func NewMockSerial() *MockSerial {
	return &MockSerial{}
}

// OpenMockSerial is a SerialOpener that ignores its arguments
func OpenMockSerial(mock *MockSerial) SerialOpener {
	return func(device string, baudRate int, _ time.Duration) (SerialTransport, error) {
		return mock, nil
	}
}

func (s *MockSerial) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrMockClosed
	}
	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return 0, err
	}
	frame := make([]byte, len(p))
	copy(frame, p)
	s.txLog = append(s.txLog, frame)
	hook := s.onWrite
	s.mu.Unlock()

	if hook != nil {
		hook(frame)
	}
	return len(p), nil
}

func (s *MockSerial) ReadAvailable() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrMockClosed
	}
	if s.readErr != nil {
		return nil, s.readErr
	}
	if len(s.rxQueue) == 0 {
		return nil, nil
	}
	chunk := s.rxQueue[0]
	s.rxQueue = s.rxQueue[1:]
	return chunk, nil
}

func (s *MockSerial) ResetInput() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rxQueue = nil
	s.resets++
	return nil
}

func (s *MockSerial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// QueueRead appends a chunk for a later ReadAvailable
func (s *MockSerial) QueueRead(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.rxQueue = append(s.rxQueue, c)
}

// OnWrite registers a hook run after each successful Write
func (s *MockSerial) OnWrite(hook func(p []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onWrite = hook
}

// FailWrites makes Write return err
func (s *MockSerial) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailReads makes ReadAvailable return err
func (s *MockSerial) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Written returns every Write payload in order
func (s *MockSerial) Written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.txLog))
	copy(out, s.txLog)
	return out
}

// Resets returns how many times ResetInput was called
func (s *MockSerial) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

// IsClosed reports whether Close was called
func (s *MockSerial) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
