package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockDriver plays back pre-recorded combined frames for testing.
type MockDriver struct {
	mu        sync.Mutex
	frames    []*gocv.Mat
	index     int
	loop      bool
	connected bool
	failAfter int // fail reads after this many successes; <0 disables
	reads     int
	lastCfg   Config
}

// NewMockDriver creates a mock driver that replays frames, looping
// when loop is set.
func NewMockDriver(frames []*gocv.Mat, loop bool) *MockDriver {
	return &MockDriver{
		frames:    frames,
		loop:      loop,
		failAfter: -1,
	}
}

// FailAfter makes ReadRawFrame return ErrCameraRead once n reads have
// succeeded, simulating a device that goes away mid-run.
func (m *MockDriver) FailAfter(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
}

func (m *MockDriver) Connect(cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	m.index = 0
	m.reads = 0
	m.lastCfg = cfg
	return nil
}

func (m *MockDriver) ReadRawFrame() (gocv.Mat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return gocv.Mat{}, fmt.Errorf("%w: not connected", ErrCameraRead)
	}
	if m.failAfter >= 0 && m.reads >= m.failAfter {
		return gocv.Mat{}, fmt.Errorf("%w: simulated device loss", ErrCameraRead)
	}
	if len(m.frames) == 0 {
		return gocv.Mat{}, fmt.Errorf("%w: no frames available", ErrCameraRead)
	}

	if m.index >= len(m.frames) {
		if !m.loop {
			return gocv.Mat{}, fmt.Errorf("%w: no more frames", ErrCameraRead)
		}
		m.index = 0
	}

	// Clone so the caller can close its copy freely.
	frame := m.frames[m.index].Clone()
	m.index++
	m.reads++
	return frame, nil
}

func (m *MockDriver) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Connected reports whether Connect has been called without a matching
// Disconnect.
func (m *MockDriver) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Reads returns how many frames have been handed out.
func (m *MockDriver) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// LastConfig returns the config passed to the most recent Connect.
func (m *MockDriver) LastConfig() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCfg
}
