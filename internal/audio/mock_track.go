package audio

import (
	"sync"
	"sync/atomic"
	"time"
)

// MockTrack implements Handle without producing sound. Time only moves when
// Advance is called, which keeps tests deterministic.
type MockTrack struct {
	mu       sync.Mutex
	state    State
	position time.Duration
	length   time.Duration
	ended    bool

	callbacks MockCallbacks

	// Metrics for testing
	playCount  atomic.Int64
	pauseCount atomic.Int64
	stopCount  atomic.Int64
	closeCount atomic.Int64
}

// MockCallbacks provides hooks for testing.
type MockCallbacks struct {
	OnPlay  func()
	OnPause func()
	OnStop  func()
	OnClose func()
}

var _ Handle = (*MockTrack)(nil)

// NewMockTrack creates a mock handle of the given length.
func NewMockTrack(length time.Duration) *MockTrack {
	return &MockTrack{length: length, state: StateStopped}
}

// NewMockTrackWithCallbacks creates a mock handle with test hooks.
func NewMockTrackWithCallbacks(length time.Duration, callbacks MockCallbacks) *MockTrack {
	m := NewMockTrack(length)
	m.callbacks = callbacks
	return m
}

// Play starts or resumes simulated playback.
func (m *MockTrack) Play() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.ended {
		m.ended = false
		m.position = 0
	}
	m.state = StatePlaying
	m.mu.Unlock()

	m.playCount.Add(1)
	if m.callbacks.OnPlay != nil {
		m.callbacks.OnPlay()
	}
	return nil
}

// Pause pauses simulated playback.
func (m *MockTrack) Pause() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StatePlaying {
		m.state = StatePaused
	}
	m.mu.Unlock()

	m.pauseCount.Add(1)
	if m.callbacks.OnPause != nil {
		m.callbacks.OnPause()
	}
	return nil
}

// Stop stops and rewinds.
func (m *MockTrack) Stop() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.state = StateStopped
	m.position = 0
	m.ended = false
	m.mu.Unlock()

	m.stopCount.Add(1)
	if m.callbacks.OnStop != nil {
		m.callbacks.OnStop()
	}
	return nil
}

// IsPlaying reports whether simulated playback is running.
func (m *MockTrack) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StatePlaying && !m.ended
}

// Ended reports whether the simulated track ran out.
func (m *MockTrack) Ended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StatePlaying && m.ended
}

// Position returns the simulated position.
func (m *MockTrack) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Duration returns the simulated length.
func (m *MockTrack) Duration() time.Duration {
	return m.length
}

// Close marks the handle closed.
func (m *MockTrack) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosed
	m.mu.Unlock()

	m.closeCount.Add(1)
	if m.callbacks.OnClose != nil {
		m.callbacks.OnClose()
	}
	return nil
}

// Advance moves simulated time forward while playing. Reaching the end
// marks the track as ended.
func (m *MockTrack) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePlaying || m.ended {
		return
	}
	m.position += d
	if m.position >= m.length {
		m.position = m.length
		m.ended = true
	}
}

// Finish simulates the audio subsystem reporting the end of playback.
func (m *MockTrack) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StatePlaying {
		m.position = m.length
		m.ended = true
	}
}

// GetState returns the current state.
func (m *MockTrack) GetState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// PlayCount returns how many times Play was called.
func (m *MockTrack) PlayCount() int64 { return m.playCount.Load() }

// PauseCount returns how many times Pause was called.
func (m *MockTrack) PauseCount() int64 { return m.pauseCount.Load() }

// StopCount returns how many times Stop was called.
func (m *MockTrack) StopCount() int64 { return m.stopCount.Load() }

// CloseCount returns how many times the handle was closed.
func (m *MockTrack) CloseCount() int64 { return m.closeCount.Load() }
