package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"
)

// Track plays one decoded sound. It keeps the PCM buffer alive for as long
// as an oto player may read from it.
type Track struct {
	mu sync.Mutex

	data   []byte
	format Format
	length time.Duration
	volume float64

	open   func(io.Reader) stream
	now    func() time.Time
	player stream

	state      State
	startTime  time.Time
	pausedAt   time.Duration
	totalPause time.Duration
	pauseStart time.Time
}

var _ Handle = (*Track)(nil)

func newTrack(pcm []byte, format Format, volume float64, open func(io.Reader) stream, now func() time.Time) (*Track, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyAudio
	}
	if format.BytesPerFrame() == 0 || len(pcm)%format.BytesPerFrame() != 0 {
		return nil, fmt.Errorf("pcm length %d is not aligned to %d-byte frames", len(pcm), format.BytesPerFrame())
	}

	data := make([]byte, len(pcm))
	copy(data, pcm)

	return &Track{
		data:   data,
		format: format,
		length: format.Duration(len(data)),
		volume: volume,
		open:   open,
		now:    now,
		state:  StateStopped,
	}, nil
}

// Play starts or resumes playback.
func (t *Track) Play() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateClosed:
		return ErrClosed
	case StatePlaying:
		if !t.endedLocked() {
			return nil
		}
		t.stopLocked()
	case StatePaused:
		t.totalPause += t.now().Sub(t.pauseStart)
		t.player.Play()
		t.state = StatePlaying
		return nil
	}

	player := t.open(bytes.NewReader(t.data))
	if player == nil {
		return fmt.Errorf("failed to create audio player")
	}
	player.SetVolume(t.volume)

	t.player = player
	t.startTime = t.now()
	t.pausedAt = 0
	t.totalPause = 0

	player.Play()
	t.state = StatePlaying
	return nil
}

// Pause pauses playback and remembers the position.
func (t *Track) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case StateClosed:
		return ErrClosed
	case StatePlaying:
	default:
		return nil
	}

	t.pausedAt = t.positionLocked()
	t.pauseStart = t.now()
	t.player.Pause()
	t.state = StatePaused
	return nil
}

// Stop stops playback and rewinds.
func (t *Track) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return ErrClosed
	}
	t.stopLocked()
	return nil
}

func (t *Track) stopLocked() {
	if t.player != nil {
		t.player.Pause()
		_ = t.player.Close()
		t.player = nil
	}
	t.pausedAt = 0
	t.totalPause = 0
	t.state = StateStopped
}

// IsPlaying reports whether the track is playing and has not run out.
func (t *Track) IsPlaying() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StatePlaying && !t.endedLocked()
}

// Ended reports whether playback ran to the end of the samples.
func (t *Track) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endedLocked()
}

func (t *Track) endedLocked() bool {
	if t.state != StatePlaying {
		return false
	}
	if t.elapsedLocked() >= t.length {
		return true
	}
	return t.player != nil && !t.player.IsPlaying()
}

// Position returns the playback position.
func (t *Track) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.positionLocked()
}

func (t *Track) positionLocked() time.Duration {
	switch t.state {
	case StatePlaying:
		if elapsed := t.elapsedLocked(); elapsed < t.length {
			return elapsed
		}
		return t.length
	case StatePaused:
		return t.pausedAt
	default:
		return 0
	}
}

func (t *Track) elapsedLocked() time.Duration {
	return t.now().Sub(t.startTime) - t.totalPause
}

// Duration returns the length of the track.
func (t *Track) Duration() time.Duration {
	return t.length
}

// State returns the current track state.
func (t *Track) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetVolume sets the playback volume (0.0 to 1.0).
func (t *Track) SetVolume(volume float64) error {
	if volume < 0.0 || volume > 1.0 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", volume)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = volume
	if t.player != nil {
		t.player.SetVolume(volume)
	}
	return nil
}

// Close stops playback and lets the PCM buffer be collected.
func (t *Track) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateClosed {
		return nil
	}
	t.stopLocked()
	t.data = nil
	t.state = StateClosed
	return nil
}
