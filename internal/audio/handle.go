package audio

import (
	"errors"
	"time"
)

var (
	// ErrClosed is returned when a closed handle is used.
	ErrClosed = errors.New("audio handle is closed")

	// ErrEmptyAudio is returned when a track is created without samples.
	ErrEmptyAudio = errors.New("audio data is empty")
)

// Handle is the audio resource owned by a single player widget.
type Handle interface {
	// Play starts playback, or resumes it when paused. Playing a track that
	// has ended starts it again from the beginning.
	Play() error
	// Pause suspends playback and keeps the position. Pausing a handle that
	// is not playing is a no-op.
	Pause() error
	// Stop halts playback and rewinds to the start.
	Stop() error
	// IsPlaying reports whether the handle is audibly playing.
	IsPlaying() bool
	// Ended reports whether playback reached the end of the samples.
	Ended() bool
	// Position returns the current playback position.
	Position() time.Duration
	// Duration returns the total length of the samples.
	Duration() time.Duration
	// Close releases the handle. Further calls return ErrClosed.
	Close() error
}

// State represents the current state of a handle.
type State int32

const (
	StateStopped State = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Format describes interleaved signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerFrame returns the size of one sample across all channels.
func (f Format) BytesPerFrame() int {
	return f.Channels * 2
}

// Duration returns how long n bytes of PCM in this format play for.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate == 0 || f.BytesPerFrame() == 0 {
		return 0
	}
	frames := n / f.BytesPerFrame()
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}
