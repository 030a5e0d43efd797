package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// stream is the part of *oto.Player a Track drives.
type stream interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// DeviceConfig contains configuration for the audio device.
type DeviceConfig struct {
	SampleRate int           // 44100 or 48000 Hz only
	BufferSize time.Duration // Output buffer length, 0 for the driver default
	Volume     float64       // Initial track volume, 0.0 to 1.0
}

// DefaultDeviceConfig returns the default device configuration.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		SampleRate: 44100,
		BufferSize: 100 * time.Millisecond,
		Volume:     1.0,
	}
}

// Validate checks the configuration against what oto supports reliably.
func (c DeviceConfig) Validate() error {
	if c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("sample rate must be 44100 or 48000 Hz, got %d", c.SampleRate)
	}
	if c.BufferSize < 0 {
		return errors.New("buffer size must not be negative")
	}
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}
	return nil
}

// Device owns the process-wide oto context. oto allows a single context per
// process, so a Device is created once and shared by every track.
type Device struct {
	ctx    *oto.Context
	format Format
	volume float64
}

var (
	deviceOnce sync.Once
	device     *Device
	deviceErr  error
)

// OpenDevice initializes the audio device on first use and returns the
// shared instance afterwards. The configuration of the first call wins.
func OpenDevice(cfg DeviceConfig) (*Device, error) {
	deviceOnce.Do(func() {
		device, deviceErr = openDevice(cfg)
	})
	return device, deviceErr
}

func openDevice(cfg DeviceConfig) (*Device, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	format := Format{SampleRate: cfg.SampleRate, Channels: 2}
	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, errors.New("timed out waiting for audio device")
	}

	log.Debug("audio device ready", "sample_rate", format.SampleRate, "buffer", cfg.BufferSize)

	return &Device{ctx: ctx, format: format, volume: cfg.Volume}, nil
}

// Format returns the PCM format every track on this device must use.
func (d *Device) Format() Format {
	return d.format
}

// NewTrack prepares pcm for playback. pcm must already be in the device
// format; see Decode.
func (d *Device) NewTrack(pcm []byte) (*Track, error) {
	return newTrack(pcm, d.format, d.volume, func(r io.Reader) stream {
		return d.ctx.NewPlayer(r)
	}, time.Now)
}

// Open is NewTrack returning the Handle interface.
func (d *Device) Open(pcm []byte) (Handle, error) {
	t, err := d.NewTrack(pcm)
	if err != nil {
		return nil, err
	}
	return t, nil
}
