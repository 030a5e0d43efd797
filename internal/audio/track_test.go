package audio

import (
	"errors"
	"io"
	"testing"
	"time"
)

type fakeStream struct {
	playing bool
	volume  float64
	closed  bool
	plays   int
}

func (s *fakeStream) Play() { s.playing = true; s.plays++ }
func (s *fakeStream) Pause() { s.playing = false }
func (s *fakeStream) IsPlaying() bool { return s.playing }
func (s *fakeStream) SetVolume(v float64) { s.volume = v }
func (s *fakeStream) Close() error { s.closed = true; return nil }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testFormat = Format{SampleRate: 44100, Channels: 2}

// newTestTrack returns a one second track driven by a fake clock.
func newTestTrack(t *testing.T) (*Track, *fakeClock, *[]*fakeStream) {
	t.Helper()

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	var streams []*fakeStream
	track, err := newTrack(make([]byte, 44100*4), testFormat, 0.5, func(io.Reader) stream {
		s := &fakeStream{}
		streams = append(streams, s)
		return s
	}, clock.now)
	if err != nil {
		t.Fatalf("newTrack failed: %v", err)
	}
	return track, clock, &streams
}

func TestTrack_PlayPauseResume(t *testing.T) {
	track, clock, streams := newTestTrack(t)

	if track.Duration() != time.Second {
		t.Fatalf("duration = %v, want 1s", track.Duration())
	}

	if err := track.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !track.IsPlaying() {
		t.Fatal("track should be playing")
	}
	if got := (*streams)[0].volume; got != 0.5 {
		t.Errorf("volume = %v, want 0.5", got)
	}

	clock.advance(300 * time.Millisecond)
	if err := track.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if track.State() != StatePaused {
		t.Errorf("state = %v, want paused", track.State())
	}

	clock.advance(time.Hour)
	if pos := track.Position(); pos != 300*time.Millisecond {
		t.Errorf("position while paused = %v, want 300ms", pos)
	}

	if err := track.Play(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	clock.advance(200 * time.Millisecond)
	if pos := track.Position(); pos != 500*time.Millisecond {
		t.Errorf("position after resume = %v, want 500ms", pos)
	}
	if len(*streams) != 1 {
		t.Errorf("resume should reuse the stream, got %d streams", len(*streams))
	}
}

func TestTrack_EndedAndRestart(t *testing.T) {
	track, clock, streams := newTestTrack(t)

	_ = track.Play()
	clock.advance(1500 * time.Millisecond)

	if !track.Ended() {
		t.Fatal("track should report ended")
	}
	if track.IsPlaying() {
		t.Error("ended track should not report playing")
	}
	if track.Position() != time.Second {
		t.Errorf("position = %v, want clamped to 1s", track.Position())
	}

	if err := track.Play(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if len(*streams) != 2 {
		t.Fatalf("restart should open a fresh stream, got %d", len(*streams))
	}
	if !(*streams)[0].closed {
		t.Error("old stream should be closed on restart")
	}
	if track.Position() != 0 {
		t.Errorf("restart position = %v, want 0", track.Position())
	}
}

func TestTrack_EndedWhenStreamDrains(t *testing.T) {
	track, _, streams := newTestTrack(t)

	_ = track.Play()
	(*streams)[0].playing = false

	if !track.Ended() {
		t.Error("a drained stream should count as ended")
	}
}

func TestTrack_PauseWhenStoppedIsNoop(t *testing.T) {
	track, _, _ := newTestTrack(t)

	if err := track.Pause(); err != nil {
		t.Errorf("Pause on stopped track = %v, want nil", err)
	}
	if track.State() != StateStopped {
		t.Errorf("state = %v, want stopped", track.State())
	}
}

func TestTrack_StopAndClose(t *testing.T) {
	track, clock, streams := newTestTrack(t)

	_ = track.Play()
	clock.advance(100 * time.Millisecond)
	if err := track.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if track.Position() != 0 || !(*streams)[0].closed {
		t.Error("Stop should rewind and close the stream")
	}

	if err := track.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := track.Close(); err != nil {
		t.Errorf("second Close = %v, want nil", err)
	}
	if err := track.Play(); !errors.Is(err, ErrClosed) {
		t.Errorf("Play after Close = %v, want ErrClosed", err)
	}
	if err := track.Pause(); !errors.Is(err, ErrClosed) {
		t.Errorf("Pause after Close = %v, want ErrClosed", err)
	}
}

func TestTrack_SetVolume(t *testing.T) {
	track, _, streams := newTestTrack(t)
	_ = track.Play()

	if err := track.SetVolume(0.8); err != nil {
		t.Fatalf("SetVolume failed: %v", err)
	}
	if (*streams)[0].volume != 0.8 {
		t.Errorf("stream volume = %v, want 0.8", (*streams)[0].volume)
	}
	if err := track.SetVolume(1.5); err == nil {
		t.Error("SetVolume(1.5) should fail")
	}
}

func TestNewTrack_Validation(t *testing.T) {
	open := func(io.Reader) stream { return &fakeStream{} }

	if _, err := newTrack(nil, testFormat, 1, open, time.Now); !errors.Is(err, ErrEmptyAudio) {
		t.Errorf("empty pcm error = %v, want ErrEmptyAudio", err)
	}
	if _, err := newTrack(make([]byte, 3), testFormat, 1, open, time.Now); err == nil {
		t.Error("misaligned pcm should fail")
	}
}

func TestDeviceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     DeviceConfig
		wantErr bool
	}{
		{"default", DefaultDeviceConfig(), false},
		{"48k", DeviceConfig{SampleRate: 48000, Volume: 1}, false},
		{"22k", DeviceConfig{SampleRate: 22050, Volume: 1}, true},
		{"negative buffer", DeviceConfig{SampleRate: 44100, BufferSize: -1, Volume: 1}, true},
		{"too loud", DeviceConfig{SampleRate: 44100, Volume: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for state, want := range map[State]string{
		StateStopped: "stopped",
		StatePlaying: "playing",
		StatePaused:  "paused",
		StateClosed:  "closed",
		State(42):    "unknown",
	} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
