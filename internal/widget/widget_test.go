package widget

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/dgnsrekt/soundshelf/internal/audio"
	"github.com/dgnsrekt/soundshelf/internal/playback"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mount(t *testing.T, coord *playback.Coordinator) (*Widget, *audio.MockTrack) {
	t.Helper()
	track := audio.NewMockTrack(2 * time.Second)
	w := New(coord, track)
	t.Cleanup(w.Unmount)
	return w, track
}

func countPlaying(widgets []*Widget) int {
	n := 0
	for _, w := range widgets {
		if w.IsPlaying() {
			n++
		}
	}
	return n
}

func TestWidget_TwoWidgetScenario(t *testing.T) {
	coord := playback.NewCoordinator()
	a, trackA := mount(t, coord)
	b, trackB := mount(t, coord)

	if err := a.Play(); err != nil {
		t.Fatalf("A.Play failed: %v", err)
	}
	if !a.IsPlaying() || !coord.Holds(a.ID()) {
		t.Fatal("A should be playing and hold the token")
	}

	if err := b.Play(); err != nil {
		t.Fatalf("B.Play failed: %v", err)
	}
	if a.IsPlaying() {
		t.Error("A should have been preempted")
	}
	if trackA.IsPlaying() {
		t.Error("A's audio should be paused")
	}
	if !b.IsPlaying() || !trackB.IsPlaying() || !coord.Holds(b.ID()) {
		t.Error("B should be playing and hold the token")
	}

	trackB.Finish()
	if !b.Sync() {
		t.Error("Sync should report the ended track")
	}
	if b.IsPlaying() {
		t.Error("B should be paused after its audio ended")
	}
	if _, held := coord.Holder(); held {
		t.Error("token should be free after B ended")
	}
	if trackB.Position() != 0 {
		t.Error("ended track should be rewound")
	}
}

func TestWidget_SingleWidgetPause(t *testing.T) {
	coord := playback.NewCoordinator()
	a, trackA := mount(t, coord)

	_ = a.Play()
	if err := a.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	if a.IsPlaying() || trackA.IsPlaying() {
		t.Error("A should be paused")
	}
	if _, held := coord.Holder(); held {
		t.Error("token should be free")
	}
	if got := coord.Stats().Broadcasts; got != 0 {
		t.Errorf("broadcasts = %d, want 0", got)
	}
}

func TestWidget_PlayWhilePlayingIsSilent(t *testing.T) {
	coord := playback.NewCoordinator()
	a, trackA := mount(t, coord)

	_ = a.Play()
	trackA.Advance(500 * time.Millisecond)
	_ = a.Play()

	if !a.IsPlaying() {
		t.Error("A should still be playing")
	}
	if got := coord.Stats().Broadcasts; got != 0 {
		t.Errorf("broadcasts = %d, want 0", got)
	}
	if trackA.Position() != 500*time.Millisecond {
		t.Error("replaying should not rewind")
	}
}

func TestWidget_StalePauseKeepsOtherHolder(t *testing.T) {
	coord := playback.NewCoordinator()
	a, _ := mount(t, coord)
	b, _ := mount(t, coord)

	_ = a.Play()
	_ = b.Play()
	_ = a.Pause()

	if !b.IsPlaying() || !coord.Holds(b.ID()) {
		t.Error("a stale pause from A must not affect B")
	}
}

func TestWidget_Toggle(t *testing.T) {
	coord := playback.NewCoordinator()
	a, _ := mount(t, coord)

	_ = a.Toggle()
	if !a.IsPlaying() {
		t.Fatal("first toggle should play")
	}
	_ = a.Toggle()
	if a.IsPlaying() {
		t.Fatal("second toggle should pause")
	}
}

func TestWidget_NoAudio(t *testing.T) {
	coord := playback.NewCoordinator()
	w := New(coord, nil)
	defer w.Unmount()

	if w.HasAudio() {
		t.Error("widget without a handle should report no audio")
	}
	if err := w.Play(); !errors.Is(err, ErrNoAudio) {
		t.Errorf("Play = %v, want ErrNoAudio", err)
	}
	if _, held := coord.Holder(); held {
		t.Error("a widget without audio must not take the token")
	}
}

func TestWidget_AttachLater(t *testing.T) {
	coord := playback.NewCoordinator()
	a, _ := mount(t, coord)
	b := New(coord, nil)
	defer b.Unmount()

	// b is subscribed before it has audio.
	if coord.Subscribers() != 2 {
		t.Fatalf("subscribers = %d, want 2", coord.Subscribers())
	}

	track := audio.NewMockTrack(time.Second)
	if err := b.Attach(track); err != nil {
		t.Fatalf("Attach = %v", err)
	}
	if !b.HasAudio() {
		t.Fatal("widget should have audio after Attach")
	}
	if err := b.Attach(audio.NewMockTrack(time.Second)); !errors.Is(err, ErrAttached) {
		t.Errorf("second Attach = %v, want ErrAttached", err)
	}

	_ = a.Play()
	if err := b.Play(); err != nil {
		t.Fatalf("Play = %v", err)
	}
	if a.IsPlaying() || !b.IsPlaying() {
		t.Error("the attached widget should have preempted A")
	}

	b.Unmount()
	if track.CloseCount() != 1 {
		t.Errorf("close count = %d, want 1", track.CloseCount())
	}
	if err := b.Attach(audio.NewMockTrack(time.Second)); !errors.Is(err, ErrUnmounted) {
		t.Errorf("Attach after unmount = %v, want ErrUnmounted", err)
	}
}

func TestWidget_AudioErrorReleasesToken(t *testing.T) {
	coord := playback.NewCoordinator()
	track := audio.NewMockTrack(time.Second)
	_ = track.Close()
	w := New(coord, track)
	defer w.Unmount()

	if err := w.Play(); !errors.Is(err, audio.ErrClosed) {
		t.Errorf("Play = %v, want ErrClosed", err)
	}
	if w.IsPlaying() {
		t.Error("widget should not be playing")
	}
	if _, held := coord.Holder(); held {
		t.Error("token should be released after a failed start")
	}
}

func TestWidget_Unmount(t *testing.T) {
	coord := playback.NewCoordinator()
	a, trackA := mount(t, coord)
	b, _ := mount(t, coord)

	_ = a.Play()
	a.Unmount()
	a.Unmount()

	if a.State() != StateUnmounted {
		t.Errorf("state = %v, want unmounted", a.State())
	}
	if trackA.CloseCount() != 1 {
		t.Errorf("close count = %d, want 1", trackA.CloseCount())
	}
	if _, held := coord.Holder(); held {
		t.Error("unmount should release the token")
	}
	if coord.Subscribers() != 1 {
		t.Errorf("subscribers = %d, want 1", coord.Subscribers())
	}

	if err := a.Play(); !errors.Is(err, ErrUnmounted) {
		t.Errorf("Play after unmount = %v, want ErrUnmounted", err)
	}
	if err := a.Pause(); !errors.Is(err, ErrUnmounted) {
		t.Errorf("Pause after unmount = %v, want ErrUnmounted", err)
	}

	_ = b.Play()
	if got := coord.Stats().Broadcasts; got != 0 {
		t.Errorf("broadcasts = %d, want 0 after the holder unmounted", got)
	}
}

func TestWidget_BroadcastAfterUnmountIsIgnored(t *testing.T) {
	coord := playback.NewCoordinator()
	a, _ := mount(t, coord)
	b, _ := mount(t, coord)
	c, _ := mount(t, coord)

	_ = a.Play()
	c.Unmount()
	_ = b.Play()

	if c.State() != StateUnmounted {
		t.Error("an unmounted widget must stay unmounted")
	}
	if a.IsPlaying() || !b.IsPlaying() {
		t.Error("B should have preempted A")
	}
}

func TestWidget_SyncSelfHeals(t *testing.T) {
	coord := playback.NewCoordinator()
	a, trackA := mount(t, coord)

	_ = a.Play()
	// Audio paused behind the widget's back.
	_ = trackA.Pause()

	if !a.Sync() {
		t.Fatal("Sync should clear a flag the audio no longer backs")
	}
	if a.IsPlaying() {
		t.Error("flag should be cleared")
	}
	if a.Sync() {
		t.Error("second Sync should be a no-op")
	}
}

func TestWidget_MutualExclusionRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	coord := playback.NewCoordinator()

	var (
		widgets []*Widget
		tracks  []*audio.MockTrack
	)
	for range 5 {
		w, track := mount(t, coord)
		widgets = append(widgets, w)
		tracks = append(tracks, track)
	}

	for step := range 2000 {
		i := rng.Intn(len(widgets))
		w, track := widgets[i], tracks[i]

		switch rng.Intn(5) {
		case 0, 1:
			_ = w.Play()
		case 2:
			_ = w.Pause()
		case 3:
			track.Advance(time.Duration(rng.Intn(3000)) * time.Millisecond)
			w.Sync()
		case 4:
			_ = w.Toggle()
		}

		if n := countPlaying(widgets); n > 1 {
			t.Fatalf("step %d: %d widgets playing", step, n)
		}
		audible := 0
		for _, tr := range tracks {
			if tr.IsPlaying() {
				audible++
			}
		}
		if audible > 1 {
			t.Fatalf("step %d: %d tracks audible", step, audible)
		}
		for _, w := range widgets {
			if w.IsPlaying() && !coord.Holds(w.ID()) {
				t.Fatalf("step %d: playing widget %s does not hold the token", step, w.ID())
			}
		}
	}
}

func TestWidget_ConcurrentPlay(t *testing.T) {
	coord := playback.NewCoordinator()

	var widgets []*Widget
	for range 16 {
		w, _ := mount(t, coord)
		widgets = append(widgets, w)
	}

	var wg sync.WaitGroup
	for _, w := range widgets {
		wg.Add(1)
		go func(w *Widget) {
			defer wg.Done()
			for range 20 {
				_ = w.Toggle()
			}
		}(w)
	}
	wg.Wait()

	if n := countPlaying(widgets); n > 1 {
		t.Errorf("%d widgets playing after concurrent toggles", n)
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StatePaused:    "paused",
		StatePlaying:   "playing",
		StateUnmounted: "unmounted",
		State(9):       "unknown",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
