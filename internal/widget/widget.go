package widget

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/soundshelf/internal/audio"
	"github.com/dgnsrekt/soundshelf/internal/playback"
)

var (
	// ErrNoAudio is returned when playing a widget whose sound has no
	// playable audio.
	ErrNoAudio = errors.New("sound has no audio")

	// ErrUnmounted is returned when a destroyed widget is used.
	ErrUnmounted = errors.New("widget is unmounted")

	// ErrAttached is returned when audio is attached to a widget that
	// already has some.
	ErrAttached = errors.New("widget already has audio")
)

// Widget is one playable sound on screen. It owns its audio handle and keeps
// a local playing flag that is kept consistent with every other widget
// through the shared coordinator.
//
// Lock order is coordinator dispatch before Widget.mu. The widget never
// calls into the coordinator while holding mu.
type Widget struct {
	id    playback.WidgetID
	coord *playback.Coordinator

	mu          sync.Mutex
	audio       audio.Handle
	sm          *stateMachine
	unsubscribe func()

	logger *log.Logger
}

// New mounts a widget for handle and subscribes it to coordinator
// broadcasts. A nil handle yields a widget whose play control is disabled
// until audio is attached.
func New(coord *playback.Coordinator, handle audio.Handle) *Widget {
	w := &Widget{
		id:    playback.NewWidgetID(),
		coord: coord,
		audio: handle,
		sm:    newStateMachine(),
	}
	w.logger = log.WithPrefix("widget").With("id", w.id)
	w.sm.onEnter[StatePlaying] = func() { w.logger.Debug("playing") }
	w.sm.onExit[StatePlaying] = func() { w.logger.Debug("stopped playing") }
	w.sm.onEnter[StateUnmounted] = func() { w.logger.Debug("unmounted") }

	w.unsubscribe = coord.Subscribe(w.onNotification)
	return w
}

// ID returns the widget's stable identifier.
func (w *Widget) ID() playback.WidgetID {
	return w.id
}

// HasAudio reports whether the widget can play at all.
func (w *Widget) HasAudio() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.audio != nil
}

// Attach hands h to a widget mounted without audio. The widget owns h from
// then on. On error the caller still owns h.
func (w *Widget) Attach(h audio.Handle) error {
	if h == nil {
		return ErrNoAudio
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.sm.current == StateUnmounted:
		return ErrUnmounted
	case w.audio != nil:
		return ErrAttached
	}
	w.audio = h
	return nil
}

// Play acquires the playback token, preempting whichever widget holds it,
// and starts this widget's audio.
func (w *Widget) Play() error {
	w.mu.Lock()
	h, current := w.audio, w.sm.current
	w.mu.Unlock()
	if h == nil {
		return ErrNoAudio
	}
	if current == StateUnmounted {
		return ErrUnmounted
	}

	w.coord.RequestPlay(w.id, h)

	w.mu.Lock()
	if w.sm.current == StateUnmounted {
		w.mu.Unlock()
		w.coord.Release(w.id)
		return ErrUnmounted
	}
	if !w.coord.Holds(w.id) {
		// Another widget was granted the token after ours.
		w.mu.Unlock()
		return nil
	}
	if err := h.Play(); err != nil {
		w.mu.Unlock()
		w.coord.Release(w.id)
		return fmt.Errorf("failed to start audio: %w", err)
	}
	w.sm.transition(StatePlaying)
	w.mu.Unlock()
	return nil
}

// Pause stops this widget's audio, keeping its position, and gives up the
// token.
func (w *Widget) Pause() error {
	w.mu.Lock()
	if w.sm.current == StateUnmounted {
		w.mu.Unlock()
		return ErrUnmounted
	}
	var err error
	if w.audio != nil {
		err = w.audio.Pause()
	}
	w.sm.transition(StatePaused)
	w.mu.Unlock()

	w.coord.Release(w.id)
	if err != nil {
		return fmt.Errorf("failed to pause audio: %w", err)
	}
	return nil
}

// Toggle plays a paused widget and pauses a playing one.
func (w *Widget) Toggle() error {
	if w.IsPlaying() {
		return w.Pause()
	}
	return w.Play()
}

// Sync re-derives the playing flag from the audio handle. When the audio
// ended, or was stopped without a notification reaching the widget, the
// flag is cleared, the track rewound and the token released. It reports
// whether the flag changed.
func (w *Widget) Sync() bool {
	w.mu.Lock()
	if w.sm.current != StatePlaying || w.audio.IsPlaying() {
		w.mu.Unlock()
		return false
	}
	if w.audio.Ended() {
		if err := w.audio.Stop(); err != nil {
			w.logger.Debug("rewind failed", "err", err)
		}
	}
	w.sm.transition(StatePaused)
	w.mu.Unlock()

	w.coord.Release(w.id)
	return true
}

// Unmount destroys the widget: it stops listening for broadcasts, gives up
// the token if held and closes the audio handle. Calling it again is a
// no-op.
func (w *Widget) Unmount() {
	w.mu.Lock()
	if !w.sm.transition(StateUnmounted) {
		w.mu.Unlock()
		return
	}
	h := w.audio
	w.mu.Unlock()

	w.unsubscribe()
	w.coord.Release(w.id)
	if h != nil {
		if err := h.Close(); err != nil {
			w.logger.Debug("close failed", "err", err)
		}
	}
}

// IsPlaying returns the local playing flag.
func (w *Widget) IsPlaying() bool {
	return w.State() == StatePlaying
}

// State returns the widget's lifecycle state.
func (w *Widget) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sm.current
}

// Progress returns the playback position and the track length.
func (w *Widget) Progress() (pos, length time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.audio == nil || w.sm.current == StateUnmounted {
		return 0, 0
	}
	return w.audio.Position(), w.audio.Duration()
}

// onNotification runs on the coordinator's dispatch path when the token
// moves. A widget that is still showing as playing but was not the one
// taking the token clears its flag.
func (w *Widget) onNotification(n playback.Notification) {
	if n.IsPlaying || n.By == w.id {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sm.current != StatePlaying {
		return
	}
	// The coordinator already paused the holder; pausing again covers a
	// Play that started the audio after that pause.
	if err := w.audio.Pause(); err != nil {
		w.logger.Debug("pause on notification failed", "err", err)
	}
	w.sm.transition(StatePaused)
}
