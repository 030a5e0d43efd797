package playback

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// WidgetID identifies a player widget for the lifetime of the widget.
type WidgetID string

// NewWidgetID returns a fresh widget identifier.
func NewWidgetID() WidgetID {
	return WidgetID(uuid.NewString())
}

// String implements fmt.Stringer.
func (id WidgetID) String() string {
	return string(id)
}

// Pauser is the part of an audio handle the coordinator needs in order to
// stop a preempted widget.
type Pauser interface {
	Pause() error
}

// Notification is broadcast to every subscriber when the token moves away
// from a playing widget.
type Notification struct {
	IsPlaying bool     // always false for preemption notices
	Stopped   WidgetID // widget whose audio was paused
	By        WidgetID // widget that took the token
}

// Handler receives broadcast notifications. Handlers run synchronously on
// the goroutine that called RequestPlay and must not call back into the
// Coordinator.
type Handler func(Notification)

// Stats counts coordinator activity.
type Stats struct {
	Requests    int64
	Preemptions int64
	Releases    int64
	Broadcasts  int64
}

type holder struct {
	id    WidgetID
	audio Pauser
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Coordinator enforces single playback. Construct one per application
// session with NewCoordinator; the zero value is not usable.
type Coordinator struct {
	// dispatch serializes RequestPlay and Release so a preempt and its
	// broadcast complete before the next request is processed.
	dispatch sync.Mutex

	mu      sync.RWMutex
	current *holder
	subs    []subscriber
	nextSub uint64
	stats   Stats

	logger *log.Logger
}

// NewCoordinator creates a coordinator with no holder and no subscribers.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		logger: log.WithPrefix("playback"),
	}
}

// RequestPlay hands the playback token to id. If another widget holds it,
// that widget's audio is paused and a Notification is broadcast before the
// token moves. Requesting while already holding the token is a no-op apart
// from refreshing the audio handle.
func (c *Coordinator) RequestPlay(id WidgetID, audio Pauser) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	c.stats.Requests++
	prev := c.current
	if prev != nil && prev.id == id {
		prev.audio = audio
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if prev != nil {
		if prev.audio != nil {
			if err := prev.audio.Pause(); err != nil {
				c.logger.Debug("pause of preempted widget failed", "widget", prev.id, "err", err)
			}
		}
		c.broadcast(Notification{IsPlaying: false, Stopped: prev.id, By: id})
	}

	c.mu.Lock()
	if prev != nil {
		c.stats.Preemptions++
	}
	c.current = &holder{id: id, audio: audio}
	c.mu.Unlock()

	c.logger.Debug("token acquired", "widget", id)
}

// Release clears the token if id holds it. Releases from widgets that were
// already preempted are ignored.
func (c *Coordinator) Release(id WidgetID) {
	c.dispatch.Lock()
	defer c.dispatch.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.id != id {
		return
	}
	c.current = nil
	c.stats.Releases++
	c.logger.Debug("token released", "widget", id)
}

// Holder returns the widget currently holding the token.
func (c *Coordinator) Holder() (WidgetID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.current == nil {
		return "", false
	}
	return c.current.id, true
}

// Holds reports whether id currently holds the token.
func (c *Coordinator) Holds(id WidgetID) bool {
	holder, ok := c.Holder()
	return ok && holder == id
}

// Subscribe registers a broadcast handler. The returned function removes
// it; calling it more than once is harmless.
func (c *Coordinator) Subscribe(h Handler) (unsubscribe func()) {
	if h == nil {
		return func() {}
	}

	c.mu.Lock()
	c.nextSub++
	subID := c.nextSub
	c.subs = append(c.subs, subscriber{id: subID, handler: h})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(subID) })
	}
}

// Subscribers returns the number of registered handlers.
func (c *Coordinator) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// Stats returns a snapshot of the coordinator counters.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Coordinator) unsubscribe(subID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, s := range c.subs {
		if s.id == subID {
			c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
			return
		}
	}
}

// broadcast delivers n to a snapshot of the subscribers, in registration
// order. Must be called with dispatch held and mu released.
func (c *Coordinator) broadcast(n Notification) {
	c.mu.Lock()
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.stats.Broadcasts++
	c.mu.Unlock()

	for _, s := range subs {
		s.handler(n)
	}
}
