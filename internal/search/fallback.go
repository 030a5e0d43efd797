package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// Backend is a named searcher.
type Backend interface {
	library.Searcher
	Name() string
}

// Fallback wraps a primary searcher with automatic fallback to a secondary
// one when the primary fails consistently. While on the secondary, the
// primary is retried once retryAfter has passed and is used again as soon
// as it succeeds.
type Fallback struct {
	primary     Backend
	fallback    Backend
	failures    int
	maxFailures int
	retryAfter  time.Duration

	usingFallback bool
	switchedAt    time.Time
	now           func() time.Time

	mu sync.Mutex
}

var _ library.Searcher = (*Fallback)(nil)

// NewFallback creates a searcher with automatic fallback capability.
func NewFallback(primary, fallback Backend, maxFailures int, retryAfter time.Duration) *Fallback {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &Fallback{
		primary:     primary,
		fallback:    fallback,
		maxFailures: maxFailures,
		retryAfter:  retryAfter,
		now:         time.Now,
	}
}

// Active returns the name of the backend the next search will use.
func (f *Fallback) Active() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usingFallback && !f.shouldRetry() {
		return f.fallback.Name()
	}
	return f.primary.Name()
}

// Search runs the query on the active backend.
func (f *Fallback) Search(ctx context.Context, req library.SearchRequest) ([]library.Sound, error) {
	f.mu.Lock()
	usePrimary := !f.usingFallback || f.shouldRetry()
	f.mu.Unlock()

	if !usePrimary {
		log.Debug("Using fallback search", "backend", f.fallback.Name())
		return f.fallback.Search(ctx, req)
	}

	sounds, err := f.primary.Search(ctx, req)
	if err == nil {
		f.mu.Lock()
		if f.usingFallback {
			log.Info("Primary search recovered", "backend", f.primary.Name())
		} else if f.failures > 0 {
			log.Info("Primary search recovered", "backend", f.primary.Name(), "failures", f.failures)
		}
		f.failures = 0
		f.usingFallback = false
		f.mu.Unlock()
		return sounds, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.mu.Lock()
	f.failures++
	switchNow := f.failures >= f.maxFailures
	if switchNow {
		if !f.usingFallback {
			log.Warn("Primary search failed, switching to fallback",
				"primary", f.primary.Name(), "fallback", f.fallback.Name(), "failures", f.failures)
		}
		f.usingFallback = true
		f.switchedAt = f.now()
	} else {
		log.Warn("Primary search failed", "attempt", f.failures, "max", f.maxFailures, "err", err)
	}
	f.mu.Unlock()

	if !switchNow {
		return nil, err
	}

	sounds, fbErr := f.fallback.Search(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("both searches failed: primary=%v, fallback=%w", err, fbErr)
	}
	return sounds, nil
}

// shouldRetry must be called with the lock held.
func (f *Fallback) shouldRetry() bool {
	return f.retryAfter > 0 && f.now().Sub(f.switchedAt) >= f.retryAfter
}
