package fetch

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/soundshelf/internal/queue"
)

// Result is delivered for every request a Prefetcher completes.
type Result struct {
	Request queue.Request
	Data    []byte
	Err     error
}

// Prefetcher drains a fetch queue with a fixed number of workers.
type Prefetcher struct {
	fetcher *Fetcher
	queue   *queue.FetchQueue
	workers int

	// OnResult is called from worker goroutines.
	OnResult func(Result)
}

// NewPrefetcher creates a prefetcher with the given number of workers.
func NewPrefetcher(f *Fetcher, q *queue.FetchQueue, workers int) *Prefetcher {
	if workers <= 0 {
		workers = 1
	}
	return &Prefetcher{fetcher: f, queue: q, workers: workers}
}

// Run blocks until ctx is done or the queue is closed. Fetch failures are
// reported through OnResult and do not stop the workers.
func (p *Prefetcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		worker := i
		g.Go(func() error {
			return p.work(ctx, worker)
		})
	}

	err := g.Wait()
	if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Prefetcher) work(ctx context.Context, worker int) error {
	for {
		req, err := p.queue.Dequeue(ctx)
		if err != nil {
			return err
		}

		data, err := p.fetcher.Fetch(ctx, req.URL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Debug("Prefetch failed", "worker", worker, "url", req.URL,
				"priority", req.Priority, "err", err)
		}
		if p.OnResult != nil {
			p.OnResult(Result{Request: req, Data: data, Err: err})
		}
	}
}
