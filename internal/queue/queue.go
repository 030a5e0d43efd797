package queue

import (
	"container/heap"
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when the queue is at capacity
	ErrQueueFull = errors.New("queue is full")

	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by Peek when nothing is waiting.
	ErrQueueEmpty = errors.New("queue is empty")

	// ErrEmptyURL is returned when a request has no URL.
	ErrEmptyURL = errors.New("request has no url")
)

// Priority of a fetch request.
type Priority int

const (
	// PriorityNormal is used for lookahead of visible cards.
	PriorityNormal Priority = iota
	// PriorityHigh is used when the user pressed play.
	PriorityHigh
)

func (p Priority) String() string {
	if p == PriorityHigh {
		return "high"
	}
	return "normal"
}

// Request asks for the audio behind URL to be fetched.
type Request struct {
	URL      string
	SoundID  string
	Priority Priority
	Enqueued time.Time
}

// Stats tracks queue performance metrics
type Stats struct {
	TotalEnqueued     int64
	TotalDequeued     int64
	TotalDropped      int64
	TotalDuplicates   int64
	HighPriorityCount int64
	Upgraded          int64
	CurrentSize       int
	PeakSize          int
	LastEnqueue       time.Time
	LastDequeue       time.Time
	AverageWaitTime   time.Duration
}

// FetchQueue holds pending fetches. High priority requests are served from
// a heap before the normal FIFO. It is safe for concurrent use.
type FetchQueue struct {
	priorityQueue *priorityQueue
	regularQueue  []Request

	// pending maps a URL to its current priority.
	pending map[string]Priority
	seq     int64

	maxSize int

	mu       sync.Mutex
	notEmpty *sync.Cond

	closed    bool
	stats     Stats
	totalWait time.Duration
	now       func() time.Time
}

// New creates a queue holding at most maxSize requests.
func New(maxSize int) *FetchQueue {
	if maxSize <= 0 {
		maxSize = 1
	}
	q := &FetchQueue{
		priorityQueue: &priorityQueue{},
		regularQueue:  make([]Request, 0, maxSize),
		pending:       make(map[string]Priority),
		maxSize:       maxSize,
		now:           time.Now,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	heap.Init(q.priorityQueue)
	return q
}

// Enqueue adds a request. A URL that is already waiting is not added twice,
// but a high priority request moves a waiting normal one to the front.
// When the queue is full a high priority request displaces the newest
// normal request; a normal request gets ErrQueueFull.
func (q *FetchQueue) Enqueue(req Request) error {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return ErrEmptyURL
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if req.Enqueued.IsZero() {
		req.Enqueued = q.now()
	}

	if current, ok := q.pending[req.URL]; ok {
		if req.Priority == PriorityHigh && current != PriorityHigh {
			q.removeRegular(req.URL)
			q.pushHigh(req)
			q.stats.Upgraded++
			q.notEmpty.Signal()
			return nil
		}
		q.stats.TotalDuplicates++
		return nil
	}

	if q.size() >= q.maxSize {
		if req.Priority != PriorityHigh || len(q.regularQueue) == 0 {
			q.stats.TotalDropped++
			return ErrQueueFull
		}
		dropped := q.regularQueue[len(q.regularQueue)-1]
		q.regularQueue = q.regularQueue[:len(q.regularQueue)-1]
		delete(q.pending, dropped.URL)
		q.stats.TotalDropped++
	}

	if req.Priority == PriorityHigh {
		q.pushHigh(req)
	} else {
		q.regularQueue = append(q.regularQueue, req)
		q.pending[req.URL] = req.Priority
	}

	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = q.now()
	if size := q.size(); size > q.stats.PeakSize {
		q.stats.PeakSize = size
	}
	q.notEmpty.Signal()
	return nil
}

// Dequeue blocks until a request is available, the queue is closed or ctx
// is done.
func (q *FetchQueue) Dequeue(ctx context.Context) (Request, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.notEmpty.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size() == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return Request{}, err
		}
		q.notEmpty.Wait()
	}
	if q.closed {
		return Request{}, ErrQueueClosed
	}
	return q.pop(), nil
}

// TryDequeue returns the next request without blocking.
func (q *FetchQueue) TryDequeue() (Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.size() == 0 {
		return Request{}, false
	}
	return q.pop(), true
}

// Peek returns the next request without removing it from the queue.
func (q *FetchQueue) Peek() (Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Request{}, ErrQueueClosed
	}
	if q.priorityQueue.Len() > 0 {
		return (*q.priorityQueue)[0].req, nil
	}
	if len(q.regularQueue) > 0 {
		return q.regularQueue[0], nil
	}
	return Request{}, ErrQueueEmpty
}

// Pending reports whether url is waiting to be fetched.
func (q *FetchQueue) Pending(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[strings.TrimSpace(url)]
	return ok
}

// Size returns the number of waiting requests.
func (q *FetchQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}

// DropNormal removes every normal priority request. The TUI calls it when
// the listing changes and the old lookahead no longer matters.
func (q *FetchQueue) DropNormal() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.regularQueue)
	for _, r := range q.regularQueue {
		delete(q.pending, r.URL)
	}
	q.regularQueue = q.regularQueue[:0]
	q.stats.TotalDropped += int64(n)
	return n
}

// Clear removes all requests from the queue.
func (q *FetchQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.priorityQueue = &priorityQueue{}
	heap.Init(q.priorityQueue)
	q.regularQueue = q.regularQueue[:0]
	q.pending = make(map[string]Priority)
}

// GetStats returns current queue statistics.
func (q *FetchQueue) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = q.size()
	if q.stats.TotalDequeued > 0 {
		stats.AverageWaitTime = q.totalWait / time.Duration(q.stats.TotalDequeued)
	}
	return stats
}

// Close wakes every waiter. Later calls return ErrQueueClosed.
func (q *FetchQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	q.notEmpty.Broadcast()
	return nil
}

func (q *FetchQueue) size() int {
	return q.priorityQueue.Len() + len(q.regularQueue)
}

// pushHigh must be called with the lock held.
func (q *FetchQueue) pushHigh(req Request) {
	req.Priority = PriorityHigh
	q.seq++
	heap.Push(q.priorityQueue, &queueItem{req: req, seq: q.seq})
	q.pending[req.URL] = PriorityHigh
	q.stats.HighPriorityCount++
}

// removeRegular must be called with the lock held.
func (q *FetchQueue) removeRegular(url string) {
	for i, r := range q.regularQueue {
		if r.URL == url {
			q.regularQueue = append(q.regularQueue[:i], q.regularQueue[i+1:]...)
			return
		}
	}
}

// pop must be called with the lock held and a non-empty queue.
func (q *FetchQueue) pop() Request {
	var req Request
	if q.priorityQueue.Len() > 0 {
		req = heap.Pop(q.priorityQueue).(*queueItem).req
	} else {
		req = q.regularQueue[0]
		q.regularQueue = q.regularQueue[1:]
	}
	delete(q.pending, req.URL)

	now := q.now()
	q.stats.TotalDequeued++
	q.stats.LastDequeue = now
	if wait := now.Sub(req.Enqueued); wait > 0 {
		q.totalWait += wait
	}
	return req
}

// The most recent play request is served first.
type queueItem struct {
	req   Request
	seq   int64
	index int
}

type priorityQueue []*queueItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].seq > pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
