package cache

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// ManagerStats aggregates hit counters across levels.
type ManagerStats struct {
	Hits        int64
	Misses      int64
	L1Hits      int64
	L2Hits      int64
	Promotions  int64
	CleanupRuns int64
	LastCleanup time.Time

	L1 Stats
	L2 Stats
}

// HitRate returns hits / (hits + misses).
func (s ManagerStats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// String renders a one line summary with human readable sizes.
func (s ManagerStats) String() string {
	return fmt.Sprintf("L1 %s/%s (%d items), L2 %s/%s (%d items), hit rate %.0f%%",
		humanize.IBytes(uint64(s.L1.Size)), humanize.IBytes(uint64(s.L1.Capacity)), s.L1.ItemCount,
		humanize.IBytes(uint64(s.L2.Size)), humanize.IBytes(uint64(s.L2.Capacity)), s.L2.ItemCount,
		s.HitRate()*100)
}

// Manager reads through L1 then L2, promoting L2 hits into memory. Writes
// go to L1 immediately and to disk in the background.
type Manager struct {
	l1     *Memory
	l2     *Disk
	config Config

	// writesMu keeps Put's Add from racing a Wait in drain.
	writesMu sync.RWMutex
	writes   sync.WaitGroup

	cleanupStop chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once

	mu    sync.Mutex
	stats ManagerStats
}

// NewManager creates a manager. cfg.Dir is required.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}

	l2, err := NewDisk(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create disk cache: %w", err)
	}

	m := &Manager{
		l1:     NewMemory(cfg.MemoryCapacity),
		l2:     l2,
		config: cfg,
	}

	if cfg.CleanupInterval > 0 {
		m.cleanupStop = make(chan struct{})
		m.cleanupDone = make(chan struct{})
		go m.cleanupLoop(cfg.CleanupInterval)
	}

	log.Debug("Audio cache ready", "dir", cfg.Dir,
		"memory", humanize.IBytes(uint64(cfg.MemoryCapacity)),
		"disk", humanize.IBytes(uint64(cfg.DiskCapacity)),
		"used", humanize.IBytes(uint64(l2.Size())))
	return m, nil
}

// Get looks key up in L1 then L2.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.l1.Get(key); ok {
		m.mu.Lock()
		m.stats.Hits++
		m.stats.L1Hits++
		m.mu.Unlock()
		return data, true
	}

	if data, ok := m.l2.Get(key); ok {
		promoted := m.l1.Put(key, data) == nil
		m.mu.Lock()
		m.stats.Hits++
		m.stats.L2Hits++
		if promoted {
			m.stats.Promotions++
		}
		m.mu.Unlock()
		return data, true
	}

	m.mu.Lock()
	m.stats.Misses++
	m.mu.Unlock()
	return nil, false
}

// Contains reports whether any level holds key.
func (m *Manager) Contains(key string) bool {
	return m.l1.Contains(key) || m.l2.Contains(key)
}

// Put stores value in memory and schedules the disk write. Values larger
// than the memory cache still go to disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.l1.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return fmt.Errorf("L1 cache error: %w", err)
	}

	m.writesMu.RLock()
	m.writes.Add(1)
	m.writesMu.RUnlock()
	go func() {
		defer m.writes.Done()
		if err := m.l2.Put(key, value); err != nil {
			log.Debug("Disk cache write failed", "key", key,
				"size", humanize.IBytes(uint64(len(value))), "err", err)
		}
	}()
	return nil
}

// Delete removes key from both levels.
func (m *Manager) Delete(key string) error {
	m.drain()
	_ = m.l1.Delete(key)
	return m.l2.Delete(key)
}

// Clear empties both levels.
func (m *Manager) Clear() error {
	m.drain()
	m.l1.Clear()
	return m.l2.Clear()
}

// Stats returns a snapshot of the counters and both levels' stats.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	stats.L1 = m.l1.Stats()
	stats.L2 = m.l2.Stats()
	return stats
}

// Cleanup expires old entries and trims the disk cache to 90% of its
// capacity when it is over.
func (m *Manager) Cleanup() {
	m.drain()

	m.mu.Lock()
	m.stats.CleanupRuns++
	m.stats.LastCleanup = time.Now()
	m.mu.Unlock()

	if m.config.TTL > 0 {
		if n := m.l2.RemoveOlderThan(time.Now().Add(-m.config.TTL)); n > 0 {
			log.Debug("Expired disk cache entries", "count", n)
		}
		m.l1.Prune(m.config.TTL)
	}

	if m.l2.Size() > m.config.DiskCapacity*90/100 {
		n := m.l2.EvictTo(m.config.DiskCapacity * 90 / 100)
		log.Debug("Trimmed disk cache", "evicted", n, "size", humanize.IBytes(uint64(m.l2.Size())))
	}

	if err := m.l2.Flush(); err != nil {
		log.Warn("Failed to save cache index", "err", err)
	}
}

// Close stops background cleanup, waits for pending disk writes and saves
// the index.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if m.cleanupStop != nil {
			close(m.cleanupStop)
			<-m.cleanupDone
		}
		m.drain()
		if cerr := m.l2.Close(); cerr != nil {
			err = fmt.Errorf("failed to close disk cache: %w", cerr)
		}
	})
	return err
}

// drain waits for the disk writes scheduled so far.
func (m *Manager) drain() {
	m.writesMu.Lock()
	defer m.writesMu.Unlock()
	m.writes.Wait()
}

func (m *Manager) cleanupLoop(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.cleanupStop:
			return
		}
	}
}
