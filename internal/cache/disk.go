package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const indexFile = "cache.index"

// Disk is the L2 cache. Values are written one file per key, zstd
// compressed when that saves space, and tracked in a gob encoded index
// that is persisted on Close.
type Disk struct {
	dir      string
	capacity int64
	size     int64 // bytes on disk

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
	now   func() time.Time
}

// diskEntry is persisted in the index, so its fields are exported.
type diskEntry struct {
	Key          string
	File         string
	Size         int64 // on disk
	OriginalSize int64
	Timestamp    time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

var _ Store = (*Disk)(nil)

// NewDisk opens or creates a disk cache in dir. A compressionLevel of 0
// stores values uncompressed.
func NewDisk(dir string, capacity int64, compressionLevel int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
		now:      time.Now,
	}

	if compressionLevel > 0 {
		var err error
		d.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// The decoder is always available so a cache written with compression
	// can be read after it is turned off.
	var err error
	d.decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	if err := d.loadIndex(); err != nil {
		log.Warn("Discarding unreadable cache index", "dir", dir, "err", err)
		d.index = make(map[string]*diskEntry)
	}
	for _, e := range d.index {
		d.size += e.Size
	}
	return d, nil
}

// Get reads a value from disk. Missing or corrupt files are dropped from
// the index and reported as a miss.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.File)
	if err == nil && entry.Compressed {
		data, err = d.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		log.Debug("Dropping unreadable cache entry", "key", key, "err", err)
		d.removeEntry(entry)
		d.stats.Misses++
		return nil, false
	}

	entry.LastAccess = d.now()
	entry.Hits++
	d.stats.Hits++
	return data, true
}

// Put writes a value, evicting the least recently accessed entries to
// stay within capacity.
func (d *Disk) Put(key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	data := value
	compressed := false
	if d.encoder != nil && len(value) > 1024 {
		if c := d.encoder.EncodeAll(value, nil); len(c) < len(value) {
			data = c
			compressed = true
		}
	}

	diskSize := int64(len(data))
	if diskSize > d.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := d.index[key]; ok {
		d.removeEntry(existing)
	}
	for d.size+diskSize > d.capacity && len(d.index) > 0 {
		d.evictOldest()
	}

	file := d.filePath(key)
	if err := writeFileAtomic(file, data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := d.now()
	d.index[key] = &diskEntry{
		Key:          key,
		File:         file,
		Size:         diskSize,
		OriginalSize: int64(len(value)),
		Timestamp:    now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	d.size += diskSize
	return nil
}

// Delete removes an entry and its file.
func (d *Disk) Delete(key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.index[key]; ok {
		d.removeEntry(entry)
	}
	return nil
}

// Clear removes every entry and saves the empty index.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, entry := range d.index {
		os.Remove(entry.File)
	}
	d.index = make(map[string]*diskEntry)
	d.size = 0
	return d.saveIndex()
}

// Contains checks for a key without reading the file.
func (d *Disk) Contains(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.index[key]
	return ok
}

// Size returns the bytes used on disk.
func (d *Disk) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

// Stats returns cache statistics.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := d.stats
	stats.Size = d.size
	stats.ItemCount = int64(len(d.index))
	stats.computeHitRate()
	return stats
}

// RemoveOlderThan drops entries stored before cutoff.
func (d *Disk) RemoveOlderThan(cutoff time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for _, entry := range d.index {
		if entry.Timestamp.Before(cutoff) {
			d.removeEntry(entry)
			removed++
		}
	}
	return removed
}

// EvictTo evicts least recently accessed entries until at most target
// bytes are used.
func (d *Disk) EvictTo(target int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	evicted := 0
	for d.size > target && len(d.index) > 0 {
		d.evictOldest()
		evicted++
	}
	return evicted
}

// LRU returns metadata for the n least recently accessed entries.
func (d *Disk) LRU(n int) []Metadata {
	d.mu.Lock()
	defer d.mu.Unlock()

	entries := make([]*diskEntry, 0, len(d.index))
	for _, e := range d.index {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.Before(entries[j].LastAccess)
	})

	result := make([]Metadata, 0, n)
	for i := 0; i < n && i < len(entries); i++ {
		e := entries[i]
		result = append(result, Metadata{
			Key:        e.Key,
			Size:       e.OriginalSize,
			Timestamp:  e.Timestamp,
			LastAccess: e.LastAccess,
			Hits:       e.Hits,
			Level:      LevelL2,
		})
	}
	return result
}

// Flush persists the index.
func (d *Disk) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveIndex()
}

// Close persists the index and releases the codecs.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.saveIndex()
	if d.encoder != nil {
		d.encoder.Close()
	}
	d.decoder.Close()
	return err
}

func (d *Disk) filePath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(hash[:16])+".cache")
}

// evictOldest must be called with the lock held.
func (d *Disk) evictOldest() {
	var oldest *diskEntry
	for _, e := range d.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		d.removeEntry(oldest)
		d.stats.Evictions++
	}
}

// removeEntry must be called with the lock held.
func (d *Disk) removeEntry(e *diskEntry) {
	os.Remove(e.File)
	delete(d.index, e.Key)
	d.size -= e.Size
}

func (d *Disk) loadIndex() error {
	f, err := os.Open(filepath.Join(d.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(&d.index); err != nil {
		return err
	}

	// Drop entries whose files disappeared while we were not running.
	for key, e := range d.index {
		if _, err := os.Stat(e.File); err != nil {
			delete(d.index, key)
		}
	}
	return nil
}

func (d *Disk) saveIndex() error {
	path := filepath.Join(d.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	err = gob.NewEncoder(f).Encode(d.index)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
