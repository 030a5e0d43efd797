package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheMiss is returned when an item is not found in cache
	ErrCacheMiss = errors.New("cache miss")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelL1 is the memory cache.
	LevelL1 Level = iota
	// LevelL2 is the disk cache.
	LevelL2
)

func (l Level) String() string {
	switch l {
	case LevelL1:
		return "L1-Memory"
	case LevelL2:
		return "L2-Disk"
	default:
		return "Unknown"
	}
}

// Stats holds cache performance metrics.
type Stats struct {
	Capacity  int64 // bytes
	Size      int64 // bytes
	ItemCount int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
}

func (s *Stats) computeHitRate() {
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
}

// Metadata describes a cached item.
type Metadata struct {
	Key        string
	Size       int64
	Timestamp  time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// Config holds cache settings.
type Config struct {
	MemoryCapacity   int64  // bytes
	DiskCapacity     int64  // bytes
	Dir              string // directory for L2 files
	CompressionLevel int    // zstd level, 0 disables compression

	TTL             time.Duration // age after which items expire, 0 keeps forever
	CleanupInterval time.Duration // 0 disables background cleanup
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   64 * 1024 * 1024,  // 64MB
		DiskCapacity:     512 * 1024 * 1024, // 512MB
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
		CleanupInterval:  time.Hour,
	}
}

// Store is implemented by each cache level.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Delete(key string) error
	Contains(key string) bool
	Size() int64
	Stats() Stats
}

// Key derives a cache key from an audio URL.
func Key(url string) string {
	hash := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(hash[:16])
}
