package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/soundshelf/internal/audio"
	"github.com/dgnsrekt/soundshelf/internal/cache"
	"github.com/dgnsrekt/soundshelf/internal/fetch"
	"github.com/dgnsrekt/soundshelf/internal/library"
	"github.com/dgnsrekt/soundshelf/internal/playback"
	"github.com/dgnsrekt/soundshelf/internal/queue"
	"github.com/dgnsrekt/soundshelf/internal/search"
	"github.com/dgnsrekt/soundshelf/internal/session"
	"github.com/dgnsrekt/soundshelf/internal/store"
)

var appScope = gap.NewScope(gap.User, "soundshelf")

// settings are the resolved configuration values for one run.
type settings struct {
	DatabasePath string
	Storage      library.StorageConfig

	SearchEndpoint    string
	SearchTimeout     time.Duration
	SearchMaxFailures int
	SearchRetryAfter  time.Duration

	Fetch        fetch.Config
	FetchWorkers int
	QueueSize    int

	Cache  cache.Config
	Device audio.DeviceConfig

	SessionDir  string
	DownloadDir string
}

// expandPath expands ~ and makes p absolute. Errors leave p unchanged.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	if e, err := homedir.Expand(p); err == nil {
		p = e
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return p
}

func setDefaults() {
	viper.SetDefault("storage.base_url", "https://storage.soundshelf.dev")
	viper.SetDefault("storage.bucket", "audio")
	viper.SetDefault("search.endpoint", "")
	viper.SetDefault("search.timeout", 10*time.Second)
	viper.SetDefault("search.max_failures", 3)
	viper.SetDefault("search.retry_after", time.Minute)
	viper.SetDefault("fetch.rate", 4.0)
	viper.SetDefault("fetch.burst", 2)
	viper.SetDefault("fetch.workers", 2)
	viper.SetDefault("fetch.timeout", 30*time.Second)
	viper.SetDefault("fetch.queue_size", 32)
	viper.SetDefault("cache.memory_mb", 64)
	viper.SetDefault("cache.disk_mb", 512)
	viper.SetDefault("cache.compression_level", 3)
	viper.SetDefault("cache.ttl_days", 7)
	viper.SetDefault("audio.sample_rate", 44100)
	viper.SetDefault("audio.buffer_size", 100*time.Millisecond)
	viper.SetDefault("audio.volume", 1.0)
	viper.SetDefault("ui.theme", "auto")
	viper.SetDefault("ui.mouse", false)
	viper.SetDefault("download.dir", "~/Downloads")
}

func loadSettings() (settings, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		p, err := appScope.DataPath("soundshelf.db")
		if err != nil {
			return settings{}, fmt.Errorf("unable to find data directory: %w", err)
		}
		dbPath = p
	}
	dbPath = expandPath(dbPath)

	cacheDir := viper.GetString("cache.dir")
	if cacheDir == "" {
		d, err := appScope.CacheDir()
		if err != nil {
			return settings{}, fmt.Errorf("unable to find cache directory: %w", err)
		}
		cacheDir = filepath.Join(d, "audio")
	}

	fc := fetch.DefaultConfig()
	fc.RequestsPerSecond = viper.GetFloat64("fetch.rate")
	fc.Burst = viper.GetInt("fetch.burst")
	fc.Timeout = viper.GetDuration("fetch.timeout")
	fc.UserAgent = "soundshelf/" + Version

	cc := cache.DefaultConfig()
	cc.Dir = expandPath(cacheDir)
	cc.MemoryCapacity = viper.GetInt64("cache.memory_mb") * 1024 * 1024
	cc.DiskCapacity = viper.GetInt64("cache.disk_mb") * 1024 * 1024
	cc.CompressionLevel = viper.GetInt("cache.compression_level")
	cc.TTL = time.Duration(viper.GetInt("cache.ttl_days")) * 24 * time.Hour

	dc := audio.DefaultDeviceConfig()
	dc.SampleRate = viper.GetInt("audio.sample_rate")
	dc.BufferSize = viper.GetDuration("audio.buffer_size")
	dc.Volume = viper.GetFloat64("audio.volume")
	if err := dc.Validate(); err != nil {
		return settings{}, fmt.Errorf("invalid audio configuration: %w", err)
	}

	return settings{
		DatabasePath: dbPath,
		Storage: library.StorageConfig{
			BaseURL: viper.GetString("storage.base_url"),
			Bucket:  viper.GetString("storage.bucket"),
		},
		SearchEndpoint:    viper.GetString("search.endpoint"),
		SearchTimeout:     viper.GetDuration("search.timeout"),
		SearchMaxFailures: viper.GetInt("search.max_failures"),
		SearchRetryAfter:  viper.GetDuration("search.retry_after"),
		Fetch:             fc,
		FetchWorkers:      viper.GetInt("fetch.workers"),
		QueueSize:         viper.GetInt("fetch.queue_size"),
		Cache:             cc,
		Device:            dc,
		SessionDir:        filepath.Dir(dbPath),
		DownloadDir:       expandPath(viper.GetString("download.dir")),
	}, nil
}

// app is every service a command can use, wired against one database.
type app struct {
	cfg settings

	db       *sql.DB
	sounds   *store.SoundRepo
	profiles *store.ProfileRepo
	library  *library.Service
	sessions *session.Store

	cache   *cache.Manager
	fetcher *fetch.Fetcher
	queue   *queue.FetchQueue
	loader  *fetch.Loader // fails with fetch.ErrNoOutput without a device
	coord   *playback.Coordinator
}

// openApp opens the database and wires the services. The audio device is
// only opened when withAudio is set, and a machine without one still gets
// a working app.
func openApp(ctx context.Context, cfg settings, withAudio bool) (*app, error) {
	db, err := store.OpenAndMigrate(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if n, err := store.SeedDemo(ctx, db); err != nil {
		log.Warn("Could not seed demo sounds", "err", err)
	} else if n > 0 {
		log.Info("Seeded demo sounds", "count", n)
	}

	sounds := store.NewSoundRepo(db)
	profiles := store.NewProfileRepo(db)

	var searcher library.Searcher = search.NewLocal(sounds)
	if cfg.SearchEndpoint != "" {
		searcher = search.NewFallback(
			search.NewRemote(cfg.SearchEndpoint, cfg.SearchTimeout),
			search.NewLocal(sounds),
			cfg.SearchMaxFailures,
			cfg.SearchRetryAfter,
		)
	}

	c, err := cache.NewManager(cfg.Cache)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to open audio cache: %w", err)
	}
	f := fetch.New(cfg.Fetch, c)

	a := &app{
		cfg:      cfg,
		db:       db,
		sounds:   sounds,
		profiles: profiles,
		library: library.NewService(
			sounds,
			store.NewLibraryRepo(db),
			store.NewHistoryRepo(db),
			searcher,
			cfg.Storage,
		),
		sessions: session.NewStore(cfg.SessionDir, profiles),
		cache:    c,
		fetcher:  f,
		queue:    queue.New(cfg.QueueSize),
		loader:   fetch.NewLoader(f, nil),
		coord:    playback.NewCoordinator(),
	}

	if withAudio {
		dev, err := audio.OpenDevice(cfg.Device)
		if err != nil {
			log.Warn("No audio output, playback disabled", "err", err)
		} else {
			a.loader = fetch.NewLoader(f, dev)
		}
	}
	return a, nil
}

func (a *app) Close() error {
	_ = a.queue.Close()
	return errors.Join(a.cache.Close(), a.db.Close())
}

// currentSession returns the signed in user or nil.
func (a *app) currentSession() *library.Session {
	sess, ok := a.sessions.Current()
	if !ok {
		return nil
	}
	return sess
}
