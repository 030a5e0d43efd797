package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// "auto", "dark" or "light"
	Theme string `env:"SOUNDSHELF_THEME" envDefault:"auto"`

	DownloadDir  string
	EnableMouse  bool
	InitialQuery string

	// How often cards poll their audio for playback that ended on its own.
	TickInterval time.Duration `env:"SOUNDSHELF_TICK" envDefault:"200ms"`

	// Number of cards below the cursor to prefetch.
	Lookahead int `env:"SOUNDSHELF_LOOKAHEAD" envDefault:"3"`
}
