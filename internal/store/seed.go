package store

import (
	"context"
	"database/sql"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

type demoSound struct {
	name     string
	bpm      int
	key      string
	duration float64
	path     string
	tags     []string
}

var demoSounds = []demoSound{
	{"Rainy Window Ambience", 0, "", 42, "ambient/rainy-window.mp3", []string{"ambient", "rain", "field recording"}},
	{"Lo-fi Piano Loop", 84, "F minor", 16, "loops/lofi-piano.mp3", []string{"piano", "lofi", "loop"}},
	{"Boom Bap Drum Beat", 92, "", 8, "drums/boom-bap.wav", []string{"drums", "hip hop", "loop"}},
	{"Analog Synth Pad", 0, "C major", 24, "synth/analog-pad.wav", []string{"synth", "pad", "electronic"}},
	{"Ocean Waves at Dusk", 0, "", 60, "ambient/ocean-waves.mp3", []string{"ocean", "nature", "ambient"}},
	{"Acoustic Guitar Strum", 110, "G major", 12, "loops/guitar-strum.mp3", []string{"guitar", "acoustic", "loop"}},
	{"City Street Traffic", 0, "", 45, "field/city-traffic.mp3", []string{"city", "urban", "field recording"}},
	{"Riser FX Sweep", 128, "", 4, "fx/riser-sweep.wav", []string{"fx", "transition", "electronic"}},
}

// SeedDemo fills an empty sounds table with a small demo catalogue whose
// audio paths are resolved against the configured storage. It is
// idempotent and safe to run on every startup.
func SeedDemo(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sounds`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	repo := NewSoundRepo(db)
	for _, d := range demoSounds {
		s := library.Sound{
			ID:       SoundIDFor("demo:" + d.path),
			Name:     d.name,
			Key:      d.key,
			AudioURL: d.path,
			Tags:     d.tags,
		}
		if d.bpm > 0 {
			bpm := d.bpm
			s.BPM = &bpm
		}
		duration := d.duration
		s.Duration = &duration

		if _, err := repo.Upsert(ctx, s); err != nil {
			return 0, err
		}
	}
	return len(demoSounds), nil
}
