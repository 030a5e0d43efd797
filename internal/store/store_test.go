package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "nested", "soundshelf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	// The connection must survive a second migration run.
	require.NoError(t, db.Ping())
}

func TestSoundRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewSoundRepo(openTestDB(t))

	id, err := repo.Upsert(ctx, library.Sound{
		Name:     "Kick",
		BPM:      intPtr(120),
		Key:      "A minor",
		AudioURL: "https://x.co/storage/v1/object/public/audio//kick.wav",
		Waveform: []float64{0.1, 0.9},
		Tags:     []string{"drums", "one shot"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = repo.Upsert(ctx, library.Sound{ID: "pad", Name: "Pad", Tags: []string{"synth", "drums"}})
	require.NoError(t, err)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Kick", got.Name)
	require.NotNil(t, got.BPM)
	assert.Equal(t, 120, *got.BPM)
	assert.Nil(t, got.Duration)
	assert.Equal(t, []float64{0.1, 0.9}, got.Waveform)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, library.ErrSoundNotFound)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Kick", all[0].Name)

	tags, err := repo.Tags(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"drums", "one shot", "synth"}, tags)

	broken, err := repo.WithDoubleSlash(ctx)
	require.NoError(t, err)
	require.Len(t, broken, 1)
	assert.Equal(t, id, broken[0].ID)

	require.NoError(t, repo.UpdateURL(ctx, id, "https://x.co/storage/v1/object/public/audio/kick.wav"))
	broken, err = repo.WithDoubleSlash(ctx)
	require.NoError(t, err)
	assert.Empty(t, broken)

	assert.ErrorIs(t, repo.UpdateURL(ctx, "missing", "x"), library.ErrSoundNotFound)

	// Upsert on an existing id updates in place.
	_, err = repo.Upsert(ctx, library.Sound{ID: "pad", Name: "Warm Pad"})
	require.NoError(t, err)
	pad, err := repo.Get(ctx, "pad")
	require.NoError(t, err)
	assert.Equal(t, "Warm Pad", pad.Name)
	assert.Empty(t, pad.Tags)
}

func TestLibraryRepo(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	sounds := NewSoundRepo(db)
	profiles := NewProfileRepo(db)
	lib := NewLibraryRepo(db)

	alice, err := profiles.Upsert(ctx, "Alice@Example.com ")
	require.NoError(t, err)

	for _, id := range []string{"rain", "kick"} {
		_, err := sounds.Upsert(ctx, library.Sound{ID: id, Name: id})
		require.NoError(t, err)
	}

	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	_, err = lib.Save(ctx, alice.ID, "rain", t0)
	require.NoError(t, err)
	_, err = lib.Save(ctx, alice.ID, "kick", t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = lib.Save(ctx, alice.ID, "kick", t0.Add(2*time.Hour))
	require.NoError(t, err)

	ok, err := lib.Contains(ctx, alice.ID, "kick")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := lib.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "kick", entries[0].Sound.ID)
	assert.True(t, entries[0].SavedAt.Equal(t0.Add(time.Hour)))

	require.NoError(t, sounds.Delete(ctx, "rain"))
	entries, err = lib.List(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "rain", entries[1].SoundID)
	assert.Empty(t, entries[1].Sound.ID)

	removed, err := lib.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	n, err := lib.Count(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ids, err := lib.SavedIDs(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"kick": true}, ids)

	gone, err := lib.Remove(ctx, alice.ID, "kick")
	require.NoError(t, err)
	assert.True(t, gone)
	gone, err = lib.Remove(ctx, alice.ID, "kick")
	require.NoError(t, err)
	assert.False(t, gone)

	_, err = lib.Save(ctx, "no-such-profile", "kick", t0)
	assert.Error(t, err, "foreign key on profiles should reject unknown users")
}

func TestProfileRepo(t *testing.T) {
	ctx := context.Background()
	profiles := NewProfileRepo(openTestDB(t))

	first, err := profiles.Upsert(ctx, "bob@example.com")
	require.NoError(t, err)
	again, err := profiles.Upsert(ctx, "  BOB@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, "bob@example.com", again.Email)
	assert.Equal(t, ProfileIDFor("bob@example.com"), first.ID)

	_, err = profiles.ByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, library.ErrProfileNotFound)
}

func TestHistoryRepo(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	profiles := NewProfileRepo(db)
	history := NewHistoryRepo(db)

	p, err := profiles.Upsert(ctx, "carol@example.com")
	require.NoError(t, err)

	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	require.NoError(t, history.Add(ctx, p.ID, "old", now.AddDate(0, 0, -30)))
	require.NoError(t, history.Add(ctx, p.ID, "recent", now.Add(-time.Hour)))
	require.NoError(t, history.Add(ctx, p.ID, "latest", now))

	items, err := history.Since(ctx, p.ID, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "latest", items[0].Query)
	assert.Equal(t, "recent", items[1].Query)
}

func TestSeedDemo(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	n, err := SeedDemo(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, len(demoSounds), n)

	n, err = SeedDemo(ctx, db)
	require.NoError(t, err)
	assert.Zero(t, n)

	s, err := NewSoundRepo(db).Get(ctx, SoundIDFor("demo:loops/lofi-piano.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "Lo-fi Piano Loop", s.Name)
	assert.Equal(t, "loops/lofi-piano.mp3", s.AudioURL)
}

func TestSoundIDForIsStable(t *testing.T) {
	assert.Equal(t, SoundIDFor("a.wav"), SoundIDFor("a.wav"))
	assert.NotEqual(t, SoundIDFor("a.wav"), SoundIDFor("b.wav"))
}
