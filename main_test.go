package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/soundshelf/internal/library"
	"github.com/dgnsrekt/soundshelf/internal/store"
)

type memUpserter struct {
	mu     sync.Mutex
	sounds map[string]library.Sound
}

func (m *memUpserter) Upsert(_ context.Context, s library.Sound) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sounds == nil {
		m.sounds = map[string]library.Sound{}
	}
	m.sounds[s.ID] = s
	return s.ID, nil
}

func (m *memUpserter) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sounds)
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not really audio"), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestSoundName(t *testing.T) {
	tests := map[string]string{
		"/s/deep_kick-01.wav":  "deep kick 01",
		"Rain Loop.mp3":        "Rain Loop",
		"/x/__odd__name__.mp3": "odd name",
	}
	for in, want := range tests {
		if got := soundName(in); got != want {
			t.Errorf("soundName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsAudioFile(t *testing.T) {
	for _, p := range []string{"a.mp3", "b.WAV", "c.wave"} {
		if !isAudioFile(p) {
			t.Errorf("%s should be audio", p)
		}
	}
	for _, p := range []string{"notes.md", "mp3", "clip.flac"} {
		if isAudioFile(p) {
			t.Errorf("%s should not be audio", p)
		}
	}
}

func TestImportFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Drums", "Kicks", "big_kick.wav")
	writeFile(t, path)

	repo := &memUpserter{}
	s, err := importFile(context.Background(), repo, root, path)
	if err != nil {
		t.Fatal(err)
	}

	if s.ID != store.SoundIDFor(path) {
		t.Errorf("id = %s, want the stable id for the path", s.ID)
	}
	if s.Name != "big kick" {
		t.Errorf("name = %q", s.Name)
	}
	if !strings.HasPrefix(s.AudioURL, "file://") || !strings.HasSuffix(s.AudioURL, "big_kick.wav") {
		t.Errorf("audio url = %q", s.AudioURL)
	}
	if strings.Join(s.Tags, ",") != "drums,kicks" {
		t.Errorf("tags = %v", s.Tags)
	}
	if s.Duration != nil {
		t.Error("undecodable audio should have no duration")
	}

	// Importing again updates the same sound.
	if _, err := importFile(context.Background(), repo, root, path); err != nil {
		t.Fatal(err)
	}
	if repo.len() != 1 {
		t.Errorf("expected 1 sound after re-import, got %d", repo.len())
	}
}

func TestImportDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.wav"))
	writeFile(t, filepath.Join(root, "loops", "b.mp3"))
	writeFile(t, filepath.Join(root, "readme.md"))

	repo := &memUpserter{}
	n, err := importDir(context.Background(), repo, root)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || repo.len() != 2 {
		t.Errorf("imported %d (%d stored), want 2", n, repo.len())
	}
}

func TestWatchDir(t *testing.T) {
	old := importSettle
	importSettle = 20 * time.Millisecond
	defer func() { importSettle = old }()

	root := t.TempDir()
	repo := &memUpserter{}
	imported := make(chan library.Sound, 4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchDir(ctx, repo, root, func(s library.Sound) { imported <- s })
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(root, "new_pad.wav"))
	writeFile(t, filepath.Join(root, "notes.txt"))

	select {
	case s := <-imported:
		if s.Name != "new pad" {
			t.Errorf("imported %q", s.Name)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("new file was not imported")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("watchDir returned %v", err)
	}
	if repo.len() != 1 {
		t.Errorf("expected only the audio file imported, got %d", repo.len())
	}
}

func TestSoundMarkdown(t *testing.T) {
	bpm := 92
	secs := 8.0
	md := soundMarkdown(library.Sound{
		ID:       "s1",
		Name:     "Boom Bap Drum Beat",
		BPM:      &bpm,
		Duration: &secs,
		AudioURL: "https://x.co/audio/drums/boom-bap.wav",
		Tags:     []string{"drums", "loop"},
	})
	for _, want := range []string{"# 🥁 Boom Bap Drum Beat", "| 92 | - | 0:08 | no |", "`drums`, `loop`", "[Boom Bap Drum Beat.wav]", "`s1`"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}

	md = soundMarkdown(library.Sound{ID: "s2", Name: "Silence"})
	if !strings.Contains(md, "No audio available") {
		t.Errorf("sound without audio should say so:\n%s", md)
	}
}

func TestPrintFixes(t *testing.T) {
	var b bytes.Buffer
	printFixes(&b, []library.URLFix{
		{ID: "1", Name: "Kick", OriginalURL: "https://x.co/audio//kick.wav", FixedURL: "https://x.co/audio/kick.wav"},
		{ID: "2", Name: "Snare", Err: errors.New("locked")},
	})
	out := b.String()
	for _, want := range []string{"Kick", "https://x.co/audio/kick.wav", "Snare: locked", "Updated 1 of 2 sounds."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	b.Reset()
	printFixes(&b, nil)
	if !strings.Contains(b.String(), "Nothing to fix") {
		t.Errorf("unexpected output %q", b.String())
	}
}

func TestPrintHistory(t *testing.T) {
	var b bytes.Buffer
	now := time.Now()
	printHistory(&b, library.GroupedSearches{
		Today:     []library.SearchItem{{Query: "rain", CreatedAt: now}},
		Past7Days: []library.SearchItem{{Query: "kick", CreatedAt: now.AddDate(0, 0, -5)}},
	})
	out := b.String()
	for _, want := range []string{"Today", "rain", "Past 7 days", "kick"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Yesterday") {
		t.Error("empty groups should be skipped")
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1, "sound", "sounds"); got != "1 sound" {
		t.Errorf("got %q", got)
	}
	if got := plural(1200, "sound", "sounds"); got != "1,200 sounds" {
		t.Errorf("got %q", got)
	}
}

func TestValidateStyle(t *testing.T) {
	if err := validateStyle("auto"); err != nil {
		t.Error(err)
	}
	if err := validateStyle("dark"); err != nil {
		t.Error(err)
	}
	if err := validateStyle(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing style file should fail")
	}
}

func TestEnsureConfigFile(t *testing.T) {
	old := configFile
	defer func() { configFile = old }()

	configFile = filepath.Join(t.TempDir(), "nested", "soundshelf.yml")
	if err := ensureConfigFile(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != defaultConfig {
		t.Error("default config not written")
	}

	configFile = filepath.Join(t.TempDir(), "soundshelf.toml")
	if err := ensureConfigFile(); err == nil {
		t.Error("non-yaml config should be rejected")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := expandPath("~/Downloads"); got != filepath.Join(home, "Downloads") {
		t.Errorf("expandPath = %q", got)
	}
	if got := expandPath(""); got != "" {
		t.Errorf("expandPath(\"\") = %q", got)
	}
}
