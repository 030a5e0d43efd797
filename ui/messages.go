package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/soundshelf/internal/audio"
	"github.com/dgnsrekt/soundshelf/internal/fetch"
	"github.com/dgnsrekt/soundshelf/internal/library"
)

const statusMessageTimeout = 3 * time.Second

type (
	searchResultMsg struct {
		gen    int
		sounds []library.Sound
		err    error
	}

	libraryLoadedMsg struct {
		gen     int
		entries []library.Entry
		err     error
	}

	// fetchedMsg carries a completed fetch from the prefetcher or a direct
	// fetch for playback.
	fetchedMsg fetch.Result

	audioLoadedMsg struct {
		gen     int
		soundID string
		handle  audio.Handle
		err     error
	}

	savedToggledMsg struct {
		soundID string
		saved   bool
		err     error
	}

	downloadedMsg struct {
		path string
		err  error
	}

	copiedMsg struct {
		url string
		err error
	}

	tickMsg time.Time

	statusMessageTimeoutMsg struct{ id int }
)

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func searchCmd(ctx context.Context, d Deps, sess *library.Session, gen int, query string) tea.Cmd {
	return func() tea.Msg {
		sounds, err := d.Library.Search(ctx, sess, query, nil)
		return searchResultMsg{gen: gen, sounds: sounds, err: err}
	}
}

func loadLibraryCmd(ctx context.Context, d Deps, sess *library.Session, gen int) tea.Cmd {
	return func() tea.Msg {
		entries, err := d.Library.Library(ctx, sess)
		return libraryLoadedMsg{gen: gen, entries: entries, err: err}
	}
}

func fetchCmd(ctx context.Context, d Deps, url string) tea.Cmd {
	return func() tea.Msg {
		data, err := d.Fetcher.Fetch(ctx, url)
		return fetchedMsg{Data: data, Err: err, Request: requestFor(url)}
	}
}

func openAudioCmd(d Deps, gen int, s library.Sound, data []byte) tea.Cmd {
	return func() tea.Msg {
		h, err := d.Loader.Open(data, library.DownloadName(s, s.AudioURL))
		return audioLoadedMsg{gen: gen, soundID: s.ID, handle: h, err: err}
	}
}

func toggleSavedCmd(ctx context.Context, d Deps, sess *library.Session, s library.Sound) tea.Cmd {
	return func() tea.Msg {
		saved, err := d.Library.Toggle(ctx, sess, s)
		return savedToggledMsg{soundID: s.ID, saved: saved, err: err}
	}
}

func downloadCmd(ctx context.Context, d Deps, dir string, s library.Sound) tea.Cmd {
	return func() tea.Msg {
		data, err := d.Fetcher.Fetch(ctx, s.AudioURL)
		if err != nil {
			return downloadedMsg{err: err}
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return downloadedMsg{err: fmt.Errorf("unable to create download directory: %w", err)}
		}
		path := filepath.Join(dir, library.DownloadName(s, s.AudioURL))
		if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
			return downloadedMsg{err: fmt.Errorf("unable to write file: %w", err)}
		}
		log.Info("Downloaded sound", "sound", s.ID, "path", path)
		return downloadedMsg{path: path}
	}
}

func copyURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{url: url, err: clipboard.WriteAll(url)}
	}
}

func waitForStatusMessageTimeout(id int, t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{id: id}
	}
}
