package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/soundshelf/internal/library"
	"github.com/dgnsrekt/soundshelf/internal/widget"
)

const playTick = 200 * time.Millisecond

var (
	downloadDir string

	playCmd = &cobra.Command{
		Use:   "play ID",
		Short: "Play a sound until it ends or you press ctrl+c",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, a *app) error {
				s, err := a.library.Sound(ctx, a.currentSession(), args[0])
				if err != nil {
					return err
				}
				if !s.HasAudio() {
					return widget.ErrNoAudio
				}

				fmt.Fprintln(cmd.ErrOrStderr(), faint("Loading "+s.Name+"…"))
				h, err := a.loader.Load(ctx, s.AudioURL, library.DownloadName(s, s.AudioURL))
				if err != nil {
					return err
				}

				w := widget.New(a.coord, h)
				defer w.Unmount()
				return playUntilDone(ctx, w, s, cmd.ErrOrStderr())
			})
		},
	}

	downloadCmd = &cobra.Command{
		Use:   "download ID",
		Short: "Download a sound's audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				s, err := a.library.Sound(ctx, a.currentSession(), args[0])
				if err != nil {
					return err
				}
				if !s.HasAudio() {
					return widget.ErrNoAudio
				}

				dir := a.cfg.DownloadDir
				if downloadDir != "" {
					dir = expandPath(downloadDir)
				}
				path, n, err := downloadSound(ctx, a, s, dir)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %s (%s) to %s\n", keyword(s.Name), humanize.IBytes(uint64(n)), path) //nolint:gosec
				return nil
			})
		},
	}
)

func init() {
	downloadCmd.Flags().StringVarP(&downloadDir, "out", "o", "", "directory to write to (default download.dir from the config)")
}

// playUntilDone plays w and redraws a progress line on out until the audio
// ends or ctx is cancelled.
func playUntilDone(ctx context.Context, w *widget.Widget, s library.Sound, out io.Writer) error {
	if err := w.Play(); err != nil {
		return err
	}

	f, ok := out.(*os.File)
	showProgress := ok && term.IsTerminal(int(f.Fd()))
	t := time.NewTicker(playTick)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			if showProgress {
				fmt.Fprintln(out)
			}
			return w.Pause()
		case <-t.C:
			if w.Sync() || !w.IsPlaying() {
				if showProgress {
					fmt.Fprintln(out)
				}
				log.Debug("Playback finished", "sound", s.ID)
				return nil
			}
			if showProgress {
				pos, length := w.Progress()
				fmt.Fprintf(out, "\r▶ %s  %s / %s", s.Name, library.FormatDuration(pos), library.FormatDuration(length))
			}
		}
	}
}

func downloadSound(ctx context.Context, a *app, s library.Sound, dir string) (string, int, error) {
	data, err := a.fetcher.Fetch(ctx, s.AudioURL)
	if err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return "", 0, fmt.Errorf("unable to create download directory: %w", err)
	}
	name := strings.TrimSpace(library.DownloadName(s, s.AudioURL))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return "", 0, fmt.Errorf("unable to write file: %w", err)
	}
	return path, len(data), nil
}
