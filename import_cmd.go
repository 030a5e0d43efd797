package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/gitcha"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/soundshelf/internal/audio"
	"github.com/dgnsrekt/soundshelf/internal/library"
	"github.com/dgnsrekt/soundshelf/internal/store"
)

var (
	audioExtensions = []string{"*.mp3", "*.wav", "*.wave"}

	importWatch bool

	// files are imported once they have been quiet this long
	importSettle = 500 * time.Millisecond

	importCmd = &cobra.Command{
		Use:   "import DIR",
		Short: "Add the audio files in a directory to the catalogue",
		Long: paragraph(fmt.Sprintf("\n%s every mp3 and wav file below DIR as a sound. Files matched by .gitignore are skipped. Importing a file again updates its sound.",
			keyword("Import"))),
		Example: paragraph("soundshelf import ~/samples\nsoundshelf import ~/samples --watch"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := expandPath(args[0])
			st, err := os.Stat(root)
			if err != nil {
				return fmt.Errorf("unable to open directory: %w", err)
			}
			if !st.IsDir() {
				return fmt.Errorf("%s is not a directory", root)
			}

			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				n, err := importDir(ctx, a.sounds, root)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s from %s\n", keyword(fmt.Sprintf("%d sounds", n)), root)

				if !importWatch {
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), faint("Watching for new files, press ctrl+c to stop."))
				return watchDir(ctx, a.sounds, root, func(s library.Sound) {
					fmt.Fprintln(cmd.OutOrStdout(), "Imported "+keyword(s.Name))
				})
			})
		},
	}
)

func init() {
	importCmd.Flags().BoolVar(&importWatch, "watch", false, "keep importing files as they appear")
}

type soundUpserter interface {
	Upsert(ctx context.Context, s library.Sound) (string, error)
}

func isAudioFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, pattern := range audioExtensions {
		if "*"+ext == pattern {
			return true
		}
	}
	return false
}

// soundName turns a file name into a display name.
func soundName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// importFile upserts the audio file at path. Files are tagged with the
// directories between root and the file.
func importFile(ctx context.Context, repo soundUpserter, root, path string) (library.Sound, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return library.Sound{}, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return library.Sound{}, fmt.Errorf("unable to read %s: %w", abs, err)
	}

	s := library.Sound{
		ID:       store.SoundIDFor(abs),
		Name:     soundName(abs),
		AudioURL: "file://" + filepath.ToSlash(abs),
	}

	if rel, err := filepath.Rel(root, filepath.Dir(abs)); err == nil && rel != "." {
		for _, dir := range strings.Split(filepath.ToSlash(rel), "/") {
			if dir != "" && dir != ".." {
				s.Tags = append(s.Tags, strings.ToLower(dir))
			}
		}
	}

	const rate = 44100
	if pcm, err := audio.Decode(data, abs, rate); err != nil {
		log.Warn("Could not read audio length", "path", abs, "err", err)
	} else {
		secs := audio.Format{SampleRate: rate, Channels: 2}.Duration(len(pcm)).Seconds()
		s.Duration = &secs
	}

	if _, err := repo.Upsert(ctx, s); err != nil {
		return library.Sound{}, fmt.Errorf("unable to import %s: %w", abs, err)
	}
	log.Debug("Imported sound", "id", s.ID, "path", abs)
	return s, nil
}

// importDir imports every audio file below root that isn't ignored.
func importDir(ctx context.Context, repo soundUpserter, root string) (int, error) {
	ch, err := gitcha.FindFilesExcept(root, audioExtensions, nil)
	if err != nil {
		return 0, fmt.Errorf("unable to scan %s: %w", root, err)
	}

	var n int
	for res := range ch {
		if ctx.Err() != nil {
			// drain so the finder can exit
			continue
		}
		if _, err := importFile(ctx, repo, root, res.Path); err != nil {
			log.Error("Import failed", "path", res.Path, "err", err)
			continue
		}
		n++
	}
	return n, ctx.Err()
}

// watchDir imports audio files created or written below root until ctx
// is done.
func watchDir(ctx context.Context, repo soundUpserter, root string, onImport func(library.Sound)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to watch %s: %w", root, err)
	}
	defer watcher.Close() //nolint:errcheck

	addTree := func(dir string) {
		_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil //nolint:nilerr
			}
			if strings.HasPrefix(d.Name(), ".") && p != dir {
				return filepath.SkipDir
			}
			if err := watcher.Add(p); err != nil {
				log.Error("error adding dir to fsnotify watcher", "dir", p, "error", err)
			}
			return nil
		})
	}
	addTree(root)
	log.Info("fsnotify watching dir", "dir", root)

	var (
		mu      sync.Mutex
		pending = map[string]*time.Timer{}
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for p, t := range pending {
			if t.Stop() {
				wg.Done()
			}
			delete(pending, p)
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok && t.Stop() {
			t.Reset(importSettle)
			return
		}
		wg.Add(1)
		var timer *time.Timer
		timer = time.AfterFunc(importSettle, func() {
			defer wg.Done()
			mu.Lock()
			if pending[path] == timer {
				delete(pending, path)
			}
			mu.Unlock()

			s, err := importFile(ctx, repo, root, path)
			if err != nil {
				log.Error("Import failed", "path", path, "err", err)
				return
			}
			if onImport != nil {
				onImport(s)
			}
		})
		pending[path] = timer
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)

			if event.Has(fsnotify.Create) {
				if st, err := os.Stat(event.Name); err == nil && st.IsDir() {
					addTree(event.Name)
					continue
				}
			}
			if isAudioFile(event.Name) {
				schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("fsnotify error", "dir", root, "error", err)
		}
	}
}
