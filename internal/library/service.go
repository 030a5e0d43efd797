package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// SoundRepo reads and rewrites sound records.
type SoundRepo interface {
	Get(ctx context.Context, id string) (Sound, error)
	List(ctx context.Context) ([]Sound, error)
	Tags(ctx context.Context) ([]string, error)
	WithDoubleSlash(ctx context.Context) ([]Sound, error)
	UpdateURL(ctx context.Context, id, url string) error
}

// LibraryRepo stores library membership.
type LibraryRepo interface {
	List(ctx context.Context, userID string) ([]Entry, error)
	Contains(ctx context.Context, userID, soundID string) (bool, error)
	Save(ctx context.Context, userID, soundID string, at time.Time) (Entry, error)
	Remove(ctx context.Context, userID, soundID string) (bool, error)
	SavedIDs(ctx context.Context, userID string) (map[string]bool, error)
	DeleteOrphans(ctx context.Context) (int64, error)
	Count(ctx context.Context, userID string) (int, error)
}

// HistoryRepo records searches.
type HistoryRepo interface {
	Add(ctx context.Context, userID, query string, at time.Time) error
	Since(ctx context.Context, userID string, since time.Time) ([]SearchItem, error)
}

// Searcher finds sounds for a query.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) ([]Sound, error)
}

// Service implements the library operations.
type Service struct {
	sounds   SoundRepo
	library  LibraryRepo
	history  HistoryRepo
	searcher Searcher
	storage  StorageConfig
	now      func() time.Time
}

// NewService wires a Service.
func NewService(sounds SoundRepo, lib LibraryRepo, history HistoryRepo, searcher Searcher, storage StorageConfig) *Service {
	return &Service{
		sounds:   sounds,
		library:  lib,
		history:  history,
		searcher: searcher,
		storage:  storage,
		now:      time.Now,
	}
}

// Storage returns the storage configuration used to resolve audio URLs.
func (s *Service) Storage() StorageConfig {
	return s.storage
}

// Sound returns a single sound with its URL resolved and IsSaved set for
// the session user.
func (s *Service) Sound(ctx context.Context, sess *Session, id string) (Sound, error) {
	if strings.TrimSpace(id) == "" {
		return Sound{}, opErr("get", "", ErrInvalidSoundID)
	}
	snd, err := s.sounds.Get(ctx, id)
	if err != nil {
		return Sound{}, opErr("get", id, err)
	}
	snd.AudioURL = StorageURL(s.storage, snd.AudioURL)

	if sess != nil {
		saved, err := s.library.Contains(ctx, sess.UserID, id)
		if err != nil {
			return Sound{}, opErr("get", id, err)
		}
		snd.IsSaved = saved
	}
	return snd, nil
}

// Library returns the session user's saved sounds, newest first.
func (s *Service) Library(ctx context.Context, sess *Session) ([]Entry, error) {
	if sess == nil {
		return nil, opErr("library", "", ErrUnauthorized)
	}

	entries, err := s.library.List(ctx, sess.UserID)
	if err != nil {
		return nil, opErr("library", "", err)
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Sound.ID == "" {
			log.Warn("Skipping library entry for missing sound", "entry", e.ID, "sound", e.SoundID)
			continue
		}
		e.Sound.AudioURL = StorageURL(s.storage, e.Sound.AudioURL)
		e.Sound.IsSaved = true
		out = append(out, e)
	}
	return out, nil
}

// Save adds a sound to the session user's library. Saving a sound twice is
// not an error.
func (s *Service) Save(ctx context.Context, sess *Session, soundID string) (SaveResult, error) {
	if strings.TrimSpace(soundID) == "" {
		return SaveResult{}, opErr("save", "", ErrInvalidSoundID)
	}
	if sess == nil {
		return SaveResult{}, opErr("save", soundID, ErrUnauthorized)
	}

	snd, err := s.sounds.Get(ctx, soundID)
	if err != nil {
		return SaveResult{}, opErr("save", soundID, err)
	}

	saved, err := s.library.Contains(ctx, sess.UserID, soundID)
	if err != nil {
		return SaveResult{}, opErr("save", soundID, err)
	}
	if saved {
		return SaveResult{Entry: Entry{UserID: sess.UserID, SoundID: soundID, Sound: snd}, AlreadySaved: true}, nil
	}

	entry, err := s.library.Save(ctx, sess.UserID, soundID, s.now())
	if err != nil {
		return SaveResult{}, opErr("save", soundID, err)
	}
	entry.Sound = snd
	log.Debug("Saved sound to library", "user", sess.UserID, "sound", soundID)
	return SaveResult{Entry: entry}, nil
}

// Remove deletes a sound from a library. userID may name the library
// owner explicitly; it must then match the session user. It reports
// whether an entry was removed.
func (s *Service) Remove(ctx context.Context, sess *Session, soundID, userID string) (bool, error) {
	if strings.TrimSpace(soundID) == "" {
		return false, opErr("remove", "", ErrInvalidSoundID)
	}
	if sess == nil {
		return false, opErr("remove", soundID, ErrUnauthorized)
	}
	if userID != "" && userID != sess.UserID {
		return false, opErr("remove", soundID, ErrForbidden)
	}

	removed, err := s.library.Remove(ctx, sess.UserID, soundID)
	if err != nil {
		return false, opErr("remove", soundID, err)
	}
	return removed, nil
}

// Toggle saves an unsaved sound or removes a saved one and returns the new
// saved state.
func (s *Service) Toggle(ctx context.Context, sess *Session, snd Sound) (bool, error) {
	if snd.IsSaved {
		if _, err := s.Remove(ctx, sess, snd.ID, ""); err != nil {
			return true, err
		}
		return false, nil
	}
	if _, err := s.Save(ctx, sess, snd.ID); err != nil {
		return false, err
	}
	return true, nil
}

// Tags returns every distinct tag in use.
func (s *Service) Tags(ctx context.Context) ([]string, error) {
	tags, err := s.sounds.Tags(ctx)
	if err != nil {
		return nil, opErr("tags", "", err)
	}
	return tags, nil
}

// Search runs a query through the configured Searcher. Results are marked
// saved for the session user, and the query is added to their history.
func (s *Service) Search(ctx context.Context, sess *Session, query string, tags []string) ([]Sound, error) {
	query = strings.TrimSpace(query)
	tags = cleanTags(tags)
	if query == "" && len(tags) == 0 {
		return nil, opErr("search", "", ErrEmptyQuery)
	}

	req := SearchRequest{Query: query, Tags: tags}
	if sess != nil {
		req.UserID = sess.UserID
	}

	sounds, err := s.searcher.Search(ctx, req)
	if err != nil {
		return nil, opErr("search", "", err)
	}

	var saved map[string]bool
	if sess != nil {
		saved, err = s.library.SavedIDs(ctx, sess.UserID)
		if err != nil {
			return nil, opErr("search", "", err)
		}
		if query != "" && s.history != nil {
			if err := s.history.Add(ctx, sess.UserID, query, s.now()); err != nil {
				log.Warn("Failed to record search", "err", err)
			}
		}
	}

	for i := range sounds {
		sounds[i].AudioURL = StorageURL(s.storage, sounds[i].AudioURL)
		sounds[i].IsSaved = saved[sounds[i].ID]
	}
	return sounds, nil
}

// History returns the session user's searches from the last week, grouped
// by age.
func (s *Service) History(ctx context.Context, sess *Session) (GroupedSearches, error) {
	if sess == nil {
		return GroupedSearches{}, opErr("history", "", ErrUnauthorized)
	}
	if s.history == nil {
		return GroupedSearches{}, nil
	}

	now := s.now()
	items, err := s.history.Since(ctx, sess.UserID, now.AddDate(0, 0, -7))
	if err != nil {
		return GroupedSearches{}, opErr("history", "", err)
	}
	return GroupSearches(items, now), nil
}

// FixURLs collapses doubled slashes in stored audio URLs.
func (s *Service) FixURLs(ctx context.Context) ([]URLFix, error) {
	sounds, err := s.sounds.WithDoubleSlash(ctx)
	if err != nil {
		return nil, opErr("fix-urls", "", err)
	}

	var results []URLFix
	for _, snd := range sounds {
		fixed, changed := FixDoubleSlashes(snd.AudioURL)
		if !changed {
			continue
		}
		results = append(results, s.rewrite(ctx, snd, fixed))
	}
	return results, nil
}

// FormatURLs turns bare storage paths into full public URLs.
func (s *Service) FormatURLs(ctx context.Context) ([]URLFix, error) {
	sounds, err := s.sounds.List(ctx)
	if err != nil {
		return nil, opErr("format-urls", "", err)
	}

	var results []URLFix
	for _, snd := range sounds {
		if !NeedsFormatting(snd.AudioURL) {
			continue
		}
		fixed := FormatStorageURL(s.storage, snd.AudioURL)
		if fixed == "" || fixed == snd.AudioURL {
			continue
		}
		results = append(results, s.rewrite(ctx, snd, fixed))
	}
	return results, nil
}

func (s *Service) rewrite(ctx context.Context, snd Sound, fixed string) URLFix {
	fix := URLFix{ID: snd.ID, Name: snd.Name, OriginalURL: snd.AudioURL, FixedURL: fixed}
	if err := s.sounds.UpdateURL(ctx, snd.ID, fixed); err != nil {
		log.Error("Failed to update sound URL", "sound", snd.ID, "err", err)
		fix.Err = err
		return fix
	}
	log.Debug("Rewrote sound URL", "sound", snd.ID, "from", snd.AudioURL, "to", fixed)
	return fix
}

// Cleanup removes library entries that point at sounds which no longer
// exist and reports how many entries the session user has left.
func (s *Service) Cleanup(ctx context.Context, sess *Session) (CleanupReport, error) {
	if sess == nil {
		return CleanupReport{}, opErr("cleanup", "", ErrUnauthorized)
	}

	removed, err := s.library.DeleteOrphans(ctx)
	if err != nil {
		return CleanupReport{}, opErr("cleanup", "", err)
	}
	remaining, err := s.library.Count(ctx, sess.UserID)
	if err != nil {
		return CleanupReport{}, opErr("cleanup", "", err)
	}
	return CleanupReport{Removed: removed, Remaining: remaining}, nil
}

// Succeeded counts fixes that were written.
func Succeeded(fixes []URLFix) int {
	n := 0
	for _, f := range fixes {
		if f.Err == nil {
			n++
		}
	}
	return n
}

func cleanTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Describe renders a short human readable summary of err for CLI output.
func Describe(err error) string {
	var op *OpError
	if errors.As(err, &op) {
		return fmt.Sprintf("%s failed: %v", op.Op, op.Err)
	}
	return err.Error()
}
