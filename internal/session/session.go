// Package session keeps track of the signed in user between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// FileName is the session file inside the data directory.
const FileName = "session.yml"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email has the local@domain shape.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}

// Profiles creates or looks up a profile by email.
type Profiles interface {
	Upsert(ctx context.Context, email string) (library.Profile, error)
}

type sessionFile struct {
	UserID     string    `yaml:"user_id"`
	Email      string    `yaml:"email"`
	LoggedInAt time.Time `yaml:"logged_in_at"`
}

// Store persists the session as YAML.
type Store struct {
	path     string
	profiles Profiles
	now      func() time.Time
}

// NewStore creates a store writing to dir/session.yml.
func NewStore(dir string, profiles Profiles) *Store {
	return &Store{
		path:     filepath.Join(dir, FileName),
		profiles: profiles,
		now:      time.Now,
	}
}

// Path returns the session file location.
func (s *Store) Path() string { return s.path }

// Login signs in as email, creating the profile on first use.
func (s *Store) Login(ctx context.Context, email string) (*library.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidEmail(email) {
		return nil, fmt.Errorf("%q: %w", email, library.ErrInvalidEmail)
	}

	profile, err := s.profiles.Upsert(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	data, err := yaml.Marshal(sessionFile{
		UserID:     profile.ID,
		Email:      profile.Email,
		LoggedInAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("failed to write session file: %w", err)
	}

	log.Info("Signed in", "email", profile.Email)
	return &library.Session{UserID: profile.ID, Email: profile.Email}, nil
}

// Logout removes the session file. Logging out twice is not an error.
func (s *Store) Logout() error {
	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Current returns the signed in user. An unreadable or incomplete session
// file counts as signed out.
func (s *Store) Current() (*library.Session, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("Could not read session", "path", s.path, "err", err)
		}
		return nil, false
	}

	var f sessionFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		log.Warn("Ignoring malformed session file", "path", s.path, "err", err)
		return nil, false
	}
	if f.UserID == "" || f.Email == "" {
		return nil, false
	}
	return &library.Session{UserID: f.UserID, Email: f.Email}, true
}
