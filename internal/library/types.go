package library

import "time"

// Sound is a playable audio sample.
type Sound struct {
	ID       string    `json:"id" yaml:"id"`
	Name     string    `json:"name" yaml:"name"`
	BPM      *int      `json:"bpm" yaml:"bpm,omitempty"`
	Key      string    `json:"key" yaml:"key,omitempty"`
	Duration *float64  `json:"duration" yaml:"duration,omitempty"` // seconds
	AudioURL string    `json:"audioUrl" yaml:"audio_url,omitempty"`
	Waveform []float64 `json:"waveform" yaml:"-"`
	Tags     []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	IsSaved  bool      `json:"isSaved,omitempty" yaml:"-"`
}

// HasAudio reports whether the sound can be played.
func (s Sound) HasAudio() bool {
	return s.AudioURL != ""
}

// Entry is a sound saved to a user's library.
type Entry struct {
	ID      string
	UserID  string
	SoundID string
	Sound   Sound // zero when the sound no longer exists
	SavedAt time.Time
}

// Profile is a known user.
type Profile struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Session identifies the signed in user. A nil *Session means nobody is
// signed in.
type Session struct {
	UserID string `yaml:"user_id"`
	Email  string `yaml:"email"`
}

// SearchItem is one recorded search.
type SearchItem struct {
	ID        string
	UserID    string
	Query     string
	CreatedAt time.Time
}

// GroupedSearches buckets search history by age.
type GroupedSearches struct {
	Today     []SearchItem
	Yesterday []SearchItem
	Past3Days []SearchItem
	Past7Days []SearchItem
}

// Len returns the number of grouped items.
func (g GroupedSearches) Len() int {
	return len(g.Today) + len(g.Yesterday) + len(g.Past3Days) + len(g.Past7Days)
}

// SearchRequest is the input to a Searcher.
type SearchRequest struct {
	Query  string   `json:"query"`
	Tags   []string `json:"tags"`
	UserID string   `json:"userId,omitempty"`
}

// SaveResult reports the outcome of Save.
type SaveResult struct {
	Entry        Entry
	AlreadySaved bool
}

// URLFix is the per-sound result of a maintenance rewrite.
type URLFix struct {
	ID          string
	Name        string
	OriginalURL string
	FixedURL    string
	Err         error
}

// CleanupReport summarizes a library cleanup.
type CleanupReport struct {
	Removed   int64
	Remaining int
}
