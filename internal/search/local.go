package search

import (
	"context"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// SoundLister lists every known sound.
type SoundLister interface {
	List(ctx context.Context) ([]library.Sound, error)
}

// Local matches sounds from the local store.
type Local struct {
	sounds SoundLister
}

var _ library.Searcher = (*Local)(nil)

// NewLocal creates a local searcher.
func NewLocal(sounds SoundLister) *Local {
	return &Local{sounds: sounds}
}

func (l *Local) Name() string { return "local" }

// candidates is a fuzzy.Source over sound names followed by their tags.
type candidates []library.Sound

func (c candidates) Len() int { return len(c) }

func (c candidates) String(i int) string {
	if len(c[i].Tags) == 0 {
		return c[i].Name
	}
	return c[i].Name + " " + strings.Join(c[i].Tags, " ")
}

// Search keeps sounds carrying every requested tag and ranks them by fuzzy
// score against the query. Without a query, results are sorted by name.
func (l *Local) Search(ctx context.Context, req library.SearchRequest) ([]library.Sound, error) {
	all, err := l.sounds.List(ctx)
	if err != nil {
		return nil, err
	}

	pool := make(candidates, 0, len(all))
	for _, s := range all {
		if hasAllTags(s, req.Tags) {
			pool = append(pool, s)
		}
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		sort.SliceStable(pool, func(i, j int) bool {
			return strings.ToLower(pool[i].Name) < strings.ToLower(pool[j].Name)
		})
		return []library.Sound(pool), nil
	}

	matches := fuzzy.FindFrom(query, pool)
	out := make([]library.Sound, 0, len(matches))
	for _, m := range matches {
		out = append(out, pool[m.Index])
	}
	return out, nil
}

func hasAllTags(s library.Sound, tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range s.Tags {
			if strings.EqualFold(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
