package library

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FormatTime renders a duration in seconds as m:ss.
func FormatTime(seconds *float64) string {
	if seconds == nil || *seconds < 0 {
		return "0:00"
	}
	total := int(*seconds)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatDuration renders d as m:ss.
func FormatDuration(d time.Duration) string {
	s := d.Seconds()
	return FormatTime(&s)
}

var icons = []struct {
	keywords []string
	glyph    string
}{
	{[]string{"piano"}, "🎹"},
	{[]string{"guitar"}, "🎸"},
	{[]string{"drum", "beat"}, "🥁"},
	{[]string{"synth", "electronic"}, "🎛"},
	{[]string{"wave", "beach", "ocean"}, "🌊"},
	{[]string{"rain", "storm"}, "🌧"},
	{[]string{"city", "urban"}, "🏙"},
	{[]string{"forest", "nature"}, "🌲"},
	{[]string{"ambient", "atmosphere"}, "🌤"},
	{[]string{"effect", "fx"}, "🔊"},
}

// DefaultIcon is used for sounds whose name matches no keyword.
const DefaultIcon = "🎵"

// IconFor picks a glyph for a sound from keywords in its name.
func IconFor(name string) string {
	lower := strings.ToLower(name)
	for _, ic := range icons {
		for _, kw := range ic.keywords {
			if strings.Contains(lower, kw) {
				return ic.glyph
			}
		}
	}
	return DefaultIcon
}

// FilterEntries returns the entries whose sound name or any tag contains
// query, ignoring case. A blank query matches everything.
func FilterEntries(entries []Entry, query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}

	var out []Entry
	for _, e := range entries {
		if matchesSound(e.Sound, q) {
			out = append(out, e)
		}
	}
	return out
}

func matchesSound(s Sound, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(s.Name), lowerQuery) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}

// GroupSearches buckets items relative to now. Today and yesterday are
// calendar days in now's location; the other buckets cover the last three
// and the last seven days. Older items are dropped. Each bucket is ordered
// newest first.
func GroupSearches(items []SearchItem, now time.Time) GroupedSearches {
	var g GroupedSearches

	startOfToday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfYesterday := startOfToday.AddDate(0, 0, -1)
	threeDaysAgo := now.AddDate(0, 0, -3)
	sevenDaysAgo := now.AddDate(0, 0, -7)

	for _, it := range items {
		at := it.CreatedAt.In(now.Location())
		switch {
		case !at.Before(startOfToday):
			g.Today = append(g.Today, it)
		case !at.Before(startOfYesterday):
			g.Yesterday = append(g.Yesterday, it)
		case !at.Before(threeDaysAgo):
			g.Past3Days = append(g.Past3Days, it)
		case !at.Before(sevenDaysAgo):
			g.Past7Days = append(g.Past7Days, it)
		}
	}

	for _, bucket := range [][]SearchItem{g.Today, g.Yesterday, g.Past3Days, g.Past7Days} {
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].CreatedAt.After(bucket[j].CreatedAt)
		})
	}
	return g
}
