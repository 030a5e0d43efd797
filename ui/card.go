package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/soundshelf/internal/library"
	"github.com/dgnsrekt/soundshelf/internal/widget"
)

const ellipsis = "…"

var titleCaser = cases.Title(language.English)

// card is one listed sound. Its widget is mounted with the listing and gets
// its audio once the file has been fetched and decoded.
type card struct {
	sound  library.Sound
	widget *widget.Widget

	loading  bool // fetch or decode in flight
	wantPlay bool // start playing as soon as the audio is attached
	cached   bool
	err      error
}

func newCard(s library.Sound) *card {
	return &card{sound: s}
}

func (c *card) playing() bool {
	return c.widget != nil && c.widget.IsPlaying()
}

func (c *card) unmount() {
	if c.widget != nil {
		c.widget.Unmount()
	}
	c.wantPlay = false
}

// truncateName shortens s to fit width terminal cells.
func truncateName(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return truncate.StringWithTail(s, uint(width), ellipsis) //nolint:gosec
}

func formatTags(tags []string) string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, "#"+titleCaser.String(t))
	}
	return strings.Join(out, " ")
}

// progressBar renders pos/length as a bar width cells wide.
func progressBar(st styles, progress float64, width int) string {
	if width < 4 {
		return ""
	}
	if progress < 0 {
		progress = 0
	}
	filled := int(progress * float64(width))
	if filled > width {
		filled = width
	}
	return st.barFull.Render(strings.Repeat("█", filled)) +
		st.barEmpty.Render(strings.Repeat("░", width-filled))
}

func (c *card) view(st styles, width int, selected bool, spin string) string {
	inner := width - 4
	if inner < 10 {
		inner = 10
	}

	// Header: icon, name and badges.
	var badges []string
	switch {
	case c.loading:
		badges = append(badges, st.meta.Render(spin))
	case c.playing():
		badges = append(badges, st.playing.Render("▶ playing"))
	case !c.sound.HasAudio():
		badges = append(badges, st.meta.Render("no audio"))
	}
	if c.sound.IsSaved {
		badges = append(badges, st.saved.Render("♥"))
	}
	badgeText := strings.Join(badges, " ")

	icon := library.IconFor(c.sound.Name)
	nameWidth := inner - runewidth.StringWidth(icon) - 1
	if badgeText != "" {
		nameWidth -= lipgloss.Width(badgeText) + 1
	}
	header := icon + " " + st.name.Render(truncateName(c.sound.Name, nameWidth))
	if badgeText != "" {
		header += " " + badgeText
	}

	// Meta: bpm, key, time.
	var meta []string
	if c.sound.BPM != nil {
		meta = append(meta, fmt.Sprintf("%d BPM", *c.sound.BPM))
	}
	if c.sound.Key != "" {
		meta = append(meta, c.sound.Key)
	}

	var progress float64
	length := library.FormatTime(c.sound.Duration)
	if c.widget != nil && c.widget.HasAudio() {
		pos, total := c.widget.Progress()
		if total > 0 {
			progress = float64(pos) / float64(total)
			length = library.FormatDuration(pos) + " / " + library.FormatDuration(total)
		}
	}
	meta = append(meta, length)
	metaLine := st.meta.Render(strings.Join(meta, " · "))
	if len(c.sound.Tags) > 0 {
		metaLine += "  " + st.tag.Render(truncateName(formatTags(c.sound.Tags), inner/2))
	}

	lines := []string{header, metaLine}
	if c.err != nil {
		lines = append(lines, st.err.UnsetPadding().Render(truncateName(library.Describe(c.err), inner)))
	} else {
		lines = append(lines, progressBar(st, progress, inner))
	}

	body := strings.Join(lines, "\n")
	if selected {
		return st.cursorCard.Render(body)
	}
	return st.card.Render(body)
}
