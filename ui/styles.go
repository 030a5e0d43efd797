package ui

import (
	"github.com/charmbracelet/lipgloss"
	te "github.com/muesli/termenv"
)

type theme struct {
	name string

	accent    lipgloss.Color
	text      lipgloss.Color
	subtle    lipgloss.Color
	faint     lipgloss.Color
	playing   lipgloss.Color
	saved     lipgloss.Color
	errorText lipgloss.Color
	barEmpty  lipgloss.Color
}

var (
	darkTheme = theme{
		name:      "dark",
		accent:    lipgloss.Color("#EE6FF8"),
		text:      lipgloss.Color("#DDDADA"),
		subtle:    lipgloss.Color("#979797"),
		faint:     lipgloss.Color("#585858"),
		playing:   lipgloss.Color("#04B575"),
		saved:     lipgloss.Color("#ECFD65"),
		errorText: lipgloss.Color("#FF5F87"),
		barEmpty:  lipgloss.Color("#3C3C3C"),
	}

	lightTheme = theme{
		name:      "light",
		accent:    lipgloss.Color("#F793FF"),
		text:      lipgloss.Color("#1A1A1A"),
		subtle:    lipgloss.Color("#5C5C5C"),
		faint:     lipgloss.Color("#A49FA5"),
		playing:   lipgloss.Color("#00A66F"),
		saved:     lipgloss.Color("#C6A700"),
		errorText: lipgloss.Color("#D7005F"),
		barEmpty:  lipgloss.Color("#DDDADA"),
	}
)

// themeFor resolves "auto" from the terminal background.
func themeFor(name string) theme {
	switch name {
	case "dark":
		return darkTheme
	case "light":
		return lightTheme
	}
	if te.HasDarkBackground() {
		return darkTheme
	}
	return lightTheme
}

func (t theme) toggled() theme {
	if t.name == "dark" {
		return lightTheme
	}
	return darkTheme
}

type styles struct {
	title      lipgloss.Style
	tab        lipgloss.Style
	activeTab  lipgloss.Style
	card       lipgloss.Style
	cursorCard lipgloss.Style
	name       lipgloss.Style
	meta       lipgloss.Style
	tag        lipgloss.Style
	playing    lipgloss.Style
	saved      lipgloss.Style
	help       lipgloss.Style
	status     lipgloss.Style
	err        lipgloss.Style
	barFull    lipgloss.Style
	barEmpty   lipgloss.Style
}

func newStyles(t theme) styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true).Foreground(t.accent).Padding(0, 1),
		tab:        lipgloss.NewStyle().Foreground(t.subtle).Padding(0, 1),
		activeTab:  lipgloss.NewStyle().Foreground(t.text).Bold(true).Underline(true).Padding(0, 1),
		card:       lipgloss.NewStyle().PaddingLeft(2).BorderLeft(true).BorderStyle(lipgloss.HiddenBorder()),
		cursorCard: lipgloss.NewStyle().PaddingLeft(2).BorderLeft(true).BorderStyle(lipgloss.ThickBorder()).BorderForeground(t.accent),
		name:       lipgloss.NewStyle().Foreground(t.text).Bold(true),
		meta:       lipgloss.NewStyle().Foreground(t.subtle),
		tag:        lipgloss.NewStyle().Foreground(t.faint),
		playing:    lipgloss.NewStyle().Foreground(t.playing),
		saved:      lipgloss.NewStyle().Foreground(t.saved),
		help:       lipgloss.NewStyle().Foreground(t.faint).Padding(0, 1),
		status:     lipgloss.NewStyle().Foreground(t.playing).Padding(0, 1),
		err:        lipgloss.NewStyle().Foreground(t.errorText).Padding(0, 1),
		barFull:    lipgloss.NewStyle().Foreground(t.playing),
		barEmpty:   lipgloss.NewStyle().Foreground(t.barEmpty),
	}
}
