package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

var (
	searchTags    []string
	libraryFilter string

	searchCmd = &cobra.Command{
		Use:     "search [QUERY]",
		Short:   "Search for sounds",
		Example: paragraph("soundshelf search \"rainy piano\"\nsoundshelf search --tag drums --tag loop"),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) > 0 {
				query = args[0]
			}
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				sounds, err := a.library.Search(ctx, a.currentSession(), query, searchTags)
				if err != nil {
					return err
				}
				if len(sounds) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), faint("No sounds found."))
					return nil
				}
				for _, s := range sounds {
					printSound(cmd.OutOrStdout(), s)
				}
				return nil
			})
		},
	}

	libraryCmd = &cobra.Command{
		Use:   "library",
		Short: "List the sounds saved to your library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				entries, err := a.library.Library(ctx, a.currentSession())
				if err != nil {
					return err
				}
				entries = library.FilterEntries(entries, libraryFilter)
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), faint("Your library is empty."))
					return nil
				}
				for _, e := range entries {
					printSound(cmd.OutOrStdout(), e.Sound)
					fmt.Fprintln(cmd.OutOrStdout(), "   "+faint("saved "+humanize.Time(e.SavedAt)))
				}
				return nil
			})
		},
	}

	saveCmd = &cobra.Command{
		Use:   "save ID",
		Short: "Save a sound to your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				res, err := a.library.Save(ctx, a.currentSession(), args[0])
				if err != nil {
					return err
				}
				if res.AlreadySaved {
					fmt.Fprintln(cmd.OutOrStdout(), "Already in your library.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Saved "+keyword(res.Entry.Sound.Name)+" to your library.")
				return nil
			})
		},
	}

	removeCmd = &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a sound from your library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				removed, err := a.library.Remove(ctx, a.currentSession(), args[0], "")
				if err != nil {
					return err
				}
				if !removed {
					fmt.Fprintln(cmd.OutOrStdout(), "Not in your library.")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Removed from your library.")
				return nil
			})
		},
	}

	tagsCmd = &cobra.Command{
		Use:   "tags",
		Short: "List every tag in the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				tags, err := a.library.Tags(ctx)
				if err != nil {
					return err
				}
				for _, t := range tags {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			})
		},
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show your searches from the last week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				g, err := a.library.History(ctx, a.currentSession())
				if err != nil {
					return err
				}
				printHistory(cmd.OutOrStdout(), g)
				return nil
			})
		},
	}

	showCmd = &cobra.Command{
		Use:   "show ID",
		Short: "Show the details of a sound",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				s, err := a.library.Sound(ctx, a.currentSession(), args[0])
				if err != nil {
					return err
				}
				out, err := renderMarkdown(soundMarkdown(s))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
)

func init() {
	searchCmd.Flags().StringArrayVar(&searchTags, "tag", nil, "only sounds with this tag (repeatable)")
	libraryCmd.Flags().StringVarP(&libraryFilter, "filter", "f", "", "only sounds whose name or tags contain this")
}

// withApp opens the app for the duration of fn. Errors from fn are
// reported in their short form.
func withApp(cmd *cobra.Command, withAudio bool, fn func(context.Context, *app) error) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), s, withAudio)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if err := fn(cmd.Context(), a); err != nil {
		return errors.New(library.Describe(err))
	}
	return nil
}

func soundMeta(s library.Sound) string {
	var meta []string
	if s.BPM != nil {
		meta = append(meta, fmt.Sprintf("%d BPM", *s.BPM))
	}
	if s.Key != "" {
		meta = append(meta, s.Key)
	}
	meta = append(meta, library.FormatTime(s.Duration))
	return strings.Join(meta, " · ")
}

func printSound(w io.Writer, s library.Sound) {
	name := s.Name
	if s.IsSaved {
		name += " ♥"
	}
	line := library.IconFor(s.Name) + " " + heading(name) + "  " + faint(soundMeta(s))
	if len(s.Tags) > 0 {
		line += "  " + faint("#"+strings.Join(s.Tags, " #"))
	}
	if width > 0 && lipgloss.Width(line) > int(width) { //nolint:gosec
		line = truncate.StringWithTail(line, width, "…")
	}
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "   "+faint(s.ID))
}

func printHistory(w io.Writer, g library.GroupedSearches) {
	if g.Len() == 0 {
		fmt.Fprintln(w, faint("No searches in the last week."))
		return
	}
	groups := []struct {
		title string
		items []library.SearchItem
	}{
		{"Today", g.Today},
		{"Yesterday", g.Yesterday},
		{"Past 3 days", g.Past3Days},
		{"Past 7 days", g.Past7Days},
	}
	for _, grp := range groups {
		if len(grp.items) == 0 {
			continue
		}
		fmt.Fprintln(w, heading(grp.title))
		for _, it := range grp.items {
			fmt.Fprintf(w, "  %s %s\n", it.Query, faint(humanize.Time(it.CreatedAt)))
		}
	}
}

// soundMarkdown renders s as a markdown detail card.
func soundMarkdown(s library.Sound) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s %s\n\n", library.IconFor(s.Name), s.Name)

	b.WriteString("| BPM | Key | Length | Saved |\n|---|---|---|---|\n")
	bpm, key, saved := "-", "-", "no"
	if s.BPM != nil {
		bpm = fmt.Sprint(*s.BPM)
	}
	if s.Key != "" {
		key = s.Key
	}
	if s.IsSaved {
		saved = "yes"
	}
	fmt.Fprintf(&b, "| %s | %s | %s | %s |\n\n", bpm, key, library.FormatTime(s.Duration), saved)

	if len(s.Tags) > 0 {
		b.WriteString("**Tags:** ")
		for i, t := range s.Tags {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("`" + t + "`")
		}
		b.WriteString("\n\n")
	}

	if s.HasAudio() {
		fmt.Fprintf(&b, "**Audio:** [%s](%s)\n\n", library.DownloadName(s, s.AudioURL), s.AudioURL)
	} else {
		b.WriteString("_No audio available._\n\n")
	}
	fmt.Fprintf(&b, "ID: `%s`\n", s.ID)
	return b.String()
}

func renderMarkdown(md string) (string, error) {
	opts := []glamour.TermRendererOption{
		glamour.WithColorProfile(lipgloss.ColorProfile()),
		glamour.WithWordWrap(int(width)), //nolint:gosec
	}
	switch {
	case style == styles.AutoStyle:
		opts = append(opts, glamour.WithAutoStyle())
	case styles.DefaultStyles[style] != nil:
		opts = append(opts, glamour.WithStylePath(style))
	default:
		opts = append(opts, glamour.WithStylePath(expandPath(style)))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}
