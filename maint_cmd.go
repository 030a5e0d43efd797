package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

var (
	clearCache bool

	maintCmd = &cobra.Command{
		Use:   "maint",
		Short: "Repair the catalogue and your library",
	}

	fixURLsCmd = &cobra.Command{
		Use:   "fix-urls",
		Short: "Collapse doubled slashes in stored audio URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				fixes, err := a.library.FixURLs(ctx)
				if err != nil {
					return err
				}
				printFixes(cmd.OutOrStdout(), fixes)
				return nil
			})
		},
	}

	formatURLsCmd = &cobra.Command{
		Use:   "format-urls",
		Short: "Turn bare storage paths into public audio URLs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				fixes, err := a.library.FormatURLs(ctx)
				if err != nil {
					return err
				}
				printFixes(cmd.OutOrStdout(), fixes)
				return nil
			})
		},
	}

	cleanupCmd = &cobra.Command{
		Use:   "cleanup",
		Short: "Remove library entries whose sound no longer exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				rep, err := a.library.Cleanup(ctx, a.currentSession())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s, %s left in your library.\n",
					keyword(plural(int(rep.Removed), "orphaned entry", "orphaned entries")),
					plural(rep.Remaining, "sound", "sounds"))
				return nil
			})
		},
	}

	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show or clear the audio cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(_ context.Context, a *app) error {
				if clearCache {
					before := a.cache.Stats()
					if err := a.cache.Clear(); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s of cached audio.\n",
						humanize.IBytes(uint64(before.L1.Size+before.L2.Size))) //nolint:gosec
					return nil
				}
				a.cache.Cleanup()
				fmt.Fprintln(cmd.OutOrStdout(), a.cache.Stats().String())
				fmt.Fprintln(cmd.OutOrStdout(), faint(a.cfg.Cache.Dir))
				return nil
			})
		},
	}
)

func init() {
	cacheCmd.Flags().BoolVar(&clearCache, "clear", false, "delete every cached file")
	maintCmd.AddCommand(fixURLsCmd, formatURLsCmd, cleanupCmd, cacheCmd)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return humanize.Comma(int64(n)) + " " + many
}

func printFixes(w io.Writer, fixes []library.URLFix) {
	if len(fixes) == 0 {
		fmt.Fprintln(w, faint("Nothing to fix."))
		return
	}
	for _, f := range fixes {
		if f.Err != nil {
			fmt.Fprintf(w, "%s %s: %s\n", errorText("✗"), f.Name, library.Describe(f.Err))
			continue
		}
		fmt.Fprintf(w, "%s %s\n  %s\n  %s\n", keyword("✓"), f.Name, faint(f.OriginalURL), f.FixedURL)
	}
	fmt.Fprintf(w, "\nUpdated %d of %s.\n", library.Succeeded(fixes), plural(len(fixes), "sound", "sounds"))
}
