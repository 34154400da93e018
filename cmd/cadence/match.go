package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Print songs that match a cadence",
	Long: `Match searches the catalog for tracks within 10 BPM of the given cadence
and prints them best-first. Without a signed-in account (spotify.refresh_token)
the built-in list is used.`,
	RunE: runMatch,
}

func init() {
	matchCmd.Flags().Int("bpm", domain.DefaultBPM, "Target cadence in steps per minute")
}

func runMatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	bpm := cfg.Metronome.BPM
	catalog := newCatalog(cmd.Context(), cfg, log)
	res := newMatcher(cfg, catalog.client, log).SongsForBPM(cmd.Context(), bpm)

	out := cmd.OutOrStdout()
	if res.Fallback {
		fmt.Fprintln(out, "Using the built-in list.")
		if res.Err != nil {
			fmt.Fprintf(out, "Catalog error: %v\n", res.Err)
		}
	}
	if len(res.Songs) == 0 {
		fmt.Fprintf(out, "No songs within 10 BPM of %d.\n", bpm)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BPM\tTITLE\tARTIST\tURI")
	for _, s := range res.Songs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.BPM, s.Title, s.Artist, s.URI)
	}
	return w.Flush()
}
