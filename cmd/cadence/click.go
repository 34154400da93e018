package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/adapters/audio"
)

var clickCmd = &cobra.Command{
	Use:   "click",
	Short: "Work with the metronome click sample",
}

var clickExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the click sample as a 16-bit mono WAV file",
	RunE:  runClickExport,
}

func init() {
	clickCmd.AddCommand(clickExportCmd)

	clickExportCmd.Flags().String("out", "click.wav", "Destination WAV file")
	clickExportCmd.Flags().String("click-file", "", "MP3 click sample to convert (default: synthesized 800 Hz beep)")
}

func runClickExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")

	sample, err := loadSample(cfg)
	if err != nil {
		return fmt.Errorf("failed to load click sample: %w", err)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", out, err)
	}
	if err := audio.WriteWAV(f, sample); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d Hz)\n", out, sample.Duration(), sample.Rate)
	return nil
}
