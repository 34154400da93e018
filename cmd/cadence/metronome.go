package main

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/metronome"
)

var metronomeCmd = &cobra.Command{
	Use:   "metronome",
	Short: "Click at a fixed BPM until interrupted or for a set time",
	RunE:  runMetronome,
}

func init() {
	metronomeCmd.Flags().Int("bpm", domain.DefaultBPM, "Clicks per minute")
	metronomeCmd.Flags().Duration("for", 0, "Stop after this long (0 runs until interrupted)")
	metronomeCmd.Flags().String("sink", "bell", "Click sink: bell, pcm or none")
	metronomeCmd.Flags().String("click-file", "", "MP3 click sample (default: synthesized 800 Hz beep)")
}

func runMetronome(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, logCloser, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	runFor, _ := cmd.Flags().GetDuration("for")

	// --bpm turns clicking on even when the config disables it
	cfg.Metronome.Enabled = true
	scheduler, err := newMetronome(cfg, cmd.OutOrStdout(), log)
	if err != nil {
		return err
	}

	var ticks atomic.Int64
	unsubscribe := scheduler.OnTick.Subscribe(func(metronome.Tick) { ticks.Add(1) })
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scheduler.Start(cfg.Metronome.BPM); err != nil {
		return err
	}
	log.Infof("metronome: %d BPM, one click every %s", cfg.Metronome.BPM, metronome.Period(cfg.Metronome.BPM))

	var deadline <-chan time.Time
	if runFor > 0 {
		timer := time.NewTimer(runFor)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-ctx.Done():
	case <-deadline:
	}

	scheduler.Stop()
	fmt.Fprintf(cmd.ErrOrStderr(), "%d clicks\n", ticks.Load())
	return nil
}
