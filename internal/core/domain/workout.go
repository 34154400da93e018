package domain

import (
	"fmt"
	"time"
)

// SessionType selects between a countdown run and an open-ended one.
type SessionType string

const (
	SessionTimed   SessionType = "timed"
	SessionFreeRun SessionType = "free_run"
)

// Valid reports whether t is a known session type.
func (t SessionType) Valid() bool {
	return t == SessionTimed || t == SessionFreeRun
}

// WorkoutSession is one run. It is open while EndTime is nil and immutable
// once finalized.
type WorkoutSession struct {
	ID              string
	StartTime       time.Time
	EndTime         *time.Time
	TargetBPM       int
	Type            SessionType
	PlannedDuration time.Duration // zero for free runs
	Duration        time.Duration
	Songs           []string
}

// Finalized reports whether the session has been stopped.
func (s WorkoutSession) Finalized() bool {
	return s.EndTime != nil
}

// Clone returns a deep copy so callers cannot reach into the song log.
func (s WorkoutSession) Clone() WorkoutSession {
	out := s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Songs = append([]string(nil), s.Songs...)
	return out
}

// WorkoutStats summarizes the finalized history.
type WorkoutStats struct {
	TotalSessions int
	TotalTime     time.Duration
	AverageBPM    int
	SongsPlayed   int
}

// ComputeStats aggregates a list of finalized sessions.
func ComputeStats(history []WorkoutSession) WorkoutStats {
	stats := WorkoutStats{TotalSessions: len(history)}
	if len(history) == 0 {
		return stats
	}

	bpmSum := 0
	for _, s := range history {
		stats.TotalTime += s.Duration
		stats.SongsPlayed += len(s.Songs)
		bpmSum += s.TargetBPM
	}
	stats.AverageBPM = bpmSum / len(history)
	return stats
}

// FormatDuration renders d as zero-padded "mm:ss". Minutes are not wrapped
// at the hour.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// RunningDurations are the preset lengths offered for timed runs.
var RunningDurations = []time.Duration{
	5 * time.Minute,
	10 * time.Minute,
	15 * time.Minute,
	20 * time.Minute,
	30 * time.Minute,
	45 * time.Minute,
	60 * time.Minute,
}

// BPMPreset is a named target cadence.
type BPMPreset struct {
	BPM         int
	Label       string
	Description string
}

var BPMPresets = []BPMPreset{
	{BPM: 120, Label: "Easy Jog", Description: "Comfortable warm-up pace"},
	{BPM: 140, Label: "Moderate Run", Description: "Steady training pace"},
	{BPM: 160, Label: "Fast Run", Description: "Tempo run pace"},
	{BPM: 180, Label: "Sprint", Description: "High intensity intervals"},
}

// DefaultBPM is the cadence used before the runner picks one.
const DefaultBPM = 140
