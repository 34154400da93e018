package domain

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{name: "zero", in: 0, want: "00:00"},
		{name: "seventy five seconds", in: 75 * time.Second, want: "01:15"},
		{name: "sub second truncates", in: 59*time.Second + 900*time.Millisecond, want: "00:59"},
		{name: "over an hour", in: 61*time.Minute + 5*time.Second, want: "61:05"},
		{name: "negative clamps", in: -5 * time.Second, want: "00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.in); got != tt.want {
				t.Fatalf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	history := []WorkoutSession{
		{TargetBPM: 140, Duration: 10 * time.Minute, Songs: []string{"a", "b"}},
		{TargetBPM: 160, Duration: 20 * time.Minute, Songs: []string{"c"}},
		{TargetBPM: 181, Duration: 5 * time.Minute},
	}

	stats := ComputeStats(history)
	if stats.TotalSessions != 3 {
		t.Fatalf("expected 3 sessions, got %d", stats.TotalSessions)
	}
	if stats.TotalTime != 35*time.Minute {
		t.Fatalf("expected 35m total, got %v", stats.TotalTime)
	}
	if stats.AverageBPM != 160 {
		t.Fatalf("expected average 160, got %d", stats.AverageBPM)
	}
	if stats.SongsPlayed != 3 {
		t.Fatalf("expected 3 songs, got %d", stats.SongsPlayed)
	}

	if empty := ComputeStats(nil); empty != (WorkoutStats{}) {
		t.Fatalf("expected zero stats, got %+v", empty)
	}
}

func TestWorkoutSessionClone(t *testing.T) {
	end := time.Unix(100, 0)
	s := WorkoutSession{ID: "x", EndTime: &end, Songs: []string{"one"}}

	c := s.Clone()
	c.Songs[0] = "changed"
	*c.EndTime = time.Unix(200, 0)

	if s.Songs[0] != "one" {
		t.Fatalf("clone shares song log")
	}
	if !s.EndTime.Equal(time.Unix(100, 0)) {
		t.Fatalf("clone shares end time")
	}
	if !s.Finalized() {
		t.Fatalf("expected finalized session")
	}
}
