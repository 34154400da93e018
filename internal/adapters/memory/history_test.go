package memory

import (
	"context"
	"testing"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

func TestHistory_UpsertsByID(t *testing.T) {
	h := NewHistory()
	ctx := context.Background()

	a := domain.WorkoutSession{ID: "a", StartTime: time.Unix(1, 0), TargetBPM: 140, Songs: []string{"x"}}
	b := domain.WorkoutSession{ID: "b", StartTime: time.Unix(2, 0), TargetBPM: 160}
	if err := h.SaveSessions(ctx, []domain.WorkoutSession{a, b}); err != nil {
		t.Fatal(err)
	}

	a.TargetBPM = 150
	a.Songs[0] = "changed by caller"
	if err := h.SaveSessions(ctx, []domain.WorkoutSession{a}); err != nil {
		t.Fatal(err)
	}

	got, _ := h.LoadSessions(ctx)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected %+v", got)
	}
	if got[0].TargetBPM != 150 {
		t.Errorf("bpm = %d, want 150", got[0].TargetBPM)
	}

	got[1].TargetBPM = 999
	again, _ := h.LoadSessions(ctx)
	if again[1].TargetBPM != 160 {
		t.Error("LoadSessions must return copies")
	}
}
