package ports

import (
	"context"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// HistoryRepository stores finalized workout sessions. SaveSessions receives
// the whole history; implementations upsert by session id.
type HistoryRepository interface {
	SaveSessions(ctx context.Context, sessions []domain.WorkoutSession) error
	LoadSessions(ctx context.Context) ([]domain.WorkoutSession, error)
}
