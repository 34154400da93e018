// Package memory keeps workout history in process memory. It is the
// default store and forgets everything on restart.
package memory

import (
	"context"
	"sync"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// History implements ports.HistoryRepository.
type History struct {
	mu       sync.RWMutex
	sessions []domain.WorkoutSession
	index    map[string]int
}

func NewHistory() *History {
	return &History{index: map[string]int{}}
}

func (h *History) SaveSessions(_ context.Context, sessions []domain.WorkoutSession) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range sessions {
		if i, ok := h.index[s.ID]; ok {
			h.sessions[i] = s.Clone()
			continue
		}
		h.index[s.ID] = len(h.sessions)
		h.sessions = append(h.sessions, s.Clone())
	}
	return nil
}

func (h *History) LoadSessions(context.Context) ([]domain.WorkoutSession, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.WorkoutSession, len(h.sessions))
	for i, s := range h.sessions {
		out[i] = s.Clone()
	}
	return out, nil
}

func (h *History) Close() error { return nil }
