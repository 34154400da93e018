// Package postgres stores workout history in PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// Adapter implements ports.HistoryRepository for PostgreSQL.
type Adapter struct {
	pool *pgxpool.Pool
}

// NewAdapter connects to dsn, checks the connection and migrates the schema.
func NewAdapter(ctx context.Context, dsn string) (*Adapter, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	a := &Adapter{pool: pool}
	if err := a.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return a, nil
}

func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// SaveSessions upserts the history in one transaction, replacing each
// session's song log.
func (a *Adapter) SaveSessions(ctx context.Context, sessions []domain.WorkoutSession) error {
	if len(sessions) == 0 {
		return nil
	}

	return pgx.BeginFunc(ctx, a.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, s := range sessions {
			batch.Queue(`
				INSERT INTO workout_sessions (
					id, start_time, end_time, target_bpm, session_type, planned_duration_ms, duration_ms
				) VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					start_time = EXCLUDED.start_time,
					end_time = EXCLUDED.end_time,
					target_bpm = EXCLUDED.target_bpm,
					session_type = EXCLUDED.session_type,
					planned_duration_ms = EXCLUDED.planned_duration_ms,
					duration_ms = EXCLUDED.duration_ms
			`, s.ID, s.StartTime, s.EndTime, s.TargetBPM, string(s.Type),
				s.PlannedDuration.Milliseconds(), s.Duration.Milliseconds())
			batch.Queue(`DELETE FROM session_songs WHERE session_id = $1`, s.ID)
			for i, title := range s.Songs {
				batch.Queue(`INSERT INTO session_songs (session_id, position, title) VALUES ($1, $2, $3)`, s.ID, i, title)
			}
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save sessions: %w", err)
		}
		return nil
	})
}

type sessionRow struct {
	ID                string     `db:"id"`
	StartTime         time.Time  `db:"start_time"`
	EndTime           *time.Time `db:"end_time"`
	TargetBPM         int        `db:"target_bpm"`
	SessionType       string     `db:"session_type"`
	PlannedDurationMs int64      `db:"planned_duration_ms"`
	DurationMs        int64      `db:"duration_ms"`
	Songs             []string   `db:"songs"`
}

// LoadSessions returns the history ordered by start time.
func (a *Adapter) LoadSessions(ctx context.Context) ([]domain.WorkoutSession, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT s.id, s.start_time, s.end_time, s.target_bpm, s.session_type,
			s.planned_duration_ms, s.duration_ms,
			COALESCE(ARRAY_AGG(g.title ORDER BY g.position) FILTER (WHERE g.title IS NOT NULL), '{}') AS songs
		FROM workout_sessions s
		LEFT JOIN session_songs g ON g.session_id = s.id
		GROUP BY s.id
		ORDER BY s.start_time ASC, s.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[sessionRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan sessions: %w", err)
	}

	sessions := make([]domain.WorkoutSession, 0, len(records))
	for _, r := range records {
		s := domain.WorkoutSession{
			ID:              r.ID,
			StartTime:       r.StartTime.UTC(),
			TargetBPM:       r.TargetBPM,
			Type:            domain.SessionType(r.SessionType),
			PlannedDuration: time.Duration(r.PlannedDurationMs) * time.Millisecond,
			Duration:        time.Duration(r.DurationMs) * time.Millisecond,
		}
		if r.EndTime != nil {
			end := r.EndTime.UTC()
			s.EndTime = &end
		}
		if len(r.Songs) > 0 {
			s.Songs = r.Songs
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (a *Adapter) migrate(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS workout_sessions (
		id                  TEXT PRIMARY KEY,
		start_time          TIMESTAMPTZ NOT NULL,
		end_time            TIMESTAMPTZ,
		target_bpm          INTEGER NOT NULL,
		session_type        TEXT NOT NULL,
		planned_duration_ms BIGINT NOT NULL DEFAULT 0,
		duration_ms         BIGINT NOT NULL DEFAULT 0,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS session_songs (
		session_id TEXT NOT NULL REFERENCES workout_sessions(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		title      TEXT NOT NULL,
		PRIMARY KEY (session_id, position)
	);
	`)
	return err
}
