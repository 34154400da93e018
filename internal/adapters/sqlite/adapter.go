// Package sqlite provides a SQLite-backed implementation of the workout
// history port.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

// Adapter implements ports.HistoryRepository for SQLite.
type Adapter struct {
	db *sql.DB
}

// NewAdapter opens the database at storagePath and runs the schema
// migration. ":memory:" gives a private in-memory database.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// every pooled connection to ":memory:" would be a separate database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}
	if err := adapter.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

// SaveSessions upserts every session and replaces its song log.
func (a *Adapter) SaveSessions(ctx context.Context, sessions []domain.WorkoutSession) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmtSession, err := tx.PrepareContext(ctx, `
		INSERT INTO workout_sessions (
			id, start_time, end_time, target_bpm, session_type, planned_duration_ms, duration_ms
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_time=excluded.start_time,
			end_time=excluded.end_time,
			target_bpm=excluded.target_bpm,
			session_type=excluded.session_type,
			planned_duration_ms=excluded.planned_duration_ms,
			duration_ms=excluded.duration_ms;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare session upsert: %w", err)
	}
	defer stmtSession.Close()

	stmtSong, err := tx.PrepareContext(ctx, `
		INSERT INTO session_songs (session_id, position, title) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare song insert: %w", err)
	}
	defer stmtSong.Close()

	for _, s := range sessions {
		var end sql.NullInt64
		if s.EndTime != nil {
			end = sql.NullInt64{Int64: s.EndTime.UnixNano(), Valid: true}
		}
		if _, err := stmtSession.ExecContext(
			ctx,
			s.ID,
			s.StartTime.UnixNano(),
			end,
			s.TargetBPM,
			string(s.Type),
			s.PlannedDuration.Milliseconds(),
			s.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("failed to save session %s: %w", s.ID, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM session_songs WHERE session_id = ?", s.ID); err != nil {
			return fmt.Errorf("failed to clear songs for %s: %w", s.ID, err)
		}
		for i, title := range s.Songs {
			if _, err := stmtSong.ExecContext(ctx, s.ID, i, title); err != nil {
				return fmt.Errorf("failed to save song %d of %s: %w", i, s.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// LoadSessions returns the stored history ordered by start time.
func (a *Adapter) LoadSessions(ctx context.Context) ([]domain.WorkoutSession, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, start_time, end_time, target_bpm, session_type, planned_duration_ms, duration_ms
		FROM workout_sessions
		ORDER BY start_time ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.WorkoutSession{}
	index := map[string]int{}
	for rows.Next() {
		var (
			s                   domain.WorkoutSession
			start               int64
			end                 sql.NullInt64
			sessionType         string
			plannedMs, duration int64
		)
		if err := rows.Scan(&s.ID, &start, &end, &s.TargetBPM, &sessionType, &plannedMs, &duration); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartTime = time.Unix(0, start).UTC()
		if end.Valid {
			t := time.Unix(0, end.Int64).UTC()
			s.EndTime = &t
		}
		s.Type = domain.SessionType(sessionType)
		s.PlannedDuration = time.Duration(plannedMs) * time.Millisecond
		s.Duration = time.Duration(duration) * time.Millisecond
		index[s.ID] = len(sessions)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	songRows, err := a.db.QueryContext(ctx, `
		SELECT session_id, title FROM session_songs ORDER BY session_id, position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load session songs: %w", err)
	}
	defer songRows.Close()

	for songRows.Next() {
		var id, title string
		if err := songRows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("failed to scan session song: %w", err)
		}
		if i, ok := index[id]; ok {
			sessions[i].Songs = append(sessions[i].Songs, title)
		}
	}
	if err := songRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session songs: %w", err)
	}

	return sessions, nil
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS workout_sessions (
		id TEXT PRIMARY KEY,
		start_time INTEGER NOT NULL,
		end_time INTEGER,
		target_bpm INTEGER NOT NULL,
		session_type TEXT NOT NULL,
		planned_duration_ms INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS session_songs (
		session_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		title TEXT NOT NULL,
		PRIMARY KEY (session_id, position),
		FOREIGN KEY(session_id) REFERENCES workout_sessions(id) ON DELETE CASCADE
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}
	return nil
}
