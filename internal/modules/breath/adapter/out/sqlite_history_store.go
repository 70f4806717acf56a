package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"breathkit/internal/modules/breath/domain"
	apperrors "breathkit/internal/platform/errors"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteHistoryStore struct {
	db *sql.DB
}

func NewSQLiteHistoryStore(dbPath string) (*SQLiteHistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &SQLiteHistoryStore{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteHistoryStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS training_sessions (
  id TEXT PRIMARY KEY,
  schema_version INTEGER NOT NULL,
  started_at TEXT NOT NULL,
  ended_at TEXT NOT NULL,
  sets INTEGER NOT NULL,
  breaths_per_set INTEGER NOT NULL,
  max_pressure REAL NOT NULL,
  max_breath_length REAL NOT NULL,
  sets_completed INTEGER NOT NULL,
  breath_count INTEGER NOT NULL,
  good_breaths INTEGER NOT NULL,
  bad_breaths INTEGER NOT NULL,
  pauses INTEGER NOT NULL,
  longest_breath REAL NOT NULL,
  best_quality INTEGER NOT NULL,
  total_volume REAL NOT NULL,
  completed INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_training_sessions_started_at ON training_sessions(started_at);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create training_sessions table: %w", err)
	}
	return nil
}

func (s *SQLiteHistoryStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteHistoryStore) Save(ctx context.Context, summary domain.Summary) error {
	const stmt = `
INSERT INTO training_sessions (id, schema_version, started_at, ended_at, sets, breaths_per_set, max_pressure, max_breath_length,
  sets_completed, breath_count, good_breaths, bad_breaths, pauses, longest_breath, best_quality, total_volume, completed)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  ended_at=excluded.ended_at,
  sets_completed=excluded.sets_completed,
  breath_count=excluded.breath_count,
  good_breaths=excluded.good_breaths,
  bad_breaths=excluded.bad_breaths,
  pauses=excluded.pauses,
  longest_breath=excluded.longest_breath,
  best_quality=excluded.best_quality,
  total_volume=excluded.total_volume,
  completed=excluded.completed;
`
	completed := 0
	if summary.Completed {
		completed = 1
	}
	_, err := s.db.ExecContext(ctx, stmt,
		summary.ID,
		domain.SchemaVersion,
		summary.StartedAt.UTC().Format(timeLayout),
		summary.EndedAt.UTC().Format(timeLayout),
		summary.Targets.Sets,
		summary.Targets.BreathsPerSet,
		summary.Calibration.MaxPressure(),
		summary.Calibration.MaxBreathLength(),
		summary.SetsCompleted,
		summary.BreathCount,
		summary.GoodBreaths,
		summary.BadBreaths,
		summary.Pauses,
		summary.LongestBreath,
		summary.BestQuality,
		summary.TotalVolume,
		completed,
	)
	if err != nil {
		return fmt.Errorf("save training session: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, started_at, ended_at, sets, breaths_per_set, max_pressure, max_breath_length,
  sets_completed, breath_count, good_breaths, bad_breaths, pauses, longest_breath, best_quality, total_volume, completed
FROM training_sessions`

// List returns the newest summaries first. A limit of 0 returns all.
func (s *SQLiteHistoryStore) List(ctx context.Context, limit int) ([]domain.Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query training sessions: %w", err)
	}
	defer rows.Close()

	out := []domain.Summary{}
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate training sessions: %w", err)
	}
	return out, nil
}

func (s *SQLiteHistoryStore) Get(ctx context.Context, id string) (domain.Summary, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Summary{}, fmt.Errorf("training session %s: %w", id, apperrors.ErrNotFound)
	}
	return summary, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (domain.Summary, error) {
	var (
		summary             domain.Summary
		startedAt, endedAt  string
		maxPressure, maxLen float64
		completed           int
	)
	err := row.Scan(
		&summary.ID,
		&startedAt,
		&endedAt,
		&summary.Targets.Sets,
		&summary.Targets.BreathsPerSet,
		&maxPressure,
		&maxLen,
		&summary.SetsCompleted,
		&summary.BreathCount,
		&summary.GoodBreaths,
		&summary.BadBreaths,
		&summary.Pauses,
		&summary.LongestBreath,
		&summary.BestQuality,
		&summary.TotalVolume,
		&completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Summary{}, err
		}
		return domain.Summary{}, fmt.Errorf("scan training session: %w", err)
	}
	if summary.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return domain.Summary{}, fmt.Errorf("parse started_at: %w", err)
	}
	if summary.EndedAt, err = time.Parse(timeLayout, endedAt); err != nil {
		return domain.Summary{}, fmt.Errorf("parse ended_at: %w", err)
	}
	summary.Calibration = domain.Uncalibrated()
	if cal, err := domain.NewCalibration(maxPressure, maxLen); err == nil {
		summary.Calibration = cal
	}
	summary.Completed = completed != 0
	return summary, nil
}
