package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/rival/internal/domain/model"
	"github.com/okian/rival/pkg/metrics"
)

// Storage formats for temporal columns.
const (
	instantFormat = time.RFC3339Nano
	dateFormat    = "2006-01-02"
	profileRowID  = 1
)

// SQLiteStore implements Store on a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	loc *time.Location
}

// NewSQLiteStore opens or creates the database at path and migrates the
// schema. WAL mode keeps the sweep's reads from blocking completions.
// Calendar-date columns (due_date, last_goal_date) are interpreted in the
// store's location so boundary arithmetic lands on the intended day.
func NewSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS goals (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL,
		goal_type        TEXT NOT NULL,
		due_date         TEXT,
		due_time         TEXT,
		created_at       TEXT NOT NULL,
		completed        INTEGER NOT NULL DEFAULT 0,
		completed_at     TEXT,
		outcome          TEXT,
		points_earned    INTEGER NOT NULL DEFAULT 0,
		ai_points_earned INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_goals_completed ON goals(completed);
	CREATE INDEX IF NOT EXISTS idx_goals_created ON goals(created_at DESC);

	CREATE TABLE IF NOT EXISTS profile (
		id             INTEGER PRIMARY KEY CHECK (id = 1),
		user_points    INTEGER NOT NULL DEFAULT 0,
		ai_points      INTEGER NOT NULL DEFAULT 0,
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_goal_date TEXT
	);
	INSERT OR IGNORE INTO profile (id) VALUES (1);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// CreateGoal inserts a new open goal.
func (s *SQLiteStore) CreateGoal(ctx context.Context, g model.Goal) error {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	var dueDate, dueTime sql.NullString
	if g.DueDate != nil {
		dueDate = sql.NullString{String: g.DueDate.Format(dateFormat), Valid: true}
	}
	if g.DueTime != nil {
		dueTime = sql.NullString{String: g.DueTime.String(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, title, goal_type, due_date, due_time, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Title, string(g.Type), dueDate, dueTime, g.CreatedAt.Format(instantFormat),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", ErrDuplicateID, g.ID)
		}
		metrics.RecordStoreError()
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// Goal returns a goal by id.
func (s *SQLiteStore) Goal(ctx context.Context, id string) (model.Goal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	row := s.db.QueryRowContext(ctx, goalColumns+` WHERE id = ?`, id)
	g, err := s.scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Goal{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.Goal{}, err
	}
	return g, nil
}

// Goals lists goals, newest first.
func (s *SQLiteStore) Goals(ctx context.Context, includeCompleted bool, limit int) ([]model.Goal, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	q := goalColumns
	if !includeCompleted {
		q += ` WHERE completed = 0`
	}
	q += ` ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()
	return s.collectGoals(rows)
}

// OpenGoals returns every goal not yet completed.
func (s *SQLiteStore) OpenGoals(ctx context.Context) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx, goalColumns+` WHERE completed = 0`)
	if err != nil {
		return nil, fmt.Errorf("list open goals: %w", err)
	}
	defer rows.Close()
	return s.collectGoals(rows)
}

// FinalizeGoal marks an open goal completed and applies the point deltas
// in one transaction. The WHERE completed = 0 gate makes the second writer
// (completion vs. sweep) a no-op, and the profile update is an additive
// increment, never an absolute overwrite.
func (s *SQLiteStore) FinalizeGoal(ctx context.Context, id string, completedAt time.Time, userPoints, aiPoints int, outcome model.Outcome) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.RecordStoreError()
		return false, fmt.Errorf("begin finalize: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE goals
		 SET completed = 1, completed_at = ?, outcome = ?, points_earned = ?, ai_points_earned = ?
		 WHERE id = ? AND completed = 0`,
		completedAt.Format(instantFormat), string(outcome), userPoints, aiPoints, id,
	)
	if err != nil {
		metrics.RecordStoreError()
		return false, fmt.Errorf("finalize goal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finalize goal rows: %w", err)
	}
	if affected == 0 {
		// Already completed by the other writer; nothing was mutated.
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE profile SET user_points = user_points + ?, ai_points = ai_points + ? WHERE id = ?`,
		userPoints, aiPoints, profileRowID,
	); err != nil {
		metrics.RecordStoreError()
		return false, fmt.Errorf("apply point deltas: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.RecordStoreError()
		return false, fmt.Errorf("commit finalize: %w", err)
	}
	return true, nil
}

// Scores returns the current point totals.
func (s *SQLiteStore) Scores(ctx context.Context) (model.ScoreState, error) {
	var sc model.ScoreState
	err := s.db.QueryRowContext(ctx,
		`SELECT user_points, ai_points FROM profile WHERE id = ?`, profileRowID,
	).Scan(&sc.UserPoints, &sc.AIPoints)
	if err != nil {
		return model.ScoreState{}, fmt.Errorf("read scores: %w", err)
	}
	return sc, nil
}

// Profile returns totals and streak state.
func (s *SQLiteStore) Profile(ctx context.Context) (Profile, error) {
	var p Profile
	var lastDate sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT user_points, ai_points, current_streak, longest_streak, last_goal_date FROM profile WHERE id = ?`,
		profileRowID,
	).Scan(&p.Scores.UserPoints, &p.Scores.AIPoints, &p.CurrentStreak, &p.LongestStreak, &lastDate)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}
	if lastDate.Valid {
		t, perr := time.ParseInLocation(dateFormat, lastDate.String, s.loc)
		if perr != nil {
			return Profile{}, fmt.Errorf("parse last_goal_date: %w", perr)
		}
		p.LastGoalDate = &t
	}
	return p, nil
}

// SetStreak records the streak counters and the last completion date.
func (s *SQLiteStore) SetStreak(ctx context.Context, current, longest int, lastGoalDate time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profile SET current_streak = ?, longest_streak = ?, last_goal_date = ? WHERE id = ?`,
		current, longest, lastGoalDate.Format(dateFormat), profileRowID,
	)
	if err != nil {
		metrics.RecordStoreError()
		return fmt.Errorf("set streak: %w", err)
	}
	return nil
}

// CountGoals returns open and total goal counts.
func (s *SQLiteStore) CountGoals(ctx context.Context) (open, total int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FILTER (WHERE completed = 0), COUNT(*) FROM goals`,
	).Scan(&open, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("count goals: %w", err)
	}
	return open, total, nil
}

const goalColumns = `SELECT id, title, goal_type, due_date, due_time, created_at,
	completed, completed_at, outcome, points_earned, ai_points_earned FROM goals`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanGoal(row scanner) (model.Goal, error) {
	var g model.Goal
	var goalType, createdAt string
	var dueDate, dueTime, completedAt, outcome sql.NullString
	var completed int

	if err := row.Scan(&g.ID, &g.Title, &goalType, &dueDate, &dueTime, &createdAt,
		&completed, &completedAt, &outcome, &g.PointsEarned, &g.AIPointsEarned); err != nil {
		return model.Goal{}, err
	}

	g.Type = model.GoalType(goalType)
	g.Completed = completed != 0

	created, err := time.Parse(instantFormat, createdAt)
	if err != nil {
		return model.Goal{}, fmt.Errorf("parse created_at: %w", err)
	}
	g.CreatedAt = created

	if dueDate.Valid {
		t, err := time.ParseInLocation(dateFormat, dueDate.String, s.loc)
		if err != nil {
			return model.Goal{}, fmt.Errorf("parse due_date: %w", err)
		}
		g.DueDate = &t
	}
	if dueTime.Valid {
		b, err := model.ParseDayBoundary(dueTime.String)
		if err != nil {
			return model.Goal{}, fmt.Errorf("parse due_time: %w", err)
		}
		g.DueTime = &b
	}
	if completedAt.Valid {
		t, err := time.Parse(instantFormat, completedAt.String)
		if err != nil {
			return model.Goal{}, fmt.Errorf("parse completed_at: %w", err)
		}
		g.CompletedAt = &t
	}
	if outcome.Valid {
		g.Outcome = model.Outcome(outcome.String)
	}
	return g, nil
}

func (s *SQLiteStore) collectGoals(rows *sql.Rows) ([]model.Goal, error) {
	var goals []model.Goal
	for rows.Next() {
		g, err := s.scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return goals, nil
}
