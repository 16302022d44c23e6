// Package history keeps a SQLite record of every terminal pipeline run.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lewflauta/AgenticSocialBot/internal/agent"
	"github.com/lewflauta/AgenticSocialBot/internal/orchestrator"
	"github.com/lewflauta/AgenticSocialBot/internal/runner"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

var (
	// ErrNotFound is returned by Get for an unknown run ID.
	ErrNotFound = errors.New("run not found")
	// ErrSchemaMismatch indicates the database was created by another version.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

// Status is the terminal state of a run.
type Status string

const (
	StatusPublished Status = "published"
	StatusRejected  Status = "rejected"
	StatusFailed    Status = "failed"
)

// Run is one persisted pipeline run.
type Run struct {
	ID            string                  `json:"id"`
	VideoID       string                  `json:"video_id,omitempty"`
	Status        Status                  `json:"status"`
	Score         *int                    `json:"score,omitempty"`
	Feedback      string                  `json:"feedback,omitempty"`
	Content       string                  `json:"content,omitempty"`
	Stored        *agent.StoredPosts      `json:"stored,omitempty"`
	ScheduledLink string                  `json:"scheduled_link,omitempty"`
	Invocations   []runner.ToolInvocation `json:"invocations,omitempty"`
	ErrorStage    string                  `json:"error_stage,omitempty"`
	ErrorKind     string                  `json:"error_kind,omitempty"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
	StartedAt     time.Time               `json:"started_at"`
	FinishedAt    time.Time               `json:"finished_at"`
}

// Store persists runs in SQLite. It is safe for concurrent use.
type Store struct {
	db   *sql.DB
	path string
}

// Compile-time interface check.
var _ orchestrator.HistoryRecorder = (*Store)(nil)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or opens the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("insert schema version: %w", err)
	}
	return tx.Commit()
}

// Record implements orchestrator.HistoryRecorder.
func (s *Store) Record(ctx context.Context, outcome *orchestrator.Outcome, runErr error) error {
	if outcome == nil {
		return errors.New("history: nil outcome")
	}
	return s.Save(ctx, FromOutcome(outcome, runErr))
}

// FromOutcome converts a pipeline outcome and its error into a Run.
func FromOutcome(outcome *orchestrator.Outcome, runErr error) Run {
	run := Run{
		ID:            outcome.RunID,
		VideoID:       outcome.VideoID,
		Content:       outcome.Content,
		Stored:        outcome.Stored,
		ScheduledLink: outcome.ScheduledLink,
		Invocations:   outcome.Invocations,
		StartedAt:     outcome.StartedAt,
		FinishedAt:    outcome.FinishedAt,
	}
	if fb := outcome.Feedback; fb != nil {
		score := fb.Score
		run.Score = &score
		run.Feedback = fb.Feedback
	}
	switch {
	case runErr != nil:
		run.Status = StatusFailed
		run.ErrorMessage = runErr.Error()
		run.ErrorKind = string(orchestrator.KindOf(runErr))
		var serr *orchestrator.StageError
		if errors.As(runErr, &serr) {
			run.ErrorStage = serr.Stage.String()
		}
	case outcome.Rejected:
		run.Status = StatusRejected
	default:
		run.Status = StatusPublished
	}
	return run
}

// Save inserts or replaces run.
func (s *Store) Save(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("history: run id is required")
	}
	stored, err := encodeNullable(run.Stored != nil, run.Stored)
	if err != nil {
		return fmt.Errorf("encode stored posts: %w", err)
	}
	invocations, err := encodeNullable(len(run.Invocations) > 0, run.Invocations)
	if err != nil {
		return fmt.Errorf("encode invocations: %w", err)
	}
	var score sql.NullInt64
	if run.Score != nil {
		score = sql.NullInt64{Int64: int64(*run.Score), Valid: true}
	}

	return s.execWithRetry(ctx,
		`INSERT OR REPLACE INTO runs (
            id, video_id, status, score, feedback, content, stored_posts,
            scheduled_link, invocations, error_stage, error_kind, error_message,
            started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.VideoID,
		string(run.Status),
		score,
		run.Feedback,
		run.Content,
		stored,
		run.ScheduledLink,
		invocations,
		run.ErrorStage,
		run.ErrorKind,
		run.ErrorMessage,
		formatTime(run.StartedAt),
		formatTime(run.FinishedAt),
	)
}

const selectColumns = `id, video_id, status, score, feedback, content, stored_posts,
    scheduled_link, invocations, error_stage, error_kind, error_message,
    started_at, finished_at`

// Get returns the run with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + selectColumns + " FROM runs ORDER BY started_at DESC, id"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		status      string
		score       sql.NullInt64
		stored      sql.NullString
		invocations sql.NullString
		startedAt   string
		finishedAt  string
	)
	if err := scanner.Scan(
		&run.ID,
		&run.VideoID,
		&status,
		&score,
		&run.Feedback,
		&run.Content,
		&stored,
		&run.ScheduledLink,
		&invocations,
		&run.ErrorStage,
		&run.ErrorKind,
		&run.ErrorMessage,
		&startedAt,
		&finishedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}

	run.Status = Status(status)
	if score.Valid {
		v := int(score.Int64)
		run.Score = &v
	}
	if stored.Valid && stored.String != "" {
		var posts agent.StoredPosts
		if err := json.Unmarshal([]byte(stored.String), &posts); err != nil {
			return nil, fmt.Errorf("decode stored posts for %s: %w", run.ID, err)
		}
		run.Stored = &posts
	}
	if invocations.Valid && invocations.String != "" {
		if err := json.Unmarshal([]byte(invocations.String), &run.Invocations); err != nil {
			return nil, fmt.Errorf("decode invocations for %s: %w", run.ID, err)
		}
	}
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	return &run, nil
}

func encodeNullable(valid bool, v any) (sql.NullString, error) {
	if !valid {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return fmt.Errorf("save run: %w", lastErr)
}
