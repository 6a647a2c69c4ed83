package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db    *sql.DB
	retry shared.RetryPolicy
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, retry: shared.DefaultRetryPolicy}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS briefs (
		session_id TEXT PRIMARY KEY,
		user_input TEXT NOT NULL,
		intent_json TEXT NOT NULL,
		goal TEXT NOT NULL,
		audience TEXT NOT NULL,
		channels_json TEXT NOT NULL,
		summary TEXT NOT NULL,
		question_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		completed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_briefs_completed ON briefs(completed_at);

	CREATE TABLE IF NOT EXISTS transcripts (
		session_id TEXT NOT NULL REFERENCES briefs(session_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		question TEXT NOT NULL,
		question_type TEXT NOT NULL,
		kind TEXT NOT NULL,
		answer TEXT,
		asked_at INTEGER NOT NULL,
		answered_at INTEGER,
		PRIMARY KEY (session_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// SaveBrief stores a brief and, optionally, its transcript in one transaction.
// SQLITE_BUSY conflicts are retried with exponential backoff.
func (s *SQLiteStore) SaveBrief(ctx context.Context, b *domain.Brief, withTranscript bool) error {
	err := shared.RetryOnConflict(ctx, s.retry, "save brief", func() error {
		return s.saveBriefOnce(ctx, b, withTranscript)
	})
	if err != nil {
		return fmt.Errorf("save brief %s: %w", b.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) saveBriefOnce(ctx context.Context, b *domain.Brief, withTranscript bool) (err error) {
	intentJSON, err := json.Marshal(b.Intent)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	channelsJSON, err := json.Marshal(b.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				slog.Warn("rollback brief save failed", "session_id", b.SessionID, "error", rbErr)
			}
		}
	}()

	query := `
	INSERT INTO briefs (session_id, user_input, intent_json, goal, audience, channels_json,
		summary, question_count, created_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		intent_json = excluded.intent_json,
		goal = excluded.goal,
		audience = excluded.audience,
		channels_json = excluded.channels_json,
		summary = excluded.summary,
		question_count = excluded.question_count,
		completed_at = excluded.completed_at`
	if _, err = tx.ExecContext(ctx, query,
		b.SessionID, b.UserInput, string(intentJSON), b.Intent.Goal, b.Intent.Audience,
		string(channelsJSON), b.Summary, b.QuestionCount,
		b.CreatedAt.Unix(), b.CompletedAt.Unix(),
	); err != nil {
		return fmt.Errorf("upsert brief: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM transcripts WHERE session_id = ?`, b.SessionID); err != nil {
		return fmt.Errorf("clear transcript: %w", err)
	}
	if withTranscript {
		for i, t := range b.Transcript {
			var answer, answeredAt interface{}
			if t.Answer != nil {
				answer = *t.Answer
			}
			if t.AnsweredAt != nil {
				answeredAt = t.AnsweredAt.Unix()
			}
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO transcripts (session_id, seq, question, question_type, kind, answer, asked_at, answered_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				b.SessionID, i, t.Question, string(t.Type), string(t.Kind), answer, t.AskedAt.Unix(), answeredAt,
			); err != nil {
				return fmt.Errorf("insert turn %d: %w", i, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetBrief retrieves a brief with its transcript.
func (s *SQLiteStore) GetBrief(ctx context.Context, sessionID string) (*domain.Brief, error) {
	query := `
		SELECT session_id, user_input, intent_json, channels_json, summary,
		       question_count, created_at, completed_at
		FROM briefs WHERE session_id = ?`

	var (
		b                       domain.Brief
		intentJSON, channelJSON string
		createdAt, completedAt  int64
	)
	err := s.db.QueryRowContext(ctx, query, sessionID).Scan(
		&b.SessionID, &b.UserInput, &intentJSON, &channelJSON, &b.Summary,
		&b.QuestionCount, &createdAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan brief: %w", err)
	}
	if err := json.Unmarshal([]byte(intentJSON), &b.Intent); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}
	if err := json.Unmarshal([]byte(channelJSON), &b.Channels); err != nil {
		return nil, fmt.Errorf("decode channels: %w", err)
	}
	b.CreatedAt = time.Unix(createdAt, 0)
	b.CompletedAt = time.Unix(completedAt, 0)

	transcript, err := s.transcript(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	b.Transcript = transcript
	return &b, nil
}

func (s *SQLiteStore) transcript(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, question_type, kind, answer, asked_at, answered_at
		FROM transcripts WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query transcript: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close transcript rows", "error", closeErr)
		}
	}()

	var turns []domain.Turn
	for rows.Next() {
		var (
			t          domain.Turn
			qt, kind   string
			answer     sql.NullString
			askedAt    int64
			answeredAt sql.NullInt64
		)
		if err := rows.Scan(&t.Question, &qt, &kind, &answer, &askedAt, &answeredAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Type = domain.QuestionType(qt)
		t.Kind = domain.TurnKind(kind)
		t.AskedAt = time.Unix(askedAt, 0)
		if answer.Valid {
			a := answer.String
			t.Answer = &a
		}
		if answeredAt.Valid {
			at := time.Unix(answeredAt.Int64, 0)
			t.AnsweredAt = &at
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript: %w", err)
	}
	return turns, nil
}

// ListBriefs returns the most recently completed briefs first.
func (s *SQLiteStore) ListBriefs(ctx context.Context, limit, offset int) ([]BriefSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, goal, audience, channels_json, question_count, completed_at
		FROM briefs ORDER BY completed_at DESC, session_id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query briefs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close brief rows", "error", closeErr)
		}
	}()

	var out []BriefSummary
	for rows.Next() {
		var (
			b           BriefSummary
			channelJSON string
			completedAt int64
		)
		if err := rows.Scan(&b.SessionID, &b.Goal, &b.Audience, &channelJSON, &b.QuestionCount, &completedAt); err != nil {
			return nil, fmt.Errorf("scan brief row: %w", err)
		}
		if err := json.Unmarshal([]byte(channelJSON), &b.Channels); err != nil {
			return nil, fmt.Errorf("decode channels: %w", err)
		}
		b.CompletedAt = time.Unix(completedAt, 0)
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate briefs: %w", err)
	}
	return out, nil
}

// PruneBriefs removes briefs completed before now minus retention.
func (s *SQLiteStore) PruneBriefs(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).Unix()
	var removed int64
	err := shared.RetryOnConflict(ctx, s.retry, "prune briefs", func() error {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM transcripts WHERE session_id IN (SELECT session_id FROM briefs WHERE completed_at < ?)`, threshold); err != nil {
			return err
		}
		result, err := s.db.ExecContext(ctx, `DELETE FROM briefs WHERE completed_at < ?`, threshold)
		if err != nil {
			return err
		}
		removed, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune briefs: %w", err)
	}
	return removed, nil
}
