package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
)

type FeedbackRepository struct {
	db *sql.DB
}

func NewFeedbackRepository(db *sql.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *FeedbackRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2024050101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS feedback_events (
	id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	answer TEXT NOT NULL,
	feedback TEXT NOT NULL,
	blocked BOOLEAN NOT NULL DEFAULT FALSE,
	items_after INTEGER NOT NULL DEFAULT 0,
	recorded_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_events_recorded_at ON feedback_events(recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_feedback_events_feedback ON feedback_events(feedback);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// ArchiveFeedback inserts event once; redelivered events are ignored.
func (r *FeedbackRepository) ArchiveFeedback(ctx context.Context, event domain.FeedbackEvent) error {
	if event.ID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "archive feedback", fmt.Errorf("event id is empty"))
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO feedback_events (
	id, question, answer, feedback, blocked, items_after, recorded_at, archived_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO NOTHING
`,
		event.ID, event.Record.Question, event.Record.Answer, string(event.Record.Kind),
		event.Blocked, event.ItemsAfter, event.Record.Timestamp, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert feedback event: %w", err)
	}
	return nil
}

// AnswerReport is one row of the most-disliked report.
type AnswerReport struct {
	Answer   string
	Dislikes int64
	Likes    int64
	LastSeen time.Time
}

// MostDisliked ranks archived answers by dislike count.
func (r *FeedbackRepository) MostDisliked(ctx context.Context, limit int) ([]AnswerReport, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT answer,
	COUNT(*) FILTER (WHERE feedback = 'dislike') AS dislikes,
	COUNT(*) FILTER (WHERE feedback = 'like') AS likes,
	MAX(recorded_at) AS last_seen
FROM feedback_events
GROUP BY answer
HAVING COUNT(*) FILTER (WHERE feedback = 'dislike') > 0
ORDER BY dislikes DESC, last_seen DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query disliked answers: %w", err)
	}
	defer rows.Close()

	var out []AnswerReport
	for rows.Next() {
		var rep AnswerReport
		if err := rows.Scan(&rep.Answer, &rep.Dislikes, &rep.Likes, &rep.LastSeen); err != nil {
			return nil, fmt.Errorf("scan disliked answer: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate disliked answers: %w", err)
	}
	return out, nil
}
