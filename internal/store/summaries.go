package store

import (
	"context"
	"fmt"
	"time"

	"github.com/echomind/echomind/internal/memory"
)

// AppendSummary stores one tagged conversation summary for a user.
func (s *Store) AppendSummary(ctx context.Context, userID string, entry memory.SummaryEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO summary_logs (id, user_id, created_at, emotional_tone, confidence, summary, tags)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)`,
		userID, ts, entry.EmotionalTone, entry.Confidence, entry.Summary, entry.Tags)
	if err != nil {
		return fmt.Errorf("append summary: %w", err)
	}
	return nil
}

// TaggedSummaries returns a user's summaries newest first, optionally
// bounded below by since.
func (s *Store) TaggedSummaries(ctx context.Context, userID string, since *time.Time, limit int) ([]memory.SummaryEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(ctx, `
		SELECT created_at, emotional_tone, confidence, summary, tags
		FROM summary_logs
		WHERE user_id = $1 AND ($2::timestamptz IS NULL OR created_at >= $2)
		ORDER BY created_at DESC
		LIMIT $3`, userID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("tagged summaries: %w", err)
	}
	defer rows.Close()

	var entries []memory.SummaryEntry
	for rows.Next() {
		var e memory.SummaryEntry
		if err := rows.Scan(&e.Timestamp, &e.EmotionalTone, &e.Confidence, &e.Summary, &e.Tags); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
