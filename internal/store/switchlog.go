package store

import (
	"context"
	"fmt"
	"time"
)

// SwitchRecord is one logged agent switch.
type SwitchRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordSwitch logs an agent switch decision.
func (s *Store) RecordSwitch(ctx context.Context, rec SwitchRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO switch_logs (id, user_id, session_id, from_agent, to_agent, reason)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)`,
		rec.UserID, rec.SessionID, rec.FromAgent, rec.ToAgent, rec.Reason)
	if err != nil {
		return fmt.Errorf("record switch: %w", err)
	}
	return nil
}

// ListSwitches returns a user's switch history, newest first.
func (s *Store) ListSwitches(ctx context.Context, userID string, limit int) ([]SwitchRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, session_id, from_agent, to_agent, reason, created_at
		FROM switch_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list switches: %w", err)
	}
	defer rows.Close()

	var records []SwitchRecord
	for rows.Next() {
		var rec SwitchRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.FromAgent, &rec.ToAgent, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan switch: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
