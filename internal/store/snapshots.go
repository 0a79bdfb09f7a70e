package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/echomind/echomind/internal/memory"
)

// LatestSnapshot returns the most recently updated memory snapshot for a
// (user, agent) pair, or nil when nothing is stored yet.
func (s *Store) LatestSnapshot(ctx context.Context, userID, agent string) (*memory.Snapshot, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, agent, memory_type, content, updated_at
		FROM memory_snapshots
		WHERE user_id = $1 AND agent = $2
		ORDER BY updated_at DESC
		LIMIT 1`, userID, agent)

	var snap memory.Snapshot
	err := row.Scan(&snap.ID, &snap.UserID, &snap.Agent, &snap.MemoryType, &snap.Content, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot: %w", err)
	}
	return &snap, nil
}

// WriteMemory sets the value at the dot path inside the snapshot for
// (user, agent, memory type), creating the snapshot when absent. A path
// of "all" replaces the whole content.
func (s *Store) WriteMemory(ctx context.Context, userID, agent, memoryType, path string, data any) error {
	return s.mutateSnapshot(ctx, userID, agent, memoryType, func(doc map[string]any) (map[string]any, error) {
		if path == "all" {
			replacement, ok := toDocument(data)
			if !ok {
				return nil, fmt.Errorf("write memory: data for path \"all\" must be an object")
			}
			return replacement, nil
		}
		setPath(doc, path, data)
		return doc, nil
	})
}

// UpdateMemory behaves like WriteMemory; the distinction is kept at the
// request level for access control.
func (s *Store) UpdateMemory(ctx context.Context, userID, agent, memoryType, path string, data any) error {
	return s.WriteMemory(ctx, userID, agent, memoryType, path, data)
}

// DeleteMemory removes the value at the dot path, or the whole snapshot
// when the path is "all".
func (s *Store) DeleteMemory(ctx context.Context, userID, agent, memoryType, path string) error {
	if path == "all" {
		_, err := s.db.Exec(ctx, `
			DELETE FROM memory_snapshots
			WHERE user_id = $1 AND agent = $2 AND memory_type = $3`,
			userID, agent, memoryType)
		if err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		return nil
	}
	return s.mutateSnapshot(ctx, userID, agent, memoryType, func(doc map[string]any) (map[string]any, error) {
		unsetPath(doc, path)
		return doc, nil
	})
}

// mutateSnapshot loads the current content document, applies fn, and
// upserts the result.
func (s *Store) mutateSnapshot(ctx context.Context, userID, agent, memoryType string, fn func(map[string]any) (map[string]any, error)) error {
	doc := map[string]any{}
	var content string
	err := s.db.QueryRow(ctx, `
		SELECT content FROM memory_snapshots
		WHERE user_id = $1 AND agent = $2 AND memory_type = $3`,
		userID, agent, memoryType).Scan(&content)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if content != "" {
		if err := json.Unmarshal([]byte(content), &doc); err != nil {
			doc = map[string]any{}
		}
	}

	doc, err = fn(doc)
	if err != nil {
		return err
	}
	updated, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO memory_snapshots (id, user_id, agent, memory_type, content, updated_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, agent, memory_type) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at`,
		userID, agent, memoryType, string(updated))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func toDocument(data any) (map[string]any, bool) {
	if doc, ok := data.(map[string]any); ok {
		return doc, true
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, false
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}
	return doc, true
}

// setPath writes value at a dot-separated path, creating intermediate
// objects and overwriting non-object intermediates.
func setPath(doc map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// unsetPath removes the value at a dot-separated path. Missing segments
// are a no-op.
func unsetPath(doc map[string]any, path string) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, parts[len(parts)-1])
}
